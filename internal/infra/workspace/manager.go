package workspace

import (
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Manager allocates one isolated on-disk directory per analysis run.
type Manager struct {
	base string
}

// NewManager ensures the base directory exists.
func NewManager(base string) (*Manager, error) {
	if base == "" {
		base = filepath.Join(os.TempDir(), "repolens")
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, err
	}
	return &Manager{base: base}, nil
}

// Acquire creates a uniquely named empty directory.
func (m *Manager) Acquire() (string, error) {
	dir := filepath.Join(m.base, "ws-"+uuid.New().String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// Release removes the directory recursively. Failures are logged, never
// propagated; the pipeline outcome must not depend on cleanup.
func (m *Manager) Release(dir string) {
	if dir == "" {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		log.Printf("warn: failed to remove workspace %s: %v", dir, err)
	}
}
