package analyses

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound dikembalikan repo saat record tidak ada atau bukan milik owner.
var ErrNotFound = errors.New("analysis not found")

// ErrValidation marks input rejected before any workspace is allocated.
var ErrValidation = errors.New("validation error")

// CloneError carries the diagnostic of a failed clone (after the
// branch-fallback retry). The raw output is for logs only, never persisted.
type CloneError struct {
	URL    string
	Output string
}

func (e *CloneError) Error() string {
	return fmt.Sprintf("clone failed for %s", e.URL)
}

// ListFilter closed set of list filters
type ListFilter struct {
	Status Status
	URL    string // substring match
}

// Repository port (interface untuk persistence)
type Repository interface {
	Create(ctx context.Context, a *Analysis) error
	MarkAnalyzing(ctx context.Context, owner string, id AnalysisID) error
	MarkCompleted(ctx context.Context, owner string, id AnalysisID, data *AnalysisData, m *Metrics, artifactURL string) error
	MarkFailed(ctx context.Context, owner string, id AnalysisID, message string) error
	Get(ctx context.Context, owner string, id AnalysisID) (*Analysis, error)
	List(ctx context.Context, owner string, f ListFilter, page, pageSize int) (PaginatedResult, error)
}

// Fetcher port (interface untuk clone repository)
type Fetcher interface {
	// Clone populates dir with the repository tree.
	Clone(ctx context.Context, url, branch string, depth int, dir string) error
	// Check verifies fetch feasibility without cloning.
	Check(ctx context.Context, url string) error
}

// Workspaces port for the per-run temporary directory.
type Workspaces interface {
	Acquire() (string, error)
	Release(dir string)
}

// Enricher port (interface untuk inference service)
type Enricher interface {
	Enrich(ctx context.Context, data *AnalysisData, m *Metrics) (*Insights, error)
}

// ArtifactStore port (interface untuk penyimpanan artefak)
type ArtifactStore interface {
	UploadJSON(ctx context.Context, key string, payload any) (string, error)
}

// RepoMetadata from the hosted-repo API, used by validate only.
type RepoMetadata struct {
	FullName      string `json:"full_name"`
	Description   string `json:"description,omitempty"`
	DefaultBranch string `json:"default_branch"`
	Stars         int    `json:"stars"`
	Forks         int    `json:"forks"`
	Language      string `json:"language,omitempty"`
	SizeKB        int64  `json:"size_kb"`
}

// MetadataSource port, optional collaborator for validate.
type MetadataSource interface {
	RepoMetadata(ctx context.Context, rawURL string) (*RepoMetadata, error)
}
