package git

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	domain "github.com/bryanwahyu/repolens/internal/domain/analyses"
)

const (
	defaultCloneTimeout = 2 * time.Minute
	minDepth            = 1
	maxDepth            = 10
)

// Fetcher clones repositories by invoking the external git binary.
type Fetcher struct {
	Timeout time.Duration

	// run is swapped out in tests
	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = defaultCloneTimeout
	}
	return &Fetcher{
		Timeout: timeout,
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).CombinedOutput()
		},
	}
}

// Clone populates dir with the repository tree. When a branch was requested
// and the clone fails, it retries exactly once without the branch qualifier;
// a second failure surfaces as CloneError.
func (f *Fetcher) Clone(ctx context.Context, url, branch string, depth int, dir string) error {
	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	out, err := f.run(ctx, "git", cloneArgs(url, branch, depth, dir)...)
	if err != nil && branch != "" {
		// drop whatever the failed attempt left behind before retrying
		if rerr := resetDir(dir); rerr != nil {
			return fmt.Errorf("%w: %v", &domain.CloneError{URL: url, Output: string(out)}, rerr)
		}
		out, err = f.run(ctx, "git", cloneArgs(url, "", depth, dir)...)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", &domain.CloneError{URL: url, Output: string(out)}, err)
	}
	return nil
}

// Check verifies fetch feasibility without cloning.
func (f *Fetcher) Check(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	if out, err := f.run(ctx, "git", "ls-remote", "--heads", url); err != nil {
		return fmt.Errorf("%w: %v", &domain.CloneError{URL: url, Output: string(out)}, err)
	}
	return nil
}

func cloneArgs(url, branch string, depth int, dir string) []string {
	args := []string{"clone", "--depth", strconv.Itoa(clampDepth(depth)), "--single-branch"}
	if branch != "" {
		args = append(args, "--branch", branch)
	}
	return append(args, url, dir)
}

func resetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

func clampDepth(depth int) int {
	if depth < minDepth {
		return minDepth
	}
	if depth > maxDepth {
		return maxDepth
	}
	return depth
}
