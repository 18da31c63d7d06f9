package git

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/repolens/internal/domain/analyses"
)

type call struct {
	name string
	args []string
}

func fakeFetcher(fn func(ctx context.Context, name string, args ...string) ([]byte, error)) *Fetcher {
	f := NewFetcher(time.Second)
	f.run = fn
	return f
}

func TestClone_Success(t *testing.T) {
	var calls []call
	f := fakeFetcher(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		calls = append(calls, call{name, args})
		return nil, nil
	})

	err := f.Clone(context.Background(), "https://github.com/acme/demo.git", "main", 1, t.TempDir())
	require.NoError(t, err)
	require.Len(t, calls, 1)

	assert.Equal(t, "git", calls[0].name)
	assert.Equal(t, "clone", calls[0].args[0])
	assert.Contains(t, calls[0].args, "--branch")
	assert.Contains(t, calls[0].args, "main")
	assert.Contains(t, calls[0].args, "--single-branch")
}

func TestClone_BranchFallbackRetriesOnce(t *testing.T) {
	var calls []call
	f := fakeFetcher(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		calls = append(calls, call{name, args})
		if len(calls) == 1 {
			return []byte("fatal: Remote branch nope not found"), errors.New("exit status 128")
		}
		return nil, nil
	})

	err := f.Clone(context.Background(), "https://github.com/acme/demo.git", "nope", 1, t.TempDir())
	require.NoError(t, err)
	require.Len(t, calls, 2)

	assert.Contains(t, calls[0].args, "--branch")
	assert.NotContains(t, calls[1].args, "--branch")
}

func TestClone_NoBranchNoRetry(t *testing.T) {
	var calls []call
	f := fakeFetcher(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		calls = append(calls, call{name, args})
		return []byte("fatal: repository not found"), errors.New("exit status 128")
	})

	err := f.Clone(context.Background(), "https://github.com/acme/gone.git", "", 1, t.TempDir())
	require.Error(t, err)
	assert.Len(t, calls, 1)

	var ce *domain.CloneError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "https://github.com/acme/gone.git", ce.URL)
	assert.Contains(t, ce.Output, "repository not found")
}

func TestClone_SecondFailureSurfacesCloneError(t *testing.T) {
	f := fakeFetcher(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("fatal: could not read from remote"), errors.New("exit status 128")
	})

	err := f.Clone(context.Background(), "https://github.com/acme/demo.git", "dev", 1, t.TempDir())
	require.Error(t, err)

	var ce *domain.CloneError
	assert.ErrorAs(t, err, &ce)
}

func TestClone_DepthClamped(t *testing.T) {
	var got []string
	f := fakeFetcher(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		got = args
		return nil, nil
	})

	require.NoError(t, f.Clone(context.Background(), "https://x.test/r.git", "", 99, t.TempDir()))
	assert.Contains(t, got, "10")

	require.NoError(t, f.Clone(context.Background(), "https://x.test/r.git", "", 0, t.TempDir()))
	assert.Contains(t, got, "1")
}

func TestCheck(t *testing.T) {
	var got call
	f := fakeFetcher(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		got = call{name, args}
		return []byte("abc\trefs/heads/main"), nil
	})

	require.NoError(t, f.Check(context.Background(), "https://github.com/acme/demo.git"))
	assert.Equal(t, []string{"ls-remote", "--heads", "https://github.com/acme/demo.git"}, got.args)

	f = fakeFetcher(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("fatal: repository not found"), errors.New("exit status 128")
	})
	assert.Error(t, f.Check(context.Background(), "https://github.com/acme/gone.git"))
}
