package analyses_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appanalyses "github.com/bryanwahyu/repolens/internal/application/analyses"
	domain "github.com/bryanwahyu/repolens/internal/domain/analyses"
	"github.com/bryanwahyu/repolens/internal/domain/progress"
)

//
// ==== FAKES ====
//

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type fakeRepo struct {
	mu        sync.Mutex
	created   *domain.Analysis
	analyzing bool
	completed bool

	data        *domain.AnalysisData
	metrics     *domain.Metrics
	artifactURL string

	failedMessage string

	createErr    error
	completedErr error
}

func (r *fakeRepo) Create(ctx context.Context, a *domain.Analysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = a
	return r.createErr
}

func (r *fakeRepo) MarkAnalyzing(ctx context.Context, owner string, id domain.AnalysisID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.analyzing = true
	return nil
}

func (r *fakeRepo) MarkCompleted(ctx context.Context, owner string, id domain.AnalysisID, data *domain.AnalysisData, m *domain.Metrics, artifactURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.completedErr != nil {
		return r.completedErr
	}
	r.completed = true
	r.data = data
	r.metrics = m
	r.artifactURL = artifactURL
	return nil
}

func (r *fakeRepo) MarkFailed(ctx context.Context, owner string, id domain.AnalysisID, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failedMessage = message
	return nil
}

func (r *fakeRepo) Get(ctx context.Context, owner string, id domain.AnalysisID) (*domain.Analysis, error) {
	return nil, domain.ErrNotFound
}

func (r *fakeRepo) List(ctx context.Context, owner string, f domain.ListFilter, page, pageSize int) (domain.PaginatedResult, error) {
	return domain.PaginatedResult{Page: page, PageSize: pageSize}, nil
}

// fakeFetcher materializes a tiny repository tree instead of cloning.
type fakeFetcher struct {
	cloneErr error
	checkErr error
	cloned   bool
}

func (f *fakeFetcher) Clone(ctx context.Context, url, branch string, depth int, dir string) error {
	if f.cloneErr != nil {
		return f.cloneErr
	}
	f.cloned = true
	files := map[string]string{
		"main.go":      "package main\n\nfunc main() {}\n",
		"README.md":    "# demo\n",
		"package.json": `{"dependencies": {"express": "^4.18.2"}}`,
	}
	for rel, content := range files {
		if err := os.WriteFile(filepath.Join(dir, rel), []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeFetcher) Check(ctx context.Context, url string) error { return f.checkErr }

type fakeWorkspaces struct {
	mu       sync.Mutex
	base     string
	acquired []string
	released []string
}

func (w *fakeWorkspaces) Acquire() (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	dir := filepath.Join(w.base, "ws")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	w.acquired = append(w.acquired, dir)
	return dir, nil
}

func (w *fakeWorkspaces) Release(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.released = append(w.released, dir)
}

type fakeEnricher struct {
	insights *domain.Insights
	err      error
}

func (e *fakeEnricher) Enrich(ctx context.Context, data *domain.AnalysisData, m *domain.Metrics) (*domain.Insights, error) {
	return e.insights, e.err
}

type fakeArtifacts struct {
	key string
	err error
}

func (a *fakeArtifacts) UploadJSON(ctx context.Context, key string, payload any) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	a.key = key
	return "https://artifacts.test/" + key, nil
}

// recordingBroadcaster captures lifecycle calls and signals terminal Close.
type recordingBroadcaster struct {
	mu     sync.Mutex
	opened []string
	events []progress.Event
	status map[string]string
	done   chan struct{}
}

func newRecordingBroadcaster() *recordingBroadcaster {
	return &recordingBroadcaster{status: map[string]string{}, done: make(chan struct{}, 1)}
}

func (b *recordingBroadcaster) Open(analysisID, status string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.opened = append(b.opened, analysisID)
	b.status[analysisID] = status
}

func (b *recordingBroadcaster) Publish(ev progress.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
}

func (b *recordingBroadcaster) SetStatus(analysisID, status string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status[analysisID] = status
}

func (b *recordingBroadcaster) Close(analysisID string) {
	select {
	case b.done <- struct{}{}:
	default:
	}
}

func (b *recordingBroadcaster) eventTypes() []progress.EventType {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]progress.EventType, 0, len(b.events))
	for _, ev := range b.events {
		out = append(out, ev.Type)
	}
	return out
}

func waitDone(t *testing.T, b *recordingBroadcaster) {
	t.Helper()
	select {
	case <-b.done:
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline never reached a terminal state")
	}
}

//
// ==== SERVICE FIXTURE ====
//

type fixture struct {
	svc    *appanalyses.Service
	repo   *fakeRepo
	fetch  *fakeFetcher
	ws     *fakeWorkspaces
	bcast  *recordingBroadcaster
	enrich *fakeEnricher
	arts   *fakeArtifacts
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		repo:  &fakeRepo{},
		fetch: &fakeFetcher{},
		ws:    &fakeWorkspaces{base: t.TempDir()},
		bcast: newRecordingBroadcaster(),
		enrich: &fakeEnricher{insights: &domain.Insights{
			Architecture: "Small Go service.",
			Quality:      domain.Quality{Score: 80, Summary: "looks fine"},
			Performance:  []string{"p"},
			Security:     []string{"s"},
			DevOps:       []string{"d"},
		}},
		arts: &fakeArtifacts{},
	}
	f.svc = &appanalyses.Service{
		Repo:      f.repo,
		Fetcher:   f.fetch,
		Enricher:  f.enrich,
		Artifacts: f.arts,
		Workspace: f.ws,
		Progress:  f.bcast,
		Clock:     fixedClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
		Pool:      appanalyses.NewPool(2),
	}
	return f
}

func start(t *testing.T, f *fixture, cmd appanalyses.StartAnalysisCommand) *domain.Analysis {
	t.Helper()
	a, err := f.svc.Start(context.Background(), cmd)
	require.NoError(t, err)
	return a
}

//
// ==== TESTS ====
//

func TestStart_Defaults(t *testing.T) {
	f := newFixture(t)
	a := start(t, f, appanalyses.StartAnalysisCommand{
		OwnerID: "acme",
		URL:     "https://github.com/acme/demo.git",
	})
	waitDone(t, f.bcast)

	assert.Equal(t, "main", a.Branch)
	assert.Equal(t, 1, a.Depth)
	assert.True(t, a.IncludeDependencies)
	assert.Equal(t, domain.StatusPending, a.Status)
	assert.NotEmpty(t, a.ID)
	require.NotNil(t, f.repo.created)
}

func TestStart_ValidationErrors(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Start(context.Background(), appanalyses.StartAnalysisCommand{OwnerID: "acme"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.Start(context.Background(), appanalyses.StartAnalysisCommand{
		OwnerID: "  ", URL: "https://github.com/acme/demo.git",
	})
	assert.ErrorIs(t, err, domain.ErrValidation, "blank owner never reaches the store")

	_, err = f.svc.Start(context.Background(), appanalyses.StartAnalysisCommand{OwnerID: "acme", URL: "ftp://host/repo"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.Start(context.Background(), appanalyses.StartAnalysisCommand{
		OwnerID: "acme", URL: "https://github.com/acme/demo.git", Depth: 11,
	})
	assert.ErrorIs(t, err, domain.ErrValidation)

	assert.Nil(t, f.repo.created, "nothing persisted on validation failure")
}

func TestRun_SuccessPipeline(t *testing.T) {
	f := newFixture(t)
	start(t, f, appanalyses.StartAnalysisCommand{
		OwnerID: "acme",
		URL:     "https://github.com/acme/demo.git",
	})
	waitDone(t, f.bcast)

	f.repo.mu.Lock()
	defer f.repo.mu.Unlock()
	require.True(t, f.repo.analyzing)
	require.True(t, f.repo.completed)
	assert.Empty(t, f.repo.failedMessage)

	require.NotNil(t, f.repo.data)
	assert.Equal(t, 3, f.repo.data.Structure.TotalFiles)
	assert.Contains(t, f.repo.data.Languages, "Go")
	assert.Contains(t, f.repo.data.Languages, "Markdown")
	assert.False(t, f.repo.data.InsightsDegraded)
	assert.Equal(t, 80, f.repo.data.Insights.Quality.Score)

	require.Len(t, f.repo.data.Dependencies, 1)
	assert.Equal(t, "express", f.repo.data.Dependencies[0].Name)
	assert.Equal(t, "4.18.2", f.repo.data.Dependencies[0].Version)

	require.NotNil(t, f.repo.metrics)
	assert.Equal(t, 1, f.repo.metrics.DependencyCount)
	assert.Greater(t, f.repo.metrics.TotalLines, 0)

	assert.Contains(t, f.repo.artifactURL, "acme/")

	// workspace released exactly once
	f.ws.mu.Lock()
	defer f.ws.mu.Unlock()
	require.Len(t, f.ws.acquired, 1)
	assert.Equal(t, f.ws.acquired, f.ws.released)

	types := f.bcast.eventTypes()
	assert.Equal(t, progress.EventStarted, types[0])
	assert.Equal(t, progress.EventCompleted, types[len(types)-1])
}

func TestRun_CloneFailureMarksFailed(t *testing.T) {
	f := newFixture(t)
	f.fetch.cloneErr = &domain.CloneError{URL: "https://github.com/acme/gone.git", Output: "fatal: not found"}

	start(t, f, appanalyses.StartAnalysisCommand{
		OwnerID: "acme",
		URL:     "https://github.com/acme/gone.git",
	})
	waitDone(t, f.bcast)

	f.repo.mu.Lock()
	failed := f.repo.failedMessage
	completed := f.repo.completed
	f.repo.mu.Unlock()

	assert.Equal(t, "failed to clone repository", failed, "only the readable message is persisted")
	assert.False(t, completed)

	// workspace still released
	f.ws.mu.Lock()
	defer f.ws.mu.Unlock()
	assert.Equal(t, f.ws.acquired, f.ws.released)

	types := f.bcast.eventTypes()
	assert.Equal(t, progress.EventFailed, types[len(types)-1])
	assert.NotContains(t, types, progress.EventCompleted)
}

func TestRun_EnrichmentFailureDegradesNotFails(t *testing.T) {
	f := newFixture(t)
	f.enrich.insights = nil
	f.enrich.err = errors.New("inference timeout")

	start(t, f, appanalyses.StartAnalysisCommand{
		OwnerID: "acme",
		URL:     "https://github.com/acme/demo.git",
	})
	waitDone(t, f.bcast)

	f.repo.mu.Lock()
	defer f.repo.mu.Unlock()
	require.True(t, f.repo.completed, "enrichment failure must not fail the run")
	assert.True(t, f.repo.data.InsightsDegraded)
	assert.NotEmpty(t, f.repo.data.Insights.Architecture)
	assert.NotEmpty(t, f.repo.data.Insights.Security)
}

func TestRun_NilEnricherUsesFallback(t *testing.T) {
	f := newFixture(t)
	f.svc.Enricher = nil

	start(t, f, appanalyses.StartAnalysisCommand{
		OwnerID: "acme",
		URL:     "https://github.com/acme/demo.git",
	})
	waitDone(t, f.bcast)

	f.repo.mu.Lock()
	defer f.repo.mu.Unlock()
	require.True(t, f.repo.completed)
	assert.True(t, f.repo.data.InsightsDegraded)
}

func TestRun_SkipDependencies(t *testing.T) {
	f := newFixture(t)
	skip := false
	start(t, f, appanalyses.StartAnalysisCommand{
		OwnerID:             "acme",
		URL:                 "https://github.com/acme/demo.git",
		IncludeDependencies: &skip,
	})
	waitDone(t, f.bcast)

	f.repo.mu.Lock()
	defer f.repo.mu.Unlock()
	require.True(t, f.repo.completed)
	assert.Empty(t, f.repo.data.Dependencies)
	assert.Zero(t, f.repo.metrics.DependencyCount)
}

func TestRun_ArtifactFailureOnlyCostsURL(t *testing.T) {
	f := newFixture(t)
	f.arts.err = errors.New("bucket unavailable")

	start(t, f, appanalyses.StartAnalysisCommand{
		OwnerID: "acme",
		URL:     "https://github.com/acme/demo.git",
	})
	waitDone(t, f.bcast)

	f.repo.mu.Lock()
	defer f.repo.mu.Unlock()
	require.True(t, f.repo.completed)
	assert.Empty(t, f.repo.artifactURL)
}

func TestRun_PersistFailureEmitsErrorNotCompleted(t *testing.T) {
	f := newFixture(t)
	f.repo.completedErr = errors.New("db gone")

	start(t, f, appanalyses.StartAnalysisCommand{
		OwnerID: "acme",
		URL:     "https://github.com/acme/demo.git",
	})
	waitDone(t, f.bcast)

	types := f.bcast.eventTypes()
	assert.Contains(t, types, progress.EventError)
	assert.NotContains(t, types, progress.EventCompleted)
}

func TestValidate(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Validate(context.Background(), "https://github.com/acme/demo.git")
	require.NoError(t, err)
	assert.True(t, res.Valid)

	f.fetch.checkErr = errors.New("unreachable")
	res, err = f.svc.Validate(context.Background(), "https://github.com/acme/demo.git")
	require.NoError(t, err)
	assert.False(t, res.Valid)

	_, err = f.svc.Validate(context.Background(), "not a url")
	assert.ErrorIs(t, err, domain.ErrValidation)
}
