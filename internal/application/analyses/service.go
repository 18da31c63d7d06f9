package analyses

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/bryanwahyu/repolens/internal/application"
	domain "github.com/bryanwahyu/repolens/internal/domain/analyses"
	"github.com/bryanwahyu/repolens/internal/domain/progress"
)

const (
	defaultBranch = "main"
	minDepth      = 1
	maxDepth      = 10
)

// Service implements use-cases untuk Analysis.
// Safe for concurrent use; each run is an independent pipeline.
type Service struct {
	Repo      domain.Repository
	Fetcher   domain.Fetcher
	Enricher  domain.Enricher // nil means fallback-only enrichment
	Artifacts domain.ArtifactStore
	Metadata  domain.MetadataSource
	Workspace domain.Workspaces
	Progress  progress.Broadcaster
	Clock     application.Clock
	Pool      *Pool
}

//
// ==== USE CASES ====
//

// Command untuk start analysis
type StartAnalysisCommand struct {
	OwnerID             string
	URL                 string
	Branch              string
	Depth               int
	IncludeDependencies *bool
}

// Start validates the request, persists the pending record and schedules the
// pipeline on the bounded pool. It returns before any clone work happens.
func (s *Service) Start(ctx context.Context, cmd StartAnalysisCommand) (*domain.Analysis, error) {
	if strings.TrimSpace(cmd.OwnerID) == "" {
		return nil, fmt.Errorf("%w: owner is required", domain.ErrValidation)
	}
	if err := validateRepoURL(cmd.URL); err != nil {
		return nil, err
	}
	if cmd.Depth != 0 && (cmd.Depth < minDepth || cmd.Depth > maxDepth) {
		return nil, fmt.Errorf("%w: depth must be between %d and %d", domain.ErrValidation, minDepth, maxDepth)
	}

	now := s.Clock.Now()
	a := &domain.Analysis{
		ID:                  domain.AnalysisID(uuid.New().String()),
		OwnerID:             cmd.OwnerID,
		RepoURL:             cmd.URL,
		Branch:              cmd.Branch,
		Depth:               cmd.Depth,
		IncludeDependencies: true,
		Status:              domain.StatusPending,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if a.Branch == "" {
		a.Branch = defaultBranch
	}
	if a.Depth == 0 {
		a.Depth = minDepth
	}
	if cmd.IncludeDependencies != nil {
		a.IncludeDependencies = *cmd.IncludeDependencies
	}

	if err := s.Repo.Create(ctx, a); err != nil {
		return nil, err
	}

	// jalankan pipeline di background sampai selesai
	s.Pool.Submit(func() { s.run(a) })

	return a, nil
}

// run executes the whole pipeline for one analysis. It deliberately uses
// context.Background(): once started, a run proceeds to a terminal state even
// if the triggering request or every subscriber has gone away.
func (s *Service) run(a *domain.Analysis) {
	ctx := context.Background()
	id := string(a.ID)
	start := s.Clock.Now()

	if err := s.Repo.MarkAnalyzing(ctx, a.OwnerID, a.ID); err != nil {
		log.Printf("analysis %s: mark analyzing: %v", id, err)
		return
	}
	s.Progress.Open(id, string(domain.StatusAnalyzing))
	s.publish(id, progress.EventStarted, map[string]any{"repo_url": a.RepoURL, "branch": a.Branch})

	dir, err := s.Workspace.Acquire()
	if err != nil {
		s.fail(ctx, a, "failed to allocate analysis workspace", err)
		return
	}
	// release exactly once, on every exit path
	defer s.Workspace.Release(dir)

	if err := s.Fetcher.Clone(ctx, a.RepoURL, a.Branch, a.Depth, dir); err != nil {
		s.fail(ctx, a, "failed to clone repository", err)
		return
	}
	s.publish(id, progress.EventProgress, "repository cloned")

	structure, err := domain.WalkStructure(dir)
	if err != nil {
		s.fail(ctx, a, "failed to read repository tree", err)
		return
	}
	s.publish(id, progress.EventProgress, "structure analyzed")

	// detector, extractor and metrics only read the immutable file list and
	// may run concurrently
	data := &domain.AnalysisData{
		Structure:   *structure,
		ConfigFiles: domain.DetectConfigFiles(structure.Files),
	}
	var (
		wg      sync.WaitGroup
		metrics *domain.Metrics
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		data.Languages = domain.DetectLanguages(structure.Files)
	}()
	go func() {
		defer wg.Done()
		metrics = domain.CalculateMetrics(dir, structure.Files)
	}()
	go func() {
		defer wg.Done()
		if !a.IncludeDependencies {
			return
		}
		data.Dependencies = domain.ExtractDependencies(dir, data.ConfigFiles)
	}()
	wg.Wait()
	s.publish(id, progress.EventProgress, "languages, dependencies and metrics extracted")

	insights, degraded := s.enrich(ctx, data, metrics)
	data.Insights = *insights
	data.InsightsDegraded = degraded
	s.publish(id, progress.EventProgress, "insights generated")

	metrics.DependencyCount = len(data.Dependencies)
	metrics.DurationMS = s.Clock.Now().Sub(start).Milliseconds()

	artifactURL := s.exportArtifact(ctx, a, data, metrics)

	if err := s.Repo.MarkCompleted(ctx, a.OwnerID, a.ID, data, metrics, artifactURL); err != nil {
		log.Printf("analysis %s: persist result: %v", id, err)
		s.publish(id, progress.EventError, "failed to persist analysis result")
		s.Progress.Close(id)
		return
	}

	s.Progress.SetStatus(id, string(domain.StatusCompleted))
	s.publish(id, progress.EventCompleted, map[string]any{
		"total_files": structure.TotalFiles,
		"languages":   data.Languages,
		"duration_ms": metrics.DurationMS,
	})
	s.Progress.Close(id)
}

// enrich runs the inference call when a client is configured and substitutes
// the deterministic fallback on any failure, reporting degradation to the
// caller. Enrichment can degrade a result but never fail the run.
func (s *Service) enrich(ctx context.Context, data *domain.AnalysisData, m *domain.Metrics) (*domain.Insights, bool) {
	if s.Enricher != nil {
		ins, err := s.Enricher.Enrich(ctx, data, m)
		if err == nil {
			return ins, false
		}
		log.Printf("warn: enrichment failed, using deterministic fallback: %v", err)
	}
	return domain.FallbackInsights(data, m), true
}

// exportArtifact uploads the consolidated result; failures only cost the
// artifact URL, never the run.
func (s *Service) exportArtifact(ctx context.Context, a *domain.Analysis, data *domain.AnalysisData, m *domain.Metrics) string {
	if s.Artifacts == nil {
		return ""
	}
	key := fmt.Sprintf("%s/%s.json", a.OwnerID, a.ID)
	url, err := s.Artifacts.UploadJSON(ctx, key, map[string]any{
		"id":            a.ID,
		"repo_url":      a.RepoURL,
		"branch":        a.Branch,
		"analysis_data": data,
		"metrics":       m,
	})
	if err != nil {
		log.Printf("warn: artifact upload failed for analysis %s: %v", a.ID, err)
		return ""
	}
	return url
}

func (s *Service) fail(ctx context.Context, a *domain.Analysis, message string, cause error) {
	id := string(a.ID)
	log.Printf("analysis %s failed: %s: %v", id, message, cause)
	// only the human-readable message is persisted, never the diagnostic
	if err := s.Repo.MarkFailed(ctx, a.OwnerID, a.ID, message); err != nil {
		log.Printf("analysis %s: mark failed: %v", id, err)
	}
	s.Progress.SetStatus(id, string(domain.StatusFailed))
	s.publish(id, progress.EventFailed, message)
	s.Progress.Close(id)
}

func (s *Service) publish(id string, t progress.EventType, payload any) {
	s.Progress.Publish(progress.Event{
		AnalysisID: id,
		Type:       t,
		Payload:    payload,
		Timestamp:  s.Clock.Now(),
	})
}

// Get ambil 1 analysis by id, ownership-checked di repo
func (s *Service) Get(ctx context.Context, owner string, id domain.AnalysisID) (*domain.Analysis, error) {
	return s.Repo.Get(ctx, owner, id)
}

// List returns a page of the owner's analyses.
func (s *Service) List(ctx context.Context, owner string, f domain.ListFilter, page, pageSize int) (domain.PaginatedResult, error) {
	return s.Repo.List(ctx, owner, f, page, pageSize)
}

// ValidationResult hasil dari Validate
type ValidationResult struct {
	Valid    bool                 `json:"valid"`
	Metadata *domain.RepoMetadata `json:"metadata,omitempty"`
}

// Validate checks fetch feasibility without running the pipeline. Hosted-repo
// metadata enriches the response when the collaborator can describe the URL;
// its absence or failure degrades to the reachability check alone.
func (s *Service) Validate(ctx context.Context, rawURL string) (*ValidationResult, error) {
	if err := validateRepoURL(rawURL); err != nil {
		return nil, err
	}
	if err := s.Fetcher.Check(ctx, rawURL); err != nil {
		return &ValidationResult{Valid: false}, nil
	}

	res := &ValidationResult{Valid: true}
	if s.Metadata != nil {
		meta, err := s.Metadata.RepoMetadata(ctx, rawURL)
		if err != nil {
			log.Printf("warn: repository metadata lookup failed for %s: %v", rawURL, err)
		} else {
			res.Metadata = meta
		}
	}
	return res, nil
}

func validateRepoURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("%w: url is required", domain.ErrValidation)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: malformed repository url", domain.ErrValidation)
	}
	if u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "git" && u.Scheme != "ssh" {
		return fmt.Errorf("%w: unsupported url scheme %q", domain.ErrValidation, u.Scheme)
	}
	return nil
}
