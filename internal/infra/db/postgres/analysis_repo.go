package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	domain "github.com/bryanwahyu/repolens/internal/domain/analyses"
)

type AnalysisRepository struct {
	db *sql.DB
}

func NewAnalysisRepository(db *sql.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

const analysisColumns = `id, owner_id, repo_url, branch, depth, include_deps, status,
       analysis_json, metrics_json, artifact_url, error_message, created_at, updated_at`

// Create inserts the initial pending record.
func (r *AnalysisRepository) Create(ctx context.Context, a *domain.Analysis) error {
	const q = `
INSERT INTO repo_analyses
(id, owner_id, repo_url, branch, depth, include_deps, status,
 analysis_json, metrics_json, artifact_url, error_message, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NULL,NULL,'','',$8,$9);
`
	owner := stringOrDash(a.OwnerID)
	created := a.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	updated := a.UpdatedAt
	if updated.IsZero() {
		updated = created
	}

	_, err := r.db.ExecContext(ctx, q,
		a.ID, owner, a.RepoURL, a.Branch, a.Depth, a.IncludeDependencies,
		string(domain.StatusPending), created, updated,
	)
	return err
}

// MarkAnalyzing moves pending -> analyzing.
func (r *AnalysisRepository) MarkAnalyzing(ctx context.Context, owner string, id domain.AnalysisID) error {
	const q = `
UPDATE repo_analyses
SET status = 'analyzing', updated_at = $1
WHERE owner_id = $2 AND id = $3 AND status = 'pending';`
	return r.execTransition(ctx, q, id, time.Now(), stringOrDash(owner), id)
}

// MarkCompleted writes the terminal success state exactly once.
func (r *AnalysisRepository) MarkCompleted(ctx context.Context, owner string, id domain.AnalysisID, data *domain.AnalysisData, m *domain.Metrics, artifactURL string) error {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal analysis data: %w", err)
	}
	metricsJSON, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}

	const q = `
UPDATE repo_analyses
SET status = 'completed',
    analysis_json = $1,
    metrics_json = $2,
    artifact_url = $3,
    updated_at = $4
WHERE owner_id = $5 AND id = $6 AND status = 'analyzing';`
	return r.execTransition(ctx, q, id, dataJSON, metricsJSON, artifactURL, time.Now(), stringOrDash(owner), id)
}

// MarkFailed writes the terminal failure state with a human-readable message.
func (r *AnalysisRepository) MarkFailed(ctx context.Context, owner string, id domain.AnalysisID, message string) error {
	const q = `
UPDATE repo_analyses
SET status = 'failed', error_message = $1, updated_at = $2
WHERE owner_id = $3 AND id = $4 AND status IN ('pending','analyzing');`
	return r.execTransition(ctx, q, id, message, time.Now(), stringOrDash(owner), id)
}

func (r *AnalysisRepository) execTransition(ctx context.Context, q string, id domain.AnalysisID, args ...any) error {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("analysis %s: no row in an eligible state", id)
	}
	return nil
}

// Get by ID + Owner.
func (r *AnalysisRepository) Get(ctx context.Context, owner string, id domain.AnalysisID) (*domain.Analysis, error) {
	q := `SELECT ` + analysisColumns + `
FROM repo_analyses
WHERE owner_id=$1 AND id=$2 LIMIT 1;`
	a, err := scanAnalysis(r.db.QueryRowContext(ctx, q, stringOrDash(owner), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return a, err
}

// List with offset pagination and the closed filter set.
func (r *AnalysisRepository) List(ctx context.Context, owner string, f domain.ListFilter, page, pageSize int) (domain.PaginatedResult, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	query := `SELECT ` + analysisColumns + `
FROM repo_analyses
WHERE owner_id=$1`
	args := []any{stringOrDash(owner)}
	query, args = applyFilters(query, args, f)
	query += fmt.Sprintf("\nORDER BY created_at DESC, id DESC\nLIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, pageSize, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("querying analyses: %w", err)
	}
	defer rows.Close()

	var out []*domain.Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return domain.PaginatedResult{}, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, a)
	}
	if err = rows.Err(); err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("iterating rows: %w", err)
	}

	total, err := r.count(ctx, owner, f)
	if err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("getting total count: %w", err)
	}

	return domain.PaginatedResult{
		Data:       out,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}, nil
}

func (r *AnalysisRepository) count(ctx context.Context, owner string, f domain.ListFilter) (int64, error) {
	query := "SELECT COUNT(*) FROM repo_analyses WHERE owner_id = $1"
	args := []any{stringOrDash(owner)}
	query, args = applyFilters(query, args, f)

	var count int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func applyFilters(query string, args []any, f domain.ListFilter) (string, []any) {
	if f.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, string(f.Status))
	}
	if f.URL != "" {
		query += fmt.Sprintf(" AND repo_url LIKE $%d", len(args)+1)
		args = append(args, "%"+escapeLikePattern(f.URL)+"%")
	}
	return query, args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (*domain.Analysis, error) {
	var (
		a           domain.Analysis
		dataJSON    sql.NullString
		metricsJSON sql.NullString
	)
	if err := row.Scan(
		&a.ID, &a.OwnerID, &a.RepoURL, &a.Branch, &a.Depth, &a.IncludeDependencies, &a.Status,
		&dataJSON, &metricsJSON, &a.ArtifactURL, &a.Error, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if dataJSON.Valid && dataJSON.String != "" {
		var data domain.AnalysisData
		if err := json.Unmarshal([]byte(dataJSON.String), &data); err != nil {
			return nil, fmt.Errorf("unmarshal analysis data: %w", err)
		}
		a.Data = &data
	}
	if metricsJSON.Valid && metricsJSON.String != "" {
		var m domain.Metrics
		if err := json.Unmarshal([]byte(metricsJSON.String), &m); err != nil {
			return nil, fmt.Errorf("unmarshal metrics: %w", err)
		}
		a.Metrics = &m
	}
	return &a, nil
}

// stringOrDash returns "-" when the input is empty/whitespace. Applied to
// every owner predicate, not just Create, so a normalized row stays reachable.
func stringOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// escapeLikePattern escapes LIKE wildcards in user-supplied filter values
func escapeLikePattern(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
