package httpserver

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"

	appanalyses "github.com/bryanwahyu/repolens/internal/application/analyses"
	domain "github.com/bryanwahyu/repolens/internal/domain/analyses"
	progresshub "github.com/bryanwahyu/repolens/internal/infra/progress"
	"github.com/bryanwahyu/repolens/internal/middleware"
)

type Router struct {
	svc *appanalyses.Service
	hub *progresshub.Hub
}

func NewRouter(svc *appanalyses.Service, hub *progresshub.Hub) http.Handler {
	r := &Router{svc: svc, hub: hub}
	mux := chi.NewRouter()

	mux.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/v1/{owner}", func(rt chi.Router) {
		rt.Post("/analyses", r.wrap(r.handleStart))
		rt.Get("/analyses", r.wrap(r.handleList))
		rt.Post("/analyses/validate", r.wrap(r.handleValidate))
		rt.Get("/analyses/{id}", r.wrap(r.handleGet))
		rt.Get("/analyses/{id}/progress", r.handleProgress)
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			switch {
			case errors.Is(err, domain.ErrNotFound), errors.Is(err, sql.ErrNoRows):
				http.Error(w, "not found", http.StatusNotFound)
			case errors.Is(err, domain.ErrValidation):
				http.Error(w, err.Error(), http.StatusBadRequest)
			default:
				// internal diagnostics stay in the logs, not the response
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		}
	}
}

// POST /v1/{owner}/analyses
func (r *Router) handleStart(w http.ResponseWriter, req *http.Request) error {
	owner := chi.URLParam(req, "owner")

	var body struct {
		URL                 string `json:"url"`
		Branch              string `json:"branch"`
		Depth               int    `json:"depth"`
		IncludeDependencies *bool  `json:"include_dependencies"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: malformed request body", domain.ErrValidation)
	}
	if err := middleware.ValidateBranch(body.Branch); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	a, err := r.svc.Start(req.Context(), appanalyses.StartAnalysisCommand{
		OwnerID:             owner,
		URL:                 body.URL,
		Branch:              body.Branch,
		Depth:               body.Depth,
		IncludeDependencies: body.IncludeDependencies,
	})
	if err != nil {
		return err
	}
	middleware.IncrementAnalyses()

	// pipeline runs in background; the caller polls Get or subscribes to
	// the progress stream
	resp := map[string]any{
		"analysis_id": a.ID,
		"status":      a.Status,
		"summary":     fmt.Sprintf("analysis of %s queued", a.RepoURL),
		"created_at":  a.CreatedAt,
		"queued_at":   time.Now(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	return json.NewEncoder(w).Encode(resp)
}

// GET /v1/{owner}/analyses/{id}?include_files=&include_metrics=
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	owner := chi.URLParam(req, "owner")
	id := chi.URLParam(req, "id")

	// a malformed id can never name a record
	if err := middleware.ValidateAnalysisID(id); err != nil {
		return domain.ErrNotFound
	}

	a, err := r.svc.Get(req.Context(), owner, domain.AnalysisID(id))
	if err != nil {
		return err
	}

	if !boolQuery(req, "include_files", true) && a.Data != nil {
		trimmed := *a.Data
		trimmed.Structure.Files = nil
		a.Data = &trimmed
	}
	if !boolQuery(req, "include_metrics", true) {
		a.Metrics = nil
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(a)
}

// GET /v1/{owner}/analyses?status=&url=&page=&page_size=
func (r *Router) handleList(w http.ResponseWriter, req *http.Request) error {
	owner := chi.URLParam(req, "owner")
	page, _ := strconv.Atoi(req.URL.Query().Get("page"))
	size, _ := strconv.Atoi(req.URL.Query().Get("page_size"))

	f := domain.ListFilter{
		Status: domain.Status(req.URL.Query().Get("status")),
		URL:    middleware.SanitizeString(req.URL.Query().Get("url")),
	}

	list, err := r.svc.List(req.Context(), owner, f,
		middleware.ValidatePage(page), middleware.ValidateLimit(size))
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(list)
}

// POST /v1/{owner}/analyses/validate
// Body: {"url": "<repository url>"}
func (r *Router) handleValidate(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: malformed request body", domain.ErrValidation)
	}

	res, err := r.svc.Validate(req.Context(), body.URL)
	if err != nil {
		return err
	}

	resp := map[string]any{"valid": res.Valid}
	if res.Metadata != nil {
		resp["metadata"] = res.Metadata
		resp["size_human"] = humanize.IBytes(uint64(res.Metadata.SizeKB) * 1024)
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(resp)
}

func boolQuery(req *http.Request, name string, def bool) bool {
	raw := req.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}
