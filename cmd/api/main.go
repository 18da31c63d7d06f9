package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/bryanwahyu/repolens/internal/application"
	appanalyses "github.com/bryanwahyu/repolens/internal/application/analyses"
	"github.com/bryanwahyu/repolens/internal/config"
	domain "github.com/bryanwahyu/repolens/internal/domain/analyses"
	aiopenai "github.com/bryanwahyu/repolens/internal/infra/ai/openai"
	mysqlp "github.com/bryanwahyu/repolens/internal/infra/db/mysql"
	postgresp "github.com/bryanwahyu/repolens/internal/infra/db/postgres"
	gitfetch "github.com/bryanwahyu/repolens/internal/infra/git"
	ghmeta "github.com/bryanwahyu/repolens/internal/infra/github"
	"github.com/bryanwahyu/repolens/internal/infra/httpserver"
	progresshub "github.com/bryanwahyu/repolens/internal/infra/progress"
	minioStore "github.com/bryanwahyu/repolens/internal/infra/storage"
	"github.com/bryanwahyu/repolens/internal/infra/workspace"
	"github.com/bryanwahyu/repolens/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx := context.Background()

	// connect database per configured driver
	var (
		db   *sql.DB
		repo domain.Repository
	)
	switch cfg.Database.Driver {
	case "postgres":
		db, err = postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			log.Fatalf("postgres connect error: %v", err)
		}
		repo = postgresp.NewAnalysisRepository(db)
	default:
		db, err = mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			log.Fatalf("mysql connect error: %v", err)
		}
		repo = mysqlp.NewAnalysisRepository(db)
	}
	defer db.Close()

	// init workspace manager
	workspaces, err := workspace.NewManager(cfg.Analysis.WorkspaceDir)
	if err != nil {
		log.Fatalf("workspace init error: %v", err)
	}

	// init minio, optional artifact export
	var artifacts domain.ArtifactStore
	if cfg.Minio.Endpoint != "" {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			log.Fatalf("minio init error: %v", err)
		}
		artifacts = store
	}

	// init enrichment client, optional; without it every run uses the
	// deterministic fallback
	var enricher domain.Enricher
	if cfg.OpenAI.APIKey != "" {
		enricher = aiopenai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.EnrichTimeout())
	}

	// init metadata collaborator, optional
	var metadata domain.MetadataSource
	if cfg.GitHub.Token != "" {
		metadata = ghmeta.NewClient(cfg.GitHub.Token)
	}

	hub := progresshub.NewHub(cfg.ProgressGrace())
	pool := appanalyses.NewPool(cfg.Analysis.MaxConcurrent)

	// init service
	svc := &appanalyses.Service{
		Repo:      repo,
		Fetcher:   gitfetch.NewFetcher(cfg.CloneTimeout()),
		Enricher:  enricher,
		Artifacts: artifacts,
		Metadata:  metadata,
		Workspace: workspaces,
		Progress:  hub,
		Clock:     application.SystemClock{},
		Pool:      pool,
	}

	// init router
	mux := chi.NewRouter()
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.MetricsMiddleware)
	if len(cfg.Auth.APIKeys) > 0 {
		mux.Use(middleware.APIKeyAuth(cfg.Auth.APIKeys))
		mux.Use(middleware.RequireOwnerMatch(ownerFromPath))
	}
	mux.Use(middleware.RateLimitMiddleware(cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate))
	mux.Get("/healthz", middleware.HealthHandler(map[string]middleware.HealthChecker{
		"database": &middleware.DatabaseHealthChecker{DB: db},
	}))
	mux.Mount("/", httpserver.NewRouter(svc, hub))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		log.Printf("server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	// let in-flight analyses reach a terminal state before exit
	pool.Wait()
}

// ownerFromPath extracts the {owner} segment from /v1/{owner}/... paths.
func ownerFromPath(r *http.Request) string {
	parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/"), "/", 3)
	if len(parts) < 2 || parts[0] != "v1" {
		return ""
	}
	return parts[1]
}
