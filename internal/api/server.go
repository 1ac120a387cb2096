// Package api exposes the HTTP surface: the public sign-up form endpoints,
// the JSON registration API, the admin listing, and the spreadsheet export.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nexusacademy/inscriptio/internal/config"
	"github.com/nexusacademy/inscriptio/internal/export"
	"github.com/nexusacademy/inscriptio/internal/ingest"
	"github.com/nexusacademy/inscriptio/internal/model"
)

// ProofResolver turns a stored proof key into a retrievable URL, presigning
// it when the bucket has no public prefix.
type ProofResolver interface {
	ProofURL(ctx context.Context, key string) (string, error)
}

// Server hosts the HTTP handlers. It holds the shared client handles built
// once at startup; nothing here is mutated per request.
type Server struct {
	cfg          *config.Config
	formPipeline *ingest.Pipeline
	apiPipeline  *ingest.Pipeline
	engine       *export.Engine
	proofs       ProofResolver
	logger       *slog.Logger
	server       *http.Server

	// OnIngest, when set, runs after each successful submission that stored a
	// proof file. The server entrypoint uses it to enqueue readability scans.
	OnIngest func(ctx context.Context, sub *model.Submission)
}

// New constructs a Server. The two pipelines share code and stores and differ
// only in policy: the legacy form enforces the configured proof requirement
// and has no cohort field, while the JSON API requires a cohort and never
// receives a file. proofs may be nil when the object store is not configured.
func New(cfg *config.Config, formPipeline, apiPipeline *ingest.Pipeline, engine *export.Engine, proofs ProofResolver, logger *slog.Logger) *Server {
	return &Server{
		cfg:          cfg,
		formPipeline: formPipeline,
		apiPipeline:  apiPipeline,
		engine:       engine,
		proofs:       proofs,
		logger:       logger,
	}
}

// Routes builds the chi router; it is separate from Run so tests can mount it
// on httptest servers.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(corsMiddleware)

	r.Get("/", s.handleIndex)
	r.Get("/formation", s.handleFormationPage)
	r.Post("/formation", s.handleFormationSubmit)
	r.Get("/admin", s.handleAdmin)

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Get("/inscrits", s.handleInscrits)
		r.Get("/cohortes", s.handleCohortes)
		r.Get("/export/excel", s.handleExportExcel)
	})

	staticDir := http.Dir(s.cfg.StaticDir)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(staticDir)))
	return r
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.server = &http.Server{
		Addr:    s.cfg.Address,
		Handler: s.Routes(),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	s.logger.Info("api listening", "address", s.cfg.Address)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(s.cfg.StaticDir, "index.html"))
}

func (s *Server) handleFormationPage(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(s.cfg.StaticDir, "formation.html"))
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method, "path", r.URL.Path,
			"status", ww.Status(), "duration", time.Since(start))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
