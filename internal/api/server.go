package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/zihin/internal/advisor"
	"github.com/MikeSquared-Agency/zihin/internal/analysis"
	"github.com/MikeSquared-Agency/zihin/internal/extractor"
	"github.com/MikeSquared-Agency/zihin/internal/retrieval"
)

// Analyzer runs the analysis pipeline.
type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) (*extractor.AnalysisResult, error)
	AnalyzeBatch(ctx context.Context, reqs []analysis.Request, limit int) analysis.BatchResult
}

// Advisor serves technique envelopes.
type Advisor interface {
	GetTechniques(ctx context.Context, req advisor.Request) advisor.Response
	GetMultiple(ctx context.Context, types []string, userContext, userID string) advisor.MultipleResponse
	Distortions() advisor.DistortionList
}

// History serves per-user history from the vector index.
type History interface {
	Available() bool
	UserPatterns(ctx context.Context, userID string) (retrieval.PatternSummary, error)
	SimilarEntries(ctx context.Context, userID, query string, n int) ([]retrieval.SimilarEntry, error)
	ClearUser(ctx context.Context, userID string) (int, error)
	Stats(ctx context.Context) (retrieval.Stats, error)
}

// Deps are the components behind the HTTP surface.
type Deps struct {
	Analyzer         Analyzer
	Advisor          Advisor
	History          History // required; catalog-only setups report ErrUnavailable
	Provider         string
	BatchConcurrency int
	// VectorPing reports vector backend health; nil means no backend.
	VectorPing func(ctx context.Context) error
}

type Server struct {
	router    *chi.Mux
	port      int
	deps      Deps
	jwtSecret string
	logger    *slog.Logger
	httpSrv   *http.Server
}

// NewServer builds the router. With an empty jwtSecret the /api/v1 routes
// are open and user ids come from request bodies.
func NewServer(port int, deps Deps, jwtSecret string, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:    router,
		port:      port,
		deps:      deps,
		jwtSecret: jwtSecret,
		logger:    logger,
	}

	router.Get("/health", s.health)

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/zihin/status", s.status)
		r.Get("/rag/health", s.ragHealth)

		r.Group(func(r chi.Router) {
			if jwtSecret != "" {
				r.Use(BearerJWTMiddleware(jwtSecret))
			}
			r.Post("/analyze", s.analyze)
			r.Post("/analyze/batch", s.analyzeBatch)

			r.Post("/rag/techniques", s.techniques)
			r.Post("/rag/techniques/multiple", s.multipleTechniques)
			r.Get("/rag/distortions", s.distortions)

			r.Route("/users/{id}", func(r chi.Router) {
				r.Use(requireSubject)
				r.Get("/patterns", s.userPatterns)
				r.Get("/similar", s.similarEntries)
				r.Delete("/history", s.clearHistory)
			})
		})
	})

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("API server starting", "addr", addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"agent":    "zihin",
		"provider": s.deps.Provider,
		"vector":   s.vectorState(r.Context()),
	})
}

func (s *Server) vectorState(ctx context.Context) string {
	if s.deps.VectorPing == nil {
		return "disabled"
	}
	if err := s.deps.VectorPing(ctx); err != nil {
		s.logger.Warn("vector backend ping failed", "error", err)
		return "unavailable"
	}
	return "ok"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}
