package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/rapport/internal/conversation"
	"github.com/MikeSquared-Agency/rapport/internal/health"
	"github.com/MikeSquared-Agency/rapport/internal/metrics"
	"github.com/MikeSquared-Agency/rapport/internal/pipeline"
	"github.com/MikeSquared-Agency/rapport/internal/store"
)

// Analyzer runs and dispatches one analysis.
type Analyzer interface {
	Process(ctx context.Context, in conversation.Input) (*pipeline.Outcome, error)
}

// ReportReader serves stored reports.
type ReportReader interface {
	GetReport(ctx context.Context, id uuid.UUID) (*health.Report, error)
	ListReports(ctx context.Context, conversationID string, limit int) ([]store.ReportSummary, error)
}

type Config struct {
	Port     int
	APIToken string
	Provider string
	Version  string
}

type Server struct {
	router   *chi.Mux
	httpSrv  *http.Server
	cfg      Config
	analyzer Analyzer
	reports  ReportReader
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewServer wires the routes. reports and m may be nil.
func NewServer(cfg Config, analyzer Analyzer, reports ReportReader, m *metrics.Metrics, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:   router,
		cfg:      cfg,
		analyzer: analyzer,
		reports:  reports,
		metrics:  m,
		logger:   logger,
	}

	router.Get("/health", s.health)
	if m != nil {
		router.Handle("/metrics", m.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(cfg.APIToken))
		r.Get("/rapport/status", s.status)
		r.Post("/analyze", s.analyze)
		r.Get("/reports/{id}", s.getReport)
		r.Get("/conversations/{id}/reports", s.listReports)
	})

	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Start() error {
	s.logger.Info("API server starting", "addr", s.httpSrv.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"agent":    "rapport",
		"status":   "active",
		"provider": s.cfg.Provider,
		"version":  s.cfg.Version,
		"store":    s.reports != nil,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}
