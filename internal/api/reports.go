package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/rapport/internal/store"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// getReport handles GET /api/v1/reports/{id}.
func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		writeError(w, http.StatusServiceUnavailable, "report store not configured")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid report id")
		return
	}

	report, err := s.reports.GetReport(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to load report", "report_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load report")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": report})
}

// listReports handles GET /api/v1/conversations/{id}/reports?limit=N.
func (s *Server) listReports(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		writeError(w, http.StatusServiceUnavailable, "report store not configured")
		return
	}

	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxListLimit)
	}

	convID := chi.URLParam(r, "id")
	list, err := s.reports.ListReports(r.Context(), convID, limit)
	if err != nil {
		s.logger.Error("failed to list reports", "conversation_id", convID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}
	if list == nil {
		list = []store.ReportSummary{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": list, "count": len(list)})
}
