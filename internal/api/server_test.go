package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/rapport/internal/conversation"
	"github.com/MikeSquared-Agency/rapport/internal/health"
	"github.com/MikeSquared-Agency/rapport/internal/metrics"
	"github.com/MikeSquared-Agency/rapport/internal/narrative"
	"github.com/MikeSquared-Agency/rapport/internal/pipeline"
	"github.com/MikeSquared-Agency/rapport/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubAnalyzer struct {
	out *pipeline.Outcome
	err error
	got conversation.Input
}

func (s *stubAnalyzer) Process(_ context.Context, in conversation.Input) (*pipeline.Outcome, error) {
	s.got = in
	return s.out, s.err
}

type stubReports struct {
	reports map[uuid.UUID]*health.Report
	list    []store.ReportSummary
	limit   int
}

func (s *stubReports) GetReport(_ context.Context, id uuid.UUID) (*health.Report, error) {
	r, ok := s.reports[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return r, nil
}

func (s *stubReports) ListReports(_ context.Context, _ string, limit int) ([]store.ReportSummary, error) {
	s.limit = limit
	return s.list, nil
}

func newTestServer(a Analyzer, reports ReportReader, token string) *Server {
	return NewServer(Config{Port: 8760, APIToken: token, Provider: "groq", Version: "1.0"}, a, reports, metrics.New(), discardLogger())
}

func do(t *testing.T, srv *Server, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			r = strings.NewReader(b)
		default:
			data, err := json.Marshal(b)
			if err != nil {
				t.Fatalf("marshal body: %v", err)
			}
			r = bytes.NewReader(data)
		}
	}
	req := httptest.NewRequest(method, path, r)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return body
}

func successOutcome() *pipeline.Outcome {
	return &pipeline.Outcome{
		Report: &health.Report{
			ID:             uuid.NewString(),
			ConversationID: "conv-1",
			Type:           conversation.TypeEmail,
			OverallScore:   84,
			Status:         health.StatusGood,
			AnalyzedAt:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		},
		StageErrors: []*pipeline.StageError{{Stage: pipeline.StageConflict, Err: errors.New("provider timeout")}},
	}
}

func sampleInput() conversation.Input {
	return conversation.Input{
		ID:           "conv-1",
		Type:         conversation.TypeEmail,
		Participants: []string{"alice@acme.io", "bob@acme.io"},
		Emails: []conversation.EmailMessage{
			{ID: "e1", From: "alice@acme.io", To: []string{"bob@acme.io"}, Subject: "Hi", Body: "Hello", Timestamp: "2024-03-01T09:00:00Z"},
		},
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(&stubAnalyzer{}, nil, "secret")

	w := do(t, srv, http.MethodGet, "/health", nil, "")
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if body := decode(t, w); body["status"] != "ok" {
		t.Errorf("expected status ok, got %v", body["status"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv := newTestServer(&stubAnalyzer{}, nil, "")

	w := do(t, srv, http.MethodGet, "/api/v1/rapport/status", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decode(t, w)
	if body["agent"] != "rapport" {
		t.Errorf("expected agent rapport, got %v", body["agent"])
	}
	if body["provider"] != "groq" {
		t.Errorf("expected provider groq, got %v", body["provider"])
	}
	if body["store"] != false {
		t.Errorf("expected store false, got %v", body["store"])
	}
}

func TestNotFoundEndpoint(t *testing.T) {
	srv := newTestServer(&stubAnalyzer{}, nil, "")

	if w := do(t, srv, http.MethodGet, "/nonexistent", nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(&stubAnalyzer{}, nil, "secret")

	w := do(t, srv, http.MethodGet, "/metrics", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "rapport_runs_in_flight") {
		t.Error("expected rapport metrics in output")
	}
}

func TestBearerAuth(t *testing.T) {
	srv := newTestServer(&stubAnalyzer{}, nil, "secret")

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"missing token", "", http.StatusUnauthorized},
		{"wrong token", "nope", http.StatusUnauthorized},
		{"valid token", "secret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := do(t, srv, http.MethodGet, "/api/v1/rapport/status", nil, tt.token); w.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestAnalyze_Success(t *testing.T) {
	a := &stubAnalyzer{out: successOutcome()}
	srv := newTestServer(a, nil, "")

	w := do(t, srv, http.MethodPost, "/api/v1/analyze", sampleInput(), "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if a.got.ID != "conv-1" {
		t.Errorf("analyzer received %+v", a.got)
	}

	body := decode(t, w)
	if body["success"] != true {
		t.Errorf("expected success true, got %v", body["success"])
	}
	data := body["data"].(map[string]any)
	if data["status"] != "analyzed" {
		t.Errorf("expected status analyzed, got %v", data["status"])
	}
	if data["emailCount"] != float64(1) || data["totalParticipants"] != float64(2) {
		t.Errorf("unexpected counts: %v", data)
	}
	report := data["healthReport"].(map[string]any)
	if report["overallScore"] != float64(84) {
		t.Errorf("expected overall 84, got %v", report["overallScore"])
	}
	stageErrors := data["stageErrors"].([]any)
	if len(stageErrors) != 1 || stageErrors[0].(map[string]any)["stage"] != "conflict" {
		t.Errorf("unexpected stage errors: %v", stageErrors)
	}
}

func TestAnalyze_InvalidJSON(t *testing.T) {
	srv := newTestServer(&stubAnalyzer{}, nil, "")

	w := do(t, srv, http.MethodPost, "/api/v1/analyze", "{oops", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if body := decode(t, w); body["success"] != false {
		t.Errorf("expected success false, got %v", body["success"])
	}
}

func TestAnalyze_RunFailures(t *testing.T) {
	partial := &health.Scorecard{OverallScore: 61, Status: health.StatusModerate}

	tests := []struct {
		name       string
		out        *pipeline.Outcome
		err        error
		wantStatus int
		wantStage  string
		wantField  string
		wantScore  bool
	}{
		{
			name:       "input error",
			out:        &pipeline.Outcome{},
			err:        &pipeline.InputError{Field: "participants", Reason: "at least 2 required"},
			wantStatus: http.StatusBadRequest,
			wantStage:  "normalize",
			wantField:  "participants",
		},
		{
			name: "aggregation error",
			out: &pipeline.Outcome{
				Sentiment: &narrative.SentimentResult{OverallSentiment: 70},
			},
			err:        &pipeline.AggregationError{Err: errors.New("insight provider down"), Partial: partial},
			wantStatus: http.StatusInternalServerError,
			wantStage:  "aggregate",
			wantScore:  true,
		},
		{
			name:       "timeout",
			out:        &pipeline.Outcome{},
			err:        errors.Join(pipeline.ErrCancelled, context.DeadlineExceeded),
			wantStatus: http.StatusGatewayTimeout,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(&stubAnalyzer{out: tt.out, err: tt.err}, nil, "")

			w := do(t, srv, http.MethodPost, "/api/v1/analyze", sampleInput(), "")
			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, w.Code)
			}
			body := decode(t, w)
			if body["success"] != false {
				t.Errorf("expected success false")
			}
			if tt.wantStage != "" && body["stage"] != tt.wantStage {
				t.Errorf("expected stage %s, got %v", tt.wantStage, body["stage"])
			}
			if tt.wantField != "" && body["field"] != tt.wantField {
				t.Errorf("expected field %s, got %v", tt.wantField, body["field"])
			}
			if tt.wantScore {
				partial, ok := body["partialResults"].(map[string]any)
				if !ok {
					t.Fatal("expected partialResults")
				}
				card := partial["scorecard"].(map[string]any)
				if card["overallScore"] != float64(61) {
					t.Errorf("expected partial overall 61, got %v", card["overallScore"])
				}
				if partial["sentiment"] == nil {
					t.Error("expected sentiment in partial results")
				}
			}
		})
	}
}

func TestAnalyze_TimeoutKeepsCompletedStages(t *testing.T) {
	out := &pipeline.Outcome{
		Sentiment:   &narrative.SentimentResult{OverallSentiment: 70, SentimentTrend: "stable"},
		StageErrors: []*pipeline.StageError{{Stage: pipeline.StageConflict, Err: context.DeadlineExceeded}},
	}
	err := errors.Join(pipeline.ErrCancelled, context.DeadlineExceeded)
	srv := newTestServer(&stubAnalyzer{out: out, err: err}, nil, "")

	w := do(t, srv, http.MethodPost, "/api/v1/analyze", sampleInput(), "")
	if w.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", w.Code)
	}
	body := decode(t, w)
	partial, ok := body["partialResults"].(map[string]any)
	if !ok {
		t.Fatalf("expected partialResults on timeout, got %v", body)
	}
	sentiment, ok := partial["sentiment"].(map[string]any)
	if !ok || sentiment["overallSentiment"] != float64(70) {
		t.Errorf("expected completed sentiment in partial results, got %v", partial["sentiment"])
	}
	if _, ok := partial["conflict"]; ok {
		t.Error("unfinished conflict stage should be absent")
	}
}

func TestGetReport(t *testing.T) {
	id := uuid.New()
	reports := &stubReports{reports: map[uuid.UUID]*health.Report{
		id: {ID: id.String(), ConversationID: "conv-1", OverallScore: 72},
	}}
	srv := newTestServer(&stubAnalyzer{}, reports, "")

	w := do(t, srv, http.MethodGet, "/api/v1/reports/"+id.String(), nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	data := decode(t, w)["data"].(map[string]any)
	if data["overallScore"] != float64(72) {
		t.Errorf("expected overall 72, got %v", data["overallScore"])
	}

	if w := do(t, srv, http.MethodGet, "/api/v1/reports/"+uuid.NewString(), nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown report, got %d", w.Code)
	}
	if w := do(t, srv, http.MethodGet, "/api/v1/reports/not-a-uuid", nil, ""); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad id, got %d", w.Code)
	}
}

func TestGetReport_NoStore(t *testing.T) {
	srv := newTestServer(&stubAnalyzer{}, nil, "")

	if w := do(t, srv, http.MethodGet, "/api/v1/reports/"+uuid.NewString(), nil, ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}

func TestListReports(t *testing.T) {
	reports := &stubReports{list: []store.ReportSummary{{ConversationID: "conv-1", OverallScore: 60}}}
	srv := newTestServer(&stubAnalyzer{}, reports, "")

	w := do(t, srv, http.MethodGet, "/api/v1/conversations/conv-1/reports?limit=500", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if reports.limit != maxListLimit {
		t.Errorf("expected limit capped at %d, got %d", maxListLimit, reports.limit)
	}
	if body := decode(t, w); body["count"] != float64(1) {
		t.Errorf("expected count 1, got %v", body["count"])
	}

	if w := do(t, srv, http.MethodGet, "/api/v1/conversations/conv-1/reports?limit=x", nil, ""); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", w.Code)
	}
}
