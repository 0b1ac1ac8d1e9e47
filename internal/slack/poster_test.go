package slack

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/rapport/internal/conversation"
	"github.com/MikeSquared-Agency/rapport/internal/health"
	"github.com/MikeSquared-Agency/rapport/internal/narrative"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func alertingReport() *health.Report {
	return &health.Report{
		ID:             "5b1c0e9a-0000-0000-0000-000000000000",
		ConversationID: "conv-42",
		Type:           conversation.TypeEmail,
		Participants:   []string{"alice@acme.io", "bob@acme.io"},
		OverallScore:   38,
		Status:         health.StatusAtRisk,
		Alerts: []health.Alert{
			{
				Type:           health.AlertCriticalConflict,
				Severity:       "critical",
				Message:        "High conflict level detected requiring immediate attention",
				Recommendation: "Schedule urgent mediation or supervisor intervention",
			},
		},
		Insights: narrative.Insights{
			Recommendations: []narrative.Recommendation{
				{Priority: "high", Category: "conflict_resolution", Action: "Book a facilitated call", ExpectedImpact: "De-escalation"},
			},
		},
		Summary:    "Tension over delivery dates.",
		AnalyzedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Metadata:   health.ReportMetadata{Degraded: true},
	}
}

func TestFormatAlertMessage(t *testing.T) {
	msg := formatAlertMessage(alertingReport())

	checks := []string{
		"conv-42",
		"alice@acme.io, bob@acme.io",
		"38/100 (at-risk)",
		"partial analysis",
		"Alerts: 1",
		":rotating_light:",
		"High conflict level detected",
		"Schedule urgent mediation",
		"Tension over delivery dates.",
	}
	for _, check := range checks {
		if !strings.Contains(msg, check) {
			t.Errorf("expected message to contain %q", check)
		}
	}
}

func TestFormatAlertMessage_NoAlerts(t *testing.T) {
	r := alertingReport()
	r.Alerts = nil

	msg := formatAlertMessage(r)
	if !strings.Contains(msg, "No alerts raised") {
		t.Errorf("expected empty alerts message, got %q", msg)
	}
}

func TestFormatRecommendations(t *testing.T) {
	got := formatRecommendations(alertingReport())
	if !strings.Contains(got, "[high/conflict_resolution] Book a facilitated call (De-escalation)") {
		t.Errorf("unexpected recommendations: %q", got)
	}

	r := alertingReport()
	r.Insights.Recommendations = nil
	if formatRecommendations(r) != "" {
		t.Error("expected empty string without recommendations")
	}
}

func TestPostReportAlerts_Success(t *testing.T) {
	var mu sync.Mutex
	var payloads []map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer xoxb-test" {
			t.Errorf("expected Bearer xoxb-test, got %q", r.Header.Get("Authorization"))
		}

		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		json.Unmarshal(body, &payload)

		mu.Lock()
		payloads = append(payloads, payload)
		mu.Unlock()

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"ts": "1234567890.123456",
		})
	}))
	defer server.Close()

	p := NewPoster("xoxb-test", "C123", discardLogger())
	p.apiURL = server.URL

	ts, err := p.PostReportAlerts(context.Background(), alertingReport())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts != "1234567890.123456" {
		t.Errorf("expected ts 1234567890.123456, got %q", ts)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(payloads) != 2 {
		t.Fatalf("expected message plus thread reply, got %d posts", len(payloads))
	}
	if payloads[0]["channel"] != "C123" {
		t.Errorf("expected channel C123, got %v", payloads[0]["channel"])
	}
	if payloads[1]["thread_ts"] != "1234567890.123456" {
		t.Errorf("expected threaded reply, got %v", payloads[1]["thread_ts"])
	}
}

func TestPostReportAlerts_SlackError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"ok":    false,
			"error": "channel_not_found",
		})
	}))
	defer server.Close()

	p := NewPoster("xoxb-test", "C123", discardLogger())
	p.apiURL = server.URL

	if _, err := p.PostReportAlerts(context.Background(), alertingReport()); err == nil {
		t.Fatal("expected error for slack error response")
	}
}

func TestPostThread_TopLevelOmitsThreadTS(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&payload)
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "ts": "1.1"})
	}))
	defer server.Close()

	p := NewPoster("xoxb-test", "C123", discardLogger())
	p.apiURL = server.URL

	if err := p.PostThread(context.Background(), "", "summary"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := payload["thread_ts"]; ok {
		t.Errorf("expected no thread_ts for top-level post, got %v", payload["thread_ts"])
	}
	if payload["text"] != "summary" {
		t.Errorf("expected text summary, got %v", payload["text"])
	}
}
