//go:build integration

package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/rapport/internal/conversation"
	"github.com/MikeSquared-Agency/rapport/internal/health"
	"github.com/MikeSquared-Agency/rapport/internal/timeliness"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func testReport(conversationID string) *health.Report {
	return &health.Report{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Type:           conversation.TypeEmail,
		Participants:   []string{"alice@acme.io", "bob@acme.io"},
		OverallScore:   42,
		Status:         health.StatusAtRisk,
		Breakdown: health.Breakdown{
			ConflictHealth: health.Dimension{Score: 20, Weight: 0.3},
		},
		Alerts: []health.Alert{{Type: health.AlertCriticalConflict, Severity: "critical"}},
		Summary:    "Integration test report",
		AnalyzedAt: time.Now().UTC().Truncate(time.Millisecond),
		Metadata:   health.ReportMetadata{ProcessingTimeMs: 1200, Degraded: true, Version: "1.0"},
	}
}

func TestIntegration_SaveAndGetReport(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	convID := "integration-" + uuid.NewString()[:8]
	r := testReport(convID)

	err := s.SaveReport(ctx, ReportRecord{
		Report: r,
		Events: []timeliness.ResponseEvent{
			{FromID: "e1", ToID: "e2", ElapsedHours: 3.5, UrgencyLevel: timeliness.UrgencyNormal, ExpectedMaxHours: 24, TimelinessScore: 85},
		},
		StageErrors: []StageFailure{{Stage: "sentiment", Message: "provider timeout"}},
	})
	if err != nil {
		t.Fatalf("SaveReport failed: %v", err)
	}

	got, err := s.GetReport(ctx, uuid.MustParse(r.ID))
	if err != nil {
		t.Fatalf("GetReport failed: %v", err)
	}
	if got.ConversationID != convID || got.OverallScore != 42 {
		t.Errorf("unexpected report: %+v", got)
	}
	if len(got.Alerts) != 1 || got.Alerts[0].Type != health.AlertCriticalConflict {
		t.Errorf("expected alert round trip, got %+v", got.Alerts)
	}

	events, err := s.ResponseEvents(ctx, uuid.MustParse(r.ID))
	if err != nil {
		t.Fatalf("ResponseEvents failed: %v", err)
	}
	if len(events) != 1 || events[0].TimelinessScore != 85 {
		t.Errorf("unexpected events: %+v", events)
	}

	list, err := s.ListReports(ctx, convID, 10)
	if err != nil {
		t.Fatalf("ListReports failed: %v", err)
	}
	if len(list) != 1 || !list[0].Degraded || list[0].AlertCount != 1 {
		t.Errorf("unexpected listing: %+v", list)
	}
}

func TestIntegration_GetReportNotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.GetReport(context.Background(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestIntegration_SaveReportRejectsBadID(t *testing.T) {
	s := setupTestStore(t)
	r := testReport("bad-id")
	r.ID = "not-a-uuid"

	if err := s.SaveReport(context.Background(), ReportRecord{Report: r}); err == nil {
		t.Fatal("expected error for invalid report id")
	}
}
