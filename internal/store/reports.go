package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MikeSquared-Agency/rapport/internal/health"
	"github.com/MikeSquared-Agency/rapport/internal/timeliness"
)

// StageFailure is a stage error persisted next to the report it degraded.
type StageFailure struct {
	Stage   string
	Message string
}

// ReportRecord is everything written for one completed run.
type ReportRecord struct {
	Report      *health.Report
	Events      []timeliness.ResponseEvent
	StageErrors []StageFailure
}

// ReportSummary is a row of the report listing.
type ReportSummary struct {
	ID             uuid.UUID     `json:"id"`
	ConversationID string        `json:"conversationId"`
	Type           string        `json:"type"`
	OverallScore   int           `json:"overallScore"`
	Status         health.Status `json:"status"`
	Degraded       bool          `json:"degraded"`
	AlertCount     int           `json:"alertCount"`
	AnalyzedAt     time.Time     `json:"analyzedAt"`
}

// SaveReport writes the report, its response events and stage errors in
// one transaction.
func (s *Store) SaveReport(ctx context.Context, rec ReportRecord) error {
	r := rec.Report
	reportID, err := uuid.Parse(r.ID)
	if err != nil {
		return fmt.Errorf("parse report id: %w", err)
	}
	doc, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO health_reports (id, conversation_id, type, overall_score, status, degraded, alert_count, report, analyzed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		reportID, r.ConversationID, string(r.Type), r.OverallScore, string(r.Status),
		r.Metadata.Degraded, len(r.Alerts), doc, r.AnalyzedAt,
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}

	for _, ev := range rec.Events {
		_, err = tx.Exec(ctx, `
			INSERT INTO response_events (id, report_id, from_id, to_id, elapsed_hours, urgency_level, expected_max_hours, timeliness_score, is_delayed)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			uuid.New(), reportID, ev.FromID, ev.ToID, ev.ElapsedHours, string(ev.UrgencyLevel),
			ev.ExpectedMaxHours, ev.TimelinessScore, ev.IsDelayed,
		)
		if err != nil {
			return fmt.Errorf("insert response event: %w", err)
		}
	}

	for _, se := range rec.StageErrors {
		_, err = tx.Exec(ctx, `
			INSERT INTO stage_errors (id, report_id, stage, message)
			VALUES ($1, $2, $3, $4)`,
			uuid.New(), reportID, se.Stage, se.Message,
		)
		if err != nil {
			return fmt.Errorf("insert stage error: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetReport returns the stored report document.
func (s *Store) GetReport(ctx context.Context, id uuid.UUID) (*health.Report, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT report FROM health_reports WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query report: %w", err)
	}

	var r health.Report
	if err := json.Unmarshal(doc, &r); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return &r, nil
}

// ListReports returns the most recent reports for a conversation, newest first.
func (s *Store) ListReports(ctx context.Context, conversationID string, limit int) ([]ReportSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, conversation_id, type, overall_score, status, degraded, alert_count, analyzed_at
		FROM health_reports
		WHERE conversation_id = $1
		ORDER BY analyzed_at DESC
		LIMIT $2`,
		conversationID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var out []ReportSummary
	for rows.Next() {
		var rs ReportSummary
		var status string
		if err := rows.Scan(&rs.ID, &rs.ConversationID, &rs.Type, &rs.OverallScore, &status, &rs.Degraded, &rs.AlertCount, &rs.AnalyzedAt); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		rs.Status = health.Status(status)
		out = append(out, rs)
	}
	return out, rows.Err()
}

// ResponseEvents returns the persisted response events of a report.
func (s *Store) ResponseEvents(ctx context.Context, reportID uuid.UUID) ([]timeliness.ResponseEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT from_id, to_id, elapsed_hours, urgency_level, expected_max_hours, timeliness_score, is_delayed
		FROM response_events
		WHERE report_id = $1`,
		reportID,
	)
	if err != nil {
		return nil, fmt.Errorf("query response events: %w", err)
	}
	defer rows.Close()

	var out []timeliness.ResponseEvent
	for rows.Next() {
		var ev timeliness.ResponseEvent
		var urgency string
		if err := rows.Scan(&ev.FromID, &ev.ToID, &ev.ElapsedHours, &urgency, &ev.ExpectedMaxHours, &ev.TimelinessScore, &ev.IsDelayed); err != nil {
			return nil, fmt.Errorf("scan response event: %w", err)
		}
		ev.UrgencyLevel = timeliness.Urgency(urgency)
		out = append(out, ev)
	}
	return out, rows.Err()
}
