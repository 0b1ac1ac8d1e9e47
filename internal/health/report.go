package health

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/rapport/internal/conversation"
	"github.com/MikeSquared-Agency/rapport/internal/narrative"
)

const reportVersion = "1.0"

// Report is the final output of one analysis run. It is built once and
// never modified afterwards.
type Report struct {
	ID             string             `json:"id"`
	ConversationID string             `json:"conversationId"`
	Type           conversation.Type  `json:"type"`
	Participants   []string           `json:"participants"`
	OverallScore   int                `json:"overallScore"`
	Status         Status             `json:"status"`
	Breakdown      Breakdown          `json:"breakdown"`
	Alerts         []Alert            `json:"alerts"`
	Insights       narrative.Insights `json:"insights"`
	Summary        string             `json:"summary"`
	AnalyzedAt     time.Time          `json:"analyzedAt"`
	Metadata       ReportMetadata     `json:"analysisMetadata"`
}

type ReportMetadata struct {
	ProcessingTimeMs int64  `json:"processingTimeMs"`
	Degraded         bool   `json:"degraded"`
	Version          string `json:"version"`
}

// InsightWriter produces the narrative part of a report.
type InsightWriter interface {
	Insights(ctx context.Context, req narrative.InsightRequest) (*narrative.InsightResult, error)
}

// Aggregator turns a scorecard into a full report.
type Aggregator struct {
	insights InsightWriter
	logger   *slog.Logger
	now      func() time.Time
}

func NewAggregator(w InsightWriter, logger *slog.Logger) *Aggregator {
	return &Aggregator{insights: w, logger: logger, now: time.Now}
}

// Aggregate asks the insight writer for a narrative and assembles the
// report. started is the run start time used for processingTimeMs.
func (a *Aggregator) Aggregate(ctx context.Context, subj narrative.Subject, card *Scorecard, started time.Time) (*Report, error) {
	ins, err := a.insights.Insights(ctx, narrative.InsightRequest{
		Subject:              subj,
		OverallScore:         card.OverallScore,
		Status:               string(card.Status),
		EmotionalHealth:      card.Breakdown.EmotionalHealth.Score,
		ResponsivenessHealth: card.Breakdown.ResponsivenessHealth.Score,
		ConflictHealth:       card.Breakdown.ConflictHealth.Score,
		RelationshipHealth:   card.Breakdown.RelationshipHealth.Score,
	})
	if err != nil {
		return nil, fmt.Errorf("generate insights: %w", err)
	}

	now := a.now()
	report := &Report{
		ID:             uuid.NewString(),
		ConversationID: subj.ConversationID,
		Type:           subj.Type,
		Participants:   append([]string(nil), subj.Participants...),
		OverallScore:   card.OverallScore,
		Status:         card.Status,
		Breakdown:      card.Breakdown,
		Alerts:         append([]Alert{}, card.Alerts...),
		Insights:       ins.Insights,
		Summary:        ins.Summary,
		AnalyzedAt:     now.UTC(),
		Metadata: ReportMetadata{
			ProcessingTimeMs: now.Sub(started).Milliseconds(),
			Degraded:         card.Degraded,
			Version:          reportVersion,
		},
	}

	a.logger.Info("health report built",
		"conversation_id", report.ConversationID,
		"report_id", report.ID,
		"overall_score", report.OverallScore,
		"status", report.Status,
		"alerts", len(report.Alerts),
		"degraded", card.Degraded,
	)
	return report, nil
}
