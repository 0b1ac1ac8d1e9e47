package processor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/MikeSquared-Agency/rapport/internal/conversation"
	"github.com/MikeSquared-Agency/rapport/internal/health"
	"github.com/MikeSquared-Agency/rapport/internal/hermes"
	"github.com/MikeSquared-Agency/rapport/internal/pipeline"
	"github.com/MikeSquared-Agency/rapport/internal/store"
)

// Runner executes one analysis run.
type Runner interface {
	Run(ctx context.Context, in conversation.Input) (*pipeline.Outcome, error)
}

// ReportStore persists completed reports.
type ReportStore interface {
	SaveReport(ctx context.Context, rec store.ReportRecord) error
}

// Publisher emits events on the message bus.
type Publisher interface {
	Publish(subject string, data any) error
}

// AlertPoster notifies humans about reports that raised alerts.
type AlertPoster interface {
	PostReportAlerts(ctx context.Context, r *health.Report) (string, error)
}

// Processor runs the pipeline and fans the result out to storage, the bus
// and Slack. Store, publisher and poster are optional.
type Processor struct {
	runner     Runner
	store      ReportStore
	publisher  Publisher
	poster     AlertPoster
	runTimeout time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

type Options struct {
	Store      ReportStore
	Publisher  Publisher
	Poster     AlertPoster
	RunTimeout time.Duration
}

func New(r Runner, opts Options, logger *slog.Logger) *Processor {
	return &Processor{
		runner:     r,
		store:      opts.Store,
		publisher:  opts.Publisher,
		poster:     opts.Poster,
		runTimeout: opts.RunTimeout,
		logger:     logger,
		now:        time.Now,
	}
}

// HandleConversationIngested is the NATS handler for swarm.conversation.ingested.
func (p *Processor) HandleConversationIngested(subject string, data []byte) {
	var in conversation.Input
	if err := json.Unmarshal(data, &in); err != nil {
		p.logger.Error("failed to parse conversation event", "subject", subject, "error", err)
		p.publish(hermes.SubjectReportFailed, hermes.ReportFailed{
			Kind:     "input",
			Error:    "malformed payload: " + err.Error(),
			FailedAt: p.now().UTC(),
		})
		return
	}

	p.logger.Info("processing conversation",
		"conversation_id", in.ID,
		"type", in.Type,
		"emails", len(in.Emails),
		"transcript", len(in.Transcript),
	)

	_, _ = p.Process(context.Background(), in)
}

// Process runs one analysis under the configured timeout and dispatches
// the outcome. The returned values are those of the pipeline run.
func (p *Processor) Process(ctx context.Context, in conversation.Input) (*pipeline.Outcome, error) {
	if p.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.runTimeout)
		defer cancel()
	}

	out, err := p.runner.Run(ctx, in)
	if err != nil {
		p.logger.Error("analysis failed",
			"conversation_id", in.ID,
			"kind", FailureKind(err),
			"error", err,
		)
		p.publish(hermes.SubjectReportFailed, hermes.ReportFailed{
			ConversationID: in.ID,
			Kind:           FailureKind(err),
			Error:          err.Error(),
			Stage:          FailureStage(err),
			FailedAt:       p.now().UTC(),
		})
		return out, err
	}

	report := out.Report
	// dispatch must outlive a request context that ends with the response
	dispatchCtx := context.WithoutCancel(ctx)

	if p.store != nil {
		if err := p.store.SaveReport(dispatchCtx, Record(out)); err != nil {
			p.logger.Error("failed to persist report",
				"conversation_id", report.ConversationID,
				"report_id", report.ID,
				"error", err,
			)
		}
	}

	p.publish(hermes.SubjectReportCompleted, report)
	for _, a := range report.Alerts {
		p.publish(hermes.SubjectAlert, hermes.AlertRaised{
			ReportID:       report.ID,
			ConversationID: report.ConversationID,
			Type:           a.Type,
			Severity:       a.Severity,
			Message:        a.Message,
			Recommendation: a.Recommendation,
			OverallScore:   report.OverallScore,
			RaisedAt:       report.AnalyzedAt,
		})
	}

	if p.poster != nil && len(report.Alerts) > 0 {
		if _, err := p.poster.PostReportAlerts(dispatchCtx, report); err != nil {
			p.logger.Error("slack post failed", "report_id", report.ID, "error", err)
		}
	}

	p.logger.Info("conversation analyzed",
		"conversation_id", report.ConversationID,
		"report_id", report.ID,
		"overall_score", report.OverallScore,
		"status", report.Status,
		"alerts", len(report.Alerts),
		"stage_errors", len(out.StageErrors),
	)
	return out, nil
}

func (p *Processor) publish(subject string, data any) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(subject, data); err != nil {
		p.logger.Error("publish failed", "subject", subject, "error", err)
	}
}

// Record converts a successful outcome into its storage form.
func Record(out *pipeline.Outcome) store.ReportRecord {
	rec := store.ReportRecord{Report: out.Report}
	if out.Timeliness != nil {
		rec.Events = out.Timeliness.Events
	}
	for _, se := range out.StageErrors {
		rec.StageErrors = append(rec.StageErrors, store.StageFailure{
			Stage:   string(se.Stage),
			Message: se.Err.Error(),
		})
	}
	return rec
}

// FailureKind classifies a run error for failure events and HTTP mapping.
func FailureKind(err error) string {
	switch {
	case errors.Is(err, pipeline.ErrInput):
		return "input"
	case errors.Is(err, pipeline.ErrCancelled):
		return "cancelled"
	case errors.Is(err, pipeline.ErrAggregation):
		return "aggregation"
	default:
		return "internal"
	}
}

// FailureStage names the graph node a run error came from.
func FailureStage(err error) string {
	switch FailureKind(err) {
	case "input":
		return string(pipeline.StageNormalize)
	case "aggregation":
		return string(pipeline.StageAggregate)
	default:
		return ""
	}
}
