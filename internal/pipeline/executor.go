// Package pipeline runs the analysis graph for one conversation:
// normalize, then sentiment, timeliness and conflict concurrently, then
// aggregate into a health report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/rapport/internal/conversation"
	"github.com/MikeSquared-Agency/rapport/internal/health"
	"github.com/MikeSquared-Agency/rapport/internal/metrics"
	"github.com/MikeSquared-Agency/rapport/internal/narrative"
	"github.com/MikeSquared-Agency/rapport/internal/normalizer"
	"github.com/MikeSquared-Agency/rapport/internal/timeliness"
)

// Analyzer runs the provider-backed stages.
type Analyzer interface {
	Sentiment(ctx context.Context, subj narrative.Subject, msgs *normalizer.Result) (*narrative.SentimentResult, error)
	Conflict(ctx context.Context, subj narrative.Subject, msgs *normalizer.Result) (*narrative.ConflictResult, error)
}

// Aggregator builds the final report from a scorecard.
type Aggregator interface {
	Aggregate(ctx context.Context, subj narrative.Subject, card *health.Scorecard, started time.Time) (*health.Report, error)
}

// Outcome is everything a run produced, including partial results when
// the run failed after normalization.
type Outcome struct {
	Report      *health.Report
	Scorecard   *health.Scorecard
	Sentiment   *narrative.SentimentResult
	Timeliness  *timeliness.Result
	Conflict    *narrative.ConflictResult
	StageErrors []*StageError
	Normalized  *normalizer.Metadata
	Elapsed     time.Duration
}

// Executor is stateless across runs and safe for concurrent use.
type Executor struct {
	analyzer   Analyzer
	aggregator Aggregator
	metrics    *metrics.Metrics
	logger     *slog.Logger
	now        func() time.Time
}

func NewExecutor(a Analyzer, agg Aggregator, m *metrics.Metrics, logger *slog.Logger) *Executor {
	return &Executor{
		analyzer:   a,
		aggregator: agg,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

// Run analyzes one conversation. The returned error is nil, or matches
// ErrInput, ErrAggregation or ErrCancelled. Stage failures are reported
// in Outcome.StageErrors and replaced by fallback scores.
func (e *Executor) Run(ctx context.Context, in conversation.Input) (*Outcome, error) {
	started := e.now()
	out := &Outcome{}
	result := "success"

	e.metrics.RunStarted()
	defer func() {
		out.Elapsed = e.now().Sub(started)
		e.metrics.RunFinished(string(in.Type), result, out.Elapsed)
		e.logger.Info("analysis run finished",
			"conversation_id", in.ID,
			"type", in.Type,
			"result", result,
			"stage_errors", len(out.StageErrors),
			"elapsed_ms", out.Elapsed.Milliseconds(),
		)
	}()

	in.ApplyDefaults()
	if err := in.Validate(); err != nil {
		result = "input_error"
		return out, inputError(err)
	}
	stages, err := Route(in.Type)
	if err != nil {
		result = "input_error"
		return out, &InputError{Field: "type", Reason: err.Error()}
	}

	norm, err := e.normalize(in, started)
	if err != nil {
		result = "input_error"
		return out, inputError(err)
	}
	out.Normalized = &norm.Metadata

	if err := ctx.Err(); err != nil {
		result = "cancelled"
		return out, cancelled(err)
	}

	subj := narrative.Subject{
		ConversationID: in.ID,
		Type:           in.Type,
		Participants:   in.Participants,
	}

	sentiment := newSlot[narrative.SentimentResult](StageSentiment)
	timing := newSlot[timeliness.Result](StageTimeliness)
	conflict := newSlot[narrative.ConflictResult](StageConflict)

	if !stages.Has(StageTimeliness) {
		timing.set(timeliness.NotApplicable(), nil)
	}

	g, gctx := errgroup.WithContext(ctx)
	if stages.Has(StageSentiment) {
		g.Go(func() error {
			runStage(e, gctx, subj, sentiment, func(ctx context.Context) (*narrative.SentimentResult, error) {
				return e.analyzer.Sentiment(ctx, subj, norm)
			})
			return nil
		})
	}
	if stages.Has(StageTimeliness) {
		g.Go(func() error {
			runStage(e, gctx, subj, timing, func(context.Context) (*timeliness.Result, error) {
				return timeliness.Analyze(norm.Emails), nil
			})
			return nil
		})
	}
	if stages.Has(StageConflict) {
		g.Go(func() error {
			runStage(e, gctx, subj, conflict, func(ctx context.Context) (*narrative.ConflictResult, error) {
				return e.analyzer.Conflict(ctx, subj, norm)
			})
			return nil
		})
	}
	_ = g.Wait()

	out.Sentiment = collect(out, sentiment)
	out.Timeliness = collect(out, timing)
	out.Conflict = collect(out, conflict)

	if err := ctx.Err(); err != nil {
		result = "cancelled"
		return out, cancelled(err)
	}

	card, err := health.Evaluate(health.Inputs{
		Type:       in.Type,
		Sentiment:  out.Sentiment,
		Timeliness: out.Timeliness,
		Conflict:   out.Conflict,
	})
	if err != nil {
		result = "aggregation_error"
		return out, &AggregationError{Err: err}
	}
	out.Scorecard = card

	aggStart := e.now()
	report, err := e.aggregator.Aggregate(ctx, subj, card, started)
	e.metrics.ObserveStage(string(StageAggregate), e.now().Sub(aggStart), err != nil)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			result = "cancelled"
			return out, cancelled(ctxErr)
		}
		result = "aggregation_error"
		return out, &AggregationError{Err: err, Partial: card}
	}
	out.Report = report

	alertTypes := make([]string, 0, len(report.Alerts))
	for _, a := range report.Alerts {
		alertTypes = append(alertTypes, a.Type)
	}
	e.metrics.ObserveReport(report.OverallScore, alertTypes)

	return out, nil
}

func (e *Executor) normalize(in conversation.Input, now time.Time) (*normalizer.Result, error) {
	start := e.now()
	norm, err := normalizer.Normalize(in, now)
	e.metrics.ObserveStage(string(StageNormalize), e.now().Sub(start), err != nil)
	return norm, err
}

// runStage runs fn and writes its result to the stage slot exactly once.
// A panic in fn becomes that stage's error.
func runStage[T any](e *Executor, ctx context.Context, subj narrative.Subject, s *slot[T], fn func(context.Context) (*T, error)) {
	start := e.now()
	v, err := recoverStage(ctx, fn)
	elapsed := e.now().Sub(start)
	s.set(v, err)

	e.metrics.ObserveStage(string(s.stage), elapsed, err != nil)
	if err != nil {
		e.logger.Warn("analysis stage failed",
			"conversation_id", subj.ConversationID,
			"stage", s.stage,
			"elapsed_ms", elapsed.Milliseconds(),
			"error", err,
		)
		return
	}
	e.logger.Info("analysis stage complete",
		"conversation_id", subj.ConversationID,
		"stage", s.stage,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

func recoverStage[T any](ctx context.Context, fn func(context.Context) (*T, error)) (v *T, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, fmt.Errorf("stage panic: %v", r)
		}
	}()
	return fn(ctx)
}

func collect[T any](out *Outcome, s *slot[T]) *T {
	v, err := s.get()
	if err != nil {
		out.StageErrors = append(out.StageErrors, &StageError{Stage: s.stage, Err: err})
		return nil
	}
	return v
}

func inputError(err error) error {
	var ve *conversation.ValidationError
	if errors.As(err, &ve) {
		return &InputError{Field: ve.Field, Reason: ve.Reason}
	}
	return &InputError{Field: "input", Reason: err.Error()}
}
