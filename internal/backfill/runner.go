package backfill

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/rapport/internal/conversation"
	"github.com/MikeSquared-Agency/rapport/internal/health"
	"github.com/MikeSquared-Agency/rapport/internal/pipeline"
)

// Config holds the backfill command configuration.
type Config struct {
	Dir        string
	SingleFile string // process a single file only
	StatePath  string
	DryRun     bool // analyze without storing, publishing or posting
	BatchSize  int  // conversations between state saves and pauses
	BatchPause time.Duration
}

// AnalyzeFunc runs one conversation through the pipeline.
type AnalyzeFunc func(ctx context.Context, in conversation.Input) (*pipeline.Outcome, error)

// Notifier posts batch summaries. slack.Poster satisfies it.
type Notifier interface {
	PostThread(ctx context.Context, threadTS, text string) error
}

// Runner orchestrates the backfill process.
type Runner struct {
	cfg     Config
	analyze AnalyzeFunc
	notify  Notifier
	logger  *slog.Logger
	out     io.Writer
}

// NewRunner creates a backfill runner. notify may be nil.
func NewRunner(cfg Config, analyze AnalyzeFunc, notify Notifier, logger *slog.Logger) *Runner {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	return &Runner{
		cfg:     cfg,
		analyze: analyze,
		notify:  notify,
		logger:  logger,
		out:     os.Stdout,
	}
}

// Run executes the backfill process.
func (r *Runner) Run(ctx context.Context) error {
	state, err := LoadState(r.cfg.StatePath)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	files, err := r.discoverFiles()
	if err != nil {
		return fmt.Errorf("discover files: %w", err)
	}

	var pending []string
	for _, f := range files {
		if !state.IsProcessed(f) {
			pending = append(pending, f)
		}
	}
	state.FilesRemaining = len(pending)
	r.logger.Info("files discovered", "total", len(files), "pending", len(pending), "dry_run", r.cfg.DryRun)

	var summaries []FileSummary
	inBatch := 0

	for _, path := range pending {
		if err := ctx.Err(); err != nil {
			r.logger.Info("backfill interrupted, saving state")
			_ = state.Save()
			r.postBatchSummary(context.WithoutCancel(ctx), summaries)
			return err
		}

		convs, skipped, err := ReadFile(path)
		if err != nil {
			r.logger.Warn("failed to read file", "path", path, "error", err)
			state.AddError(fmt.Sprintf("read %s: %v", path, err))
			state.MarkProcessed(path)
			state.FilesRemaining--
			continue
		}
		for _, s := range skipped {
			state.AddError("parse " + s)
		}

		fs := FileSummary{Path: path, Errors: len(skipped)}
		r.logger.Info("processing file", "path", path, "conversations", len(convs))

		for _, in := range convs {
			if err := ctx.Err(); err != nil {
				_ = state.Save()
				return err
			}

			out, err := r.analyze(ctx, in)
			if err != nil {
				r.logger.Error("analysis failed", "path", path, "conversation_id", in.ID, "error", err)
				state.AddError(fmt.Sprintf("analyze %s/%s: %v", filepath.Base(path), in.ID, err))
				fs.Errors++
				continue
			}

			rep := out.Report
			fs.Conversations++
			fs.ScoreTotal += rep.OverallScore
			fs.Alerts += len(rep.Alerts)
			if rep.Status == health.StatusCritical {
				fs.Critical++
			}
			state.RecordReport(string(rep.Status), len(rep.Alerts))

			inBatch++
			if inBatch >= r.cfg.BatchSize {
				r.logger.Info("batch complete, saving state", "conversations_in_batch", inBatch)
				_ = state.Save()
				inBatch = 0

				if r.cfg.BatchPause > 0 {
					select {
					case <-ctx.Done():
						return ctx.Err()
					case <-time.After(r.cfg.BatchPause):
					}
				}
			}
		}

		summaries = append(summaries, fs)
		state.MarkProcessed(path)
		state.FilesRemaining--
		_ = state.Save()
	}

	_ = state.Save()
	r.postBatchSummary(ctx, summaries)

	r.logger.Info("backfill complete",
		"files_processed", len(pending),
		"conversations_analyzed", state.ConversationsAnalyzed,
		"alerts_raised", state.AlertsRaised,
		"errors", len(state.Errors),
		"dry_run", r.cfg.DryRun,
	)

	fmt.Fprintf(r.out, "\n=== Backfill Summary ===\n")
	fmt.Fprintf(r.out, "Files processed: %d\n", len(pending))
	fmt.Fprintf(r.out, "Conversations analyzed: %d\n", state.ConversationsAnalyzed)
	fmt.Fprintf(r.out, "Alerts raised: %d\n", state.AlertsRaised)
	fmt.Fprintf(r.out, "Errors: %d\n", len(state.Errors))
	if r.cfg.DryRun {
		fmt.Fprintf(r.out, "Mode: DRY RUN (no DB writes)\n")
	}
	fmt.Fprintf(r.out, "State file: %s\n", state.Path())

	return nil
}

// postBatchSummary posts the summary to Slack, or logs it when Slack is
// not configured.
func (r *Runner) postBatchSummary(ctx context.Context, summaries []FileSummary) {
	if len(summaries) == 0 {
		return
	}

	text := FormatSummary(summaries)

	if r.notify == nil {
		r.logger.Info("backfill batch summary (no Slack configured)", "summary", text)
		return
	}
	if err := r.notify.PostThread(ctx, "", text); err != nil {
		r.logger.Warn("failed to post batch summary to Slack, logging instead",
			"error", err,
			"summary", text,
		)
	}
}

// FormatSummary formats per-file results, worst average score first.
func FormatSummary(summaries []FileSummary) string {
	sorted := make([]FileSummary, len(summaries))
	copy(sorted, summaries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].AvgScore() < sorted[j].AvgScore()
	})

	total, alerts, critical := 0, 0, 0
	for _, f := range sorted {
		total += f.Conversations
		alerts += f.Alerts
		critical += f.Critical
	}

	var sb strings.Builder
	sb.WriteString("*Backfill Batch Summary*\n")
	fmt.Fprintf(&sb, "%d files, %d conversations, %d alerts, %d critical\n\n", len(sorted), total, alerts, critical)

	for _, f := range sorted {
		fmt.Fprintf(&sb, "  - %s: %d conv, avg %.1f, %d alerts", filepath.Base(f.Path), f.Conversations, f.AvgScore(), f.Alerts)
		if f.Errors > 0 {
			fmt.Fprintf(&sb, " (%d errors)", f.Errors)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (r *Runner) discoverFiles() ([]string, error) {
	if r.cfg.SingleFile != "" {
		path := expandHome(r.cfg.SingleFile)
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("single file not found: %s", path)
		}
		return []string{path}, nil
	}
	return Discover(r.cfg.Dir)
}
