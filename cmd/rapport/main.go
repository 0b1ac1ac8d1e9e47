package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/MikeSquared-Agency/rapport/internal/anthropic"
	"github.com/MikeSquared-Agency/rapport/internal/api"
	"github.com/MikeSquared-Agency/rapport/internal/backfill"
	"github.com/MikeSquared-Agency/rapport/internal/config"
	"github.com/MikeSquared-Agency/rapport/internal/groq"
	"github.com/MikeSquared-Agency/rapport/internal/health"
	"github.com/MikeSquared-Agency/rapport/internal/hermes"
	"github.com/MikeSquared-Agency/rapport/internal/metrics"
	"github.com/MikeSquared-Agency/rapport/internal/narrative"
	"github.com/MikeSquared-Agency/rapport/internal/pipeline"
	"github.com/MikeSquared-Agency/rapport/internal/processor"
	"github.com/MikeSquared-Agency/rapport/internal/slack"
	"github.com/MikeSquared-Agency/rapport/internal/store"
)

const version = "1.0"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	if len(os.Args) > 1 && os.Args[1] == "backfill" {
		err = runBackfill(ctx, cfg, os.Args[2:])
	} else {
		err = serve(ctx, cfg)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("rapport exited with error", "error", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	slog.Info("rapport starting", "port", cfg.Port, "provider", cfg.Provider)

	m := metrics.New()
	exec, err := newExecutor(cfg, m)
	if err != nil {
		return err
	}

	opts := processor.Options{RunTimeout: cfg.RunTimeout}

	// Database (optional: reports are not persisted without it)
	var reports api.ReportReader
	if cfg.DatabaseURL != "" {
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		opts.Store = db
		reports = db
		slog.Info("database connected")
	} else {
		slog.Warn("DATABASE_URL not set, reports will not be persisted")
	}

	// NATS/Hermes (optional: HTTP-only without it)
	var hermesClient *hermes.Client
	if cfg.NatsURL != "" {
		hermesClient, err = hermes.NewClient(cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer hermesClient.Close()
		opts.Publisher = hermesClient
		slog.Info("NATS connected", "url", cfg.NatsURL)
	} else {
		slog.Warn("NATS_URL not set, running HTTP only")
	}

	if poster := newPoster(cfg); poster != nil {
		opts.Poster = poster
		slog.Info("slack poster ready", "channel", cfg.SlackChannel)
	} else {
		slog.Warn("slack not configured, alerts go to NATS only")
	}

	proc := processor.New(exec, opts, slog.Default())

	if hermesClient != nil {
		if err := hermesClient.Subscribe(hermes.SubjectConversationIngested, proc.HandleConversationIngested); err != nil {
			return fmt.Errorf("subscribe conversations: %w", err)
		}
	}

	srv := api.NewServer(api.Config{
		Port:     cfg.Port,
		APIToken: cfg.APIToken,
		Provider: cfg.Provider,
		Version:  version,
	}, proc, reports, m, slog.Default())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	if hermesClient != nil {
		if err := hermesClient.Publish(hermes.SubjectAgentRegistered, hermes.Registration(version, cfg.Provider, time.Now())); err != nil {
			slog.Warn("failed to publish registration", "error", err)
		}
	}

	slog.Info("rapport ready", "port", cfg.Port)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown", "error", err)
	}
	if hermesClient != nil {
		if err := hermesClient.Drain(); err != nil {
			slog.Warn("nats drain", "error", err)
		}
	}
	slog.Info("rapport stopped")
	return nil
}

func runBackfill(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("backfill", flag.ExitOnError)
	dir := fs.String("dir", "", "directory of .json/.jsonl conversation files")
	file := fs.String("file", "", "process a single file")
	statePath := fs.String("state", backfill.DefaultStatePath, "resumable state file")
	dryRun := fs.Bool("dry-run", false, "analyze without storing, publishing or posting")
	batch := fs.Int("batch", 20, "conversations between state saves")
	pause := fs.Duration("pause", 30*time.Second, "pause between batches")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dir == "" && *file == "" {
		return fmt.Errorf("backfill: -dir or -file is required")
	}

	exec, err := newExecutor(cfg, nil)
	if err != nil {
		return err
	}

	analyze := backfill.AnalyzeFunc(exec.Run)
	poster := newPoster(cfg)

	if !*dryRun {
		opts := processor.Options{RunTimeout: cfg.RunTimeout}
		if cfg.DatabaseURL != "" {
			db, err := store.New(ctx, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer db.Close()
			if err := db.Migrate(ctx); err != nil {
				return fmt.Errorf("migrate database: %w", err)
			}
			opts.Store = db
		}
		if cfg.NatsURL != "" {
			h, err := hermes.NewClient(cfg.NatsURL, cfg.NatsToken, slog.Default())
			if err != nil {
				return fmt.Errorf("connect nats: %w", err)
			}
			defer h.Close()
			opts.Publisher = h
		}
		analyze = processor.New(exec, opts, slog.Default()).Process
	}

	var notifier backfill.Notifier
	if poster != nil {
		notifier = poster
	}

	runner := backfill.NewRunner(backfill.Config{
		Dir:        *dir,
		SingleFile: *file,
		StatePath:  *statePath,
		DryRun:     *dryRun,
		BatchSize:  *batch,
		BatchPause: *pause,
	}, analyze, notifier, slog.Default())

	return runner.Run(ctx)
}

func newExecutor(cfg config.Config, m *metrics.Metrics) (*pipeline.Executor, error) {
	provider, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}
	analyzer := narrative.NewAnalyzer(provider, slog.Default())
	agg := health.NewAggregator(analyzer, slog.Default())
	return pipeline.NewExecutor(analyzer, agg, m, slog.Default()), nil
}

func newProvider(cfg config.Config) (narrative.Provider, error) {
	switch cfg.Provider {
	case config.ProviderAnthropic:
		c, err := anthropic.NewClient(anthropic.Config{
			APIKey: cfg.AnthropicAPIKey,
			Model:  cfg.AnthropicModel,
		}, slog.Default())
		if err != nil {
			return nil, fmt.Errorf("anthropic client: %w", err)
		}
		slog.Info("anthropic client ready", "model", c.Model())
		return c, nil
	default:
		c, err := groq.New(groq.Config{
			APIKey:  cfg.GroqAPIKey,
			BaseURL: cfg.GroqBaseURL,
			Model:   cfg.GroqModel,
		})
		if err != nil {
			return nil, fmt.Errorf("groq client: %w", err)
		}
		slog.Info("groq client ready", "model", c.Model())
		return c, nil
	}
}

func newPoster(cfg config.Config) *slack.Poster {
	if cfg.SlackBotToken == "" || cfg.SlackChannel == "" {
		return nil
	}
	return slack.NewPoster(cfg.SlackBotToken, cfg.SlackChannel, slog.Default())
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
