package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"newspulse/internal/article"
	"newspulse/internal/config"
	"newspulse/internal/database"
	"newspulse/internal/emotion"
	"newspulse/internal/feed"
	"newspulse/internal/metrics"
	"newspulse/internal/pipeline"
	"newspulse/internal/ratelimiter"
	"newspulse/internal/summarizer"
)

// app holds what every command shares once the environment is loaded.
type app struct {
	cfg     config.Config
	log     *slog.Logger
	metrics *metrics.Collector
	db      *database.Database
}

func main() {
	os.Exit(run())
}

func run() int {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{log: log, metrics: metrics.NewCollector()}

	root := &cobra.Command{
		Use:           "newspulse",
		Short:         "Harvest news for a topic and analyse its key messages",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.Context())
		},
	}

	root.AddCommand(
		harvestCmd(a),
		extractCmd(a),
		summarizeCmd(a),
		segmentCmd(a),
		scoreCmd(a),
		runCmd(a),
		scheduleCmd(a),
		historyCmd(a),
	)

	start := time.Now()
	err := root.ExecuteContext(ctx)

	a.close(ctx)

	if err != nil {
		a.log.ErrorContext(ctx, "Command failed",
			"error", err,
			"durationSeconds", time.Since(start).Seconds())

		return 1
	}

	return 0
}

func (a *app) init(ctx context.Context) error {
	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	} else {
		a.log.InfoContext(ctx, ".env file is loaded")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg

	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	a.log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(a.log)

	return nil
}

func (a *app) close(ctx context.Context) {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.ErrorContext(ctx, "Failed to close db",
				"error", err,
				"dbPath", a.cfg.DBPath)
		}
	}

	if err := a.metrics.WriteTextfile(a.cfg.MetricsTextfile); err != nil {
		a.log.ErrorContext(ctx, "Failed to write metrics textfile",
			"error", err,
			"path", a.cfg.MetricsTextfile)
	}
}

// ledger opens the run ledger once. An empty DB_PATH disables it.
func (a *app) ledger(ctx context.Context) (*database.Database, error) {
	if a.db != nil || a.cfg.DBPath == "" {
		return a.db, nil
	}

	db, err := database.New(ctx, a.cfg.DBPath, a.log)
	if err != nil {
		return nil, err
	}
	a.db = db

	a.log.InfoContext(ctx, "DB is initialized",
		"dbPath", a.cfg.DBPath)

	return db, nil
}

func (a *app) summarizer(ctx context.Context, topic string) summarizer.Summarizer {
	opts := summarizer.Options{
		Model:           a.cfg.OpenAI.Model,
		ReasoningEffort: a.cfg.OpenAI.ReasoningEffort,
		Flex:            a.cfg.OpenAI.Flex,
		Topic:           a.cfg.OpenAI.Topic,
	}
	if topic != "" {
		opts.Topic = topic
	}

	s, err := summarizer.NewOpenAISummarizer(a.cfg.OpenAI.APIKey, opts)
	if err != nil {
		a.log.WarnContext(ctx, "OpenAI summarizer is not available",
			"error", err,
			"envVar", "OPENAI_API_KEY")

		return nil
	}

	return summarizer.NewCachingSummarizer(s, a.cfg.OpenAI.CacheSize, a.cfg.OpenAI.CacheTTL)
}

// runner wires every collaborator from the configuration.
func (a *app) runner(ctx context.Context, topic string) (*pipeline.Runner, error) {
	deps := pipeline.Deps{
		Harvester: feed.NewHarvester(nil, feed.Options{
			BaseURL:   a.cfg.Feed.BaseURL,
			Language:  a.cfg.Feed.Language,
			Region:    a.cfg.Feed.Region,
			Edition:   a.cfg.Feed.Edition,
			UserAgent: a.cfg.Feed.UserAgent,
			Timeout:   a.cfg.Feed.Timeout,
		}, a.log),
		Extractor: article.NewExtractor(article.NewSafeClient(a.cfg.Article.Timeout), a.cfg.Article.MaxChars, a.log),
		Classifier: emotion.NewHuggingFaceClassifier(
			&http.Client{Timeout: a.cfg.Emotion.Timeout},
			a.cfg.Emotion.Endpoint,
			a.cfg.Emotion.Model,
			a.cfg.HFToken,
			a.log,
		),
		Pacer:   ratelimiter.New(a.cfg.Delays.Intervals(), 0, a.log),
		Retry:   a.cfg.Retry.Policy(),
		Metrics: a.metrics,
		Log:     a.log,
	}

	if s := a.summarizer(ctx, topic); s != nil {
		deps.Summarizer = s
	}

	db, err := a.ledger(ctx)
	if err != nil {
		return nil, err
	}
	if db != nil {
		deps.Ledger = db
	}

	return pipeline.New(deps), nil
}
