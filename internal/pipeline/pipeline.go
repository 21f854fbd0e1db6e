// Package pipeline chains the harvesting and analysis stages. Stages read and
// write CSV tables, so each can run alone on the output of the previous one.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"newspulse/internal/domain"
	"newspulse/internal/emotion"
	"newspulse/internal/feed"
	"newspulse/internal/metrics"
	"newspulse/internal/ratelimiter"
	"newspulse/internal/retry"
	"newspulse/internal/summarizer"
)

const (
	StageHarvest   = "harvest"
	StageExtract   = "extract"
	StageSummarize = "summarize"
	StageSegment   = "segment"
	StageScore     = "score"

	ColumnTitle         = "title"
	ColumnURL           = "url"
	ColumnSourceName    = "source_name"
	ColumnDateFound     = "date_found"
	ColumnText          = "text"
	ColumnProcessedText = "processed_text"
	ColumnMessageTitle  = "message_title"
	ColumnMessage       = "message"
)

var (
	errNoSummarizer = errors.New("summarizer is not configured")
	errNoClassifier = errors.New("emotion classifier is not configured")
	errNoExtractor  = errors.New("article extractor is not configured")
	errNoHarvester  = errors.New("harvester is not configured")
)

type Harvester interface {
	Harvest(ctx context.Context, query string, window domain.DateRange) ([]domain.ResolvedRecord, feed.Stats, error)
}

type Extractor interface {
	Extract(ctx context.Context, pageURL string) (string, error)
}

// Ledger keeps a history of stage runs and harvested records.
type Ledger interface {
	StartRun(ctx context.Context, stage string, input string, output string) (string, error)
	FinishRun(ctx context.Context, runID string, rowsIn int64, rowsOut int64, runErr error) error
	SaveRecords(ctx context.Context, runID string, records []domain.ResolvedRecord) error
	SeenURLs(ctx context.Context, urls []string) (map[string]struct{}, error)
}

// Deps are the collaborators of a Runner. Only the ones used by a stage
// have to be set; Ledger, Pacer and Metrics may be nil.
type Deps struct {
	Harvester  Harvester
	Extractor  Extractor
	Summarizer summarizer.Summarizer
	Classifier emotion.Classifier
	Pacer      *ratelimiter.RateLimiter
	Retry      retry.Policy
	Ledger     Ledger
	Metrics    *metrics.Collector
	Log        *slog.Logger
}

type Runner struct {
	harvester  Harvester
	extractor  Extractor
	summarizer summarizer.Summarizer
	classifier emotion.Classifier
	pacer      *ratelimiter.RateLimiter
	policy     retry.Policy
	ledger     Ledger
	metrics    *metrics.Collector
	log        *slog.Logger
}

func New(deps Deps) *Runner {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}

	return &Runner{
		harvester:  deps.Harvester,
		extractor:  deps.Extractor,
		summarizer: deps.Summarizer,
		classifier: deps.Classifier,
		pacer:      deps.Pacer,
		policy:     deps.Retry,
		ledger:     deps.Ledger,
		metrics:    deps.Metrics,
		log:        log,
	}
}

// stageResult is what a stage reports back to track.
type stageResult struct {
	rowsIn  int
	rowsOut int
}

// track wraps a stage with its ledger run, metrics and log lines.
func (r *Runner) track(
	ctx context.Context,
	stage string,
	input string,
	output string,
	fn func(runID string) (stageResult, error),
) error {
	start := time.Now()

	var runID string
	if r.ledger != nil {
		id, err := r.ledger.StartRun(ctx, stage, input, output)
		if err != nil {
			r.log.WarnContext(ctx, "Failed to start ledger run",
				"error", err,
				"stage", stage)
		}
		runID = id
	}

	res, err := fn(runID)

	duration := time.Since(start)
	r.metrics.RecordStage(stage, duration, err == nil)

	if r.ledger != nil && runID != "" {
		finishCtx := context.WithoutCancel(ctx)
		if finishErr := r.ledger.FinishRun(
			finishCtx, runID, int64(res.rowsIn), int64(res.rowsOut), err,
		); finishErr != nil {
			r.log.WarnContext(ctx, "Failed to finish ledger run",
				"error", finishErr,
				"stage", stage,
				"runID", runID)
		}
	}

	if err != nil {
		r.log.ErrorContext(ctx, "Stage failed",
			"error", err,
			"stage", stage,
			"input", input,
			"output", output,
			"durationSeconds", duration.Seconds())

		return err
	}

	r.log.InfoContext(ctx, "Stage is done",
		"stage", stage,
		"input", input,
		"output", output,
		"rowsIn", res.rowsIn,
		"rowsOut", res.rowsOut,
		"durationSeconds", duration.Seconds())

	return nil
}
