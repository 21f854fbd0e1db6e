package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"newspulse/internal/domain"
)

// File names of the stage tables inside a work directory.
const (
	HarvestFile   = "news_results.csv"
	ArticlesFile  = "news_results_with_text.csv"
	SummariesFile = "news_results_with_text_gpt_processed.csv"
	MessagesFile  = "output_for_sentiment.csv"
	ScoresFile    = "analysis_file_all_functions_applied.csv"
)

type RunRequest struct {
	Query   string
	Window  domain.DateRange
	Dir     string
	OnlyNew bool
}

// Paths returns the stage tables of a work directory in stage order.
func Paths(dir string) []string {
	return []string{
		filepath.Join(dir, HarvestFile),
		filepath.Join(dir, ArticlesFile),
		filepath.Join(dir, SummariesFile),
		filepath.Join(dir, MessagesFile),
		filepath.Join(dir, ScoresFile),
	}
}

// RunAll runs every stage in order inside req.Dir. It stops at the first
// failing stage; tables of completed stages stay in place.
func (r *Runner) RunAll(ctx context.Context, req RunRequest) error {
	paths := Paths(req.Dir)

	if err := r.Harvest(ctx, HarvestRequest{
		Query:   req.Query,
		Window:  req.Window,
		Output:  paths[0],
		OnlyNew: req.OnlyNew,
	}); err != nil {
		return fmt.Errorf("%s stage: %w", StageHarvest, err)
	}

	if err := r.Extract(ctx, paths[0], paths[1], ColumnURL); err != nil {
		return fmt.Errorf("%s stage: %w", StageExtract, err)
	}

	if err := r.Summarize(ctx, paths[1], paths[2], ColumnText, ColumnProcessedText); err != nil {
		return fmt.Errorf("%s stage: %w", StageSummarize, err)
	}

	if err := r.Segment(ctx, paths[2], paths[3], ColumnProcessedText); err != nil {
		return fmt.Errorf("%s stage: %w", StageSegment, err)
	}

	if err := r.Score(ctx, paths[3], paths[4], ColumnMessage); err != nil {
		return fmt.Errorf("%s stage: %w", StageScore, err)
	}

	return nil
}
