package pipeline

import (
	"context"
	"errors"
	"fmt"

	"newspulse/internal/domain"
	"newspulse/internal/feed"
	"newspulse/internal/ratelimiter"
	"newspulse/internal/retry"
	"newspulse/internal/table"
)

type HarvestRequest struct {
	Query  string
	Window domain.DateRange
	Output string
	// OnlyNew drops records whose URL an earlier run already saved.
	OnlyNew bool
}

// Harvest writes the feed records for a query to req.Output. Nothing is
// written when the feed cannot be fetched.
func (r *Runner) Harvest(ctx context.Context, req HarvestRequest) error {
	if r.harvester == nil {
		return errNoHarvester
	}

	return r.track(ctx, StageHarvest, req.Query, req.Output, func(runID string) (stageResult, error) {
		var (
			records []domain.ResolvedRecord
			stats   feed.Stats
		)

		err := retry.Do(ctx, r.policy, func(ctx context.Context) error {
			if err := r.pacer.Wait(ctx, ratelimiter.KeyFeed); err != nil {
				return err
			}

			var harvestErr error
			records, stats, harvestErr = r.harvester.Harvest(ctx, req.Query, req.Window)
			if !errors.Is(harvestErr, feed.ErrInvalidInput) {
				r.metrics.RecordFeedFetch(harvestErr == nil)
			}

			return harvestErr
		})
		if err != nil {
			return stageResult{}, fmt.Errorf("harvest feed: %w", err)
		}

		r.metrics.RecordRecordsFiltered("out_of_range", stats.OutOfRange)
		r.metrics.RecordRecordsFiltered("duplicate", stats.Duplicates)

		if req.OnlyNew {
			records = r.dropSeen(ctx, records)
		}

		t := table.New(ColumnTitle, ColumnURL, ColumnSourceName, ColumnDateFound)
		for _, record := range records {
			t.Append(record.Title, record.ResolvedURL, record.SourceName, record.DateFound())
		}

		if err = table.Write(req.Output, t); err != nil {
			return stageResult{rowsIn: stats.Items}, fmt.Errorf("write harvest table: %w", err)
		}

		r.metrics.RecordRecordsEmitted(len(records))

		if r.ledger != nil && runID != "" {
			if err = r.ledger.SaveRecords(ctx, runID, records); err != nil {
				r.log.WarnContext(ctx, "Failed to save harvested records",
					"error", err,
					"runID", runID,
					"recordCount", len(records))
			}
		}

		return stageResult{rowsIn: stats.Items, rowsOut: len(records)}, nil
	})
}

func (r *Runner) dropSeen(ctx context.Context, records []domain.ResolvedRecord) []domain.ResolvedRecord {
	if r.ledger == nil || len(records) == 0 {
		return records
	}

	urls := make([]string, 0, len(records))
	for _, record := range records {
		if record.ResolvedURL != "" {
			urls = append(urls, record.ResolvedURL)
		}
	}

	seen, err := r.ledger.SeenURLs(ctx, urls)
	if err != nil {
		r.log.WarnContext(ctx, "Failed to look up seen URLs so all records are kept",
			"error", err,
			"recordCount", len(records))

		return records
	}

	// Records without a URL never match an earlier run and are always kept.
	fresh := records[:0:0]
	for _, record := range records {
		if _, ok := seen[record.ResolvedURL]; ok && record.ResolvedURL != "" {
			continue
		}
		fresh = append(fresh, record)
	}

	r.metrics.RecordRecordsFiltered("seen", len(records)-len(fresh))

	return fresh
}
