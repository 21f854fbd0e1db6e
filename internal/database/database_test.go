package database_test

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"newspulse/internal/database"
	"newspulse/internal/domain"
)

func openDB(t *testing.T) *database.Database {
	t.Helper()

	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), "ledger.sqlite"), slog.Default())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestRunLifecycle(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	okID, err := db.StartRun(ctx, "harvest", "serbia", "news.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err = db.FinishRun(ctx, okID, 0, 12, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	failedID, err := db.StartRun(ctx, "segment", "in.csv", "out.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err = db.FinishRun(ctx, failedID, 3, 0, errors.New("column missing")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	runs, err := db.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}

	byID := map[string]domain.Run{runs[0].ID: runs[0], runs[1].ID: runs[1]}

	if r := byID[okID]; r.Status != domain.RunStatusOK || r.RowsOut != 12 || r.FinishedAt.IsZero() {
		t.Fatalf("unexpected ok run: %+v", r)
	}

	if r := byID[failedID]; r.Status != domain.RunStatusFailed || r.Error != "column missing" {
		t.Fatalf("unexpected failed run: %+v", r)
	}
}

func TestFinishUnknownRun(t *testing.T) {
	if err := openDB(t).FinishRun(context.Background(), "missing", 0, 0, nil); err == nil {
		t.Fatalf("expected error for unknown run")
	}
}

func TestSaveRecordsAndSeenURLs(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	runID, err := db.StartRun(ctx, "harvest", "q", "out.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records := []domain.ResolvedRecord{
		{
			FeedEntry: domain.FeedEntry{
				Title:       "A",
				RawLink:     "https://news.example.com/a?url=https://a.example.com",
				SourceName:  "A News",
				PublishedAt: time.Date(2025, 1, 27, 0, 0, 0, 0, time.UTC),
			},
			ResolvedURL: "https://a.example.com",
		},
		{
			FeedEntry:   domain.FeedEntry{Title: "B", RawLink: "https://b.example.com", SourceName: domain.UnknownSource},
			ResolvedURL: "https://b.example.com",
		},
	}

	if err = db.SaveRecords(ctx, runID, records); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seen, err := db.SeenURLs(ctx, []string{"https://a.example.com", "https://c.example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := seen["https://a.example.com"]; !ok || len(seen) != 1 {
		t.Fatalf("unexpected seen URLs: %v", seen)
	}
}
