package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"newspulse/internal/domain"

	"github.com/google/uuid"
)

// StartRun records a running stage and returns its ID.
func (d *Database) StartRun(ctx context.Context, stage string, input string, output string) (string, error) {
	stage = strings.TrimSpace(stage)
	if stage == "" {
		return "", errors.New("stage is empty")
	}

	id := uuid.NewString()

	query := `insert into runs (id, stage, input, output, status, started_at)
	values (?, ?, ?, ?, ?, ?)`

	if _, err := d.db.ExecContext(ctx, query,
		id, stage, input, output, domain.RunStatusRunning, time.Now().UTC()); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	return id, nil
}

// FinishRun closes a run; runErr decides between ok and failed.
func (d *Database) FinishRun(
	ctx context.Context,
	runID string,
	rowsIn int64,
	rowsOut int64,
	runErr error,
) error {
	status := domain.RunStatusOK
	var errText string
	if runErr != nil {
		status = domain.RunStatusFailed
		errText = runErr.Error()
	}

	query := `update runs
	set rows_in = ?, rows_out = ?, status = ?, error = ?, finished_at = ?
	where id = ?`

	res, err := d.db.ExecContext(ctx, query, rowsIn, rowsOut, status, errText, time.Now().UTC(), runID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run not found (ID = %s)", runID)
	}

	return nil
}

func (d *Database) SaveRecords(ctx context.Context, runID string, records []domain.ResolvedRecord) (err error) {
	if len(records) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				d.log.ErrorContext(ctx, "Failed to roll back tx",
					"error", rollbackErr,
					"runID", runID,
					"operation", "SaveRecords")
			}
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `insert into harvested_records
	(run_id, position, title, url, raw_link, source_name, date_found)
	values (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		if _, err = stmt.ExecContext(ctx,
			runID, i, r.Title, r.ResolvedURL, r.RawLink, r.SourceName, r.DateFound()); err != nil {
			return fmt.Errorf("insert record %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

func (d *Database) RecentRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `select id, stage, input, output, rows_in, rows_out, status, error, started_at, finished_at
	from runs
	order by started_at desc
	limit ?`

	rows, err := d.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"operation", "RecentRuns")
		}
	}()

	var runs []domain.Run
	for rows.Next() {
		var (
			r        domain.Run
			finished sql.NullTime
		)
		if err = rows.Scan(&r.ID, &r.Stage, &r.Input, &r.Output,
			&r.RowsIn, &r.RowsOut, &r.Status, &r.Error, &r.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		if finished.Valid {
			r.FinishedAt = finished.Time
		}
		runs = append(runs, r)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return runs, nil
}

// SeenURLs returns which of urls were harvested by earlier runs.
func (d *Database) SeenURLs(ctx context.Context, urls []string) (map[string]struct{}, error) {
	seen := make(map[string]struct{})
	if len(urls) == 0 {
		return seen, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(urls)), ",")
	args := make([]any, len(urls))
	for i, u := range urls {
		args[i] = u
	}

	query := "select distinct url from harvested_records where url in (" + placeholders + ")" //nolint:gosec // placeholders only

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"operation", "SeenURLs")
		}
	}()

	for rows.Next() {
		var u string
		if err = rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		seen[u] = struct{}{}
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return seen, nil
}
