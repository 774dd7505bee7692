package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 500

	// timeLayout sorts lexically in chronological order.
	timeLayout = "2006-01-02T15:04:05.000Z"
)

// ErrInvalidCycle is returned by Record for a cycle without ID or outcome.
var ErrInvalidCycle = errors.New("history: invalid cycle")

// SQLiteRepository implements Repository using the sync_cycles table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record inserts a finished cycle.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - c: Cycle with ID, StartedAt, FinishedAt and Outcome set
//
// Returns:
//   - error: ErrInvalidCycle, or the underlying database error
func (r *SQLiteRepository) Record(ctx context.Context, c *Cycle) error {
	if c == nil || c.ID == "" || c.Outcome == "" {
		return fmt.Errorf("%w: id and outcome are required", ErrInvalidCycle)
	}

	var newest sql.NullString
	if c.NewestReading != nil {
		newest = sql.NullString{String: formatTime(*c.NewestReading), Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sync_cycles
		 (id, started_at, finished_at, outcome, records_pulled, records_skipped, points_written, newest_reading, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID,
		formatTime(c.StartedAt),
		formatTime(c.FinishedAt),
		string(c.Outcome),
		c.RecordsPulled,
		c.RecordsSkipped,
		c.PointsWritten,
		newest,
		c.Error,
	)
	if err != nil {
		return fmt.Errorf("inserting sync cycle: %w", err)
	}
	return nil
}

// Recent returns the newest cycles first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - limit: Maximum entries to return (default 50, max 500)
func (r *SQLiteRepository) Recent(ctx context.Context, limit int) ([]Cycle, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, outcome, records_pulled, records_skipped,
		        points_written, newest_reading, error
		 FROM sync_cycles
		 ORDER BY started_at DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying sync cycles: %w", err)
	}
	defer rows.Close()

	cycles := make([]Cycle, 0, limit)
	for rows.Next() {
		var (
			c                 Cycle
			started, finished string
			outcome           string
			newest            sql.NullString
		)
		if err := rows.Scan(&c.ID, &started, &finished, &outcome,
			&c.RecordsPulled, &c.RecordsSkipped, &c.PointsWritten, &newest, &c.Error); err != nil {
			return nil, fmt.Errorf("scanning sync cycle: %w", err)
		}

		c.Outcome = Outcome(outcome)
		if c.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if c.FinishedAt, err = parseTime(finished); err != nil {
			return nil, err
		}
		if newest.Valid {
			ts, err := parseTime(newest.String)
			if err != nil {
				return nil, err
			}
			c.NewestReading = &ts
		}

		cycles = append(cycles, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sync cycles: %w", err)
	}
	return cycles, nil
}

// Prune deletes cycles that started before now-olderThan.
//
// Returns the number of rows deleted.
func (r *SQLiteRepository) Prune(ctx context.Context, now time.Time, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	result, err := r.db.ExecContext(ctx,
		"DELETE FROM sync_cycles WHERE started_at < ?",
		formatTime(now.Add(-olderThan)),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting sync cycles: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(timeLayout, value)
	if err == nil {
		return t, nil
	}
	if fallback, fbErr := time.Parse(time.RFC3339Nano, value); fbErr == nil {
		return fallback.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", value, err)
}
