// Package history keeps a local audit trail of sync cycles in SQLite.
//
// Every poll attempt records one Cycle: how many archive records were
// pulled, how many were rejected as malformed, how many points reached the
// time-series store, and the error if the cycle failed. The trail stays
// available when the time-series store itself is down, which is exactly
// when it is needed.
package history

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Outcome is the result of one sync cycle.
type Outcome string

// Cycle outcomes.
const (
	// OutcomeWritten means at least one point was written.
	OutcomeWritten Outcome = "written"
	// OutcomeEmpty means the console had no new usable records.
	OutcomeEmpty Outcome = "empty"
	// OutcomeFailed means the cycle faulted before or during the write.
	OutcomeFailed Outcome = "failed"
)

// Cycle is one poll attempt.
type Cycle struct {
	ID             string     `json:"id"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     time.Time  `json:"finished_at"`
	Outcome        Outcome    `json:"outcome"`
	RecordsPulled  int        `json:"records_pulled"`
	RecordsSkipped int        `json:"records_skipped"`
	PointsWritten  int        `json:"points_written"`
	NewestReading  *time.Time `json:"newest_reading,omitempty"`
	Error          string     `json:"error,omitempty"`
}

// NewCycle starts a cycle record with a fresh ID.
func NewCycle(startedAt time.Time) *Cycle {
	return &Cycle{
		ID:        uuid.NewString(),
		StartedAt: startedAt.UTC(),
	}
}

// Finish stamps the cycle's end time and outcome. A non-nil err forces
// OutcomeFailed.
func (c *Cycle) Finish(at time.Time, outcome Outcome, err error) {
	c.FinishedAt = at.UTC()
	c.Outcome = outcome
	if err != nil {
		c.Outcome = OutcomeFailed
		c.Error = err.Error()
	}
}

// Duration returns how long the cycle ran.
func (c *Cycle) Duration() time.Duration {
	if c.FinishedAt.IsZero() {
		return 0
	}
	return c.FinishedAt.Sub(c.StartedAt)
}

// Repository stores and retrieves sync cycles.
//
// Implementations must be safe for concurrent use.
type Repository interface {
	// Record persists a finished cycle.
	Record(ctx context.Context, c *Cycle) error

	// Recent returns up to limit cycles, newest first.
	Recent(ctx context.Context, limit int) ([]Cycle, error)
}
