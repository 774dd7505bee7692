package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/vantage-sync/internal/archive"
)

// ResumeState is the point after which new archive records are requested.
// The zero value means absent: pull the whole console buffer.
type ResumeState struct {
	// LastStored is the newest persisted timestamp, in UTC.
	LastStored time.Time

	// Local is LastStored in the console's zone.
	Local time.Time
}

// Absent reports whether no resume point is known.
func (r ResumeState) Absent() bool {
	return r.LastStored.IsZero()
}

// resumeAt builds a ResumeState for t.
func resumeAt(t time.Time, loc *time.Location) ResumeState {
	return ResumeState{LastStored: t.UTC(), Local: t.In(loc)}
}

// LatestQuerier reads the newest point of a measurement.
type LatestQuerier interface {
	// QueryLatest returns nil, nil when the measurement holds no points.
	QueryLatest(ctx context.Context, measurement string) (*archive.StoredPoint, error)
}

// Resolver determines the resume point from previously stored data.
type Resolver struct {
	store       LatestQuerier
	measurement string
	loc         *time.Location
	logger      Logger
}

// NewResolver creates a resolver.
//
// Parameters:
//   - store: the time-series store
//   - measurement: the measurement to query (the wide name, or the
//     representative field in narrow mode)
//   - loc: the console's zone
//   - logger: optional (nil discards)
func NewResolver(store LatestQuerier, measurement string, loc *time.Location, logger Logger) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Resolver{store: store, measurement: measurement, loc: loc, logger: logger}
}

// Lookup queries the store. It returns the zero ResumeState when nothing is
// stored, and an error wrapping ErrResumeQuery on failure.
func (r *Resolver) Lookup(ctx context.Context) (ResumeState, error) {
	p, err := r.store.QueryLatest(ctx, r.measurement)
	if err != nil {
		return ResumeState{}, fmt.Errorf("%w: %s: %w", ErrResumeQuery, r.measurement, err)
	}
	if p == nil {
		return ResumeState{}, nil
	}
	if p.Time.IsZero() || p.Time.Unix() <= 0 {
		return ResumeState{}, fmt.Errorf("%w: %s: unusable timestamp %v", ErrResumeQuery, r.measurement, p.Time)
	}
	return resumeAt(p.Time, r.loc), nil
}

// Resolve is Lookup with failures logged and treated as absent.
func (r *Resolver) Resolve(ctx context.Context) ResumeState {
	state, err := r.Lookup(ctx)
	if err != nil {
		r.logger.Warn("resume point unavailable, pulling full console buffer",
			"measurement", r.measurement, "error", err)
		return ResumeState{}
	}
	if state.Absent() {
		r.logger.Info("no stored data, pulling full console buffer", "measurement", r.measurement)
		return state
	}
	r.logger.Info("resuming from stored data",
		"measurement", r.measurement,
		"last_stored", state.LastStored.Format(time.RFC3339),
		"local", state.Local.Format(time.RFC3339))
	return state
}
