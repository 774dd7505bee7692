package syncer

import (
	"context"
	"time"
)

// SleepFunc blocks for d or until ctx is cancelled.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the real SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Waiter blocks until the next poll is due.
type Waiter interface {
	Wait(ctx context.Context) error
}

// Scheduler aligns polls to archive-interval boundaries.
//
// Boundaries are counted in minutes since local midnight, so a 5 minute
// interval polls at :00, :05, :10 and a 120 minute interval on even hours.
type Scheduler struct {
	interval int
	loc      *time.Location
	now      func() time.Time
	sleep    SleepFunc
}

// NewScheduler creates a scheduler.
//
// Parameters:
//   - intervalMinutes: the console archive interval
//   - loc: the zone boundaries are computed in
//   - now, sleep: clock and sleep hooks (nil selects time.Now and Sleep)
func NewScheduler(intervalMinutes int, loc *time.Location, now func() time.Time, sleep SleepFunc) *Scheduler {
	if intervalMinutes <= 0 {
		intervalMinutes = 1
	}
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	if sleep == nil {
		sleep = Sleep
	}
	return &Scheduler{interval: intervalMinutes, loc: loc, now: now, sleep: sleep}
}

// Plan returns the sleeps Wait performs from now: first to the start of
// the next minute, then one minute at a time until the minute lies on an
// interval boundary.
func Plan(now time.Time, intervalMinutes int) []time.Duration {
	if intervalMinutes <= 0 {
		intervalMinutes = 1
	}

	next := nextMinute(now)
	steps := []time.Duration{next.Sub(now)}
	for !onBoundary(next, intervalMinutes) {
		steps = append(steps, time.Minute)
		next = next.Add(time.Minute)
	}
	return steps
}

// Wait sleeps until the next boundary. The clock is re-read after every
// sleep so oversleeping never accumulates.
func (s *Scheduler) Wait(ctx context.Context) error {
	now := s.now().In(s.loc)
	if err := s.sleep(ctx, nextMinute(now).Sub(now)); err != nil {
		return err
	}

	for {
		now = s.now().In(s.loc)
		// Timers never fire early, but tolerate a clock read a hair before
		// the minute it was meant to reach.
		rounded := now.Round(time.Second)
		if onBoundary(rounded, s.interval) {
			return nil
		}
		if err := s.sleep(ctx, nextMinute(rounded).Sub(now)); err != nil {
			return err
		}
	}
}

// nextMinute returns the start of the minute after t.
func nextMinute(t time.Time) time.Time {
	start := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, t.Location())
	return start.Add(time.Minute)
}

func onBoundary(t time.Time, intervalMinutes int) bool {
	return (t.Hour()*60+t.Minute())%intervalMinutes == 0
}
