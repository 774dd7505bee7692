package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/vantage-sync/internal/archive"
	"github.com/nerrad567/vantage-sync/internal/console"
	"github.com/nerrad567/vantage-sync/internal/history"
)

// ─── Console fakes ─────────────────────────────────────────────────

type fakeSession struct {
	mu          sync.Mutex
	records     []archive.RawRecord
	pullErr     error
	clock       time.Time
	starts      []time.Time
	setTimes    []time.Time
	pulls       int
	closed      bool
	canSetClock bool
}

func (f *fakeSession) CurrentTime(context.Context) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clock, nil
}

func (f *fakeSession) SetArchiveStart(_ context.Context, t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, t)
	return nil
}

func (f *fakeSession) PullArchive(context.Context) ([]archive.RawRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pulls++
	if f.pullErr != nil {
		err := f.pullErr
		f.pullErr = nil
		return nil, err
	}
	return f.records, nil
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// clockSession adds console.ClockSetter.
type clockSession struct {
	*fakeSession
}

func (c clockSession) SetTime(_ context.Context, t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setTimes = append(c.setTimes, t)
	c.clock = t
	return nil
}

// fakeDialer returns errs in order, then sessions in order.
type fakeDialer struct {
	mu       sync.Mutex
	errs     []error
	sessions []console.Session
	dials    int
	addrs    []console.Address
}

func (d *fakeDialer) Dial(_ context.Context, addr console.Address) (console.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	d.addrs = append(d.addrs, addr)
	if len(d.errs) > 0 {
		err := d.errs[0]
		d.errs = d.errs[1:]
		return nil, err
	}
	sess := d.sessions[0]
	if len(d.sessions) > 1 {
		d.sessions = d.sessions[1:]
	}
	return sess, nil
}

// ─── Store fakes ───────────────────────────────────────────────────

type fakeStore struct {
	mu       sync.Mutex
	latest   *archive.StoredPoint
	queryErr error
	writeErr []error
	batches  [][]archive.Point
	queried  []string

	// onWrite runs after every successful write.
	onWrite func()
}

func (s *fakeStore) QueryLatest(_ context.Context, measurement string) (*archive.StoredPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queried = append(s.queried, measurement)
	return s.latest, s.queryErr
}

func (s *fakeStore) WriteBatch(_ context.Context, points []archive.Point) error {
	s.mu.Lock()
	if len(s.writeErr) > 0 {
		err := s.writeErr[0]
		s.writeErr = s.writeErr[1:]
		s.mu.Unlock()
		return err
	}
	s.batches = append(s.batches, points)
	hook := s.onWrite
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	return nil
}

func (s *fakeStore) writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

// ─── Collaborator fakes ────────────────────────────────────────────

type fakeRecorder struct {
	mu     sync.Mutex
	cycles []history.Cycle
}

func (r *fakeRecorder) Record(_ context.Context, c *history.Cycle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cycles = append(r.cycles, *c)
	return nil
}

type fakePublisher struct {
	mu       sync.Mutex
	readings [][]archive.Reading
	states   []State
}

func (p *fakePublisher) PublishReadings(_ context.Context, readings []archive.Reading) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readings = append(p.readings, readings)
	return nil
}

func (p *fakePublisher) PublishStatus(_ context.Context, status Status) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states = append(p.states, status.State)
	return nil
}

// sleepRecorder records sleeps without blocking.
type sleepRecorder struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.sleeps = append(r.sleeps, d)
	r.mu.Unlock()
	return ctx.Err()
}

// waiterFunc adapts a function to Waiter.
type waiterFunc func(ctx context.Context) error

func (f waiterFunc) Wait(ctx context.Context) error { return f(ctx) }

// ─── Records ───────────────────────────────────────────────────────

func rawAt(t time.Time, tempF float64) archive.RawRecord {
	return archive.RawRecord{
		"Year":      t.Year(),
		"Month":     int(t.Month()),
		"Day":       t.Day(),
		"Hour":      t.Hour(),
		"Min":       t.Minute(),
		"TempOut":   tempF,
		"HumOut":    128,
		"Barometer": 29.92,
	}
}
