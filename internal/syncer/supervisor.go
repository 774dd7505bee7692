package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/vantage-sync/internal/archive"
	"github.com/nerrad567/vantage-sync/internal/console"
	"github.com/nerrad567/vantage-sync/internal/history"
)

// State is a supervisor state.
type State string

// Supervisor states.
const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateSynced       State = "synced"
	StatePolling      State = "polling"
	StateFaulted      State = "faulted"
)

// Store is the time-series store the supervisor writes to.
type Store interface {
	LatestQuerier

	// WriteBatch writes points in order. A point with the same series and
	// timestamp as a stored one overwrites it.
	WriteBatch(ctx context.Context, points []archive.Point) error
}

// Recorder persists cycle history. Failures are logged, never fatal.
type Recorder interface {
	Record(ctx context.Context, c *history.Cycle) error
}

// Publisher fans readings and status out to live consumers. Failures are
// logged, never fatal.
type Publisher interface {
	PublishReadings(ctx context.Context, readings []archive.Reading) error
	PublishStatus(ctx context.Context, status Status) error
}

// Logger is the logging interface used by the sync engine.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config holds the supervisor's immutable settings.
type Config struct {
	// Address is the console to dial.
	Address console.Address

	// Location is the console's zone.
	Location *time.Location

	// RetryDelay is the wait in faulted before reconnecting.
	RetryDelay time.Duration

	// DriftTolerance is the console clock drift that triggers a warning.
	DriftTolerance time.Duration

	// DriftCorrection sets the console clock when drift exceeds the
	// tolerance and the session supports it. Default: log only.
	DriftCorrection bool
}

// Options carries the supervisor's collaborators.
type Options struct {
	Dialer     console.Dialer
	Store      Store
	Resolver   *Resolver
	Normalizer *archive.Normalizer
	Shaper     *archive.Shaper

	// Scheduler waits between successful cycles. Default: a Scheduler for
	// Config.Address.ArchiveInterval.
	Scheduler Waiter

	// Recorder and Publisher are optional.
	Recorder  Recorder
	Publisher Publisher

	Logger Logger

	// Now and Sleep are clock hooks. Default: time.Now and Sleep.
	Now   func() time.Time
	Sleep SleepFunc
}

// Status is a point-in-time snapshot of the supervisor.
type Status struct {
	State          State      `json:"state"`
	StateSince     time.Time  `json:"state_since"`
	ResumePoint    *time.Time `json:"resume_point,omitempty"`
	LastSuccess    *time.Time `json:"last_success,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
	LastErrorAt    *time.Time `json:"last_error_at,omitempty"`
	ClockDrift     string     `json:"clock_drift,omitempty"`
	Cycles         uint64     `json:"cycles"`
	Faults         uint64     `json:"faults"`
	ReadingsStored uint64     `json:"readings_stored"`
	PointsWritten  uint64     `json:"points_written"`
	RecordsSkipped uint64     `json:"records_skipped"`
}

// Supervisor is the console connection state machine.
type Supervisor struct {
	cfg Config

	dialer     console.Dialer
	store      Store
	resolver   *Resolver
	normalizer *archive.Normalizer
	shaper     *archive.Shaper
	scheduler  Waiter
	recorder   Recorder
	publisher  Publisher
	logger     Logger
	now        func() time.Time
	sleep      SleepFunc

	// Owned by the Run goroutine.
	session console.Session
	resume  ResumeState

	mu     sync.RWMutex
	status Status
}

// New creates a supervisor.
//
// Returns an error if a required collaborator is missing.
func New(cfg Config, opts Options) (*Supervisor, error) {
	switch {
	case opts.Dialer == nil:
		return nil, errors.New("syncer: dialer is required")
	case opts.Store == nil:
		return nil, errors.New("syncer: store is required")
	case opts.Resolver == nil:
		return nil, errors.New("syncer: resolver is required")
	case opts.Normalizer == nil:
		return nil, errors.New("syncer: normalizer is required")
	case opts.Shaper == nil:
		return nil, errors.New("syncer: shaper is required")
	}

	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	s := &Supervisor{
		cfg:        cfg,
		dialer:     opts.Dialer,
		store:      opts.Store,
		resolver:   opts.Resolver,
		normalizer: opts.Normalizer,
		shaper:     opts.Shaper,
		scheduler:  opts.Scheduler,
		recorder:   opts.Recorder,
		publisher:  opts.Publisher,
		logger:     opts.Logger,
		now:        opts.Now,
		sleep:      opts.Sleep,
	}
	if s.logger == nil {
		s.logger = noopLogger{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.sleep == nil {
		s.sleep = Sleep
	}
	if s.scheduler == nil {
		s.scheduler = NewScheduler(cfg.Address.ArchiveInterval, cfg.Location, s.now, s.sleep)
	}
	s.status = Status{State: StateDisconnected, StateSince: s.now().UTC()}

	return s, nil
}

// Status returns a snapshot safe to read from any goroutine.
func (s *Supervisor) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Run resolves the resume point once and then drives the state machine
// until ctx is cancelled. It always returns ctx.Err().
func (s *Supervisor) Run(ctx context.Context) error {
	s.setResume(s.resolver.Resolve(ctx))
	s.setState(ctx, StateConnecting)

	defer func() {
		s.closeSession()
		// The run context is gone; publish the final state on a fresh one.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.setState(shutdownCtx, StateDisconnected)
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := s.connect(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.fault(ctx, err)
			continue
		}
		s.setState(ctx, StateSynced)

		s.setState(ctx, StatePolling)
		if err := s.poll(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.fault(ctx, err)
			continue
		}

		if err := s.scheduler.Wait(ctx); err != nil {
			return ctx.Err()
		}
		s.setState(ctx, StateConnecting)
	}
}

// connect dials if needed, pushes the resume point and checks clock drift.
func (s *Supervisor) connect(ctx context.Context) error {
	if s.session == nil {
		s.logger.Info("connecting to console", "address", s.cfg.Address.String())
		sess, err := s.dialer.Dial(ctx, s.cfg.Address)
		if err != nil {
			return err
		}
		s.session = sess
		s.logger.Info("console connected", "address", s.cfg.Address.String())
	}

	if !s.resume.Absent() {
		if err := s.session.SetArchiveStart(ctx, s.resume.Local); err != nil {
			return fmt.Errorf("setting archive start: %w", err)
		}
		s.logger.Debug("archive start set", "local", s.resume.Local.Format(time.RFC3339))
	}

	return s.checkDrift(ctx)
}

// checkDrift compares the console clock to the local clock.
func (s *Supervisor) checkDrift(ctx context.Context) error {
	consoleTime, err := s.session.CurrentTime(ctx)
	if err != nil {
		return fmt.Errorf("reading console clock: %w", err)
	}

	now := s.now()
	drift := consoleTime.Sub(now)
	s.mu.Lock()
	s.status.ClockDrift = drift.Round(time.Second).String()
	s.mu.Unlock()

	if s.cfg.DriftTolerance <= 0 || absDuration(drift) <= s.cfg.DriftTolerance {
		return nil
	}

	s.logger.Warn("console clock drift",
		"console", consoleTime.Format(time.RFC3339),
		"local", now.In(s.cfg.Location).Format(time.RFC3339),
		"drift", drift.Round(time.Second).String(),
		"tolerance", s.cfg.DriftTolerance.String())

	if !s.cfg.DriftCorrection {
		return nil
	}
	setter, ok := s.session.(console.ClockSetter)
	if !ok {
		s.logger.Warn("console driver cannot set the clock, drift left uncorrected")
		return nil
	}
	if err := setter.SetTime(ctx, now.In(s.cfg.Location)); err != nil {
		return fmt.Errorf("setting console clock: %w", err)
	}
	s.logger.Info("console clock corrected", "drift", drift.Round(time.Second).String())
	return nil
}

// poll runs one pull → normalise → shape → write cycle.
func (s *Supervisor) poll(ctx context.Context) (err error) {
	cycle := history.NewCycle(s.now())
	defer func() {
		s.finishCycle(ctx, cycle, err)
	}()

	records, err := s.session.PullArchive(ctx)
	if err != nil {
		return fmt.Errorf("pulling archive: %w", err)
	}
	cycle.RecordsPulled = len(records)

	readings, skipped := s.normalizer.NormalizeAll(records)
	cycle.RecordsSkipped = skipped
	if skipped > 0 {
		s.logger.Warn("archive records rejected", "skipped", skipped, "pulled", len(records))
	}

	if len(readings) == 0 {
		cycle.Finish(s.now(), history.OutcomeEmpty, nil)
		s.logger.Debug("no new archive records")
		return nil
	}

	points := s.shaper.ShapeAll(readings)
	if err := s.store.WriteBatch(ctx, points); err != nil {
		return fmt.Errorf("%w: %d points: %w", ErrPersistence, len(points), err)
	}

	newest := newestTime(readings)
	cycle.PointsWritten = len(points)
	cycle.NewestReading = &newest
	cycle.Finish(s.now(), history.OutcomeWritten, nil)

	s.setResume(resumeAt(newest, s.cfg.Location))

	s.mu.Lock()
	finished := cycle.FinishedAt
	s.status.LastSuccess = &finished
	s.status.ReadingsStored += uint64(len(readings))
	s.status.PointsWritten += uint64(len(points))
	s.mu.Unlock()

	s.logger.Info("archive batch written",
		"readings", len(readings),
		"points", len(points),
		"newest", newest.Format(time.RFC3339))

	if s.publisher != nil {
		if err := s.publisher.PublishReadings(ctx, readings); err != nil {
			s.logger.Warn("publishing readings failed", "error", err)
		}
	}
	return nil
}

// finishCycle updates counters and records the cycle.
func (s *Supervisor) finishCycle(ctx context.Context, cycle *history.Cycle, err error) {
	if err != nil {
		cycle.Finish(s.now(), history.OutcomeFailed, err)
	}

	s.mu.Lock()
	s.status.Cycles++
	s.status.RecordsSkipped += uint64(cycle.RecordsSkipped)
	s.mu.Unlock()

	if s.recorder == nil {
		return
	}
	if recErr := s.recorder.Record(ctx, cycle); recErr != nil {
		s.logger.Warn("recording sync cycle failed", "cycle_id", cycle.ID, "error", recErr)
	}
}

// fault tears the session down, waits the retry delay and re-enters
// connecting.
func (s *Supervisor) fault(ctx context.Context, err error) {
	s.closeSession()

	at := s.now().UTC()
	s.mu.Lock()
	s.status.Faults++
	s.status.LastError = err.Error()
	s.status.LastErrorAt = &at
	s.mu.Unlock()
	s.setState(ctx, StateFaulted)

	s.logger.Warn("console sync faulted",
		"kind", faultKind(err),
		"error", err,
		"retry_in", s.cfg.RetryDelay.String())

	if sleepErr := s.sleep(ctx, s.cfg.RetryDelay); sleepErr != nil {
		return
	}
	s.setState(ctx, StateConnecting)
}

func (s *Supervisor) closeSession() {
	if s.session == nil {
		return
	}
	if err := s.session.Close(); err != nil {
		s.logger.Debug("closing console session", "error", err)
	}
	s.session = nil
}

func (s *Supervisor) setResume(r ResumeState) {
	s.resume = r
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.Absent() {
		s.status.ResumePoint = nil
		return
	}
	ts := r.LastStored
	s.status.ResumePoint = &ts
}

// setState records a transition and publishes the new status.
func (s *Supervisor) setState(ctx context.Context, st State) {
	s.mu.Lock()
	if s.status.State == st {
		s.mu.Unlock()
		return
	}
	prev := s.status.State
	s.status.State = st
	s.status.StateSince = s.now().UTC()
	snapshot := s.status
	s.mu.Unlock()

	s.logger.Debug("state transition", "from", string(prev), "to", string(st))

	if s.publisher != nil {
		if err := s.publisher.PublishStatus(ctx, snapshot); err != nil {
			s.logger.Debug("publishing status failed", "error", err)
		}
	}
}

// faultKind names the error class for logs.
func faultKind(err error) string {
	switch {
	case errors.Is(err, console.ErrDeviceUnavailable):
		return "device_unavailable"
	case errors.Is(err, console.ErrTransport):
		return "transport"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	default:
		return "unexpected"
	}
}

func newestTime(readings []archive.Reading) time.Time {
	var newest time.Time
	for _, r := range readings {
		if r.Time.After(newest) {
			newest = r.Time
		}
	}
	return newest
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
