package console

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/nerrad567/vantage-sync/internal/archive"
)

// ArchiveCapacity is the number of records a Vantage console buffers.
const ArchiveCapacity = 2560

// SimulatorOptions configures a Simulator.
type SimulatorOptions struct {
	// Location is the console's time zone. Default: time.Local.
	Location *time.Location

	// Now is the reference wall clock. Default: time.Now.
	Now func() time.Time

	// ClockOffset is the console clock's drift from Now.
	ClockOffset time.Duration

	// Capacity is the archive ring size. Default: ArchiveCapacity.
	Capacity int

	// FailDials makes the next n Dial calls fail with ErrDeviceUnavailable.
	FailDials int

	// FailPulls makes the next n PullArchive calls fail with ErrTransport.
	FailPulls int
}

// Simulator is a deterministic synthetic console. Its archive holds one
// record per interval boundary up to the console clock, with values derived
// from the slot time so repeated pulls return identical data.
type Simulator struct {
	mu        sync.Mutex
	loc       *time.Location
	now       func() time.Time
	offset    time.Duration
	capacity  int
	failDials int
	failPulls int
	dials     int
}

// NewSimulator creates a simulated console.
func NewSimulator(opts SimulatorOptions) *Simulator {
	s := &Simulator{
		loc:       opts.Location,
		now:       opts.Now,
		offset:    opts.ClockOffset,
		capacity:  opts.Capacity,
		failDials: opts.FailDials,
		failPulls: opts.FailPulls,
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.capacity <= 0 {
		s.capacity = ArchiveCapacity
	}
	return s
}

// Dials returns the number of Dial attempts, including failed ones.
func (s *Simulator) Dials() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dials
}

// Dial implements Dialer.
func (s *Simulator) Dial(ctx context.Context, addr Address) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.dials++
	if s.failDials > 0 {
		s.failDials--
		return nil, fmt.Errorf("%w: %s did not wake", ErrDeviceUnavailable, addr)
	}
	if addr.ArchiveInterval <= 0 {
		return nil, fmt.Errorf("%w: invalid archive interval %d", ErrDeviceUnavailable, addr.ArchiveInterval)
	}

	return &simSession{
		sim:      s,
		interval: time.Duration(addr.ArchiveInterval) * time.Minute,
	}, nil
}

// consoleNow returns the simulated console clock.
func (s *Simulator) consoleNow() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now().Add(s.offset).In(s.loc)
}

type simSession struct {
	sim      *Simulator
	interval time.Duration

	mu     sync.Mutex
	start  time.Time
	closed bool
}

func (ss *simSession) checkOpen() error {
	if ss.closed {
		return fmt.Errorf("%w: session closed", ErrTransport)
	}
	return nil
}

func (ss *simSession) CurrentTime(ctx context.Context) (time.Time, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if err := ss.checkOpen(); err != nil {
		return time.Time{}, err
	}
	// The console clock has one-second resolution.
	return ss.sim.consoleNow().Truncate(time.Second), nil
}

func (ss *simSession) SetArchiveStart(ctx context.Context, t time.Time) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if err := ss.checkOpen(); err != nil {
		return err
	}
	ss.start = t
	return nil
}

func (ss *simSession) SetTime(ctx context.Context, t time.Time) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if err := ss.checkOpen(); err != nil {
		return err
	}

	ss.sim.mu.Lock()
	ss.sim.offset = t.Sub(ss.sim.now())
	ss.sim.mu.Unlock()
	return nil
}

func (ss *simSession) PullArchive(ctx context.Context) ([]archive.RawRecord, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if err := ss.checkOpen(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ss.sim.mu.Lock()
	if ss.sim.failPulls > 0 {
		ss.sim.failPulls--
		ss.sim.mu.Unlock()
		return nil, fmt.Errorf("%w: archive page CRC mismatch", ErrTransport)
	}
	capacity := ss.sim.capacity
	ss.sim.mu.Unlock()

	latest := alignDown(ss.sim.consoleNow(), ss.interval)

	var slots []time.Time
	for k := 0; k < capacity; k++ {
		t := latest.Add(-time.Duration(k) * ss.interval)
		if !ss.start.IsZero() && !t.After(ss.start) {
			break
		}
		slots = append(slots, t)
	}

	records := make([]archive.RawRecord, 0, len(slots))
	for i := len(slots) - 1; i >= 0; i-- {
		records = append(records, synthesize(slots[i]))
	}
	return records, nil
}

func (ss *simSession) Close() error {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.closed = true
	return nil
}

// alignDown returns the latest interval boundary at or before t, counted in
// minutes since local midnight.
func alignDown(t time.Time, interval time.Duration) time.Time {
	step := int(interval / time.Minute)
	if step <= 0 {
		step = 1
	}
	minutes := t.Hour()*60 + t.Minute()
	aligned := minutes - minutes%step
	return time.Date(t.Year(), t.Month(), t.Day(), aligned/60, aligned%60, 0, 0, t.Location())
}

// synthesize builds the raw record for one archive slot.
func synthesize(t time.Time) archive.RawRecord {
	minuteOfDay := float64(t.Hour()*60 + t.Minute())
	phase := 2 * math.Pi * minuteOfDay / 1440
	day := float64(t.YearDay())

	tempOut := round1(55 + 12*math.Sin(phase-math.Pi/2) + 3*math.Sin(day/58))
	humOut := math.Round(170 - 60*math.Sin(phase-math.Pi/2))
	solar := math.Max(0, math.Round(-800*math.Cos(phase)))

	seed := int(minuteOfDay) + int(day)*31
	windAvg := float64(seed % 11)
	windHi := windAvg + float64(seed%5)
	windHiDir := float64(seed % 16)
	if windHi == 0 {
		windHiDir = 255 // calm: the console reports no direction
	}

	return archive.RawRecord{
		"Year":           t.Year(),
		"Month":          int(t.Month()),
		"Day":            t.Day(),
		"Hour":           t.Hour(),
		"Min":            t.Minute(),
		"DateStamp":      t.Format("2006-01-02"),
		"TimeStamp":      t.Format("15:04"),
		"TempOut":        tempOut,
		"TempOutHi":      tempOut + 0.4,
		"TempOutLow":     tempOut - 0.3,
		"TempIn":         round1(69 + math.Sin(phase)),
		"HumOut":         humOut,
		"HumIn":          110.0,
		"Barometer":      round3(29.92 + 0.15*math.Sin(day/3)),
		"RainRate":       0.0,
		"RainRateHi":     0.0,
		"WindSamps":      117,
		"WindAvg":        windAvg,
		"WindHi":         windHi,
		"WindHiDir":      windHiDir,
		"WindAvgDir":     float64((seed + 1) % 16),
		"SolarRad":       solar,
		"SolarRadHi":     solar,
		"UV":             round1(solar / 100),
		"UVHi":           round1(solar / 90),
		"ETHour":         math.Round(solar / 160),
		"ForecastRuleNo": 44,
		"RecType":        0,
	}
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
