package console

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/vantage-sync/internal/archive"
)

var simAddr = Address{Host: "192.168.1.50", Port: 22222, ArchiveInterval: 5}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func dialSim(t *testing.T, sim *Simulator) Session {
	t.Helper()
	sess, err := sim.Dial(context.Background(), simAddr)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { sess.Close() })
	return sess
}

func TestAddress_String(t *testing.T) {
	if got := simAddr.String(); got != "192.168.1.50:22222" {
		t.Errorf("String() = %q", got)
	}
}

func TestNewDialer(t *testing.T) {
	d, err := NewDialer(DriverSimulator, time.UTC)
	if err != nil {
		t.Fatalf("NewDialer() error = %v", err)
	}
	if _, ok := d.(*Simulator); !ok {
		t.Errorf("NewDialer() = %T, want *Simulator", d)
	}

	if _, err := NewDialer("serial", time.UTC); !errors.Is(err, ErrUnknownDriver) {
		t.Errorf("NewDialer(serial) error = %v, want ErrUnknownDriver", err)
	}
}

func TestSimulator_PullFullBuffer(t *testing.T) {
	now := time.Date(2024, 3, 10, 10, 7, 32, 0, time.UTC)
	sim := NewSimulator(SimulatorOptions{Location: time.UTC, Now: fixedClock(now), Capacity: 12})
	sess := dialSim(t, sim)

	records, err := sess.PullArchive(context.Background())
	if err != nil {
		t.Fatalf("PullArchive() error = %v", err)
	}
	if len(records) != 12 {
		t.Fatalf("PullArchive() = %d records, want 12", len(records))
	}

	last := records[len(records)-1]
	if last["Hour"] != 10 || last["Min"] != 5 {
		t.Errorf("newest record = %v:%v, want 10:05", last["Hour"], last["Min"])
	}
	first := records[0]
	if first["Hour"] != 9 || first["Min"] != 10 {
		t.Errorf("oldest record = %v:%v, want 09:10", first["Hour"], first["Min"])
	}
}

func TestSimulator_ArchiveStart(t *testing.T) {
	now := time.Date(2024, 3, 10, 10, 7, 32, 0, time.UTC)
	sim := NewSimulator(SimulatorOptions{Location: time.UTC, Now: fixedClock(now)})
	sess := dialSim(t, sim)
	ctx := context.Background()

	if err := sess.SetArchiveStart(ctx, time.Date(2024, 3, 10, 9, 50, 0, 0, time.UTC)); err != nil {
		t.Fatalf("SetArchiveStart() error = %v", err)
	}
	records, err := sess.PullArchive(ctx)
	if err != nil {
		t.Fatalf("PullArchive() error = %v", err)
	}

	// 09:55, 10:00, 10:05; the start itself is excluded.
	if len(records) != 3 {
		t.Fatalf("PullArchive() = %d records, want 3", len(records))
	}
	if records[0]["Min"] != 55 {
		t.Errorf("first record minute = %v, want 55", records[0]["Min"])
	}

	// Nothing newer than the latest slot.
	sess.SetArchiveStart(ctx, time.Date(2024, 3, 10, 10, 5, 0, 0, time.UTC))
	records, _ = sess.PullArchive(ctx)
	if len(records) != 0 {
		t.Errorf("PullArchive() = %d records, want 0", len(records))
	}
}

func TestSimulator_Deterministic(t *testing.T) {
	now := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	a := dialSim(t, NewSimulator(SimulatorOptions{Location: time.UTC, Now: fixedClock(now), Capacity: 4}))
	b := dialSim(t, NewSimulator(SimulatorOptions{Location: time.UTC, Now: fixedClock(now), Capacity: 4}))

	ra, _ := a.PullArchive(context.Background())
	rb, _ := b.PullArchive(context.Background())
	for i := range ra {
		if ra[i]["TempOut"] != rb[i]["TempOut"] || ra[i]["Barometer"] != rb[i]["Barometer"] {
			t.Errorf("record %d differs between identical simulators", i)
		}
	}
}

func TestSimulator_RecordsNormalize(t *testing.T) {
	now := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	sess := dialSim(t, NewSimulator(SimulatorOptions{Location: time.UTC, Now: fixedClock(now), Capacity: 288}))

	records, err := sess.PullArchive(context.Background())
	if err != nil {
		t.Fatalf("PullArchive() error = %v", err)
	}

	mapper, err := archive.NewMapper(archive.MapperOptions{})
	if err != nil {
		t.Fatalf("NewMapper() error = %v", err)
	}
	readings, skipped := archive.NewNormalizer(mapper, time.UTC, nil).NormalizeAll(records)
	if skipped != 0 {
		t.Errorf("NormalizeAll() skipped %d simulator records", skipped)
	}
	if len(readings) != len(records) {
		t.Errorf("readings = %d, want %d", len(readings), len(records))
	}
}

func TestSimulator_ClockOffsetAndSetTime(t *testing.T) {
	now := time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)
	sim := NewSimulator(SimulatorOptions{Location: time.UTC, Now: fixedClock(now), ClockOffset: 3 * time.Minute})
	sess := dialSim(t, sim)
	ctx := context.Background()

	got, err := sess.CurrentTime(ctx)
	if err != nil {
		t.Fatalf("CurrentTime() error = %v", err)
	}
	if want := now.Add(3 * time.Minute); !got.Equal(want) {
		t.Errorf("CurrentTime() = %v, want %v", got, want)
	}

	setter, ok := sess.(ClockSetter)
	if !ok {
		t.Fatal("simulator session does not implement ClockSetter")
	}
	if err := setter.SetTime(ctx, now); err != nil {
		t.Fatalf("SetTime() error = %v", err)
	}
	got, _ = sess.CurrentTime(ctx)
	if !got.Equal(now) {
		t.Errorf("CurrentTime() after SetTime = %v, want %v", got, now)
	}
}

func TestSimulator_FaultInjection(t *testing.T) {
	sim := NewSimulator(SimulatorOptions{FailDials: 1, FailPulls: 1})
	ctx := context.Background()

	if _, err := sim.Dial(ctx, simAddr); !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("first Dial() error = %v, want ErrDeviceUnavailable", err)
	}
	sess, err := sim.Dial(ctx, simAddr)
	if err != nil {
		t.Fatalf("second Dial() error = %v", err)
	}
	defer sess.Close()

	if _, err := sess.PullArchive(ctx); !errors.Is(err, ErrTransport) {
		t.Errorf("first PullArchive() error = %v, want ErrTransport", err)
	}
	if _, err := sess.PullArchive(ctx); err != nil {
		t.Errorf("second PullArchive() error = %v", err)
	}
	if sim.Dials() != 2 {
		t.Errorf("Dials() = %d, want 2", sim.Dials())
	}
}

func TestSimulator_ClosedSession(t *testing.T) {
	sim := NewSimulator(SimulatorOptions{})
	sess, err := sim.Dial(context.Background(), simAddr)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	sess.Close()

	if _, err := sess.PullArchive(context.Background()); !errors.Is(err, ErrTransport) {
		t.Errorf("PullArchive() after Close error = %v, want ErrTransport", err)
	}
	if _, err := sess.CurrentTime(context.Background()); !errors.Is(err, ErrTransport) {
		t.Errorf("CurrentTime() after Close error = %v, want ErrTransport", err)
	}
}

func TestAlignDown(t *testing.T) {
	tests := []struct {
		name     string
		in       time.Time
		interval time.Duration
		want     time.Time
	}{
		{"five minutes", time.Date(2024, 1, 1, 10, 7, 32, 0, time.UTC), 5 * time.Minute, time.Date(2024, 1, 1, 10, 5, 0, 0, time.UTC)},
		{"on boundary", time.Date(2024, 1, 1, 10, 10, 0, 0, time.UTC), 5 * time.Minute, time.Date(2024, 1, 1, 10, 10, 0, 0, time.UTC)},
		{"hourly", time.Date(2024, 1, 1, 10, 59, 0, 0, time.UTC), time.Hour, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)},
		{"two hours", time.Date(2024, 1, 1, 11, 30, 0, 0, time.UTC), 2 * time.Hour, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := alignDown(tt.in, tt.interval); !got.Equal(tt.want) {
				t.Errorf("alignDown() = %v, want %v", got, tt.want)
			}
		})
	}
}
