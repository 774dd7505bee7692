package syncer

import (
	"context"
	"errors"
	"testing"

	"github.com/nerrad567/vantage-sync/internal/archive"
)

type failingPublisher struct{ err error }

func (f failingPublisher) PublishReadings(context.Context, []archive.Reading) error {
	return f.err
}

func (f failingPublisher) PublishStatus(context.Context, Status) error {
	return f.err
}

func TestPublishers_FanOut(t *testing.T) {
	a, b := &fakePublisher{}, &fakePublisher{}
	ps := Publishers{a, b}
	ctx := context.Background()

	readings := []archive.Reading{{Fields: map[string]any{"temp_out": 1.0}}}
	if err := ps.PublishReadings(ctx, readings); err != nil {
		t.Fatalf("PublishReadings() error = %v", err)
	}
	if err := ps.PublishStatus(ctx, Status{State: StateSynced}); err != nil {
		t.Fatalf("PublishStatus() error = %v", err)
	}

	for i, p := range []*fakePublisher{a, b} {
		if len(p.readings) != 1 || len(p.states) != 1 || p.states[0] != StateSynced {
			t.Errorf("publisher %d got readings=%d states=%v", i, len(p.readings), p.states)
		}
	}
}

func TestPublishers_ContinuesPastFailure(t *testing.T) {
	errBroker := errors.New("broker down")
	after := &fakePublisher{}
	ps := Publishers{failingPublisher{err: errBroker}, after}

	err := ps.PublishStatus(context.Background(), Status{State: StateFaulted})
	if !errors.Is(err, errBroker) {
		t.Fatalf("PublishStatus() error = %v, want broker error", err)
	}
	if len(after.states) != 1 {
		t.Error("publisher after the failing one was skipped")
	}
}

func TestPublishers_Empty(t *testing.T) {
	var ps Publishers
	if err := ps.PublishReadings(context.Background(), nil); err != nil {
		t.Errorf("PublishReadings() error = %v", err)
	}
}
