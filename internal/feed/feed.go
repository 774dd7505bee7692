// Package feed publishes stored readings and supervisor status to MQTT.
//
// Publishing goes through a circuit breaker: after a run of consecutive
// failures the feed stops talking to the broker and drops messages until
// the breaker's timeout elapses, so a dead broker costs one fast check per
// cycle instead of a publish timeout per reading. Dropped messages are not
// queued; the time-series store remains the record of truth.
package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/nerrad567/vantage-sync/internal/archive"
	"github.com/nerrad567/vantage-sync/internal/infrastructure/mqtt"
	"github.com/nerrad567/vantage-sync/internal/syncer"
)

// Breaker defaults.
const (
	defaultTripAfter      = 3
	defaultBreakerTimeout = 60 * time.Second
)

// Broker is the publishing side of the MQTT client.
type Broker interface {
	PublishJSON(topic string, v any, retained bool) error
}

// Logger is the logging interface used by the feed.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Config wires a Feed.
type Config struct {
	Broker  Broker
	Topics  mqtt.Topics
	Station string

	// TripAfter consecutive failures open the breaker. Default 3.
	TripAfter uint32

	// BreakerTimeout is how long the breaker stays open before letting a
	// probe through. Default 60s.
	BreakerTimeout time.Duration

	Logger Logger
}

// ReadingMessage is the JSON payload of the reading and latest topics.
type ReadingMessage struct {
	Station string         `json:"station"`
	Time    time.Time      `json:"time"`
	Unix    int64          `json:"unix"`
	Fields  map[string]any `json:"fields"`
}

// Stats summarises feed activity for the status API.
type Stats struct {
	Breaker   string `json:"breaker"`
	Published uint64 `json:"published"`
	Dropped   uint64 `json:"dropped"`
	Failed    uint64 `json:"failed"`
}

// Feed implements syncer.Publisher.
type Feed struct {
	broker  Broker
	topics  mqtt.Topics
	station string
	breaker *gobreaker.CircuitBreaker
	logger  Logger

	mu         sync.Mutex
	lastStatus *syncer.Status
	stats      Stats
}

var _ syncer.Publisher = (*Feed)(nil)

// New creates a Feed.
func New(cfg Config) (*Feed, error) {
	if cfg.Broker == nil {
		return nil, ErrNoBroker
	}
	if cfg.TripAfter == 0 {
		cfg.TripAfter = defaultTripAfter
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = defaultBreakerTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = noopLogger{}
	}

	f := &Feed{
		broker:  cfg.Broker,
		topics:  cfg.Topics,
		station: cfg.Station,
		logger:  cfg.Logger,
	}

	tripAfter := cfg.TripAfter
	f.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "mqtt-feed",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= tripAfter
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			f.logger.Warn("feed circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return f, nil
}

// PublishReadings publishes every reading to the reading topic in order,
// then the newest one, retained, to the latest topic.
func (f *Feed) PublishReadings(ctx context.Context, readings []archive.Reading) error {
	if len(readings) == 0 {
		return nil
	}

	newest := readings[0]
	for _, r := range readings {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := f.publish(f.topics.Reading(), f.readingMessage(r), false); err != nil {
			return err
		}
		if r.Time.After(newest.Time) {
			newest = r
		}
	}

	return f.publish(f.topics.Latest(), f.readingMessage(newest), true)
}

// PublishStatus publishes the supervisor status, retained.
func (f *Feed) PublishStatus(ctx context.Context, status syncer.Status) error {
	f.mu.Lock()
	f.lastStatus = &status
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return f.publish(f.topics.Status(), status, true)
}

// Republish sends the last known status again. Register it as the MQTT
// on-connect callback so a reconnect replaces the broker's retained
// offline will.
func (f *Feed) Republish() {
	f.mu.Lock()
	status := f.lastStatus
	f.mu.Unlock()

	if status == nil {
		return
	}
	if err := f.publish(f.topics.Status(), *status, true); err != nil {
		f.logger.Warn("republishing status failed", "error", err)
	}
}

// Stats returns a snapshot of feed counters.
func (f *Feed) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.stats
	s.Breaker = f.breaker.State().String()
	return s
}

// publish sends one message through the breaker. While the breaker is
// open the message is dropped and nil returned.
func (f *Feed) publish(topic string, v any, retained bool) error {
	_, err := f.breaker.Execute(func() (any, error) {
		return nil, f.broker.PublishJSON(topic, v, retained)
	})

	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case err == nil:
		f.stats.Published++
		return nil
	case err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests: //nolint:errorlint // Sentinels returned unwrapped
		f.stats.Dropped++
		f.logger.Debug("feed message dropped", "topic", topic, "reason", err)
		return nil
	default:
		f.stats.Failed++
		return fmt.Errorf("%w: %s: %w", ErrPublish, topic, err)
	}
}

func (f *Feed) readingMessage(r archive.Reading) ReadingMessage {
	t := r.Time.UTC()
	return ReadingMessage{
		Station: f.station,
		Time:    t,
		Unix:    t.Unix(),
		Fields:  r.Fields,
	}
}
