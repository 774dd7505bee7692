package archive

import "time"

// RawRecord is one archive interval as decoded by the console driver:
// raw field name to raw numeric value. Date-typed fields (DateStamp,
// TimeStamp) may carry non-numeric values; they are always skipped.
type RawRecord map[string]any

// Reading is a normalised archive record.
//
// Time carries an explicit location (the console's zone). Fields maps
// canonical names to converted values, which are float64 or int64.
type Reading struct {
	Time   time.Time
	Fields map[string]any
}

// Point is a single row destined for the time-series store.
type Point struct {
	// Measurement is the series (table) name.
	Measurement string

	// Tags are optional low-cardinality labels (may be nil).
	Tags map[string]string

	// Fields holds the values; float64 or int64.
	Fields map[string]any

	// Time is always UTC.
	Time time.Time
}

// StoredPoint is the most recent point read back from the store.
type StoredPoint struct {
	Time   time.Time
	Fields map[string]any
}

// Logger is the optional logging interface used by the normaliser.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
