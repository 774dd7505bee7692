package archive

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Normalizer converts RawRecords into Readings using a Mapper.
type Normalizer struct {
	mapper *Mapper
	loc    *time.Location
	logger Logger
}

// NewNormalizer creates a normaliser.
//
// Parameters:
//   - mapper: validated field table
//   - loc: the console's time zone; timestamps are built in this zone
//   - logger: optional (nil discards)
func NewNormalizer(mapper *Mapper, loc *time.Location, logger Logger) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Normalizer{mapper: mapper, loc: loc, logger: logger}
}

// Location returns the zone readings are timestamped in.
func (n *Normalizer) Location() *time.Location {
	return n.loc
}

// Normalize converts one raw record into a Reading.
//
// Fields are processed in sorted order so errors are deterministic.
// Returns one of the archive data-quality errors if the record is unusable.
func (n *Normalizer) Normalize(rec RawRecord) (Reading, error) {
	fields := make(map[string]any, len(rec))
	stamp := make(map[string]float64, len(timeFields))

	for _, key := range sortedKeys(rec) {
		raw := rec[key]

		rule, ok := n.mapper.Lookup(key)
		if !ok {
			if n.mapper.UnmappedPolicy() == UnmappedSkip {
				n.logger.Warn("dropping unmapped archive field", "field", key)
				continue
			}
			return Reading{}, fmt.Errorf("%w: %q", ErrUnmappedField, key)
		}

		switch rule.Kind {
		case KindSkip:
			n.logger.Debug("skipping archive field", "field", key)
			continue
		case KindTime:
			v, ok := toFloat(raw)
			if !ok {
				return Reading{}, fmt.Errorf("%w: time field %s is %T", ErrInvalidValue, key, raw)
			}
			stamp[key] = v
			continue
		}

		value, keep, err := n.mapper.Convert(rule, raw)
		if err != nil {
			return Reading{}, fmt.Errorf("field %s: %w", key, err)
		}
		if !keep {
			n.logger.Debug("omitting field with no reading", "field", key)
			continue
		}
		fields[rule.Name] = value
	}

	ts, err := n.timestamp(stamp)
	if err != nil {
		return Reading{}, err
	}

	return Reading{Time: ts, Fields: fields}, nil
}

// NormalizeAll normalises records in order. Records that fail are logged
// and dropped; the number dropped is returned alongside the readings.
func (n *Normalizer) NormalizeAll(records []RawRecord) ([]Reading, int) {
	readings := make([]Reading, 0, len(records))
	skipped := 0
	for i, rec := range records {
		r, err := n.Normalize(rec)
		if err != nil {
			skipped++
			n.logger.Warn("skipping archive record", "index", i, "error", err)
			continue
		}
		readings = append(readings, r)
	}
	return readings, skipped
}

// timestamp synthesises the record time from its five sub-fields.
func (n *Normalizer) timestamp(stamp map[string]float64) (time.Time, error) {
	var missing []string
	for _, f := range timeFields {
		if _, ok := stamp[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return time.Time{}, fmt.Errorf("%w: %s", ErrMissingTimeFields, strings.Join(missing, ", "))
	}

	parts := make(map[string]int, len(timeFields))
	for _, f := range timeFields {
		v := stamp[f]
		if v != math.Trunc(v) {
			return time.Time{}, fmt.Errorf("%w: %s=%v is not a whole number", ErrInvalidValue, f, v)
		}
		parts[f] = int(v)
	}

	year, month, day := parts[FieldYear], parts[FieldMonth], parts[FieldDay]
	hour, minute := parts[FieldHour], parts[FieldMinute]

	switch {
	case year < 1970 || year > 9999:
		return time.Time{}, fmt.Errorf("%w: year %d", ErrInvalidValue, year)
	case month < 1 || month > 12:
		return time.Time{}, fmt.Errorf("%w: month %d", ErrInvalidValue, month)
	case hour < 0 || hour > 23:
		return time.Time{}, fmt.Errorf("%w: hour %d", ErrInvalidValue, hour)
	case minute < 0 || minute > 59:
		return time.Time{}, fmt.Errorf("%w: minute %d", ErrInvalidValue, minute)
	}

	ts := time.Date(year, time.Month(month), day, hour, minute, 0, 0, n.loc)
	// time.Date normalises overflow (Feb 30 → Mar 2); reject instead.
	if day < 1 || ts.Day() != day || int(ts.Month()) != month {
		return time.Time{}, fmt.Errorf("%w: day %d of %04d-%02d", ErrInvalidValue, day, year, month)
	}
	return ts, nil
}
