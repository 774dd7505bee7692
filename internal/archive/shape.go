package archive

import (
	"fmt"
	"maps"
	"strings"
)

// AutoMeasurement is the measurement sentinel that selects narrow shaping.
const AutoMeasurement = "auto"

// ValueField is the single field key of a narrow point.
const ValueField = "value"

// Mode is the storage shape.
type Mode string

// Storage shapes.
const (
	// ModeWide writes one point per reading holding every field.
	ModeWide Mode = "wide"
	// ModeNarrow writes one point per field, named after the field.
	ModeNarrow Mode = "narrow"
)

// IsAutoMeasurement reports whether m is the narrow-mode sentinel.
func IsAutoMeasurement(m string) bool {
	return strings.EqualFold(strings.TrimSpace(m), AutoMeasurement)
}

// Shaper turns Readings into store Points.
type Shaper struct {
	mode        Mode
	measurement string
	tags        map[string]string
}

// NewShaper creates a shaper for the configured measurement.
//
// A measurement of "auto" (any case) selects narrow mode; any other
// non-empty name selects wide mode with that name. tags are attached to
// every point and may be nil.
func NewShaper(measurement string, tags map[string]string) (*Shaper, error) {
	measurement = strings.TrimSpace(measurement)
	if measurement == "" {
		return nil, fmt.Errorf("%w: empty measurement", ErrInvalidMapping)
	}

	s := &Shaper{mode: ModeWide, measurement: measurement}
	if IsAutoMeasurement(measurement) {
		s.mode = ModeNarrow
		s.measurement = ""
	}
	if len(tags) > 0 {
		s.tags = maps.Clone(tags)
	}
	return s, nil
}

// Mode returns the shaper's storage shape.
func (s *Shaper) Mode() Mode {
	return s.mode
}

// Measurement returns the wide-mode measurement name ("" in narrow mode).
func (s *Shaper) Measurement() string {
	return s.measurement
}

// Shape converts one reading into points. All points share the reading's
// instant converted to UTC. A reading with no fields yields no points.
func (s *Shaper) Shape(r Reading) []Point {
	if len(r.Fields) == 0 {
		return nil
	}

	ts := r.Time.UTC()

	if s.mode == ModeWide {
		return []Point{{
			Measurement: s.measurement,
			Tags:        s.pointTags(),
			Fields:      maps.Clone(r.Fields),
			Time:        ts,
		}}
	}

	names := sortedKeys(r.Fields)
	points := make([]Point, 0, len(names))
	for _, name := range names {
		points = append(points, Point{
			Measurement: name,
			Tags:        s.pointTags(),
			Fields:      map[string]any{ValueField: r.Fields[name]},
			Time:        ts,
		})
	}
	return points
}

// ShapeAll shapes readings in order into a single batch.
func (s *Shaper) ShapeAll(readings []Reading) []Point {
	var points []Point
	for _, r := range readings {
		points = append(points, s.Shape(r)...)
	}
	return points
}

func (s *Shaper) pointTags() map[string]string {
	if s.tags == nil {
		return nil
	}
	return maps.Clone(s.tags)
}
