package archive

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nerrad567/vantage-sync/internal/units"
)

// Kind identifies how a raw field is converted.
type Kind int

// Conversion kinds.
const (
	KindSkip               Kind = iota // dropped (diagnostics, redundant timestamps, sensor arrays)
	KindIdentity                       // copied unchanged
	KindTemperatureF                   // °F → °C
	KindTemperatureF10                 // tenths °F → °C
	KindRainClicks                     // clicks → mm
	KindPressure                       // inHg → Pa
	KindPercent                        // 0-255 code → integer %
	KindWindSpeed                      // mph → km/h or m/s
	KindWindDirection                  // compass code → degrees
	KindEvapotranspiration             // milli-inches → mm
	KindTime                           // timestamp sub-field
)

var kindNames = map[Kind]string{
	KindSkip:               "skip",
	KindIdentity:           "identity",
	KindTemperatureF:       "temperature_f",
	KindTemperatureF10:     "temperature_f10",
	KindRainClicks:         "rain_clicks",
	KindPressure:           "pressure",
	KindPercent:            "percent",
	KindWindSpeed:          "wind_speed",
	KindWindDirection:      "wind_direction",
	KindEvapotranspiration: "evapotranspiration",
	KindTime:               "time",
}

// String returns the kind's name.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Timestamp sub-fields. They are consumed into Reading.Time.
const (
	FieldYear   = "Year"
	FieldMonth  = "Month"
	FieldDay    = "Day"
	FieldHour   = "Hour"
	FieldMinute = "Min"
)

// timeFields lists the timestamp sub-fields in synthesis order.
var timeFields = []string{FieldYear, FieldMonth, FieldDay, FieldHour, FieldMinute}

// vantageRules is the built-in table for every field the Vantage archive
// parser emits, including the derived HeatIndex, DewPoint and WindChill.
var vantageRules = map[string]Kind{
	"TempOut":        KindTemperatureF,
	"TempOutHi":      KindTemperatureF,
	"TempOutLow":     KindTemperatureF,
	"TempIn":         KindTemperatureF,
	"HeatIndex":      KindTemperatureF,
	"DewPoint":       KindTemperatureF,
	"WindChill":      KindTemperatureF,
	"RainRate":       KindRainClicks,
	"RainRateHi":     KindRainClicks,
	"Barometer":      KindPressure,
	"HumIn":          KindPercent,
	"HumOut":         KindPercent,
	"WindAvg":        KindWindSpeed,
	"WindHi":         KindWindSpeed,
	"WindAvgDir":     KindWindDirection,
	"WindHiDir":      KindWindDirection,
	"ETHour":         KindEvapotranspiration,
	"SolarRad":       KindIdentity, // W/m², average over the archive period
	"SolarRadHi":     KindIdentity,
	"UV":             KindIdentity,
	"UVHi":           KindIdentity,
	"WindSamps":      KindSkip,
	"ForecastRuleNo": KindSkip,
	"RecType":        KindSkip,
	"LeafTemps":      KindSkip,
	"LeafWetness":    KindSkip,
	"SoilTemps":      KindSkip,
	"SoilMoist":      KindSkip,
	"ExtraHum":       KindSkip,
	"ExtraTemps":     KindSkip,
	"DateStamp":      KindSkip,
	"TimeStamp":      KindSkip,
	"DateStampUtc":   KindSkip,
	FieldYear:        KindTime,
	FieldMonth:       KindTime,
	FieldDay:         KindTime,
	FieldHour:        KindTime,
	FieldMinute:      KindTime,
}

// Rule is the resolved mapping for one raw field.
type Rule struct {
	Kind Kind
	// Name is the canonical output name (empty for skipped and time fields).
	Name string
}

// Skip reports whether the field is dropped from the reading.
func (r Rule) Skip() bool {
	return r.Kind == KindSkip
}

// WindUnit selects the wind speed output unit.
type WindUnit string

// Wind speed units.
const (
	WindKmh WindUnit = "kmh"
	WindMs  WindUnit = "ms"
)

// UnmappedPolicy selects what happens to a field with no rule.
type UnmappedPolicy string

// Unmapped field policies.
const (
	// UnmappedError rejects the whole record.
	UnmappedError UnmappedPolicy = "error"
	// UnmappedSkip drops the field with a logged warning.
	UnmappedSkip UnmappedPolicy = "skip"
)

// MapperOptions configures NewMapper.
type MapperOptions struct {
	// WindUnit selects km/h (default) or m/s.
	WindUnit WindUnit

	// Unmapped selects the policy for unknown fields. Default: UnmappedError.
	Unmapped UnmappedPolicy

	// Rename maps raw field names to canonical names. Fields not listed keep
	// their raw name.
	Rename map[string]string
}

// Mapper is the immutable raw-field → Rule table.
type Mapper struct {
	rules    map[string]Rule
	windUnit WindUnit
	unmapped UnmappedPolicy
}

// NewMapper builds and validates the field table.
//
// Returns ErrInvalidMapping if a rename targets an unknown, skipped or time
// field, if two fields resolve to the same canonical name, or if an option
// value is unknown.
func NewMapper(opts MapperOptions) (*Mapper, error) {
	windUnit := opts.WindUnit
	if windUnit == "" {
		windUnit = WindKmh
	}
	if windUnit != WindKmh && windUnit != WindMs {
		return nil, fmt.Errorf("%w: unknown wind unit %q", ErrInvalidMapping, windUnit)
	}

	unmapped := opts.Unmapped
	if unmapped == "" {
		unmapped = UnmappedError
	}
	if unmapped != UnmappedError && unmapped != UnmappedSkip {
		return nil, fmt.Errorf("%w: unknown unmapped policy %q", ErrInvalidMapping, unmapped)
	}

	rules := make(map[string]Rule, len(vantageRules))
	for field, kind := range vantageRules {
		rule := Rule{Kind: kind}
		if kind != KindSkip && kind != KindTime {
			rule.Name = field
		}
		rules[field] = rule
	}

	for from, to := range opts.Rename {
		rule, ok := rules[from]
		if !ok {
			return nil, fmt.Errorf("%w: rename of unknown field %q", ErrInvalidMapping, from)
		}
		if rule.Name == "" {
			return nil, fmt.Errorf("%w: field %q is not an output field", ErrInvalidMapping, from)
		}
		if strings.TrimSpace(to) == "" {
			return nil, fmt.Errorf("%w: empty canonical name for %q", ErrInvalidMapping, from)
		}
		rule.Name = to
		rules[from] = rule
	}

	owners := make(map[string]string, len(rules))
	for _, field := range sortedKeys(rules) {
		name := rules[field].Name
		if name == "" {
			continue
		}
		if prev, dup := owners[name]; dup {
			return nil, fmt.Errorf("%w: %q and %q both map to %q", ErrInvalidMapping, prev, field, name)
		}
		owners[name] = field
	}

	return &Mapper{
		rules:    rules,
		windUnit: windUnit,
		unmapped: unmapped,
	}, nil
}

// Lookup returns the rule for a raw field name.
func (m *Mapper) Lookup(field string) (Rule, bool) {
	r, ok := m.rules[field]
	return r, ok
}

// CanonicalName returns the output name of a raw field, or "" if the field
// is skipped, a time sub-field or unknown.
func (m *Mapper) CanonicalName(field string) string {
	return m.rules[field].Name
}

// UnmappedPolicy returns the configured policy for unknown fields.
func (m *Mapper) UnmappedPolicy() UnmappedPolicy {
	return m.unmapped
}

// Convert applies the rule's conversion to a raw value.
//
// Returns:
//   - value: float64 or int64
//   - keep: false when the value is the wind "no reading" sentinel
//   - error: ErrInvalidValue if raw is not numeric
func (m *Mapper) Convert(rule Rule, raw any) (value any, keep bool, err error) {
	v, ok := toFloat(raw)
	if !ok {
		return nil, false, fmt.Errorf("%w: %T is not numeric", ErrInvalidValue, raw)
	}

	switch rule.Kind {
	case KindIdentity:
		return v, true, nil
	case KindTemperatureF:
		return units.FahrenheitToCelsius(v), true, nil
	case KindTemperatureF10:
		return units.TenthsFahrenheitToCelsius(v), true, nil
	case KindRainClicks:
		return units.RainClicksToMillimetres(v), true, nil
	case KindPressure:
		return units.InchesHgToPascals(v), true, nil
	case KindPercent:
		return units.HumidityToPercent(v), true, nil
	case KindWindSpeed:
		if units.IsNoReading(v) {
			return nil, false, nil
		}
		if m.windUnit == WindMs {
			return units.MphToMetresPerSecond(v), true, nil
		}
		return units.MphToKmh(v), true, nil
	case KindWindDirection:
		if units.IsNoReading(v) {
			return nil, false, nil
		}
		return units.WindDirectionToDegrees(v), true, nil
	case KindEvapotranspiration:
		return units.MilliInchesToMillimetres(v), true, nil
	default:
		return nil, false, fmt.Errorf("%w: kind %s has no conversion", ErrInvalidValue, rule.Kind)
	}
}

// toFloat widens any Go numeric type to float64.
func toFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
