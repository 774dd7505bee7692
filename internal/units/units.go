// Package units converts raw Vantage console magnitudes into metric values.
//
// Every function is pure and safe for concurrent use. The conversion
// constants follow the Davis serial protocol documentation and the NIST
// conventional values.
package units

import "math"

// Conversion constants.
const (
	// RainClickMillimetres is the rain collected per tipping-bucket click
	// on a metric Vantage Pro2 collector.
	RainClickMillimetres = 0.2

	// PascalsPerMilliInchHg is the conventional inch-of-mercury constant
	// (3386.389 Pa/inHg) expressed per milli-inch.
	PascalsPerMilliInchHg = 3.386389

	// KmhPerMph converts miles per hour to kilometres per hour.
	KmhPerMph = 1.60934

	// MetresPerSecondPerMph converts miles per hour to metres per second.
	MetresPerSecondPerMph = 0.44704

	// DegreesPerCompassPoint is the width of one of the 16 compass points.
	DegreesPerCompassPoint = 22.5

	// MillimetresPerInch converts inches to millimetres.
	MillimetresPerInch = 25.4

	// humidityScale is the full-scale raw humidity code.
	humidityScale = 255

	// milli converts milli-units to units.
	milli = 1000
)

// NoReading is the raw value the console stores for a wind speed or wind
// direction it could not measure. Such fields must be omitted, not converted.
const NoReading = 255

// FahrenheitToCelsius converts degrees Fahrenheit to degrees Celsius.
func FahrenheitToCelsius(f float64) float64 {
	return (f - 32) * 5 / 9
}

// TenthsFahrenheitToCelsius converts tenths of a degree Fahrenheit, the
// on-wire resolution of Vantage temperatures, to degrees Celsius.
func TenthsFahrenheitToCelsius(f10 float64) float64 {
	return FahrenheitToCelsius(f10 / 10)
}

// RainClicksToMillimetres converts a rain click count to millimetres.
func RainClicksToMillimetres(clicks float64) float64 {
	return clicks * RainClickMillimetres
}

// InchesHgToPascals converts a barometer reading in inches of mercury to
// pascals. The value is scaled to milli-inches first, matching the console
// resolution, then converted.
//
// Example: 29.921 inHg → 101324.9 Pa.
func InchesHgToPascals(inHg float64) float64 {
	return inHg * milli * PascalsPerMilliInchHg
}

// HumidityToPercent maps a raw 0-255 humidity code to an integer percentage.
func HumidityToPercent(code float64) int64 {
	return int64(math.Round(code * 100 / humidityScale))
}

// MphToKmh converts miles per hour to kilometres per hour.
func MphToKmh(mph float64) float64 {
	return mph * KmhPerMph
}

// MphToMetresPerSecond converts miles per hour to metres per second.
func MphToMetresPerSecond(mph float64) float64 {
	return mph * MetresPerSecondPerMph
}

// WindDirectionToDegrees converts a 0-16 compass-point code to degrees.
func WindDirectionToDegrees(code float64) float64 {
	return code * DegreesPerCompassPoint
}

// MilliInchesToMillimetres converts thousandths of an inch (the console's
// evapotranspiration unit) to millimetres.
func MilliInchesToMillimetres(v float64) float64 {
	return (v / milli) * MillimetresPerInch
}

// IsNoReading reports whether a raw wind value is the "no reading" sentinel.
func IsNoReading(raw float64) bool {
	return raw == NoReading
}
