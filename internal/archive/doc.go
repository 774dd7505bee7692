// Package archive turns raw Vantage archive records into time-series points.
//
// It holds the three deterministic stages of the sync pipeline:
//
//	RawRecord ──Normalizer──► Reading ──Shaper──► []Point
//	              (Mapper)
//
// # Field mapping
//
// The Mapper is an immutable table from raw console field name to a Rule.
// A Rule carries a conversion Kind (temperature, rain clicks, pressure, ...)
// and the canonical output name. The table is built once at startup from the
// built-in Vantage rule set plus optional renames, and is validated so no two
// fields can share a canonical name.
//
// # Normalisation
//
// A Reading has exactly one timestamp, built from the Year, Month, Day,
// Hour and Min sub-fields in the console's time zone. The sub-fields never
// appear in Reading.Fields. Wind speed and direction fields carrying the
// "no reading" sentinel are omitted.
//
// # Shaping
//
// Readings are written either wide (one point per reading holding every
// field) or narrow (one point per field, measurement = field name, single
// "value" field). Both modes convert the timestamp to UTC once per reading.
//
// # Thread Safety
//
// Mapper, Normalizer and Shaper are immutable after construction and safe
// for concurrent use.
package archive
