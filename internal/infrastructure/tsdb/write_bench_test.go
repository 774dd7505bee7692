package tsdb

import (
	"testing"
	"time"
)

func BenchmarkFormatLineProtocol_Wide(b *testing.B) {
	tags := map[string]string{"station": "garden"}
	fields := map[string]any{
		"temp_out":  21.5,
		"temp_in":   22.1,
		"hum_out":   int64(64),
		"hum_in":    int64(41),
		"barometer": 1013.2,
		"wind_avg":  3.2,
		"rain_rate": 0.0,
	}
	ts := time.Date(2024, 6, 15, 14, 35, 0, 0, time.UTC)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		formatLineProtocol("weather", tags, fields, ts)
	}
}

func BenchmarkFormatLineProtocol_Narrow(b *testing.B) {
	tags := map[string]string{"station": "garden"}
	fields := map[string]any{"value": 21.5}
	ts := time.Date(2024, 6, 15, 14, 35, 0, 0, time.UTC)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		formatLineProtocol("temp_out", tags, fields, ts)
	}
}

func BenchmarkEscapeTag(b *testing.B) {
	for i := 0; i < b.N; i++ {
		escapeTag("station=back garden,north")
	}
}
