// Package tsdb stores archive points in VictoriaMetrics.
//
// Points are written as InfluxDB line protocol to /write, one request per
// batch, and the call returns only after VictoriaMetrics has answered. A
// measurement "weather" with field "temp_out" becomes the metric
// "weather_temp_out"; tags become labels.
//
// Resume queries use MetricsQL over /api/v1/query: tlast_over_time finds the
// newest sample of every metric belonging to a measurement, and
// last_over_time evaluated at that instant recovers the field values.
//
// VictoriaMetrics creates series on first write, so EnsureDatabase is a
// no-op kept for parity with the InfluxDB store.
//
// Usage:
//
//	client, err := tsdb.New(cfg.Store)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.WriteBatch(ctx, points)
package tsdb
