// Package influxdb stores archive points in InfluxDB.
//
// Two API generations are supported, selected by the store config:
//
//   - With a token, the InfluxDB 2.x API is used through
//     influxdb-client-go. store.database names the bucket and store.org
//     the organisation. Resume queries are written in Flux.
//   - Without a token, the 1.x API is used through influxdb1-client with
//     optional username and password. Resume queries use InfluxQL.
//
// Writes are synchronous: WriteBatch returns only once the server has
// accepted or rejected the whole batch, so a failed cycle can be retried
// without losing records.
//
// Usage:
//
//	store, err := influxdb.New(cfg.Store)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	if err := store.EnsureDatabase(ctx); err != nil {
//	    logger.Warn("database setup failed", "error", err)
//	}
//	latest, err := store.QueryLatest(ctx, "weather")
package influxdb
