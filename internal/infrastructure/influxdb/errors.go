package influxdb

import "errors"

// Sentinel errors for InfluxDB operations.
//
// These errors can be checked using errors.Is() for specific handling:
//
//	if errors.Is(err, influxdb.ErrWriteFailed) {
//	    // retry the cycle
//	}
var (
	// ErrNotConnected indicates the client has been closed.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed indicates the client could not be created or the
	// server did not answer a ping.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrWriteFailed indicates a batch write was rejected or not delivered.
	ErrWriteFailed = errors.New("influxdb: write failed")

	// ErrQueryFailed indicates a resume query failed.
	ErrQueryFailed = errors.New("influxdb: query failed")

	// ErrDatabase indicates the target database or bucket could not be
	// found or created.
	ErrDatabase = errors.New("influxdb: database setup failed")
)
