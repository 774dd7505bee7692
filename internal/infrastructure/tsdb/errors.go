package tsdb

import "errors"

// Sentinel errors for VictoriaMetrics operations.
//
// These errors can be checked using errors.Is() for specific handling:
//
//	if errors.Is(err, tsdb.ErrWriteFailed) {
//	    // retry the cycle
//	}
var (
	// ErrNotConnected indicates the client has been closed.
	ErrNotConnected = errors.New("tsdb: not connected")

	// ErrConnectionFailed indicates the health check failed.
	ErrConnectionFailed = errors.New("tsdb: connection failed")

	// ErrWriteFailed indicates a batch write was rejected or not delivered.
	ErrWriteFailed = errors.New("tsdb: write failed")

	// ErrQueryFailed indicates a PromQL query failed or returned an
	// unexpected payload.
	ErrQueryFailed = errors.New("tsdb: query failed")
)
