package syncer

import "errors"

// Domain errors for the sync engine.
var (
	// ErrResumeQuery wraps a store failure while resolving the resume
	// point. It is never fatal: the resolver falls back to "absent".
	ErrResumeQuery = errors.New("syncer: resume point query failed")

	// ErrPersistence wraps a store failure while writing a batch. The
	// whole cycle fails and the supervisor faults.
	ErrPersistence = errors.New("syncer: batch write failed")
)
