package feed

import "errors"

var (
	// ErrPublish is returned when the broker rejects or times out a message.
	ErrPublish = errors.New("feed: publish failed")

	// ErrNoBroker is returned by New when no broker is supplied.
	ErrNoBroker = errors.New("feed: broker is required")
)
