package console

import "errors"

// Domain errors for console sessions.
//
// Both ErrDeviceUnavailable and ErrTransport are recoverable: the sync
// supervisor closes the session, waits the retry delay and reconnects.
var (
	// ErrDeviceUnavailable is returned when the console is unreachable or
	// does not answer the wake-up handshake.
	ErrDeviceUnavailable = errors.New("console: device unavailable")

	// ErrTransport is returned when the link fails mid-session (read
	// timeout, CRC failure, dropped connection, closed session).
	ErrTransport = errors.New("console: transport error")

	// ErrUnknownDriver is returned by NewDialer for an unregistered driver.
	ErrUnknownDriver = errors.New("console: unknown driver")
)
