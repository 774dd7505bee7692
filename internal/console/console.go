// Package console defines the contract between the sync engine and a Davis
// Vantage weather console.
//
// The console buffers one archive record per archive interval. A session
// positions the archive read pointer with SetArchiveStart and then drains
// every newer record with PullArchive. Console wire drivers implement
// Dialer; this package ships a deterministic simulator driver used for
// development and tests.
package console

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/nerrad567/vantage-sync/internal/archive"
)

// Driver names accepted by NewDialer.
const (
	DriverSimulator = "simulator"
)

// Address identifies a console and the archive interval it is configured for.
type Address struct {
	Host string
	Port int

	// ArchiveInterval is the console's archive period in minutes.
	ArchiveInterval int
}

// String returns host:port.
func (a Address) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// Dialer opens sessions to a console.
type Dialer interface {
	// Dial connects and completes the wake-up handshake.
	// Returns an error wrapping ErrDeviceUnavailable on failure.
	Dial(ctx context.Context, addr Address) (Session, error)
}

// Session is one open connection to a console. Sessions are stateful and
// must not be used concurrently.
type Session interface {
	// CurrentTime returns the console clock in the console's zone.
	CurrentTime(ctx context.Context) (time.Time, error)

	// SetArchiveStart positions the archive pointer so the next pull
	// returns only records strictly newer than t. A zero t selects the
	// whole buffer.
	SetArchiveStart(ctx context.Context, t time.Time) error

	// PullArchive returns the buffered records newer than the archive
	// start, oldest first. May fail mid-read with ErrDeviceUnavailable or
	// ErrTransport.
	PullArchive(ctx context.Context) ([]archive.RawRecord, error)

	// Close releases the connection.
	Close() error
}

// ClockSetter is implemented by sessions that can set the console clock.
type ClockSetter interface {
	SetTime(ctx context.Context, t time.Time) error
}

// NewDialer returns the dialer for a named driver.
//
// Parameters:
//   - driver: driver name (DriverSimulator)
//   - loc: the console's time zone
func NewDialer(driver string, loc *time.Location) (Dialer, error) {
	switch driver {
	case DriverSimulator:
		return NewSimulator(SimulatorOptions{Location: loc}), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}
