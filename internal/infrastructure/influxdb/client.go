package influxdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	client "github.com/influxdata/influxdb1-client/v2"

	"github.com/nerrad567/vantage-sync/internal/infrastructure/config"
)

const defaultPingTimeout = 5 * time.Second

// Client is an InfluxDB store for archive points.
//
// Exactly one of v2 or v1 is set, depending on whether a token was
// configured.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	cfg config.StoreConfig

	v2 influxdb2.Client
	v1 client.Client

	mu     sync.RWMutex
	closed bool
}

// New creates a client for the configured server. No request is made;
// use HealthCheck to verify the server is reachable.
func New(cfg config.StoreConfig) (*Client, error) {
	c := &Client{cfg: cfg}

	if cfg.Token != "" {
		opts := influxdb2.DefaultOptions()
		if cfg.Timeout > 0 {
			// #nosec G115 -- validated positive
			opts.SetHTTPRequestTimeout(uint(cfg.Timeout))
		}
		c.v2 = influxdb2.NewClientWithOptions(cfg.URL(), cfg.Token, opts)
		return c, nil
	}

	v1, err := client.NewHTTPClient(client.HTTPConfig{
		Addr:      cfg.URL(),
		Username:  cfg.Username,
		Password:  cfg.Password,
		UserAgent: "vantagesync",
		Timeout:   cfg.GetTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	c.v1 = v1
	return c, nil
}

// APIVersion reports which InfluxDB API the client speaks: "v2" or "v1".
func (c *Client) APIVersion() string {
	if c.v2 != nil {
		return "v2"
	}
	return "v1"
}

// Close releases the underlying HTTP clients. Safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	if c.v2 != nil {
		c.v2.Close()
		return nil
	}
	return c.v1.Close()
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	if c.v2 != nil {
		checkCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
		defer cancel()

		healthy, err := c.v2.Ping(checkCtx)
		if err != nil {
			return fmt.Errorf("%w: ping: %w", ErrConnectionFailed, err)
		}
		if !healthy {
			return fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
		}
		return nil
	}

	if _, _, err := c.v1.Ping(defaultPingTimeout); err != nil {
		return fmt.Errorf("%w: ping: %w", ErrConnectionFailed, err)
	}
	return nil
}

// IsConnected reports whether Close has not yet been called.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.closed
}
