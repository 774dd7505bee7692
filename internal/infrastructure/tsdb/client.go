package tsdb

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/vantage-sync/internal/infrastructure/config"
)

const defaultHealthTimeout = 5 * time.Second

// Client writes archive points to VictoriaMetrics and answers resume queries.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	url        string
	httpClient *http.Client
	lookback   time.Duration

	username string
	password string
	token    string

	closed bool
	mu     sync.RWMutex
}

// New creates a client for the configured VictoriaMetrics server. No
// request is made; use HealthCheck to verify the server is reachable.
func New(cfg config.StoreConfig) (*Client, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("%w: host is required", ErrConnectionFailed)
	}
	return &Client{
		url: strings.TrimRight(cfg.URL(), "/"),
		httpClient: &http.Client{
			Timeout: cfg.GetTimeout(),
		},
		lookback: cfg.GetLookback(),
		username: cfg.Username,
		password: cfg.Password,
		token:    cfg.Token,
	}, nil
}

// Close marks the client closed. Safe to call more than once.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.httpClient.CloseIdleConnections()
	return nil
}

// HealthCheck verifies VictoriaMetrics answers GET /health.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, defaultHealthTimeout)
	defer cancel()

	req, err := c.newRequest(checkCtx, http.MethodGet, "/health", nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	defer resp.Body.Close()
	// Drain body to allow connection reuse
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrConnectionFailed, resp.StatusCode)
	}
	return nil
}

// EnsureDatabase is a no-op: VictoriaMetrics creates series on first write.
func (c *Client) EnsureDatabase(context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports whether Close has not yet been called.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.closed
}

// newRequest builds a request against the server with credentials applied.
func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url+path, body)
	if err != nil {
		return nil, err
	}
	switch {
	case c.token != "":
		req.Header.Set("Authorization", "Bearer "+c.token)
	case c.username != "":
		req.SetBasicAuth(c.username, c.password)
	}
	return req, nil
}
