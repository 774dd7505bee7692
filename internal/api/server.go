package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/vantage-sync/internal/feed"
	"github.com/nerrad567/vantage-sync/internal/history"
	"github.com/nerrad567/vantage-sync/internal/infrastructure/config"
	"github.com/nerrad567/vantage-sync/internal/infrastructure/logging"
	"github.com/nerrad567/vantage-sync/internal/syncer"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// StatusSource reports the supervisor's current status.
type StatusSource interface {
	Status() syncer.Status
}

// HealthChecker is implemented by every component with a liveness probe.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// FeedStats reports MQTT feed counters.
type FeedStats interface {
	Stats() feed.Stats
}

// DBStats reports database pool statistics.
type DBStats interface {
	Stats() sql.DBStats
}

// Deps holds the dependencies required by the API server.
// Everything except Config, Logger and Status is optional.
type Deps struct {
	Config  config.APIConfig
	Logger  *logging.Logger
	Station string
	Version string

	Status  StatusSource
	History history.Repository
	Feed    FeedStats
	DB      DBStats

	// Checks are probed by /health, keyed by component name.
	Checks map[string]HealthChecker

	// Hub carries the live stream. When nil the server creates its own.
	Hub *Hub
}

// Server is the HTTP status API server.
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	station   string
	version   string
	status    StatusSource
	history   history.Repository
	feed      FeedStats
	db        DBStats
	checks    map[string]HealthChecker
	hub       *Hub
	ownHub    bool
	startTime time.Time

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc
}

// New creates a new API server. It is not started until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Status == nil {
		return nil, fmt.Errorf("status source is required")
	}

	s := &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		station:   deps.Station,
		version:   deps.Version,
		status:    deps.Status,
		history:   deps.History,
		feed:      deps.Feed,
		db:        deps.DB,
		checks:    deps.Checks,
		hub:       deps.Hub,
		startTime: time.Now(),
	}
	if s.hub == nil {
		s.hub = NewHub(deps.Station, deps.Logger)
		s.ownHub = true
	}
	return s, nil
}

// Hub returns the server's WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start binds the listener and serves in a background goroutine. Binding
// errors (port in use) are returned directly.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("api server already started")
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port))
	if err != nil {
		return fmt.Errorf("binding API listener: %w", err)
	}

	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	if s.ownHub {
		go s.hub.Run(srvCtx)
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.logger.Info("API server listening", "address", ln.Addr().String())

	srv := s.server
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the server, waiting up to 10 seconds for
// in-flight requests.
func (s *Server) Close() error {
	s.mu.Lock()
	srv, cancel := s.server, s.cancel
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	if cancel != nil {
		cancel()
	}

	ctx, done := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer done()

	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
