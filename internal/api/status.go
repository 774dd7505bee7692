package api

import (
	"context"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/nerrad567/vantage-sync/internal/feed"
	"github.com/nerrad567/vantage-sync/internal/history"
	"github.com/nerrad567/vantage-sync/internal/syncer"
)

const (
	healthCheckTimeout = 2 * time.Second

	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Components map[string]string `json:"components,omitempty"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	Station       string           `json:"station"`
	Version       string           `json:"version"`
	Timestamp     string           `json:"timestamp"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Sync          syncer.Status    `json:"sync"`
	Feed          *feed.Stats      `json:"feed,omitempty"`
	WebSocket     WSMetrics        `json:"websocket"`
	Database      *DatabaseMetrics `json:"database,omitempty"`
	Runtime       RuntimeMetrics   `json:"runtime"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// DatabaseMetrics contains history database pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	WaitCount       int64 `json:"wait_count"`
}

// HistoryResponse is returned by GET /history.
type HistoryResponse struct {
	Cycles []history.Cycle `json:"cycles"`
	Count  int             `json:"count"`
}

// handleHealth probes every registered component. Any failure turns the
// response into 503 "degraded" so load balancers and container health
// checks can act on it.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Version: s.version}

	if len(s.checks) > 0 {
		resp.Components = make(map[string]string, len(s.checks))
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		for name, check := range s.checks {
			if err := check.HealthCheck(ctx); err != nil {
				resp.Components[name] = err.Error()
				resp.Status = "degraded"
				continue
			}
			resp.Components[name] = "ok"
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	resp := StatusResponse{
		Station:       s.station,
		Version:       s.version,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Sync:          s.status.Status(),
		WebSocket:     WSMetrics{ConnectedClients: s.hub.ClientCount()},
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(mem.Alloc) / 1024 / 1024,
			NumGC:         mem.NumGC,
		},
	}

	if s.feed != nil {
		stats := s.feed.Stats()
		resp.Feed = &stats
	}
	if s.db != nil {
		st := s.db.Stats()
		resp.Database = &DatabaseMetrics{
			OpenConnections: st.OpenConnections,
			InUse:           st.InUse,
			WaitCount:       st.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeUnavailable(w, "sync history is disabled")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			writeBadRequest(w, "limit must be an integer between 1 and "+strconv.Itoa(maxHistoryLimit))
			return
		}
		limit = n
	}

	cycles, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("reading sync history failed", "error", err)
		writeInternalError(w, "failed to read sync history")
		return
	}
	if cycles == nil {
		cycles = []history.Cycle{}
	}

	writeJSON(w, http.StatusOK, HistoryResponse{Cycles: cycles, Count: len(cycles)})
}
