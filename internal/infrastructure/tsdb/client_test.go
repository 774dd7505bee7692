package tsdb

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/vantage-sync/internal/archive"
	"github.com/nerrad567/vantage-sync/internal/infrastructure/config"
)

// sampleTime is 2024-06-15 14:35 UTC.
var sampleTime = time.Unix(1718462100, 0).UTC()

// newTestClient creates a client bound to the test server.
func newTestClient(t *testing.T, server *httptest.Server, mutate func(*config.StoreConfig)) *Client {
	t.Helper()
	u, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("parse server URL: %v", err)
	}
	port, _ := strconv.Atoi(u.Port())

	cfg := config.StoreConfig{
		Backend:      config.BackendVictoriaMetrics,
		Host:         u.Hostname(),
		Port:         port,
		LookbackDays: 30,
		Timeout:      5,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// ─── Client ────────────────────────────────────────────────────────

func TestNew_RequiresHost(t *testing.T) {
	if _, err := New(config.StoreConfig{Port: 8428}); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("New() error = %v, want ErrConnectionFailed", err)
	}
}

func TestHealthCheck(t *testing.T) {
	status := http.StatusOK
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("path = %q, want /health", r.URL.Path)
		}
		w.WriteHeader(status)
	}))
	defer server.Close()

	c := newTestClient(t, server, nil)

	if err := c.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}

	status = http.StatusServiceUnavailable
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("HealthCheck() error = %v, want ErrConnectionFailed", err)
	}
}

func TestClose(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()
	c := newTestClient(t, server, nil)

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
	ctx := context.Background()
	if err := c.HealthCheck(ctx); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
	if err := c.EnsureDatabase(ctx); !errors.Is(err, ErrNotConnected) {
		t.Errorf("EnsureDatabase() error = %v, want ErrNotConnected", err)
	}
	if err := c.WriteBatch(ctx, []archive.Point{{Measurement: "m", Fields: map[string]any{"v": 1.0}}}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("WriteBatch() error = %v, want ErrNotConnected", err)
	}
	if _, err := c.QueryLatest(ctx, "m"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("QueryLatest() error = %v, want ErrNotConnected", err)
	}
}

func TestEnsureDatabase_NoRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
	}))
	defer server.Close()

	if err := newTestClient(t, server, nil).EnsureDatabase(context.Background()); err != nil {
		t.Errorf("EnsureDatabase() error = %v", err)
	}
}

// ─── Writes ────────────────────────────────────────────────────────

func TestWriteBatch(t *testing.T) {
	var gotBody, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/write" {
			t.Errorf("request = %s %s, want POST /write", r.Method, r.URL.Path)
		}
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := newTestClient(t, server, func(cfg *config.StoreConfig) { cfg.Token = "vm-token" })

	points := []archive.Point{
		{Measurement: "temp_out", Tags: map[string]string{"station": "garden"}, Fields: map[string]any{"value": 21.5}, Time: sampleTime},
		{Measurement: "hum_out", Tags: map[string]string{"station": "garden"}, Fields: map[string]any{"value": int64(64)}, Time: sampleTime},
	}
	if err := c.WriteBatch(context.Background(), points); err != nil {
		t.Fatalf("WriteBatch() error = %v", err)
	}

	want := "temp_out,station=garden value=21.5 1718462100000000000\n" +
		"hum_out,station=garden value=64i 1718462100000000000"
	if gotBody != want {
		t.Errorf("body = %q, want %q", gotBody, want)
	}
	if gotAuth != "Bearer vm-token" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
}

func TestWriteBatch_BasicAuth(t *testing.T) {
	var user, pass string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, _ = r.BasicAuth()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := newTestClient(t, server, func(cfg *config.StoreConfig) {
		cfg.Username = "wx"
		cfg.Password = "secret"
	})
	err := c.WriteBatch(context.Background(), []archive.Point{{Measurement: "m", Fields: map[string]any{"v": 1.0}, Time: sampleTime}})
	if err != nil {
		t.Fatalf("WriteBatch() error = %v", err)
	}
	if user != "wx" || pass != "secret" {
		t.Errorf("basic auth = %q/%q, want wx/secret", user, pass)
	}
}

func TestWriteBatch_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "cannot parse line", http.StatusBadRequest)
	}))
	defer server.Close()

	c := newTestClient(t, server, nil)
	err := c.WriteBatch(context.Background(), []archive.Point{{Measurement: "m", Fields: map[string]any{"v": 1.0}, Time: sampleTime}})
	if !errors.Is(err, ErrWriteFailed) {
		t.Fatalf("WriteBatch() error = %v, want ErrWriteFailed", err)
	}
	if !strings.Contains(err.Error(), "cannot parse line") {
		t.Errorf("WriteBatch() error = %v, want server message", err)
	}
}

func TestWriteBatch_EmptyIsNoop(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
	}))
	defer server.Close()

	if err := newTestClient(t, server, nil).WriteBatch(context.Background(), nil); err != nil {
		t.Errorf("WriteBatch(nil) error = %v", err)
	}
}

func TestFormatLineProtocol(t *testing.T) {
	tests := []struct {
		name        string
		measurement string
		tags        map[string]string
		fields      map[string]any
		want        string
	}{
		{
			name:        "sorted tags and fields",
			measurement: "weather",
			tags:        map[string]string{"station": "garden", "site": "home"},
			fields:      map[string]any{"temp_out": 21.5, "hum_out": int64(64)},
			want:        "weather,site=home,station=garden hum_out=64i,temp_out=21.5 1718462100000000000",
		},
		{
			name:        "no tags",
			measurement: "barometer",
			fields:      map[string]any{"value": 1013.25},
			want:        "barometer value=1013.25 1718462100000000000",
		},
		{
			name:        "escaping",
			measurement: "my weather",
			tags:        map[string]string{"station": "back garden,north"},
			fields:      map[string]any{"a=b": true},
			want:        `my\ weather,station=back\ garden\,north a\=b=true 1718462100000000000`,
		},
		{
			name:        "large float is not exponent formatted",
			measurement: "m",
			fields:      map[string]any{"v": 12345678.0},
			want:        "m v=12345678 1718462100000000000",
		},
		{
			name:        "newline injection stripped",
			measurement: "m\nevil",
			fields:      map[string]any{"v": 1.0},
			want:        "mevil v=1 1718462100000000000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatLineProtocol(tt.measurement, tt.tags, tt.fields, sampleTime)
			if got != tt.want {
				t.Errorf("formatLineProtocol() = %q, want %q", got, tt.want)
			}
		})
	}
}

// ─── Resume queries ────────────────────────────────────────────────

func TestQueryLatest(t *testing.T) {
	var queries []url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/query" {
			t.Errorf("path = %q, want /api/v1/query", r.URL.Path)
		}
		q := r.URL.Query()
		queries = append(queries, q)
		w.Header().Set("Content-Type", "application/json")

		switch {
		case strings.HasPrefix(q.Get("query"), "tlast_over_time"):
			_, _ = io.WriteString(w, `{"status":"success","data":{"resultType":"vector","result":[
				{"metric":{"__name__":"weather_temp_out"},"value":[1718463000,"1718462100"]},
				{"metric":{"__name__":"weather_barometer"},"value":[1718463000,"1718462100"]},
				{"metric":{"__name__":"weather_uv"},"value":[1718463000,"1718461800"]}
			]}}`)
		case strings.HasPrefix(q.Get("query"), "last_over_time"):
			_, _ = io.WriteString(w, `{"status":"success","data":{"resultType":"vector","result":[
				{"metric":{"__name__":"weather_temp_out"},"value":[1718462100,"21.5"]},
				{"metric":{"__name__":"weather_barometer"},"value":[1718462100,"1013.2"]},
				{"metric":{"__name__":"weather_uv"},"value":[1718462100,"3"]}
			]}}`)
		default:
			t.Errorf("unexpected query %q", q.Get("query"))
		}
	}))
	defer server.Close()

	c := newTestClient(t, server, nil)
	got, err := c.QueryLatest(context.Background(), "weather")
	if err != nil {
		t.Fatalf("QueryLatest() error = %v", err)
	}
	if got == nil || !got.Time.Equal(sampleTime) {
		t.Fatalf("QueryLatest() = %+v, want point at %v", got, sampleTime)
	}
	if len(got.Fields) != 2 || got.Fields["temp_out"] != 21.5 || got.Fields["barometer"] != 1013.2 {
		t.Errorf("Fields = %v, want temp_out and barometer", got.Fields)
	}

	if len(queries) != 2 {
		t.Fatalf("got %d queries, want 2", len(queries))
	}
	wantFirst := `tlast_over_time({__name__=~"weather_.+"}[2592000s]) keep_metric_names`
	if queries[0].Get("query") != wantFirst {
		t.Errorf("first query = %q, want %q", queries[0].Get("query"), wantFirst)
	}
	if queries[0].Get("time") != "" {
		t.Errorf("first query time = %q, want unset", queries[0].Get("time"))
	}
	if queries[1].Get("time") != "1718462100" {
		t.Errorf("second query time = %q, want 1718462100", queries[1].Get("time"))
	}
}

func TestQueryLatest_Empty(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"status":"success","data":{"resultType":"vector","result":[]}}`)
	}))
	defer server.Close()

	got, err := newTestClient(t, server, nil).QueryLatest(context.Background(), "weather")
	if err != nil || got != nil {
		t.Errorf("QueryLatest() = %+v, %v; want nil, nil", got, err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestQueryLatest_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"http error with message", http.StatusUnprocessableEntity, `{"status":"error","error":"unparseable query"}`},
		{"http error without body", http.StatusBadGateway, ``},
		{"api error", http.StatusOK, `{"status":"error","error":"timeout"}`},
		{"matrix result", http.StatusOK, `{"status":"success","data":{"resultType":"matrix","result":[]}}`},
		{"bad value", http.StatusOK, `{"status":"success","data":{"resultType":"vector","result":[{"metric":{},"value":[1,"x"]}]}}`},
		{"not json", http.StatusOK, `<html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer server.Close()

			_, err := newTestClient(t, server, nil).QueryLatest(context.Background(), "weather")
			if !errors.Is(err, ErrQueryFailed) {
				t.Errorf("QueryLatest() error = %v, want ErrQueryFailed", err)
			}
		})
	}
}

func TestMeasurementSelector(t *testing.T) {
	if got, want := measurementSelector("temp.out"), `{__name__=~"temp\\.out_.+"}`; got != want {
		t.Errorf("measurementSelector() = %s, want %s", got, want)
	}
}

func TestFormatWindow(t *testing.T) {
	if got := formatWindow(48 * time.Hour); got != "172800s" {
		t.Errorf("formatWindow(48h) = %q, want 172800s", got)
	}
	if got := formatWindow(0); got != "1s" {
		t.Errorf("formatWindow(0) = %q, want 1s", got)
	}
}

func TestSecondsToTime(t *testing.T) {
	if got := secondsToTime(1718462100.0004); !got.Equal(sampleTime) {
		t.Errorf("secondsToTime() = %v, want %v", got, sampleTime)
	}
	if got := secondsToTime(1718462100.25); !got.Equal(sampleTime.Add(250 * time.Millisecond)) {
		t.Errorf("secondsToTime() = %v, want +250ms", got)
	}
}
