package tsdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/vantage-sync/internal/archive"
)

// maxResponseSize bounds query response bodies.
const maxResponseSize = 10 << 20 // 10 MB

// sample is one element of an instant vector.
type sample struct {
	Metric map[string]string
	Value  float64
}

// QueryLatest returns the newest stored point of a measurement within the
// lookback window, or nil if there is none. Fields holds every metric of the
// measurement that has a sample at that instant, keyed by field name.
func (c *Client) QueryLatest(ctx context.Context, measurement string) (*archive.StoredPoint, error) {
	if !c.IsConnected() {
		return nil, ErrNotConnected
	}

	selector := measurementSelector(measurement)
	window := formatWindow(c.lookback)

	stamps, err := c.queryInstant(ctx,
		fmt.Sprintf("tlast_over_time(%s[%s]) keep_metric_names", selector, window), time.Time{})
	if err != nil {
		return nil, err
	}
	if len(stamps) == 0 {
		return nil, nil
	}

	newest := math.Inf(-1)
	lastByName := make(map[string]float64, len(stamps))
	for _, s := range stamps {
		name := s.Metric["__name__"]
		if v, ok := lastByName[name]; !ok || s.Value > v {
			lastByName[name] = s.Value
		}
		newest = math.Max(newest, s.Value)
	}
	at := secondsToTime(newest)

	values, err := c.queryInstant(ctx,
		fmt.Sprintf("last_over_time(%s[%s]) keep_metric_names", selector, window), at)
	if err != nil {
		return nil, err
	}

	prefix := measurement + "_"
	fields := make(map[string]any, len(values))
	for _, s := range values {
		name := s.Metric["__name__"]
		if !secondsToTime(lastByName[name]).Equal(at) {
			continue
		}
		fields[strings.TrimPrefix(name, prefix)] = s.Value
	}

	return &archive.StoredPoint{Time: at, Fields: fields}, nil
}

// measurementSelector matches every metric written for a measurement.
func measurementSelector(measurement string) string {
	return fmt.Sprintf("{__name__=~%s}", strconv.Quote(regexp.QuoteMeta(measurement)+"_.+"))
}

// formatWindow renders a lookback duration as a MetricsQL window.
func formatWindow(d time.Duration) string {
	s := int64(d / time.Second)
	if s < 1 {
		s = 1
	}
	return strconv.FormatInt(s, 10) + "s"
}

// secondsToTime converts a fractional Unix timestamp to UTC, rounded to the
// millisecond VictoriaMetrics stores.
func secondsToTime(s float64) time.Time {
	return time.UnixMilli(int64(math.Round(s * 1000))).UTC()
}

// queryInstant runs an instant query, evaluated at "at" unless it is zero.
func (c *Client) queryInstant(ctx context.Context, query string, at time.Time) ([]sample, error) {
	params := url.Values{}
	params.Set("query", query)
	if !at.IsZero() {
		params.Set("time", formatUnixSeconds(at))
	}

	body, err := c.doQuery(ctx, "/api/v1/query", params)
	if err != nil {
		return nil, err
	}
	return decodeVector(body)
}

// doQuery executes a query request and returns the raw response body.
func (c *Client) doQuery(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %w", ErrQueryFailed, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: executing query: %w", ErrQueryFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", ErrQueryFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("%w: HTTP %d: %s", ErrQueryFailed, resp.StatusCode, apiErr.Error)
		}
		return nil, fmt.Errorf("%w: HTTP %d", ErrQueryFailed, resp.StatusCode)
	}

	return json.RawMessage(body), nil
}

// decodeVector parses a Prometheus API instant-vector response.
func decodeVector(body []byte) ([]sample, error) {
	var resp struct {
		Status string `json:"status"`
		Error  string `json:"error"`
		Data   struct {
			ResultType string `json:"resultType"`
			Result     []struct {
				Metric map[string]string `json:"metric"`
				Value  []any             `json:"value"`
			} `json:"result"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %w", ErrQueryFailed, err)
	}
	if resp.Status != "success" {
		return nil, fmt.Errorf("%w: status %q: %s", ErrQueryFailed, resp.Status, resp.Error)
	}
	if resp.Data.ResultType != "" && resp.Data.ResultType != "vector" {
		return nil, fmt.Errorf("%w: result type %q, want vector", ErrQueryFailed, resp.Data.ResultType)
	}

	out := make([]sample, 0, len(resp.Data.Result))
	for _, r := range resp.Data.Result {
		if len(r.Value) != 2 {
			return nil, fmt.Errorf("%w: malformed sample %v", ErrQueryFailed, r.Value)
		}
		raw, ok := r.Value[1].(string)
		if !ok {
			return nil, fmt.Errorf("%w: sample value is %T, want string", ErrQueryFailed, r.Value[1])
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: sample value: %w", ErrQueryFailed, err)
		}
		out = append(out, sample{Metric: r.Metric, Value: v})
	}
	return out, nil
}

// formatUnixSeconds converts a timestamp to a seconds-since-epoch string.
func formatUnixSeconds(t time.Time) string {
	seconds := float64(t.UnixNano()) / float64(time.Second)
	return strconv.FormatFloat(seconds, 'f', -1, 64)
}
