package tsdb

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/vantage-sync/internal/archive"
)

// maxErrorBody bounds how much of a rejected write's response is kept.
const maxErrorBody = 512

// WriteBatch posts all points to /write in one request. An empty batch is
// a no-op.
func (c *Client) WriteBatch(ctx context.Context, points []archive.Point) error {
	if len(points) == 0 {
		return nil
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	var body strings.Builder
	for i, p := range points {
		if i > 0 {
			body.WriteByte('\n')
		}
		body.WriteString(formatLineProtocol(p.Measurement, p.Tags, p.Fields, p.Time))
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/write", strings.NewReader(body.String()))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	defer resp.Body.Close()

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: HTTP %d: %s", ErrWriteFailed, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

// formatLineProtocol formats a data point as an InfluxDB line protocol string.
//
// Format: measurement,tag1=val1,tag2=val2 field1=val1,field2=val2 timestamp_ns
func formatLineProtocol(measurement string, tags map[string]string, fields map[string]any, t time.Time) string {
	var b strings.Builder

	b.WriteString(escapeMeasurement(measurement))

	// Tags and fields are sorted for deterministic output.
	tagKeys := make([]string, 0, len(tags))
	for k := range tags {
		tagKeys = append(tagKeys, k)
	}
	sort.Strings(tagKeys)
	for _, k := range tagKeys {
		b.WriteByte(',')
		b.WriteString(escapeTag(k))
		b.WriteByte('=')
		b.WriteString(escapeTag(tags[k]))
	}

	fieldKeys := make([]string, 0, len(fields))
	for k := range fields {
		fieldKeys = append(fieldKeys, k)
	}
	sort.Strings(fieldKeys)
	b.WriteByte(' ')
	for i, k := range fieldKeys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(escapeTag(k))
		b.WriteByte('=')
		b.WriteString(formatFieldValue(fields[k]))
	}

	b.WriteByte(' ')
	b.WriteString(strconv.FormatInt(t.UnixNano(), 10))

	return b.String()
}

func formatFieldValue(v any) string {
	switch val := v.(type) {
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val) + "i"
	case int64:
		return strconv.FormatInt(val, 10) + "i"
	case bool:
		return strconv.FormatBool(val)
	case string:
		return strconv.Quote(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// escapeTag escapes special characters in tag keys/values for line protocol.
// Newlines are stripped to prevent line protocol injection.
func escapeTag(s string) string {
	s = strings.ReplaceAll(s, "\n", "")
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, " ", "\\ ")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, "=", "\\=")
	return s
}

// escapeMeasurement escapes special characters in measurement names.
func escapeMeasurement(s string) string {
	s = strings.ReplaceAll(s, "\n", "")
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, " ", "\\ ")
	s = strings.ReplaceAll(s, ",", "\\,")
	return s
}
