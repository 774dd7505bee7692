package influxdb

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	client "github.com/influxdata/influxdb1-client/v2"

	"github.com/nerrad567/vantage-sync/internal/archive"
)

// QueryLatest returns the newest stored point of a measurement within the
// configured lookback window, or nil if there is none.
func (c *Client) QueryLatest(ctx context.Context, measurement string) (*archive.StoredPoint, error) {
	if !c.IsConnected() {
		return nil, ErrNotConnected
	}
	if c.v2 != nil {
		return c.latestFlux(ctx, measurement)
	}
	return c.latestInfluxQL(measurement)
}

func (c *Client) latestFlux(ctx context.Context, measurement string) (*archive.StoredPoint, error) {
	q := latestFluxQuery(c.cfg.Database, measurement, c.cfg.GetLookback())

	result, err := c.v2.QueryAPI(c.cfg.Org).Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	defer result.Close()

	var latest *archive.StoredPoint
	for result.Next() {
		rec := result.Record()
		latest = mergeLatest(latest, rec.Time(), rec.Field(), rec.Value())
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	return latest, nil
}

// latestFluxQuery selects the last value of every field; the caller keeps
// those sharing the newest timestamp.
func latestFluxQuery(bucket, measurement string, lookback time.Duration) string {
	return fmt.Sprintf(`from(bucket: %s)
  |> range(start: -%dh)
  |> filter(fn: (r) => r._measurement == %s)
  |> last()
  |> keep(columns: ["_time", "_field", "_value"])`,
		fluxString(bucket), lookbackHours(lookback), fluxString(measurement))
}

func (c *Client) latestInfluxQL(measurement string) (*archive.StoredPoint, error) {
	cmd := latestInfluxQLQuery(measurement, c.cfg.GetLookback())

	resp, err := c.v1.Query(client.NewQuery(cmd, c.cfg.Database, "ns"))
	if err == nil {
		err = resp.Error()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	var latest *archive.StoredPoint
	for _, res := range resp.Results {
		for _, row := range res.Series {
			for _, values := range row.Values {
				ts, fields, err := decodeRow(row.Columns, values)
				if err != nil {
					return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
				}
				for name, v := range fields {
					latest = mergeLatest(latest, ts, name, v)
				}
			}
		}
	}
	return latest, nil
}

func latestInfluxQLQuery(measurement string, lookback time.Duration) string {
	return fmt.Sprintf("SELECT * FROM %s WHERE time > now() - %dh ORDER BY time DESC LIMIT 1",
		quoteIdent(measurement), lookbackHours(lookback))
}

// decodeRow splits an InfluxQL row into its timestamp and non-null values.
// The v1 client decodes numbers as json.Number.
func decodeRow(columns []string, values []any) (time.Time, map[string]any, error) {
	var ts time.Time
	fields := make(map[string]any, len(columns))

	for i, col := range columns {
		if i >= len(values) || values[i] == nil {
			continue
		}
		v := values[i]
		if col == "time" {
			n, ok := v.(json.Number)
			if !ok {
				return time.Time{}, nil, fmt.Errorf("time column is %T, want epoch number", v)
			}
			ns, err := n.Int64()
			if err != nil {
				return time.Time{}, nil, fmt.Errorf("time column: %w", err)
			}
			ts = time.Unix(0, ns).UTC()
			continue
		}
		if n, ok := v.(json.Number); ok {
			f, err := n.Float64()
			if err != nil {
				return time.Time{}, nil, fmt.Errorf("column %s: %w", col, err)
			}
			v = f
		}
		fields[col] = v
	}
	if ts.IsZero() {
		return time.Time{}, nil, fmt.Errorf("row has no time column")
	}
	return ts, fields, nil
}

// mergeLatest folds one field value into the newest point seen so far.
func mergeLatest(latest *archive.StoredPoint, t time.Time, field string, value any) *archive.StoredPoint {
	t = t.UTC()
	switch {
	case latest == nil || t.After(latest.Time):
		return &archive.StoredPoint{Time: t, Fields: map[string]any{field: value}}
	case t.Equal(latest.Time):
		latest.Fields[field] = value
	}
	return latest
}

func lookbackHours(d time.Duration) int {
	h := int(d / time.Hour)
	if h < 1 {
		return 1
	}
	return h
}

// Flux string literals and InfluxQL quoted identifiers share escaping rules.
var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func fluxString(s string) string { return `"` + quoteEscaper.Replace(s) + `"` }

// quoteIdent quotes an InfluxQL identifier.
func quoteIdent(s string) string { return `"` + quoteEscaper.Replace(s) + `"` }
