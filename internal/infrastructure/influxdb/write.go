package influxdb

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	client "github.com/influxdata/influxdb1-client/v2"

	"github.com/nerrad567/vantage-sync/internal/archive"
)

// WriteBatch writes all points in a single blocking request. An empty
// batch is a no-op.
func (c *Client) WriteBatch(ctx context.Context, points []archive.Point) error {
	if len(points) == 0 {
		return nil
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	if c.v2 != nil {
		pts := make([]*write.Point, 0, len(points))
		for _, p := range points {
			pts = append(pts, influxdb2.NewPoint(p.Measurement, p.Tags, p.Fields, p.Time))
		}
		if err := c.v2.WriteAPIBlocking(c.cfg.Org, c.cfg.Database).WritePoint(ctx, pts...); err != nil {
			return fmt.Errorf("%w: %d points: %w", ErrWriteFailed, len(points), err)
		}
		return nil
	}

	bp, err := client.NewBatchPoints(client.BatchPointsConfig{
		Database:  c.cfg.Database,
		Precision: "s",
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	for _, p := range points {
		pt, err := client.NewPoint(p.Measurement, p.Tags, p.Fields, p.Time)
		if err != nil {
			return fmt.Errorf("%w: point %s at %s: %w", ErrWriteFailed, p.Measurement, p.Time, err)
		}
		bp.AddPoint(pt)
	}
	if err := c.v1.Write(bp); err != nil {
		return fmt.Errorf("%w: %d points: %w", ErrWriteFailed, len(points), err)
	}
	return nil
}
