package influxdb

import (
	"context"
	"fmt"

	client "github.com/influxdata/influxdb1-client/v2"
)

// EnsureDatabase creates the configured database (v1) or bucket (v2) if it
// does not exist yet. Creation is idempotent on both API generations.
func (c *Client) EnsureDatabase(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	if c.v2 != nil {
		return c.ensureBucket(ctx)
	}

	cmd := "CREATE DATABASE " + quoteIdent(c.cfg.Database)
	if err := c.v1Exec(client.NewQuery(cmd, "", "")); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDatabase, cmd, err)
	}
	return nil
}

func (c *Client) ensureBucket(ctx context.Context) error {
	buckets := c.v2.BucketsAPI()
	if _, err := buckets.FindBucketByName(ctx, c.cfg.Database); err == nil {
		return nil
	}

	org, err := c.v2.OrganizationsAPI().FindOrganizationByName(ctx, c.cfg.Org)
	if err != nil {
		return fmt.Errorf("%w: finding organization %q: %w", ErrDatabase, c.cfg.Org, err)
	}
	if _, err := buckets.CreateBucketWithName(ctx, org, c.cfg.Database); err != nil {
		return fmt.Errorf("%w: creating bucket %q: %w", ErrDatabase, c.cfg.Database, err)
	}
	return nil
}

// v1Exec runs an InfluxQL statement and folds response-level errors into
// the returned error.
func (c *Client) v1Exec(q client.Query) error {
	resp, err := c.v1.Query(q)
	if err != nil {
		return err
	}
	return resp.Error()
}
