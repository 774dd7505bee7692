package syncer

import (
	"context"
	"errors"

	"github.com/nerrad567/vantage-sync/internal/archive"
)

// Publishers fans out to several publishers. Every publisher is called
// even when an earlier one fails; the errors are joined.
type Publishers []Publisher

// PublishReadings implements Publisher.
func (ps Publishers) PublishReadings(ctx context.Context, readings []archive.Reading) error {
	var errs []error
	for _, p := range ps {
		if err := p.PublishReadings(ctx, readings); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishStatus implements Publisher.
func (ps Publishers) PublishStatus(ctx context.Context, status Status) error {
	var errs []error
	for _, p := range ps {
		if err := p.PublishStatus(ctx, status); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
