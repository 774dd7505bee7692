package archive

import "errors"

// Data-quality errors for archive records.
//
// A record failing with any of these is skipped; the rest of the batch
// continues. Check with errors.Is():
//
//	if errors.Is(err, archive.ErrMissingTimeFields) {
//	    // log and drop the record
//	}
var (
	// ErrUnmappedField indicates a raw field name with no Rule in the table.
	ErrUnmappedField = errors.New("archive: unmapped field")

	// ErrMissingTimeFields indicates one or more of Year, Month, Day, Hour
	// or Min was absent from the record.
	ErrMissingTimeFields = errors.New("archive: missing time fields")

	// ErrInvalidValue indicates a raw value that is not numeric or is out
	// of range for its field.
	ErrInvalidValue = errors.New("archive: invalid value")
)

// ErrInvalidMapping indicates a mapper configuration error detected at
// startup (unknown rename source, canonical name collision).
var ErrInvalidMapping = errors.New("archive: invalid field mapping")
