package bulk

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyBatch    = errors.New("batch has no identifiers")
	ErrBatchTooLarge = errors.New("batch exceeds maximum size")
	ErrBatchStarted  = errors.New("batch already started")

	errNoResolver      = errors.New("no UPC resolver configured")
	errNoFetcher       = errors.New("no analytics source configured")
	errEmptyResolution = errors.New("resolver returned no ASIN")
	errEmptyAnalytics  = errors.New(reasonEmptyAnalytics)
)

// Item failure reasons recorded on BulkItem.Error.
const (
	ReasonInvalidFormat  = "Invalid format"
	ReasonUPCConversion  = "UPC conversion failed"
	reasonEmptyAnalytics = "no analytics returned"
)

// ValidationError is returned when a batch fails pre-flight checks. No item
// has been processed when it is returned.
type ValidationError struct {
	Err   error
	Count int
	Limit int
}

func (e *ValidationError) Error() string {
	if errors.Is(e.Err, ErrBatchTooLarge) {
		return fmt.Sprintf("%v: %d identifiers, limit is %d", e.Err, e.Count, e.Limit)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

func validate(ids []string, limit int) error {
	switch {
	case len(ids) == 0:
		return &ValidationError{Err: ErrEmptyBatch, Limit: limit}
	case len(ids) > limit:
		return &ValidationError{Err: ErrBatchTooLarge, Count: len(ids), Limit: limit}
	}
	return nil
}
