package audit

import "errors"

var (
	// ErrWriterClosed indicates the async writer no longer accepts attempts
	ErrWriterClosed = errors.New("audit: async writer is closed")

	// ErrInvalidCriteria indicates the query criteria are inconsistent
	ErrInvalidCriteria = errors.New("audit: invalid criteria")
)
