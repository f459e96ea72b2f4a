package odata

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownAttribute is returned when a filter attribute name is not
	// registered for the active catalog mode.
	ErrUnknownAttribute = errors.New("unknown attribute")

	// ErrInvalidAttributeValue is returned when an attribute value cannot be
	// formatted as the attribute's literal kind.
	ErrInvalidAttributeValue = errors.New("invalid attribute value")

	// ErrInvalidOrderBy is returned when an order-by expression references an
	// unknown field or direction.
	ErrInvalidOrderBy = errors.New("invalid order-by expression")

	// ErrEmptyFilter is returned when a request compiles to zero clauses.
	ErrEmptyFilter = errors.New("no filter clauses: at least one search constraint is required")

	// ErrQueryUnavailable is returned when the retry budget for transient
	// catalog failures is exhausted.
	ErrQueryUnavailable = errors.New("catalog unavailable")
)

// QueryRejectedError is returned for non-retryable 4xx responses from the
// catalog. The server's status and body are surfaced verbatim.
type QueryRejectedError struct {
	StatusCode int
	Body       string
}

func (e *QueryRejectedError) Error() string {
	return fmt.Sprintf("catalog rejected query with status %d: %s", e.StatusCode, e.Body)
}
