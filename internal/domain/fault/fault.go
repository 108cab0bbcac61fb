// Package fault defines the error kinds shared by the storefront domain.
//
// Storage code reports every failure as a *DataAccessError, input checks
// report *ValidationError, and lookups of a single missing record return
// ErrNotFound. Only the HTTP handlers translate these into responses.
package fault

import (
	"fmt"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a single requested record does not exist.
var ErrNotFound = errors.New("not found")

// DataAccessError reports a failed read or write against the backing store:
// connectivity, constraint violations, malformed rows or timeouts.
type DataAccessError struct {
	Op  string
	Err error
}

func (e *DataAccessError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DataAccessError) Unwrap() error { return e.Err }

// DataAccess wraps err as a *DataAccessError for operation op.
// It returns nil when err is nil.
func DataAccess(op string, err error) error {
	if err == nil {
		return nil
	}
	return &DataAccessError{Op: op, Err: err}
}

// ValidationError reports a missing or malformed caller-supplied parameter.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Invalid returns a *ValidationError for field.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
