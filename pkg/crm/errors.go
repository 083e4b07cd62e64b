package crm

import (
	"errors"
	"fmt"
)

// ValidationError reports a payload that failed schema checks. It is raised
// before any store call; a failed validation is never partially applied.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// NotFoundError reports a missing identity.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// QueryConfigurationError reports a predicate combination the store cannot
// express. The query layer fails fast rather than silently dropping a filter.
type QueryConfigurationError struct {
	Reason string
}

func (e *QueryConfigurationError) Error() string {
	return fmt.Sprintf("query configuration error: %s", e.Reason)
}

// StoreError wraps a transport or availability failure from the store
// adapter. It is propagated unchanged; this layer never retries.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error during %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// PartialAggregateError reports that one of the parallel count queries of a
// stats aggregate failed. The whole aggregate fails; no partial stats.
type PartialAggregateError struct {
	Query string
	Err   error
}

func (e *PartialAggregateError) Error() string {
	return fmt.Sprintf("stats aggregate failed on %q: %v", e.Query, e.Err)
}

func (e *PartialAggregateError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var n *NotFoundError
	return errors.As(err, &n)
}

// IsQueryConfiguration reports whether err is a QueryConfigurationError.
func IsQueryConfiguration(err error) bool {
	var q *QueryConfigurationError
	return errors.As(err, &q)
}
