// Package document defines the contract between the CRM services and the
// backing document store: typed predicates, single-field ordering, keyset
// resumption, and count queries. The store is assumed to have the usual
// managed-document-store limits: one range field per query, and the range
// field must match the sort field.
package document

import (
	"context"
	"errors"
	"fmt"
)

// Document is the raw wire shape of a stored record. Executors return
// documents with the string identity under the "id" key.
type Document map[string]any

// ErrNotFound is returned by Get, Update and Delete when no document
// matches the identity.
var ErrNotFound = errors.New("document not found")

// Op is a predicate operator.
type Op string

const (
	OpEq       Op = "=="
	OpNe       Op = "!="
	OpGt       Op = ">"
	OpGte      Op = ">="
	OpLt       Op = "<"
	OpLte      Op = "<="
	OpContains Op = "array-contains"
)

// IsRange reports whether the operator is an inequality over an ordered field.
func (o Op) IsRange() bool {
	switch o {
	case OpGt, OpGte, OpLt, OpLte:
		return true
	}
	return false
}

// Predicate is one field condition of a query.
type Predicate struct {
	Field string
	Op    Op
	Value any
}

func Eq(field string, v any) Predicate       { return Predicate{Field: field, Op: OpEq, Value: v} }
func Ne(field string, v any) Predicate       { return Predicate{Field: field, Op: OpNe, Value: v} }
func Gt(field string, v any) Predicate       { return Predicate{Field: field, Op: OpGt, Value: v} }
func Gte(field string, v any) Predicate      { return Predicate{Field: field, Op: OpGte, Value: v} }
func Lt(field string, v any) Predicate       { return Predicate{Field: field, Op: OpLt, Value: v} }
func Lte(field string, v any) Predicate      { return Predicate{Field: field, Op: OpLte, Value: v} }
func Contains(field string, v any) Predicate { return Predicate{Field: field, Op: OpContains, Value: v} }

// OrderBy is the single-field server-side sort of a query. Executors break
// ties on the document identity ascending so orderings are total.
type OrderBy struct {
	Field string
	Desc  bool
}

// ResumeKey identifies the last item returned by a previous page of a query
// under that query's specific ordering.
type ResumeKey struct {
	Value any    `json:"v"`
	ID    string `json:"id"`
}

// Query is one server-side query: predicates, ordering, limit, and an
// optional resumption point.
type Query struct {
	Predicates []Predicate
	Order      OrderBy
	Limit      int
	Resume     *ResumeKey
}

// UnsupportedQueryError reports a predicate combination the store cannot
// express in a single query.
type UnsupportedQueryError struct {
	Reason string
}

func (e *UnsupportedQueryError) Error() string {
	return fmt.Sprintf("unsupported query: %s", e.Reason)
}

// Validate enforces the store's single-query composability limits:
// a range predicate must be on the sort field, at most one field may carry
// range predicates, and a range predicate may not be combined with a
// not-equals predicate on a different field.
func (q Query) Validate() error {
	rangeField := ""
	for _, p := range q.Predicates {
		if !p.Op.IsRange() {
			continue
		}
		if rangeField == "" {
			rangeField = p.Field
			continue
		}
		if rangeField != p.Field {
			return &UnsupportedQueryError{
				Reason: fmt.Sprintf("range predicates on both %q and %q", rangeField, p.Field),
			}
		}
	}
	if rangeField != "" {
		if q.Order.Field != "" && q.Order.Field != rangeField {
			return &UnsupportedQueryError{
				Reason: fmt.Sprintf("range predicate on %q but ordering on %q", rangeField, q.Order.Field),
			}
		}
		for _, p := range q.Predicates {
			if p.Op == OpNe && p.Field != rangeField {
				return &UnsupportedQueryError{
					Reason: fmt.Sprintf("range predicate on %q combined with != on %q", rangeField, p.Field),
				}
			}
		}
	}
	if q.Limit < 0 {
		return &UnsupportedQueryError{Reason: "negative limit"}
	}
	return nil
}

// Executor runs document operations against a concrete store. All timestamp
// writes go through serverTimeFields: the store assigns its own current time
// to the named fields, so client clock skew can never corrupt ordering.
type Executor interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Insert(ctx context.Context, collection, id string, doc Document, serverTimeFields []string) error
	Update(ctx context.Context, collection, id string, patch Document, serverTimeFields []string) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, collection string, q Query) ([]Document, error)
	Count(ctx context.Context, collection string, predicates []Predicate) (int64, error)
}
