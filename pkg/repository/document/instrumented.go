package document

import "context"

// Observer receives the outcome of one store operation.
type Observer func(collection, operation string, err error)

type instrumentedExecutor struct {
	next    Executor
	observe Observer
}

// Instrument wraps an executor so every operation reports its outcome to
// observe. A nil observer returns the executor unchanged.
func Instrument(next Executor, observe Observer) Executor {
	if observe == nil {
		return next
	}
	return &instrumentedExecutor{next: next, observe: observe}
}

func (e *instrumentedExecutor) Get(ctx context.Context, collection, id string) (Document, error) {
	doc, err := e.next.Get(ctx, collection, id)
	e.observe(collection, "get", err)
	return doc, err
}

func (e *instrumentedExecutor) Insert(ctx context.Context, collection, id string, doc Document, serverTimeFields []string) error {
	err := e.next.Insert(ctx, collection, id, doc, serverTimeFields)
	e.observe(collection, "insert", err)
	return err
}

func (e *instrumentedExecutor) Update(ctx context.Context, collection, id string, patch Document, serverTimeFields []string) error {
	err := e.next.Update(ctx, collection, id, patch, serverTimeFields)
	e.observe(collection, "update", err)
	return err
}

func (e *instrumentedExecutor) Delete(ctx context.Context, collection, id string) error {
	err := e.next.Delete(ctx, collection, id)
	e.observe(collection, "delete", err)
	return err
}

func (e *instrumentedExecutor) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	docs, err := e.next.Query(ctx, collection, q)
	e.observe(collection, "query", err)
	return docs, err
}

func (e *instrumentedExecutor) Count(ctx context.Context, collection string, predicates []Predicate) (int64, error) {
	n, err := e.next.Count(ctx, collection, predicates)
	e.observe(collection, "count", err)
	return n, err
}
