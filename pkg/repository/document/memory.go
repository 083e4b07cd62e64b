package document

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryExecutor is an in-memory Executor with the same query semantics as
// the MongoDB executor. It backs unit tests and the seeder's dry-run mode.
type MemoryExecutor struct {
	mu          sync.RWMutex
	collections map[string]map[string]Document
	now         func() time.Time
}

// NewMemoryExecutor creates an empty in-memory store using the real clock.
func NewMemoryExecutor() *MemoryExecutor {
	return &MemoryExecutor{
		collections: make(map[string]map[string]Document),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the server clock. Tests use this to control the
// timestamps assigned to serverTimeFields.
func (m *MemoryExecutor) WithClock(now func() time.Time) *MemoryExecutor {
	m.now = now
	return m
}

func (m *MemoryExecutor) Get(_ context.Context, collection, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	out := copyDocument(doc)
	out["id"] = id
	return out, nil
}

func (m *MemoryExecutor) Insert(_ context.Context, collection, id string, doc Document, serverTimeFields []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.collections[collection] == nil {
		m.collections[collection] = make(map[string]Document)
	}
	stored := copyDocument(doc)
	ts := m.now()
	for _, f := range serverTimeFields {
		stored[f] = ts
	}
	delete(stored, "id")
	m.collections[collection][id] = stored
	return nil
}

func (m *MemoryExecutor) Update(_ context.Context, collection, id string, patch Document, serverTimeFields []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.collections[collection][id]
	if !ok {
		return ErrNotFound
	}
	for k, v := range copyDocument(patch) {
		if k == "id" {
			continue
		}
		stored[k] = v
	}
	ts := m.now()
	for _, f := range serverTimeFields {
		stored[f] = ts
	}
	return nil
}

func (m *MemoryExecutor) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.collections[collection][id]; !ok {
		return ErrNotFound
	}
	delete(m.collections[collection], id)
	return nil
}

func (m *MemoryExecutor) Query(_ context.Context, collection string, q Query) ([]Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	type entry struct {
		id  string
		doc Document
	}
	var matched []entry
	for id, doc := range m.collections[collection] {
		ok, err := matchesAll(doc, q.Predicates)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, entry{id: id, doc: doc})
		}
	}

	orderField := q.Order.Field
	sort.Slice(matched, func(i, j int) bool {
		if orderField != "" {
			c := compareValues(matched[i].doc[orderField], matched[j].doc[orderField])
			if c != 0 {
				if q.Order.Desc {
					return c > 0
				}
				return c < 0
			}
		}
		return matched[i].id < matched[j].id
	})

	var out []Document
	for _, e := range matched {
		if q.Resume != nil && orderField != "" {
			c := compareValues(e.doc[orderField], q.Resume.Value)
			after := false
			switch {
			case c == 0:
				after = e.id > q.Resume.ID
			case q.Order.Desc:
				after = c < 0
			default:
				after = c > 0
			}
			if !after {
				continue
			}
		}
		d := copyDocument(e.doc)
		d["id"] = e.id
		out = append(out, d)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryExecutor) Count(_ context.Context, collection string, predicates []Predicate) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, doc := range m.collections[collection] {
		ok, err := matchesAll(doc, predicates)
		if err != nil {
			return 0, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

func matchesAll(doc Document, predicates []Predicate) (bool, error) {
	for _, p := range predicates {
		ok, err := matches(doc, p)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func matches(doc Document, p Predicate) (bool, error) {
	got, present := doc[p.Field]
	switch p.Op {
	case OpEq:
		return present && compareValues(got, p.Value) == 0, nil
	case OpNe:
		return !present || compareValues(got, p.Value) != 0, nil
	case OpGt:
		return present && compareValues(got, p.Value) > 0, nil
	case OpGte:
		return present && compareValues(got, p.Value) >= 0, nil
	case OpLt:
		return present && compareValues(got, p.Value) < 0, nil
	case OpLte:
		return present && compareValues(got, p.Value) <= 0, nil
	case OpContains:
		if !present {
			return false, nil
		}
		switch arr := got.(type) {
		case []string:
			for _, v := range arr {
				if v == fmt.Sprint(p.Value) {
					return true, nil
				}
			}
		case []any:
			for _, v := range arr {
				if compareValues(v, p.Value) == 0 {
					return true, nil
				}
			}
		}
		return false, nil
	default:
		return false, &UnsupportedQueryError{Reason: fmt.Sprintf("unknown operator %q", p.Op)}
	}
}

// compareValues orders two document values. Missing values (nil) sort lowest,
// so a record without lastActive is treated as the oldest possible.
func compareValues(a, b any) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	switch av := a.(type) {
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			switch {
			case av.Before(bv):
				return -1
			case av.After(bv):
				return 1
			}
			return 0
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			}
			return 1
		}
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
	// Incomparable types order by their printed form to stay deterministic.
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func copyDocument(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch val := v.(type) {
	case Document:
		return copyDocument(val)
	case map[string]any:
		return map[string]any(copyDocument(val))
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = copyValue(e)
		}
		return out
	case []string:
		out := make([]string, len(val))
		copy(out, val)
		return out
	default:
		return v
	}
}
