package students

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/admitdesk/admitdesk/pkg/crm"
	"github.com/admitdesk/admitdesk/pkg/repository/document"
	"golang.org/x/sync/errgroup"
)

// QuickFilter is a named, predefined filter shortcut of the directory view.
type QuickFilter string

const (
	QuickNone         QuickFilter = ""
	QuickHighIntent   QuickFilter = "high-intent"
	QuickNeedsEssay   QuickFilter = "needs-essay"
	QuickNotContacted QuickFilter = "not-contacted-7d"
)

func (q QuickFilter) Valid() bool {
	switch q {
	case QuickNone, QuickHighIntent, QuickNeedsEssay, QuickNotContacted:
		return true
	}
	return false
}

// ListParams are the directory filter parameters. Cursor must come from a
// previous listing with the identical filter set.
type ListParams struct {
	Text     string
	Status   crm.Status
	Quick    QuickFilter
	PageSize int
	Cursor   string
}

// Page is one directory page ordered by recency descending.
type Page struct {
	Items      []crm.Student
	NextCursor string
}

// prefixHighSentinel closes a prefix range: field >= text AND field < text + sentinel.
const prefixHighSentinel = ""

// Sub-query names used as cursor keys.
const (
	subQueryRecency = "recency"
	subQueryName    = "name"
	subQueryEmail   = "email"
)

type planKind int

const (
	// planSingle is one server-side query with every filter pushed down.
	planSingle planKind = iota
	// planDualPrefix fans out to a name-prefix and an email-prefix query;
	// status and quick filters are applied client-side after the merge.
	planDualPrefix
)

// queryPlan is the composed execution plan of one listing call.
type queryPlan struct {
	kind        planKind
	pageSize    int
	fingerprint uint64
	cursor      document.Cursor

	single document.Query
	name   document.Query
	email  document.Query

	// post holds the client-side predicates still pending after the
	// server-side queries, in application order.
	post []func(crm.Student) bool
}

// List returns one page of the student directory. The two-query fan-out of
// a text search is issued concurrently; results are merged, deduplicated,
// re-sorted by recency, post-filtered, and truncated to the page size.
func (s *Service) List(ctx context.Context, p ListParams) (Page, error) {
	plan, err := s.composePlan(p)
	if err != nil {
		return Page{}, err
	}
	if plan.kind == planSingle {
		return s.listSingle(ctx, plan)
	}
	return s.listDualPrefix(ctx, plan)
}

func (s *Service) composePlan(p ListParams) (queryPlan, error) {
	text := strings.ToLower(strings.TrimSpace(p.Text))

	pageSize := p.PageSize
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		return queryPlan{}, &crm.ValidationError{Field: "pageSize", Reason: fmt.Sprintf("must be between 1 and %d", MaxPageSize)}
	}
	if p.Status != "" && !p.Status.Valid() {
		return queryPlan{}, &crm.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", p.Status)}
	}
	if !p.Quick.Valid() {
		return queryPlan{}, &crm.ValidationError{Field: "quick", Reason: fmt.Sprintf("unknown quick filter %q", p.Quick)}
	}

	plan := queryPlan{
		pageSize:    pageSize,
		fingerprint: document.FilterFingerprint(CollectionStudents, text, string(p.Status), string(p.Quick)),
	}
	if p.Cursor != "" {
		cur, err := document.DecodeCursor(p.Cursor)
		if err != nil {
			return queryPlan{}, &crm.ValidationError{Field: "cursor", Reason: err.Error()}
		}
		if cur.Fingerprint != plan.fingerprint {
			return queryPlan{}, &crm.ValidationError{Field: "cursor", Reason: "cursor was issued for a different filter set"}
		}
		plan.cursor = cur
	}

	if text == "" {
		return s.composeSingle(p, plan)
	}
	return s.composeDualPrefix(p, plan, text)
}

// composeSingle pushes every filter into one server-side query ordered by
// recency descending.
func (s *Service) composeSingle(p ListParams, plan queryPlan) (queryPlan, error) {
	plan.kind = planSingle

	var preds []document.Predicate
	if p.Status != "" {
		preds = append(preds, document.Eq("status", string(p.Status)))
	}
	switch p.Quick {
	case QuickHighIntent:
		preds = append(preds, document.Eq("highIntent", true))
	case QuickNeedsEssay:
		preds = append(preds, document.Eq("needsEssayHelp", true))
	case QuickNotContacted:
		preds = append(preds, document.Lt("lastActive", s.now().Add(-NotContactedWindow)))
	}

	plan.single = document.Query{
		Predicates: preds,
		Order:      document.OrderBy{Field: "lastActive", Desc: true},
		Limit:      plan.pageSize,
	}
	if key, ok := plan.cursor.Keys[subQueryRecency]; ok {
		k := key
		plan.single.Resume = &k
	}
	if err := plan.single.Validate(); err != nil {
		return queryPlan{}, asQueryConfigurationError(err)
	}
	return plan, nil
}

// composeDualPrefix builds the two prefix queries of a text search. The
// store supports only a single range field per query with a matching sort
// order, so a search over name and email cannot be one query: the status and
// quick filters cannot ride along either and become client-side post-filters.
func (s *Service) composeDualPrefix(p ListParams, plan queryPlan, text string) (queryPlan, error) {
	plan.kind = planDualPrefix

	prefix := func(field string) document.Query {
		return document.Query{
			Predicates: []document.Predicate{
				document.Gte(field, text),
				document.Lt(field, text+prefixHighSentinel),
			},
			Order: document.OrderBy{Field: field},
			Limit: plan.pageSize,
		}
	}
	plan.name = prefix("name_lc")
	plan.email = prefix("email_lc")
	if key, ok := plan.cursor.Keys[subQueryName]; ok {
		k := key
		plan.name.Resume = &k
	}
	if key, ok := plan.cursor.Keys[subQueryEmail]; ok {
		k := key
		plan.email.Resume = &k
	}

	if p.Status != "" {
		status := p.Status
		plan.post = append(plan.post, func(st crm.Student) bool { return st.Status == status })
	}
	switch p.Quick {
	case QuickHighIntent:
		plan.post = append(plan.post, func(st crm.Student) bool { return st.HighIntent })
	case QuickNeedsEssay:
		plan.post = append(plan.post, func(st crm.Student) bool { return st.NeedsEssayHelp })
	case QuickNotContacted:
		cutoff := s.now().Add(-NotContactedWindow)
		plan.post = append(plan.post, func(st crm.Student) bool {
			return !st.LastActive.IsZero() && st.LastActive.Before(cutoff)
		})
	}

	for _, q := range []document.Query{plan.name, plan.email} {
		if err := q.Validate(); err != nil {
			return queryPlan{}, asQueryConfigurationError(err)
		}
	}
	return plan, nil
}

func (s *Service) listSingle(ctx context.Context, plan queryPlan) (Page, error) {
	docs, err := s.queryStudents(ctx, plan.single)
	if err != nil {
		return Page{}, err
	}

	items := make([]crm.Student, 0, len(docs))
	for _, d := range docs {
		st, err := studentFromDoc(d)
		if err != nil {
			return Page{}, err
		}
		items = append(items, st)
	}

	page := Page{Items: items}
	if len(docs) == plan.pageSize {
		last := docs[len(docs)-1]
		page.NextCursor = document.Cursor{
			Fingerprint: plan.fingerprint,
			Keys: map[string]document.ResumeKey{
				subQueryRecency: {Value: last["lastActive"], ID: last["id"].(string)},
			},
		}.Encode()
	}
	return page, nil
}

func (s *Service) listDualPrefix(ctx context.Context, plan queryPlan) (Page, error) {
	var nameDocs, emailDocs []document.Document

	// Both prefix queries run concurrently and are awaited jointly.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		docs, err := s.queryStudents(gctx, plan.name)
		nameDocs = docs
		return err
	})
	g.Go(func() error {
		docs, err := s.queryStudents(gctx, plan.email)
		emailDocs = docs
		return err
	})
	if err := g.Wait(); err != nil {
		return Page{}, err
	}

	return mergeDualPrefix(plan, nameDocs, emailDocs)
}

func (s *Service) queryStudents(ctx context.Context, q document.Query) ([]document.Document, error) {
	docs, err := s.exec.Query(ctx, CollectionStudents, q)
	if err != nil {
		var unsupported *document.UnsupportedQueryError
		if errors.As(err, &unsupported) {
			return nil, &crm.QueryConfigurationError{Reason: unsupported.Reason}
		}
		return nil, &crm.StoreError{Op: "list students", Err: err}
	}
	return docs, nil
}

func asQueryConfigurationError(err error) error {
	var unsupported *document.UnsupportedQueryError
	if errors.As(err, &unsupported) {
		return &crm.QueryConfigurationError{Reason: unsupported.Reason}
	}
	return err
}

// recencyLess orders students by lastActive descending with the identity
// string ascending as tie break, making repeated listings deterministic. A
// missing lastActive sorts as the oldest possible value.
func recencyLess(a, b crm.Student) bool {
	switch {
	case a.LastActive.After(b.LastActive):
		return true
	case b.LastActive.After(a.LastActive):
		return false
	}
	return a.ID < b.ID
}
