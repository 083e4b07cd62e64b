package students

import (
	"sort"

	"github.com/admitdesk/admitdesk/pkg/crm"
	"github.com/admitdesk/admitdesk/pkg/repository/document"
)

// mergeDualPrefix combines the two prefix batches of a text search into one
// page: union, dedupe by identity, re-sort by recency descending, apply the
// pending post-filters, truncate to the page size, and derive the next
// cursor from each sub-query's own ordering.
func mergeDualPrefix(plan queryPlan, nameDocs, emailDocs []document.Document) (Page, error) {
	type batchRef struct {
		subQuery string
		index    int
	}

	students := map[string]crm.Student{}
	origins := map[string][]batchRef{}
	var unionIDs []string

	collect := func(subQuery string, docs []document.Document) error {
		for i, d := range docs {
			id, _ := d["id"].(string)
			if _, seen := students[id]; !seen {
				st, err := studentFromDoc(d)
				if err != nil {
					return err
				}
				students[id] = st
				unionIDs = append(unionIDs, id)
			}
			origins[id] = append(origins[id], batchRef{subQuery: subQuery, index: i})
		}
		return nil
	}
	if err := collect(subQueryName, nameDocs); err != nil {
		return Page{}, err
	}
	if err := collect(subQueryEmail, emailDocs); err != nil {
		return Page{}, err
	}

	sort.Slice(unionIDs, func(i, j int) bool {
		return recencyLess(students[unionIDs[i]], students[unionIDs[j]])
	})

	// Post-filters run after the merge, in composition order. A record
	// rejected here counts as consumed for cursor purposes: it will never
	// match this filter set and must not be refetched.
	consumed := map[string]bool{}
	var emitted []crm.Student
	leftover := 0
	for _, id := range unionIDs {
		st := students[id]
		rejected := false
		for _, keep := range plan.post {
			if !keep(st) {
				rejected = true
				break
			}
		}
		if rejected {
			consumed[id] = true
			continue
		}
		if len(emitted) < plan.pageSize {
			emitted = append(emitted, st)
			consumed[id] = true
		} else {
			leftover++
		}
	}

	page := Page{Items: emitted}

	hasMore := len(nameDocs) == plan.pageSize || len(emailDocs) == plan.pageSize || leftover > 0
	if !hasMore {
		return page, nil
	}

	keys := map[string]document.ResumeKey{}
	advanced := false

	// Each sub-query resumes independently: advance its key over the
	// longest fully-consumed prefix of its own batch so that fetched but
	// unconsumed records are seen again on the next page.
	advance := func(subQuery, field string, docs []document.Document) {
		prefix := 0
		for _, d := range docs {
			id, _ := d["id"].(string)
			if !consumed[id] {
				break
			}
			prefix++
		}
		if prefix == 0 {
			if key, ok := plan.cursor.Keys[subQuery]; ok {
				keys[subQuery] = key
			}
			return
		}
		last := docs[prefix-1]
		keys[subQuery] = document.ResumeKey{Value: last[field], ID: last["id"].(string)}
		advanced = true
	}
	advance(subQueryName, "name_lc", nameDocs)
	advance(subQueryEmail, "email_lc", emailDocs)

	// If neither prefix advanced the page still emitted records; resume
	// after the last emitted record within its originating sub-query so
	// pagination always makes progress.
	if !advanced && len(emitted) > 0 {
		lastID := emitted[len(emitted)-1].ID
		for _, ref := range origins[lastID] {
			var docs []document.Document
			field := "name_lc"
			if ref.subQuery == subQueryEmail {
				docs = emailDocs
				field = "email_lc"
			} else {
				docs = nameDocs
			}
			d := docs[ref.index]
			keys[ref.subQuery] = document.ResumeKey{Value: d[field], ID: lastID}
		}
	}

	if len(keys) == 0 {
		return page, nil
	}
	page.NextCursor = document.Cursor{Fingerprint: plan.fingerprint, Keys: keys}.Encode()
	return page, nil
}
