package students

import (
	"fmt"
	"testing"
	"time"

	"github.com/admitdesk/admitdesk/pkg/crm"
	"github.com/admitdesk/admitdesk/pkg/repository/document"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func studentDoc(i int, lastActive time.Time) document.Document {
	id := fmt.Sprintf("stu_%03d", i)
	return document.Document{
		"id":         id,
		"name":       fmt.Sprintf("ann %03d", i),
		"name_lc":    fmt.Sprintf("ann %03d", i),
		"email":      fmt.Sprintf("ann%03d@x.com", i),
		"email_lc":   fmt.Sprintf("ann%03d@x.com", i),
		"status":     string(crm.StatusExploring),
		"progress":   0,
		"lastActive": lastActive,
	}
}

func TestMergeTruncatesAndSignalsMore(t *testing.T) {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	plan := queryPlan{kind: planDualPrefix, pageSize: 2, fingerprint: 42}

	nameDocs := []document.Document{
		studentDoc(1, base.Add(3*time.Hour)),
		studentDoc(2, base.Add(2*time.Hour)),
	}
	emailDocs := []document.Document{
		studentDoc(3, base.Add(1*time.Hour)),
	}

	page, err := mergeDualPrefix(plan, nameDocs, emailDocs)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(page.Items) != 2 || page.Items[0].ID != "stu_001" || page.Items[1].ID != "stu_002" {
		t.Fatalf("wrong page: %+v", page.Items)
	}
	// The name batch came back full, so more matches may exist server-side.
	if page.NextCursor == "" {
		t.Fatal("expected a cursor while a batch is full")
	}
	cur, err := document.DecodeCursor(page.NextCursor)
	if err != nil {
		t.Fatalf("decode cursor: %v", err)
	}
	if cur.Fingerprint != 42 {
		t.Fatalf("cursor fingerprint %d", cur.Fingerprint)
	}
	key, ok := cur.Keys[subQueryName]
	if !ok || key.ID != "stu_002" {
		t.Fatalf("name sub-query should resume after stu_002: %+v", cur.Keys)
	}
}

func TestMergeLeftoverForcesCursor(t *testing.T) {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	plan := queryPlan{kind: planDualPrefix, pageSize: 3, fingerprint: 7}

	// Neither batch is full, but their union exceeds the page size: the
	// truncated tail must still be reachable through the cursor.
	nameDocs := []document.Document{
		studentDoc(1, base.Add(4*time.Hour)),
		studentDoc(2, base.Add(3*time.Hour)),
	}
	emailDocs := []document.Document{
		studentDoc(3, base.Add(2*time.Hour)),
		studentDoc(4, base.Add(1*time.Hour)),
	}

	page, err := mergeDualPrefix(plan, nameDocs, emailDocs)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(page.Items) != 3 {
		t.Fatalf("page not truncated: %+v", page.Items)
	}
	if page.NextCursor == "" {
		t.Fatal("expected a cursor for the leftover tail")
	}
}

func TestMergePostFilterConsumesRejected(t *testing.T) {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	plan := queryPlan{
		kind:        planDualPrefix,
		pageSize:    2,
		fingerprint: 9,
		post: []func(crm.Student) bool{
			func(st crm.Student) bool { return st.ID != "stu_002" },
		},
	}

	nameDocs := []document.Document{
		studentDoc(1, base.Add(3*time.Hour)),
		studentDoc(2, base.Add(2*time.Hour)),
	}

	page, err := mergeDualPrefix(plan, nameDocs, nil)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != "stu_001" {
		t.Fatalf("post filter not applied: %+v", page.Items)
	}
	if page.NextCursor == "" {
		t.Fatal("expected a cursor while the batch is full")
	}
	cur, err := document.DecodeCursor(page.NextCursor)
	if err != nil {
		t.Fatalf("decode cursor: %v", err)
	}
	// The rejected record counts as consumed: the cursor moves past it so
	// it is never refetched under this filter set.
	if key := cur.Keys[subQueryName]; key.ID != "stu_002" {
		t.Fatalf("rejected record not consumed: %+v", cur.Keys)
	}
}

// Merging two prefix batches never duplicates a record within a page, never
// exceeds the page size, and always orders by recency descending with the
// identity as tie break.
func TestProperty_MergePageInvariants(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 100
	properties := gopter.NewProperties(params)

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	properties.Property("pages are deduplicated, bounded and recency-ordered", prop.ForAll(
		func(total, overlap, pageSize, tsBuckets int) bool {
			if overlap > total {
				overlap = total
			}
			var nameDocs, emailDocs []document.Document
			for i := 0; i < total; i++ {
				doc := studentDoc(i, base.Add(time.Duration(i%tsBuckets)*time.Minute))
				if i%2 == 0 || i < overlap {
					nameDocs = append(nameDocs, doc)
				}
				if i%2 == 1 || i < overlap {
					emailDocs = append(emailDocs, doc)
				}
			}
			if len(nameDocs) > pageSize {
				nameDocs = nameDocs[:pageSize]
			}
			if len(emailDocs) > pageSize {
				emailDocs = emailDocs[:pageSize]
			}

			plan := queryPlan{kind: planDualPrefix, pageSize: pageSize, fingerprint: 1}
			page, err := mergeDualPrefix(plan, nameDocs, emailDocs)
			if err != nil {
				return false
			}
			if len(page.Items) > pageSize {
				return false
			}
			seen := map[string]bool{}
			for i, st := range page.Items {
				if seen[st.ID] {
					return false
				}
				seen[st.ID] = true
				if i > 0 && !recencyLess(page.Items[i-1], st) {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 30),
		gen.IntRange(0, 10),
		gen.IntRange(1, 7),
		gen.IntRange(1, 4),
	))

	properties.TestingRun(t)
}
