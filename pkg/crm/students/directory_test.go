package students

import (
	"context"
	"testing"
	"time"

	"github.com/admitdesk/admitdesk/pkg/crm"
)

func ids(page Page) []string {
	out := make([]string, 0, len(page.Items))
	for _, st := range page.Items {
		out = append(out, st.ID)
	}
	return out
}

func sameIDs(a []string, b ...string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestListOrdersByRecency(t *testing.T) {
	svc, _, clk := newFixture()
	ctx := context.Background()

	mustCreate(t, svc, "s1", NewStudent{Name: "Ann", Email: "ann@x.com"})
	clk.advance(time.Hour)
	mustCreate(t, svc, "s2", NewStudent{Name: "Bob", Email: "bob@x.com"})
	clk.advance(time.Hour)
	mustCreate(t, svc, "s3", NewStudent{Name: "Cat", Email: "cat@x.com"})

	page, err := svc.List(ctx, ListParams{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !sameIDs(ids(page), "s3", "s2", "s1") {
		t.Fatalf("wrong order: %v", ids(page))
	}
	if page.NextCursor != "" {
		t.Fatalf("unexpected cursor on final page: %q", page.NextCursor)
	}
}

func TestListStatusFilter(t *testing.T) {
	svc, _, clk := newFixture()
	ctx := context.Background()

	mustCreate(t, svc, "s1", NewStudent{Name: "Ann", Email: "ann@x.com", Status: crm.StatusApplying})
	clk.advance(time.Hour)
	mustCreate(t, svc, "s2", NewStudent{Name: "Bob", Email: "bob@x.com", Status: crm.StatusExploring})
	clk.advance(time.Hour)
	mustCreate(t, svc, "s3", NewStudent{Name: "Cat", Email: "cat@x.com", Status: crm.StatusApplying})

	page, err := svc.List(ctx, ListParams{Status: crm.StatusApplying})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !sameIDs(ids(page), "s3", "s1") {
		t.Fatalf("wrong ids: %v", ids(page))
	}
}

func TestListQuickFilters(t *testing.T) {
	svc, _, clk := newFixture()
	ctx := context.Background()

	mustCreate(t, svc, "stale", NewStudent{Name: "Ann", Email: "ann@x.com"})
	clk.advance(10 * 24 * time.Hour)
	mustCreate(t, svc, "intent", NewStudent{Name: "Bob", Email: "bob@x.com", HighIntent: true})
	clk.advance(time.Hour)
	mustCreate(t, svc, "essay", NewStudent{Name: "Cat", Email: "cat@x.com", NeedsEssayHelp: true})

	cases := []struct {
		quick QuickFilter
		want  []string
	}{
		{QuickHighIntent, []string{"intent"}},
		{QuickNeedsEssay, []string{"essay"}},
		{QuickNotContacted, []string{"stale"}},
	}
	for _, tc := range cases {
		page, err := svc.List(ctx, ListParams{Quick: tc.quick})
		if err != nil {
			t.Fatalf("list %s: %v", tc.quick, err)
		}
		if !sameIDs(ids(page), tc.want...) {
			t.Fatalf("%s: got %v want %v", tc.quick, ids(page), tc.want)
		}
	}
}

func TestListPagination(t *testing.T) {
	svc, _, clk := newFixture()
	ctx := context.Background()

	want := []string{"s5", "s4", "s3", "s2", "s1"}
	for _, id := range []string{"s1", "s2", "s3", "s4", "s5"} {
		mustCreate(t, svc, id, NewStudent{Name: "Stu " + id, Email: id + "@x.com"})
		clk.advance(time.Hour)
	}

	var got []string
	cursor := ""
	for page := 0; ; page++ {
		if page > 5 {
			t.Fatal("pagination did not terminate")
		}
		p, err := svc.List(ctx, ListParams{PageSize: 2, Cursor: cursor})
		if err != nil {
			t.Fatalf("page %d: %v", page, err)
		}
		got = append(got, ids(p)...)
		if p.NextCursor == "" {
			break
		}
		cursor = p.NextCursor
	}
	if !sameIDs(got, want...) {
		t.Fatalf("pagination walked %v, want %v", got, want)
	}
}

func TestListTextMergesNameAndEmail(t *testing.T) {
	svc, _, clk := newFixture()
	ctx := context.Background()

	// Ann matches by name, Bob only by email. Bob is more recent, so the
	// merged page is recency-ordered regardless of which prefix matched.
	mustCreate(t, svc, "ann", NewStudent{Name: "Ann Smith", Email: "asmith@x.com"})
	clk.advance(time.Hour)
	mustCreate(t, svc, "bob", NewStudent{Name: "Bob Ray", Email: "ann.ray@x.com"})
	clk.advance(time.Hour)
	mustCreate(t, svc, "zed", NewStudent{Name: "Zed Q", Email: "zed@x.com"})

	page, err := svc.List(ctx, ListParams{Text: "Ann"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !sameIDs(ids(page), "bob", "ann") {
		t.Fatalf("wrong merge order: %v", ids(page))
	}
	if page.NextCursor != "" {
		t.Fatalf("unexpected cursor: %q", page.NextCursor)
	}
}

func TestListTextDedupes(t *testing.T) {
	svc, _, _ := newFixture()
	ctx := context.Background()

	// Matches both the name prefix and the email prefix.
	mustCreate(t, svc, "both", NewStudent{Name: "Ann Lee", Email: "ann.lee@x.com"})

	page, err := svc.List(ctx, ListParams{Text: "ann"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !sameIDs(ids(page), "both") {
		t.Fatalf("record duplicated or lost: %v", ids(page))
	}
}

func TestListTextPostFilters(t *testing.T) {
	svc, _, clk := newFixture()
	ctx := context.Background()

	mustCreate(t, svc, "stale", NewStudent{Name: "Ann Old", Email: "old@x.com", Status: crm.StatusApplying})
	clk.advance(10 * 24 * time.Hour)
	mustCreate(t, svc, "fresh", NewStudent{Name: "Ann New", Email: "new@x.com", Status: crm.StatusApplying})
	clk.advance(time.Hour)
	mustCreate(t, svc, "other", NewStudent{Name: "Ann Else", Email: "else@x.com", Status: crm.StatusExploring})

	page, err := svc.List(ctx, ListParams{Text: "ann", Status: crm.StatusApplying})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !sameIDs(ids(page), "fresh", "stale") {
		t.Fatalf("status post-filter wrong: %v", ids(page))
	}

	page, err = svc.List(ctx, ListParams{Text: "ann", Status: crm.StatusApplying, Quick: QuickNotContacted})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !sameIDs(ids(page), "stale") {
		t.Fatalf("quick post-filter wrong: %v", ids(page))
	}
}

func TestListTextPagination(t *testing.T) {
	svc, _, clk := newFixture()
	ctx := context.Background()

	// Name matchers and email matchers interleave by recency. Within each
	// group the prefix order agrees with recency, so every page fully
	// consumes what it takes from each sub-query.
	mustCreate(t, svc, "n3", NewStudent{Name: "ann c", Email: "x3@x.com"})
	clk.advance(time.Hour)
	mustCreate(t, svc, "e3", NewStudent{Name: "zed c", Email: "ann3@x.com"})
	clk.advance(time.Hour)
	mustCreate(t, svc, "n2", NewStudent{Name: "ann b", Email: "x2@x.com"})
	clk.advance(time.Hour)
	mustCreate(t, svc, "e2", NewStudent{Name: "zed b", Email: "ann2@x.com"})
	clk.advance(time.Hour)
	mustCreate(t, svc, "n1", NewStudent{Name: "ann a", Email: "x1@x.com"})
	clk.advance(time.Hour)
	mustCreate(t, svc, "e1", NewStudent{Name: "zed a", Email: "ann1@x.com"})

	want := []string{"e1", "n1", "e2", "n2", "e3", "n3"}
	var got []string
	cursor := ""
	for page := 0; ; page++ {
		if page > 6 {
			t.Fatal("pagination did not terminate")
		}
		p, err := svc.List(ctx, ListParams{Text: "ann", PageSize: 2, Cursor: cursor})
		if err != nil {
			t.Fatalf("page %d: %v", page, err)
		}
		got = append(got, ids(p)...)
		if p.NextCursor == "" {
			break
		}
		cursor = p.NextCursor
	}
	if !sameIDs(got, want...) {
		t.Fatalf("pagination walked %v, want %v", got, want)
	}
}

func TestListCursorFingerprintMismatch(t *testing.T) {
	svc, _, clk := newFixture()
	ctx := context.Background()

	for _, id := range []string{"s1", "s2", "s3"} {
		mustCreate(t, svc, id, NewStudent{Name: "Stu " + id, Email: id + "@x.com"})
		clk.advance(time.Hour)
	}

	page, err := svc.List(ctx, ListParams{PageSize: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.NextCursor == "" {
		t.Fatal("expected a cursor")
	}

	_, err = svc.List(ctx, ListParams{PageSize: 2, Status: crm.StatusExploring, Cursor: page.NextCursor})
	if !crm.IsValidation(err) {
		t.Fatalf("want validation error for filter change, got %v", err)
	}
}

func TestListParamValidation(t *testing.T) {
	svc, _, _ := newFixture()
	ctx := context.Background()

	cases := []struct {
		name   string
		params ListParams
	}{
		{"page size too large", ListParams{PageSize: MaxPageSize + 1}},
		{"page size negative", ListParams{PageSize: -1}},
		{"unknown status", ListParams{Status: "enrolled"}},
		{"unknown quick filter", ListParams{Quick: "vip"}},
		{"garbage cursor", ListParams{Cursor: "%%%not-base64%%%"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.List(ctx, tc.params); !crm.IsValidation(err) {
				t.Fatalf("want validation error, got %v", err)
			}
		})
	}
}

func TestListEmptyDirectory(t *testing.T) {
	svc, _, _ := newFixture()
	page, err := svc.List(context.Background(), ListParams{Text: "ann"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Items) != 0 || page.NextCursor != "" {
		t.Fatalf("expected empty page, got %+v", page)
	}
}
