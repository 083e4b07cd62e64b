package students

import (
	"context"
	"testing"
	"time"

	"github.com/admitdesk/admitdesk/pkg/crm"
	"github.com/admitdesk/admitdesk/pkg/observability/logger"
	"github.com/admitdesk/admitdesk/pkg/repository/document"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newFixture() (*Service, *document.MemoryExecutor, *fakeClock) {
	clk := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	exec := document.NewMemoryExecutor().WithClock(clk.now)
	svc := NewService(exec, logger.Nop{}).WithClock(clk.now)
	return svc, exec, clk
}

func mustCreate(t *testing.T, svc *Service, id string, p NewStudent) {
	t.Helper()
	if p.Status == "" {
		p.Status = crm.StatusExploring
	}
	if _, err := svc.Create(context.Background(), id, p); err != nil {
		t.Fatalf("create %s: %v", id, err)
	}
}

func TestCreateAndGet(t *testing.T) {
	svc, _, clk := newFixture()
	ctx := context.Background()

	mustCreate(t, svc, "stu_001", NewStudent{
		Name:       "Priya Sharma",
		Email:      "Priya.Sharma@example.com",
		Country:    "IN",
		Grade:      "12",
		Status:     crm.StatusApplying,
		HighIntent: true,
		Progress:   40,
	})

	st, err := svc.Get(ctx, "stu_001")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if st.Name != "Priya Sharma" || st.NameLC != "priya sharma" {
		t.Fatalf("name mirror wrong: %q / %q", st.Name, st.NameLC)
	}
	if st.EmailLC != "priya.sharma@example.com" {
		t.Fatalf("email mirror wrong: %q", st.EmailLC)
	}
	if st.Status != crm.StatusApplying || !st.HighIntent || st.Progress != 40 {
		t.Fatalf("unexpected fields: %+v", st)
	}
	if !st.LastActive.Equal(clk.t) || !st.CreatedAt.Equal(clk.t) {
		t.Fatalf("server timestamps not applied: lastActive=%v createdAt=%v", st.LastActive, st.CreatedAt)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newFixture()
	ctx := context.Background()

	cases := []struct {
		name    string
		payload NewStudent
	}{
		{"missing name", NewStudent{Email: "a@b.com", Status: crm.StatusExploring}},
		{"blank name", NewStudent{Name: "   ", Email: "a@b.com", Status: crm.StatusExploring}},
		{"bad email", NewStudent{Name: "A", Email: "not-an-address", Status: crm.StatusExploring}},
		{"bad status", NewStudent{Name: "A", Email: "a@b.com", Status: "enrolled"}},
		{"progress low", NewStudent{Name: "A", Email: "a@b.com", Status: crm.StatusExploring, Progress: -1}},
		{"progress high", NewStudent{Name: "A", Email: "a@b.com", Status: crm.StatusExploring, Progress: 101}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, "x", tc.payload); !crm.IsValidation(err) {
				t.Fatalf("want validation error, got %v", err)
			}
		})
	}
}

func TestUpdate(t *testing.T) {
	svc, _, clk := newFixture()
	ctx := context.Background()

	mustCreate(t, svc, "stu_001", NewStudent{Name: "Ann Lee", Email: "ann@x.com"})
	created := clk.t
	clk.advance(time.Hour)

	name := "Ann Chen"
	status := crm.StatusSubmitted
	if err := svc.Update(ctx, "stu_001", StudentPatch{Name: &name, Status: &status}); err != nil {
		t.Fatalf("update: %v", err)
	}

	st, err := svc.Get(ctx, "stu_001")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if st.Name != "Ann Chen" || st.NameLC != "ann chen" {
		t.Fatalf("name mirror not refreshed: %q / %q", st.Name, st.NameLC)
	}
	if st.Status != crm.StatusSubmitted {
		t.Fatalf("status not updated: %q", st.Status)
	}
	if !st.LastActive.Equal(clk.t) || !st.UpdatedAt.Equal(clk.t) {
		t.Fatalf("timestamps not refreshed: %v / %v", st.LastActive, st.UpdatedAt)
	}
	if !st.CreatedAt.Equal(created) {
		t.Fatalf("createdAt changed on update: %v", st.CreatedAt)
	}
}

func TestUpdateEmptyPatch(t *testing.T) {
	svc, _, _ := newFixture()
	mustCreate(t, svc, "stu_001", NewStudent{Name: "Ann", Email: "ann@x.com"})
	if err := svc.Update(context.Background(), "stu_001", StudentPatch{}); !crm.IsValidation(err) {
		t.Fatalf("want validation error for empty patch, got %v", err)
	}
}

func TestUpdateMissingStudent(t *testing.T) {
	svc, _, _ := newFixture()
	status := crm.StatusAccepted
	err := svc.Update(context.Background(), "nope", StudentPatch{Status: &status})
	if !crm.IsNotFound(err) {
		t.Fatalf("want not found, got %v", err)
	}
}

func TestDeleteCascades(t *testing.T) {
	svc, exec, _ := newFixture()
	ctx := context.Background()

	mustCreate(t, svc, "stu_001", NewStudent{Name: "Ann", Email: "ann@x.com"})
	mustCreate(t, svc, "stu_002", NewStudent{Name: "Bob", Email: "bob@x.com"})

	if _, err := svc.AddNote(ctx, "stu_001", "called home", "counselor_1"); err != nil {
		t.Fatalf("add note: %v", err)
	}
	if _, err := svc.AddCommunication(ctx, "stu_001", crm.CommCall, "intro call", "counselor_1"); err != nil {
		t.Fatalf("add communication: %v", err)
	}
	if _, err := svc.AddInteraction(ctx, "stu_001", "login", "web portal", "system"); err != nil {
		t.Fatalf("add interaction: %v", err)
	}
	keep, err := svc.AddNote(ctx, "stu_002", "unrelated", "counselor_1")
	if err != nil {
		t.Fatalf("add note: %v", err)
	}

	if err := svc.Delete(ctx, "stu_001"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, "stu_001"); !crm.IsNotFound(err) {
		t.Fatalf("student should be gone, got %v", err)
	}
	for _, col := range []string{CollectionNotes, CollectionCommunications, CollectionInteractions} {
		docs, err := exec.Query(ctx, col, document.Query{
			Predicates: []document.Predicate{document.Eq("studentId", "stu_001")},
		})
		if err != nil {
			t.Fatalf("query %s: %v", col, err)
		}
		if len(docs) != 0 {
			t.Fatalf("%s not cascaded: %d left", col, len(docs))
		}
	}
	if _, err := exec.Get(ctx, CollectionNotes, keep); err != nil {
		t.Fatalf("unrelated note was deleted: %v", err)
	}
}

func TestChildRecords(t *testing.T) {
	svc, _, clk := newFixture()
	ctx := context.Background()

	mustCreate(t, svc, "stu_001", NewStudent{Name: "Ann", Email: "ann@x.com"})

	first, err := svc.AddNote(ctx, "stu_001", "first", "c1")
	if err != nil {
		t.Fatalf("add note: %v", err)
	}
	clk.advance(time.Minute)
	second, err := svc.AddNote(ctx, "stu_001", "second", "c1")
	if err != nil {
		t.Fatalf("add note: %v", err)
	}

	notes, err := svc.ListNotes(ctx, "stu_001")
	if err != nil {
		t.Fatalf("list notes: %v", err)
	}
	if len(notes) != 2 || notes[0].ID != second || notes[1].ID != first {
		t.Fatalf("notes not newest first: %+v", notes)
	}

	if err := svc.UpdateNote(ctx, "stu_001", first, "revised"); err != nil {
		t.Fatalf("update note: %v", err)
	}
	if err := svc.DeleteNote(ctx, "stu_001", second); err != nil {
		t.Fatalf("delete note: %v", err)
	}
	notes, err = svc.ListNotes(ctx, "stu_001")
	if err != nil {
		t.Fatalf("list notes: %v", err)
	}
	if len(notes) != 1 || notes[0].Text != "revised" {
		t.Fatalf("unexpected notes after edit: %+v", notes)
	}
}

func TestChildWrongParent(t *testing.T) {
	svc, _, _ := newFixture()
	ctx := context.Background()

	mustCreate(t, svc, "stu_001", NewStudent{Name: "Ann", Email: "ann@x.com"})
	mustCreate(t, svc, "stu_002", NewStudent{Name: "Bob", Email: "bob@x.com"})

	noteID, err := svc.AddNote(ctx, "stu_001", "private", "c1")
	if err != nil {
		t.Fatalf("add note: %v", err)
	}
	if err := svc.UpdateNote(ctx, "stu_002", noteID, "hijack"); !crm.IsNotFound(err) {
		t.Fatalf("want not found for wrong parent, got %v", err)
	}
	if err := svc.DeleteNote(ctx, "stu_002", noteID); !crm.IsNotFound(err) {
		t.Fatalf("want not found for wrong parent, got %v", err)
	}
}

func TestAddCommunicationValidation(t *testing.T) {
	svc, _, _ := newFixture()
	ctx := context.Background()
	mustCreate(t, svc, "stu_001", NewStudent{Name: "Ann", Email: "ann@x.com"})

	if _, err := svc.AddCommunication(ctx, "stu_001", "fax", "msg", "c1"); !crm.IsValidation(err) {
		t.Fatalf("want validation error for bad type, got %v", err)
	}
	if _, err := svc.AddCommunication(ctx, "stu_001", crm.CommEmail, "  ", "c1"); !crm.IsValidation(err) {
		t.Fatalf("want validation error for blank message, got %v", err)
	}
	if _, err := svc.AddNote(ctx, "missing", "text", "c1"); !crm.IsNotFound(err) {
		t.Fatalf("want not found for missing parent, got %v", err)
	}
}
