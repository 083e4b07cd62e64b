package students

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/admitdesk/admitdesk/pkg/crm"
	"github.com/admitdesk/admitdesk/pkg/observability/logger"
	"github.com/admitdesk/admitdesk/pkg/repository/document"
)

func TestStats(t *testing.T) {
	svc, _, clk := newFixture()
	ctx := context.Background()

	mustCreate(t, svc, "s1", NewStudent{Name: "Ann", Email: "ann@x.com", Status: crm.StatusApplying, HighIntent: true})
	clk.advance(40 * 24 * time.Hour)
	mustCreate(t, svc, "s2", NewStudent{Name: "Bob", Email: "bob@x.com", Status: crm.StatusApplying, NeedsEssayHelp: true})
	clk.advance(time.Hour)
	mustCreate(t, svc, "s3", NewStudent{Name: "Cat", Email: "cat@x.com", Status: crm.StatusExploring})
	clk.advance(time.Hour)

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 3 {
		t.Fatalf("total = %d", stats.Total)
	}
	// s1 was last active 40 days ago and falls out of the window.
	if stats.Active30d != 2 {
		t.Fatalf("active30d = %d", stats.Active30d)
	}
	if stats.EssayStage != 1 || stats.HighIntent != 1 {
		t.Fatalf("essayStage = %d highIntent = %d", stats.EssayStage, stats.HighIntent)
	}
	if stats.ByStatus[crm.StatusApplying] != 2 || stats.ByStatus[crm.StatusExploring] != 1 {
		t.Fatalf("byStatus = %v", stats.ByStatus)
	}

	var sum int64
	for _, n := range stats.ByStatus {
		sum += n
	}
	if sum != stats.Total {
		t.Fatalf("byStatus sums to %d, total is %d", sum, stats.Total)
	}
}

func TestStatsEmpty(t *testing.T) {
	svc, _, _ := newFixture()
	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 0 || stats.Active30d != 0 {
		t.Fatalf("expected zero stats, got %+v", stats)
	}
	for _, status := range crm.Statuses() {
		if stats.ByStatus[status] != 0 {
			t.Fatalf("byStatus[%s] = %d", status, stats.ByStatus[status])
		}
	}
}

// failingCountExecutor fails the count touching a given field, leaving the
// rest of the aggregate healthy.
type failingCountExecutor struct {
	*document.MemoryExecutor
	failField string
}

func (f *failingCountExecutor) Count(ctx context.Context, collection string, predicates []document.Predicate) (int64, error) {
	for _, p := range predicates {
		if p.Field == f.failField {
			return 0, errors.New("count unavailable")
		}
	}
	return f.MemoryExecutor.Count(ctx, collection, predicates)
}

func TestStatsAllOrNothing(t *testing.T) {
	exec := &failingCountExecutor{
		MemoryExecutor: document.NewMemoryExecutor(),
		failField:      "needsEssayHelp",
	}
	svc := NewService(exec, logger.Nop{})
	mustCreate(t, svc, "s1", NewStudent{Name: "Ann", Email: "ann@x.com"})

	stats, err := svc.Stats(context.Background())
	if err == nil {
		t.Fatal("expected aggregate failure")
	}
	var partial *crm.PartialAggregateError
	if !errors.As(err, &partial) {
		t.Fatalf("want PartialAggregateError, got %T: %v", err, err)
	}
	if partial.Query != "essayStage" {
		t.Fatalf("wrong failed query: %q", partial.Query)
	}
	// One failed count discards the whole aggregate.
	if stats.Total != 0 || stats.ByStatus != nil {
		t.Fatalf("partial stats leaked: %+v", stats)
	}
}
