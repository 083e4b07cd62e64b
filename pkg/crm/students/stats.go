package students

import (
	"context"
	"sync"

	"github.com/admitdesk/admitdesk/pkg/crm"
	"github.com/admitdesk/admitdesk/pkg/repository/document"
	"golang.org/x/sync/errgroup"
)

// Stats is the directory summary. Counts are taken with count-only queries,
// never full document fetches.
type Stats struct {
	Total      int64                `json:"total"`
	Active30d  int64                `json:"active30d"`
	EssayStage int64                `json:"essayStage"`
	HighIntent int64                `json:"highIntent"`
	ByStatus   map[crm.Status]int64 `json:"byStatus"`
}

// Stats runs all count queries in parallel and joins them into one summary.
// If any single count fails the whole aggregate fails; no partial stats.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{ByStatus: make(map[crm.Status]int64, len(crm.Statuses()))}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)

	count := func(name string, preds []document.Predicate, assign func(int64)) {
		g.Go(func() error {
			n, err := s.exec.Count(gctx, CollectionStudents, preds)
			if err != nil {
				return &crm.PartialAggregateError{Query: name, Err: err}
			}
			mu.Lock()
			assign(n)
			mu.Unlock()
			return nil
		})
	}

	activeSince := s.now().Add(-ActiveWindow)
	count("total", nil, func(n int64) { stats.Total = n })
	count("active30d", []document.Predicate{document.Gt("lastActive", activeSince)}, func(n int64) { stats.Active30d = n })
	count("essayStage", []document.Predicate{document.Eq("needsEssayHelp", true)}, func(n int64) { stats.EssayStage = n })
	count("highIntent", []document.Predicate{document.Eq("highIntent", true)}, func(n int64) { stats.HighIntent = n })
	for _, status := range crm.Statuses() {
		status := status
		count("status:"+string(status), []document.Predicate{document.Eq("status", string(status))}, func(n int64) {
			stats.ByStatus[status] = n
		})
	}

	if err := g.Wait(); err != nil {
		return Stats{}, err
	}
	return stats, nil
}
