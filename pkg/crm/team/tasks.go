package team

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/admitdesk/admitdesk/pkg/crm"
	"github.com/admitdesk/admitdesk/pkg/repository/document"
	"golang.org/x/sync/errgroup"
)

// Task listing page size bounds.
const (
	DefaultTaskPageSize = 20
	MaxTaskPageSize     = 100
)

const subQueryDue = "due"

// NewTask is the payload for creating a task. Assignees are referenced by
// member identity and resolved into embedded summaries at write time.
type NewTask struct {
	Title            string
	Description      string
	Team             crm.Team
	Status           crm.TaskStatus
	Priority         crm.Priority
	AssigneeIDs      []string
	RelatedStudentID string
	DueAt            *time.Time
	RemindAt         *time.Time
	CreatedBy        string
}

// TaskPatch is a partial update. Nil fields are left untouched; a non-nil
// AssigneeIDs replaces the whole assignee set.
type TaskPatch struct {
	Title            *string
	Description      *string
	Team             *crm.Team
	Status           *crm.TaskStatus
	Priority         *crm.Priority
	AssigneeIDs      *[]string
	RelatedStudentID *string
	DueAt            *time.Time
	RemindAt         *time.Time
}

// TaskListParams narrow the task listing. Cursor must come from a previous
// listing with the identical filter set.
type TaskListParams struct {
	Team       crm.Team
	Status     crm.TaskStatus
	AssigneeID string
	PageSize   int
	Cursor     string
}

// TaskPage is one task listing page ordered by due date ascending.
type TaskPage struct {
	Items      []crm.Task
	NextCursor string
}

// TaskStats is the task board summary.
type TaskStats struct {
	Total    int64                    `json:"total"`
	ByStatus map[crm.TaskStatus]int64 `json:"byStatus"`
	ByTeam   map[crm.Team]int64       `json:"byTeam"`
}

// CreateTask validates the payload, resolves assignees, and writes the task
// with its flat assignee id list kept alongside the embedded summaries.
func (s *Service) CreateTask(ctx context.Context, id string, p NewTask) (string, error) {
	if strings.TrimSpace(p.Title) == "" {
		return "", &crm.ValidationError{Field: "title", Reason: "required"}
	}
	if !p.Team.Valid() {
		return "", &crm.ValidationError{Field: "team", Reason: fmt.Sprintf("unknown team %q", p.Team)}
	}
	if p.Status == "" {
		p.Status = crm.TaskOpen
	}
	if !p.Status.Valid() {
		return "", &crm.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown task status %q", p.Status)}
	}
	if p.Priority == "" {
		p.Priority = crm.PriorityMedium
	}
	if !p.Priority.Valid() {
		return "", &crm.ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown priority %q", p.Priority)}
	}
	assignees, err := s.resolveAssignees(ctx, p.AssigneeIDs)
	if err != nil {
		return "", err
	}

	doc := document.Document{
		"title":        p.Title,
		"description":  p.Description,
		"team":         string(p.Team),
		"status":       string(p.Status),
		"priority":     string(p.Priority),
		"assignees":    assigneesToDocs(assignees),
		"assigneesIds": assigneeIDs(assignees),
		"createdBy":    p.CreatedBy,
	}
	if p.RelatedStudentID != "" {
		doc["relatedStudentId"] = p.RelatedStudentID
	}
	if p.DueAt != nil {
		doc["dueAt"] = p.DueAt.UTC()
	}
	if p.RemindAt != nil {
		doc["remindAt"] = p.RemindAt.UTC()
	}
	if err := s.exec.Insert(ctx, CollectionTasks, id, doc, []string{"createdAt", "updatedAt"}); err != nil {
		return "", &crm.StoreError{Op: "create task", Err: err}
	}
	s.log.WithContext(ctx).Info("task created", "task_id", id, "team", p.Team, "assignees", len(assignees))
	return id, nil
}

// GetTask fetches one task by identity.
func (s *Service) GetTask(ctx context.Context, id string) (crm.Task, error) {
	doc, err := s.exec.Get(ctx, CollectionTasks, id)
	if errors.Is(err, document.ErrNotFound) {
		return crm.Task{}, &crm.NotFoundError{Kind: "task", ID: id}
	}
	if err != nil {
		return crm.Task{}, &crm.StoreError{Op: "get task", Err: err}
	}
	return taskFromDoc(doc), nil
}

// UpdateTask applies a partial update. Replacing the assignee set rewrites
// both the embedded summaries and the flat id list in the same write.
func (s *Service) UpdateTask(ctx context.Context, id string, p TaskPatch) error {
	patch := document.Document{}
	if p.Title != nil {
		if strings.TrimSpace(*p.Title) == "" {
			return &crm.ValidationError{Field: "title", Reason: "required"}
		}
		patch["title"] = *p.Title
	}
	if p.Description != nil {
		patch["description"] = *p.Description
	}
	if p.Team != nil {
		if !p.Team.Valid() {
			return &crm.ValidationError{Field: "team", Reason: fmt.Sprintf("unknown team %q", *p.Team)}
		}
		patch["team"] = string(*p.Team)
	}
	if p.Status != nil {
		if !p.Status.Valid() {
			return &crm.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown task status %q", *p.Status)}
		}
		patch["status"] = string(*p.Status)
	}
	if p.Priority != nil {
		if !p.Priority.Valid() {
			return &crm.ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown priority %q", *p.Priority)}
		}
		patch["priority"] = string(*p.Priority)
	}
	if p.AssigneeIDs != nil {
		assignees, err := s.resolveAssignees(ctx, *p.AssigneeIDs)
		if err != nil {
			return err
		}
		patch["assignees"] = assigneesToDocs(assignees)
		patch["assigneesIds"] = assigneeIDs(assignees)
	}
	if p.RelatedStudentID != nil {
		patch["relatedStudentId"] = *p.RelatedStudentID
	}
	if p.DueAt != nil {
		patch["dueAt"] = p.DueAt.UTC()
	}
	if p.RemindAt != nil {
		patch["remindAt"] = p.RemindAt.UTC()
	}
	if len(patch) == 0 {
		return &crm.ValidationError{Reason: "empty patch"}
	}
	err := s.exec.Update(ctx, CollectionTasks, id, patch, []string{"updatedAt"})
	if errors.Is(err, document.ErrNotFound) {
		return &crm.NotFoundError{Kind: "task", ID: id}
	}
	if err != nil {
		return &crm.StoreError{Op: "update task", Err: err}
	}
	return nil
}

// DeleteTask removes a task.
func (s *Service) DeleteTask(ctx context.Context, id string) error {
	err := s.exec.Delete(ctx, CollectionTasks, id)
	if errors.Is(err, document.ErrNotFound) {
		return &crm.NotFoundError{Kind: "task", ID: id}
	}
	if err != nil {
		return &crm.StoreError{Op: "delete task", Err: err}
	}
	return nil
}

// ListTasks returns one page of tasks ordered by due date ascending; tasks
// without a due date sort first. All filters are pushed down, assignee
// membership through the flat id list.
func (s *Service) ListTasks(ctx context.Context, p TaskListParams) (TaskPage, error) {
	pageSize := p.PageSize
	if pageSize == 0 {
		pageSize = DefaultTaskPageSize
	}
	if pageSize < 1 || pageSize > MaxTaskPageSize {
		return TaskPage{}, &crm.ValidationError{Field: "pageSize", Reason: fmt.Sprintf("must be between 1 and %d", MaxTaskPageSize)}
	}
	if p.Team != "" && !p.Team.Valid() {
		return TaskPage{}, &crm.ValidationError{Field: "team", Reason: fmt.Sprintf("unknown team %q", p.Team)}
	}
	if p.Status != "" && !p.Status.Valid() {
		return TaskPage{}, &crm.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown task status %q", p.Status)}
	}

	var preds []document.Predicate
	if p.Team != "" {
		preds = append(preds, document.Eq("team", string(p.Team)))
	}
	if p.Status != "" {
		preds = append(preds, document.Eq("status", string(p.Status)))
	}
	if p.AssigneeID != "" {
		preds = append(preds, document.Contains("assigneesIds", p.AssigneeID))
	}

	fingerprint := document.FilterFingerprint(CollectionTasks, string(p.Team), string(p.Status), p.AssigneeID)
	q := document.Query{
		Predicates: preds,
		Order:      document.OrderBy{Field: "dueAt"},
		Limit:      pageSize,
	}
	if p.Cursor != "" {
		cur, err := document.DecodeCursor(p.Cursor)
		if err != nil {
			return TaskPage{}, &crm.ValidationError{Field: "cursor", Reason: err.Error()}
		}
		if cur.Fingerprint != fingerprint {
			return TaskPage{}, &crm.ValidationError{Field: "cursor", Reason: "cursor was issued for a different filter set"}
		}
		if key, ok := cur.Keys[subQueryDue]; ok {
			k := key
			q.Resume = &k
		}
	}

	docs, err := s.exec.Query(ctx, CollectionTasks, q)
	if err != nil {
		var unsupported *document.UnsupportedQueryError
		if errors.As(err, &unsupported) {
			return TaskPage{}, &crm.QueryConfigurationError{Reason: unsupported.Reason}
		}
		return TaskPage{}, &crm.StoreError{Op: "list tasks", Err: err}
	}

	page := TaskPage{Items: make([]crm.Task, 0, len(docs))}
	for _, d := range docs {
		page.Items = append(page.Items, taskFromDoc(d))
	}
	if len(docs) == pageSize {
		last := docs[len(docs)-1]
		page.NextCursor = document.Cursor{
			Fingerprint: fingerprint,
			Keys: map[string]document.ResumeKey{
				subQueryDue: {Value: last["dueAt"], ID: last["id"].(string)},
			},
		}.Encode()
	}
	return page, nil
}

// TaskStats runs the board counts in parallel and joins them. One failed
// count fails the whole aggregate.
func (s *Service) TaskStats(ctx context.Context) (TaskStats, error) {
	stats := TaskStats{
		ByStatus: make(map[crm.TaskStatus]int64, len(crm.TaskStatuses())),
		ByTeam:   make(map[crm.Team]int64, len(crm.Teams())),
	}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	count := func(name string, preds []document.Predicate, assign func(int64)) {
		g.Go(func() error {
			n, err := s.exec.Count(gctx, CollectionTasks, preds)
			if err != nil {
				return &crm.PartialAggregateError{Query: name, Err: err}
			}
			mu.Lock()
			assign(n)
			mu.Unlock()
			return nil
		})
	}

	count("total", nil, func(n int64) { stats.Total = n })
	for _, status := range crm.TaskStatuses() {
		status := status
		count("status:"+string(status), []document.Predicate{document.Eq("status", string(status))}, func(n int64) {
			stats.ByStatus[status] = n
		})
	}
	for _, team := range crm.Teams() {
		team := team
		count("team:"+string(team), []document.Predicate{document.Eq("team", string(team))}, func(n int64) {
			stats.ByTeam[team] = n
		})
	}

	if err := g.Wait(); err != nil {
		return TaskStats{}, err
	}
	return stats, nil
}

// resolveAssignees loads each referenced member and builds the embedded
// summaries. An unknown member id fails the whole write.
func (s *Service) resolveAssignees(ctx context.Context, memberIDs []string) ([]crm.TaskAssignee, error) {
	assignees := make([]crm.TaskAssignee, 0, len(memberIDs))
	seen := map[string]bool{}
	for _, id := range memberIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		member, err := s.GetMember(ctx, id)
		if err != nil {
			return nil, err
		}
		assignees = append(assignees, crm.TaskAssignee{
			MemberID: member.ID,
			Name:     member.Name,
			Email:    member.Email,
			Team:     member.Team,
		})
	}
	return assignees, nil
}

func assigneesToDocs(assignees []crm.TaskAssignee) []any {
	docs := make([]any, 0, len(assignees))
	for _, a := range assignees {
		docs = append(docs, map[string]any{
			"memberId": a.MemberID,
			"name":     a.Name,
			"email":    a.Email,
			"team":     string(a.Team),
		})
	}
	return docs
}

func assigneeIDs(assignees []crm.TaskAssignee) []string {
	ids := make([]string, 0, len(assignees))
	for _, a := range assignees {
		ids = append(ids, a.MemberID)
	}
	return ids
}

func taskFromDoc(doc document.Document) crm.Task {
	task := crm.Task{
		ID:               stringField(doc, "id"),
		Title:            stringField(doc, "title"),
		Description:      stringField(doc, "description"),
		Team:             crm.Team(stringField(doc, "team")),
		Status:           crm.TaskStatus(stringField(doc, "status")),
		Priority:         crm.Priority(stringField(doc, "priority")),
		RelatedStudentID: stringField(doc, "relatedStudentId"),
		CreatedBy:        stringField(doc, "createdBy"),
		CreatedAt:        timeField(doc, "createdAt"),
		UpdatedAt:        timeField(doc, "updatedAt"),
	}
	if t, ok := doc["dueAt"].(time.Time); ok {
		task.DueAt = &t
	}
	if t, ok := doc["remindAt"].(time.Time); ok {
		task.RemindAt = &t
	}
	switch raw := doc["assignees"].(type) {
	case []any:
		for _, item := range raw {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			a := crm.TaskAssignee{}
			a.MemberID, _ = m["memberId"].(string)
			a.Name, _ = m["name"].(string)
			a.Email, _ = m["email"].(string)
			if team, ok := m["team"].(string); ok {
				a.Team = crm.Team(team)
			}
			task.Assignees = append(task.Assignees, a)
		}
	}
	switch raw := doc["assigneesIds"].(type) {
	case []string:
		task.AssigneeIDs = append(task.AssigneeIDs, raw...)
	case []any:
		for _, v := range raw {
			if s, ok := v.(string); ok {
				task.AssigneeIDs = append(task.AssigneeIDs, s)
			}
		}
	}
	return task
}

func stringField(doc document.Document, key string) string {
	s, _ := doc[key].(string)
	return s
}

func boolField(doc document.Document, key string) bool {
	b, _ := doc[key].(bool)
	return b
}

func timeField(doc document.Document, key string) time.Time {
	t, _ := doc[key].(time.Time)
	return t
}
