// Package team implements team member management and the shared task board.
package team

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/admitdesk/admitdesk/pkg/crm"
	"github.com/admitdesk/admitdesk/pkg/observability/logger"
	"github.com/admitdesk/admitdesk/pkg/repository/document"
)

// Collection names in the document store.
const (
	CollectionMembers = "team_members"
	CollectionTasks   = "tasks"
)

// Service exposes member and task operations over a document store executor.
type Service struct {
	exec document.Executor
	log  logger.Logger
	now  func() time.Time
}

func NewService(exec document.Executor, log logger.Logger) *Service {
	return &Service{
		exec: exec,
		log:  log,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// NewMember is the payload for creating a team member.
type NewMember struct {
	Name   string
	Email  string
	Team   crm.Team
	Active bool
}

// MemberPatch is a partial update. Nil fields are left untouched.
type MemberPatch struct {
	Name   *string
	Email  *string
	Team   *crm.Team
	Active *bool
}

// ListMembers returns team members ordered by name, optionally narrowed to
// one team and to active members only.
func (s *Service) ListMembers(ctx context.Context, team crm.Team, activeOnly bool) ([]crm.TeamMember, error) {
	if team != "" && !team.Valid() {
		return nil, &crm.ValidationError{Field: "team", Reason: fmt.Sprintf("unknown team %q", team)}
	}
	var preds []document.Predicate
	if team != "" {
		preds = append(preds, document.Eq("team", string(team)))
	}
	if activeOnly {
		preds = append(preds, document.Eq("active", true))
	}
	docs, err := s.exec.Query(ctx, CollectionMembers, document.Query{
		Predicates: preds,
		Order:      document.OrderBy{Field: "name"},
	})
	if err != nil {
		return nil, &crm.StoreError{Op: "list members", Err: err}
	}
	members := make([]crm.TeamMember, 0, len(docs))
	for _, d := range docs {
		members = append(members, memberFromDoc(d))
	}
	return members, nil
}

// CreateMember validates and writes a new team member.
func (s *Service) CreateMember(ctx context.Context, id string, p NewMember) (string, error) {
	if strings.TrimSpace(p.Name) == "" {
		return "", &crm.ValidationError{Field: "name", Reason: "required"}
	}
	if _, err := mail.ParseAddress(p.Email); err != nil {
		return "", &crm.ValidationError{Field: "email", Reason: "malformed address"}
	}
	if !p.Team.Valid() {
		return "", &crm.ValidationError{Field: "team", Reason: fmt.Sprintf("unknown team %q", p.Team)}
	}
	err := s.exec.Insert(ctx, CollectionMembers, id, document.Document{
		"name":   p.Name,
		"email":  p.Email,
		"team":   string(p.Team),
		"active": p.Active,
	}, []string{"createdAt", "updatedAt"})
	if err != nil {
		return "", &crm.StoreError{Op: "create member", Err: err}
	}
	s.log.WithContext(ctx).Info("team member created", "member_id", id, "team", p.Team)
	return id, nil
}

// GetMember fetches one team member by identity.
func (s *Service) GetMember(ctx context.Context, id string) (crm.TeamMember, error) {
	doc, err := s.exec.Get(ctx, CollectionMembers, id)
	if errors.Is(err, document.ErrNotFound) {
		return crm.TeamMember{}, &crm.NotFoundError{Kind: "team member", ID: id}
	}
	if err != nil {
		return crm.TeamMember{}, &crm.StoreError{Op: "get member", Err: err}
	}
	return memberFromDoc(doc), nil
}

// UpdateMember applies a partial update. A name, email, or team change is
// propagated into the denormalized assignee summaries of the member's tasks.
func (s *Service) UpdateMember(ctx context.Context, id string, p MemberPatch) error {
	patch := document.Document{}
	if p.Name != nil {
		if strings.TrimSpace(*p.Name) == "" {
			return &crm.ValidationError{Field: "name", Reason: "required"}
		}
		patch["name"] = *p.Name
	}
	if p.Email != nil {
		if _, err := mail.ParseAddress(*p.Email); err != nil {
			return &crm.ValidationError{Field: "email", Reason: "malformed address"}
		}
		patch["email"] = *p.Email
	}
	if p.Team != nil {
		if !p.Team.Valid() {
			return &crm.ValidationError{Field: "team", Reason: fmt.Sprintf("unknown team %q", *p.Team)}
		}
		patch["team"] = string(*p.Team)
	}
	if p.Active != nil {
		patch["active"] = *p.Active
	}
	if len(patch) == 0 {
		return &crm.ValidationError{Reason: "empty patch"}
	}
	err := s.exec.Update(ctx, CollectionMembers, id, patch, []string{"updatedAt"})
	if errors.Is(err, document.ErrNotFound) {
		return &crm.NotFoundError{Kind: "team member", ID: id}
	}
	if err != nil {
		return &crm.StoreError{Op: "update member", Err: err}
	}
	if p.Name != nil || p.Email != nil || p.Team != nil {
		return s.refreshAssigneeSummaries(ctx, id)
	}
	return nil
}

// DeleteMember removes a team member and unassigns them from every task.
func (s *Service) DeleteMember(ctx context.Context, id string) error {
	err := s.exec.Delete(ctx, CollectionMembers, id)
	if errors.Is(err, document.ErrNotFound) {
		return &crm.NotFoundError{Kind: "team member", ID: id}
	}
	if err != nil {
		return &crm.StoreError{Op: "delete member", Err: err}
	}
	tasks, err := s.tasksAssignedTo(ctx, id)
	if err != nil {
		return err
	}
	for _, task := range tasks {
		assignees := make([]crm.TaskAssignee, 0, len(task.Assignees))
		for _, a := range task.Assignees {
			if a.MemberID != id {
				assignees = append(assignees, a)
			}
		}
		if err := s.writeAssignees(ctx, task.ID, assignees); err != nil {
			return err
		}
	}
	s.log.WithContext(ctx).Info("team member deleted", "member_id", id, "tasks_touched", len(tasks))
	return nil
}

func (s *Service) refreshAssigneeSummaries(ctx context.Context, memberID string) error {
	member, err := s.GetMember(ctx, memberID)
	if err != nil {
		return err
	}
	tasks, err := s.tasksAssignedTo(ctx, memberID)
	if err != nil {
		return err
	}
	for _, task := range tasks {
		assignees := make([]crm.TaskAssignee, len(task.Assignees))
		for i, a := range task.Assignees {
			if a.MemberID == memberID {
				a = crm.TaskAssignee{MemberID: memberID, Name: member.Name, Email: member.Email, Team: member.Team}
			}
			assignees[i] = a
		}
		if err := s.writeAssignees(ctx, task.ID, assignees); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) tasksAssignedTo(ctx context.Context, memberID string) ([]crm.Task, error) {
	docs, err := s.exec.Query(ctx, CollectionTasks, document.Query{
		Predicates: []document.Predicate{document.Contains("assigneesIds", memberID)},
	})
	if err != nil {
		return nil, &crm.StoreError{Op: "list member tasks", Err: err}
	}
	tasks := make([]crm.Task, 0, len(docs))
	for _, d := range docs {
		tasks = append(tasks, taskFromDoc(d))
	}
	return tasks, nil
}

func (s *Service) writeAssignees(ctx context.Context, taskID string, assignees []crm.TaskAssignee) error {
	err := s.exec.Update(ctx, CollectionTasks, taskID, document.Document{
		"assignees":    assigneesToDocs(assignees),
		"assigneesIds": assigneeIDs(assignees),
	}, []string{"updatedAt"})
	if err != nil && !errors.Is(err, document.ErrNotFound) {
		return &crm.StoreError{Op: "update task assignees", Err: err}
	}
	return nil
}

func memberFromDoc(doc document.Document) crm.TeamMember {
	return crm.TeamMember{
		ID:        stringField(doc, "id"),
		Name:      stringField(doc, "name"),
		Email:     stringField(doc, "email"),
		Team:      crm.Team(stringField(doc, "team")),
		Active:    boolField(doc, "active"),
		CreatedAt: timeField(doc, "createdAt"),
		UpdatedAt: timeField(doc, "updatedAt"),
	}
}
