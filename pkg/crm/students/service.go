// Package students implements the student directory: CRUD, the paginated
// filterable listing with prefix search, and the summary stats aggregate.
package students

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
	CollectionStudents       = "students"
	CollectionNotes          = "student_notes"
	CollectionCommunications = "student_communications"
	CollectionInteractions   = "student_interactions"
)

// Policy constants. The windows are fixed; see the directory filter docs.
const (
	// NotContactedWindow is the lastActive age behind the
	// "not-contacted-7d" quick filter.
	NotContactedWindow = 7 * 24 * time.Hour
	// ActiveWindow is the recency window of the active30d stat.
	ActiveWindow = 30 * 24 * time.Hour

	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Service exposes student operations over a document store executor.
type Service struct {
	exec document.Executor
	log  logger.Logger
	now  func() time.Time
}

// NewService creates a student service. The executor is injected so tests
// can substitute the in-memory store.
func NewService(exec document.Executor, log logger.Logger) *Service {
	return &Service{
		exec: exec,
		log:  log,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock, used by tests to pin the quick
// filter and stats windows.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// NewStudent is the payload for creating a student.
type NewStudent struct {
	Name           string
	Email          string
	Phone          string
	Country        string
	Grade          string
	Status         crm.Status
	HighIntent     bool
	NeedsEssayHelp bool
	Progress       int
}

// StudentPatch is a partial update. Nil fields are left untouched.
type StudentPatch struct {
	Name           *string
	Email          *string
	Phone          *string
	Country        *string
	Grade          *string
	Status         *crm.Status
	HighIntent     *bool
	NeedsEssayHelp *bool
	Progress       *int
}

// Create validates the payload and writes a new student. Lowercase mirrors
// are recomputed here, and all timestamps are assigned by the store.
func (s *Service) Create(ctx context.Context, id string, p NewStudent) (string, error) {
	if err := validateNewStudent(p); err != nil {
		return "", err
	}
	doc := document.Document{
		"name":           p.Name,
		"name_lc":        strings.ToLower(p.Name),
		"email":          p.Email,
		"email_lc":       strings.ToLower(p.Email),
		"phone":          p.Phone,
		"country":        p.Country,
		"grade":          p.Grade,
		"status":         string(p.Status),
		"highIntent":     p.HighIntent,
		"needsEssayHelp": p.NeedsEssayHelp,
		"progress":       p.Progress,
	}
	err := s.exec.Insert(ctx, CollectionStudents, id, doc, []string{"lastActive", "createdAt", "updatedAt"})
	if err != nil {
		return "", &crm.StoreError{Op: "create student", Err: err}
	}
	s.log.WithContext(ctx).Info("student created", "student_id", id, "status", p.Status)
	return id, nil
}

// Get fetches one student by identity.
func (s *Service) Get(ctx context.Context, id string) (crm.Student, error) {
	doc, err := s.exec.Get(ctx, CollectionStudents, id)
	if errors.Is(err, document.ErrNotFound) {
		return crm.Student{}, &crm.NotFoundError{Kind: "student", ID: id}
	}
	if err != nil {
		return crm.Student{}, &crm.StoreError{Op: "get student", Err: err}
	}
	return studentFromDoc(doc)
}

// Update applies a partial update. Lowercase mirrors follow their source
// field; updatedAt and lastActive are stamped with server time.
func (s *Service) Update(ctx context.Context, id string, p StudentPatch) error {
	patch, err := patchToDoc(p)
	if err != nil {
		return err
	}
	err = s.exec.Update(ctx, CollectionStudents, id, patch, []string{"lastActive", "updatedAt"})
	if errors.Is(err, document.ErrNotFound) {
		return &crm.NotFoundError{Kind: "student", ID: id}
	}
	if err != nil {
		return &crm.StoreError{Op: "update student", Err: err}
	}
	return nil
}

// Delete removes the student and its child records. Deletion is immediate
// and unrecoverable.
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.exec.Delete(ctx, CollectionStudents, id)
	if errors.Is(err, document.ErrNotFound) {
		return &crm.NotFoundError{Kind: "student", ID: id}
	}
	if err != nil {
		return &crm.StoreError{Op: "delete student", Err: err}
	}
	for _, col := range []string{CollectionNotes, CollectionCommunications, CollectionInteractions} {
		children, err := s.exec.Query(ctx, col, document.Query{
			Predicates: []document.Predicate{document.Eq("studentId", id)},
		})
		if err != nil {
			return &crm.StoreError{Op: "delete student children", Err: err}
		}
		for _, child := range children {
			childID, _ := child["id"].(string)
			if err := s.exec.Delete(ctx, col, childID); err != nil && !errors.Is(err, document.ErrNotFound) {
				return &crm.StoreError{Op: "delete student children", Err: err}
			}
		}
	}
	s.log.WithContext(ctx).Info("student deleted", "student_id", id)
	return nil
}

func validateNewStudent(p NewStudent) error {
	if strings.TrimSpace(p.Name) == "" {
		return &crm.ValidationError{Field: "name", Reason: "required"}
	}
	if _, err := mail.ParseAddress(p.Email); err != nil {
		return &crm.ValidationError{Field: "email", Reason: "malformed address"}
	}
	if !p.Status.Valid() {
		return &crm.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", p.Status)}
	}
	if p.Progress < 0 || p.Progress > 100 {
		return &crm.ValidationError{Field: "progress", Reason: "must be between 0 and 100"}
	}
	return nil
}

func patchToDoc(p StudentPatch) (document.Document, error) {
	patch := document.Document{}
	if p.Name != nil {
		if strings.TrimSpace(*p.Name) == "" {
			return nil, &crm.ValidationError{Field: "name", Reason: "required"}
		}
		patch["name"] = *p.Name
		patch["name_lc"] = strings.ToLower(*p.Name)
	}
	if p.Email != nil {
		if _, err := mail.ParseAddress(*p.Email); err != nil {
			return nil, &crm.ValidationError{Field: "email", Reason: "malformed address"}
		}
		patch["email"] = *p.Email
		patch["email_lc"] = strings.ToLower(*p.Email)
	}
	if p.Phone != nil {
		patch["phone"] = *p.Phone
	}
	if p.Country != nil {
		patch["country"] = *p.Country
	}
	if p.Grade != nil {
		patch["grade"] = *p.Grade
	}
	if p.Status != nil {
		if !p.Status.Valid() {
			return nil, &crm.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", *p.Status)}
		}
		patch["status"] = string(*p.Status)
	}
	if p.HighIntent != nil {
		patch["highIntent"] = *p.HighIntent
	}
	if p.NeedsEssayHelp != nil {
		patch["needsEssayHelp"] = *p.NeedsEssayHelp
	}
	if p.Progress != nil {
		if *p.Progress < 0 || *p.Progress > 100 {
			return nil, &crm.ValidationError{Field: "progress", Reason: "must be between 0 and 100"}
		}
		patch["progress"] = *p.Progress
	}
	if len(patch) == 0 {
		return nil, &crm.ValidationError{Reason: "empty patch"}
	}
	return patch, nil
}

// studentFromDoc builds a Student from a raw document, rejecting malformed
// data at the store boundary instead of letting it flow into the services.
func studentFromDoc(doc document.Document) (crm.Student, error) {
	id, _ := doc["id"].(string)
	st := crm.Student{
		ID:             id,
		Name:           stringField(doc, "name"),
		NameLC:         stringField(doc, "name_lc"),
		Email:          stringField(doc, "email"),
		EmailLC:        stringField(doc, "email_lc"),
		Phone:          stringField(doc, "phone"),
		Country:        stringField(doc, "country"),
		Grade:          stringField(doc, "grade"),
		Status:         crm.Status(stringField(doc, "status")),
		LastActive:     timeField(doc, "lastActive"),
		HighIntent:     boolField(doc, "highIntent"),
		NeedsEssayHelp: boolField(doc, "needsEssayHelp"),
		Progress:       intField(doc, "progress"),
		CreatedAt:      timeField(doc, "createdAt"),
		UpdatedAt:      timeField(doc, "updatedAt"),
	}
	if st.ID == "" || st.Name == "" || st.Email == "" {
		return crm.Student{}, fmt.Errorf("decode student %q: missing identity fields", id)
	}
	if !st.Status.Valid() {
		return crm.Student{}, fmt.Errorf("decode student %q: invalid status %q", id, st.Status)
	}
	if st.Progress < 0 || st.Progress > 100 {
		return crm.Student{}, fmt.Errorf("decode student %q: progress %d out of range", id, st.Progress)
	}
	return st, nil
}

func stringField(doc document.Document, key string) string {
	s, _ := doc[key].(string)
	return s
}

func boolField(doc document.Document, key string) bool {
	b, _ := doc[key].(bool)
	return b
}

func intField(doc document.Document, key string) int {
	switch n := doc[key].(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func timeField(doc document.Document, key string) time.Time {
	t, _ := doc[key].(time.Time)
	return t
}
