package students

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/admitdesk/admitdesk/pkg/crm"
	"github.com/admitdesk/admitdesk/pkg/repository/document"
	"github.com/google/uuid"
)

// Child records (notes, communications, interactions) hang off a student and
// are listed newest first. They have no cross-record invariants.

func (s *Service) ensureStudent(ctx context.Context, studentID string) error {
	_, err := s.exec.Get(ctx, CollectionStudents, studentID)
	if errors.Is(err, document.ErrNotFound) {
		return &crm.NotFoundError{Kind: "student", ID: studentID}
	}
	if err != nil {
		return &crm.StoreError{Op: "get student", Err: err}
	}
	return nil
}

func (s *Service) listChildren(ctx context.Context, collection, studentID string) ([]document.Document, error) {
	docs, err := s.exec.Query(ctx, collection, document.Query{
		Predicates: []document.Predicate{document.Eq("studentId", studentID)},
		Order:      document.OrderBy{Field: "createdAt", Desc: true},
	})
	if err != nil {
		return nil, &crm.StoreError{Op: "list " + collection, Err: err}
	}
	return docs, nil
}

// ListNotes returns the student's notes, newest first.
func (s *Service) ListNotes(ctx context.Context, studentID string) ([]crm.Note, error) {
	docs, err := s.listChildren(ctx, CollectionNotes, studentID)
	if err != nil {
		return nil, err
	}
	notes := make([]crm.Note, 0, len(docs))
	for _, d := range docs {
		notes = append(notes, crm.Note{
			ID:        stringField(d, "id"),
			StudentID: stringField(d, "studentId"),
			Text:      stringField(d, "text"),
			CreatedBy: stringField(d, "createdBy"),
			CreatedAt: timeField(d, "createdAt"),
			UpdatedAt: timeField(d, "updatedAt"),
		})
	}
	return notes, nil
}

// AddNote creates a note on the student and returns its identity.
func (s *Service) AddNote(ctx context.Context, studentID, text, createdBy string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", &crm.ValidationError{Field: "text", Reason: "required"}
	}
	if err := s.ensureStudent(ctx, studentID); err != nil {
		return "", err
	}
	id := uuid.NewString()
	err := s.exec.Insert(ctx, CollectionNotes, id, document.Document{
		"studentId": studentID,
		"text":      text,
		"createdBy": createdBy,
	}, []string{"createdAt", "updatedAt"})
	if err != nil {
		return "", &crm.StoreError{Op: "add note", Err: err}
	}
	return id, nil
}

// UpdateNote replaces a note's text.
func (s *Service) UpdateNote(ctx context.Context, studentID, noteID, text string) error {
	if strings.TrimSpace(text) == "" {
		return &crm.ValidationError{Field: "text", Reason: "required"}
	}
	return s.updateChild(ctx, CollectionNotes, "note", studentID, noteID, document.Document{"text": text})
}

// DeleteNote removes a note.
func (s *Service) DeleteNote(ctx context.Context, studentID, noteID string) error {
	return s.deleteChild(ctx, CollectionNotes, "note", studentID, noteID)
}

// ListCommunications returns the student's communication log, newest first.
func (s *Service) ListCommunications(ctx context.Context, studentID string) ([]crm.Communication, error) {
	docs, err := s.listChildren(ctx, CollectionCommunications, studentID)
	if err != nil {
		return nil, err
	}
	comms := make([]crm.Communication, 0, len(docs))
	for _, d := range docs {
		comms = append(comms, crm.Communication{
			ID:        stringField(d, "id"),
			StudentID: stringField(d, "studentId"),
			Type:      crm.CommunicationType(stringField(d, "type")),
			Message:   stringField(d, "message"),
			CreatedBy: stringField(d, "createdBy"),
			CreatedAt: timeField(d, "createdAt"),
			UpdatedAt: timeField(d, "updatedAt"),
		})
	}
	return comms, nil
}

// AddCommunication records a call, email, or note-type touchpoint.
func (s *Service) AddCommunication(ctx context.Context, studentID string, commType crm.CommunicationType, message, createdBy string) (string, error) {
	if !commType.Valid() {
		return "", &crm.ValidationError{Field: "type", Reason: fmt.Sprintf("unknown communication type %q", commType)}
	}
	if strings.TrimSpace(message) == "" {
		return "", &crm.ValidationError{Field: "message", Reason: "required"}
	}
	if err := s.ensureStudent(ctx, studentID); err != nil {
		return "", err
	}
	id := uuid.NewString()
	err := s.exec.Insert(ctx, CollectionCommunications, id, document.Document{
		"studentId": studentID,
		"type":      string(commType),
		"message":   message,
		"createdBy": createdBy,
	}, []string{"createdAt", "updatedAt"})
	if err != nil {
		return "", &crm.StoreError{Op: "add communication", Err: err}
	}
	return id, nil
}

// UpdateCommunication replaces a communication's message.
func (s *Service) UpdateCommunication(ctx context.Context, studentID, commID, message string) error {
	if strings.TrimSpace(message) == "" {
		return &crm.ValidationError{Field: "message", Reason: "required"}
	}
	return s.updateChild(ctx, CollectionCommunications, "communication", studentID, commID, document.Document{"message": message})
}

// DeleteCommunication removes a communication log entry.
func (s *Service) DeleteCommunication(ctx context.Context, studentID, commID string) error {
	return s.deleteChild(ctx, CollectionCommunications, "communication", studentID, commID)
}

// ListInteractions returns the student's interaction timeline, newest first.
func (s *Service) ListInteractions(ctx context.Context, studentID string) ([]crm.Interaction, error) {
	docs, err := s.listChildren(ctx, CollectionInteractions, studentID)
	if err != nil {
		return nil, err
	}
	items := make([]crm.Interaction, 0, len(docs))
	for _, d := range docs {
		items = append(items, crm.Interaction{
			ID:        stringField(d, "id"),
			StudentID: stringField(d, "studentId"),
			Kind:      stringField(d, "kind"),
			Details:   stringField(d, "details"),
			CreatedBy: stringField(d, "createdBy"),
			CreatedAt: timeField(d, "createdAt"),
		})
	}
	return items, nil
}

// AddInteraction appends an event to the student's interaction timeline.
func (s *Service) AddInteraction(ctx context.Context, studentID, kind, details, createdBy string) (string, error) {
	if strings.TrimSpace(kind) == "" {
		return "", &crm.ValidationError{Field: "kind", Reason: "required"}
	}
	if err := s.ensureStudent(ctx, studentID); err != nil {
		return "", err
	}
	id := uuid.NewString()
	err := s.exec.Insert(ctx, CollectionInteractions, id, document.Document{
		"studentId": studentID,
		"kind":      kind,
		"details":   details,
		"createdBy": createdBy,
	}, []string{"createdAt"})
	if err != nil {
		return "", &crm.StoreError{Op: "add interaction", Err: err}
	}
	return id, nil
}

func (s *Service) updateChild(ctx context.Context, collection, kind, studentID, childID string, patch document.Document) error {
	if err := s.guardChild(ctx, collection, kind, studentID, childID); err != nil {
		return err
	}
	err := s.exec.Update(ctx, collection, childID, patch, []string{"updatedAt"})
	if errors.Is(err, document.ErrNotFound) {
		return &crm.NotFoundError{Kind: kind, ID: childID}
	}
	if err != nil {
		return &crm.StoreError{Op: "update " + kind, Err: err}
	}
	return nil
}

func (s *Service) deleteChild(ctx context.Context, collection, kind, studentID, childID string) error {
	if err := s.guardChild(ctx, collection, kind, studentID, childID); err != nil {
		return err
	}
	err := s.exec.Delete(ctx, collection, childID)
	if errors.Is(err, document.ErrNotFound) {
		return &crm.NotFoundError{Kind: kind, ID: childID}
	}
	if err != nil {
		return &crm.StoreError{Op: "delete " + kind, Err: err}
	}
	return nil
}

// guardChild rejects operations that address a child record through the
// wrong parent student.
func (s *Service) guardChild(ctx context.Context, collection, kind, studentID, childID string) error {
	doc, err := s.exec.Get(ctx, collection, childID)
	if errors.Is(err, document.ErrNotFound) {
		return &crm.NotFoundError{Kind: kind, ID: childID}
	}
	if err != nil {
		return &crm.StoreError{Op: "get " + kind, Err: err}
	}
	if stringField(doc, "studentId") != studentID {
		return &crm.NotFoundError{Kind: kind, ID: childID}
	}
	return nil
}
