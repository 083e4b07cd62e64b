package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/admitdesk/admitdesk/pkg/crm"
	"github.com/admitdesk/admitdesk/pkg/crm/students"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type studentJSON struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	Phone          string     `json:"phone,omitempty"`
	Country        string     `json:"country,omitempty"`
	Grade          string     `json:"grade,omitempty"`
	Status         crm.Status `json:"status"`
	LastActive     *time.Time `json:"lastActive,omitempty"`
	HighIntent     bool       `json:"highIntent"`
	NeedsEssayHelp bool       `json:"needsEssayHelp"`
	Progress       int        `json:"progress"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

func toStudentJSON(st crm.Student) studentJSON {
	out := studentJSON{
		ID:             st.ID,
		Name:           st.Name,
		Email:          st.Email,
		Phone:          st.Phone,
		Country:        st.Country,
		Grade:          st.Grade,
		Status:         st.Status,
		HighIntent:     st.HighIntent,
		NeedsEssayHelp: st.NeedsEssayHelp,
		Progress:       st.Progress,
		CreatedAt:      st.CreatedAt,
		UpdatedAt:      st.UpdatedAt,
	}
	if !st.LastActive.IsZero() {
		t := st.LastActive
		out.LastActive = &t
	}
	return out
}

func (s *Server) handleListStudents(c *gin.Context) {
	params := students.ListParams{
		Text:   c.Query("q"),
		Status: crm.Status(c.Query("status")),
		Quick:  students.QuickFilter(c.Query("quick")),
		Cursor: c.Query("cursor"),
	}
	if raw := c.Query("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(c, &crm.ValidationError{Field: "page_size", Reason: "not a number"})
			return
		}
		params.PageSize = n
	}

	page, err := s.students.List(c.Request.Context(), params)
	if err != nil {
		writeError(c, err)
		return
	}
	items := make([]studentJSON, 0, len(page.Items))
	for _, st := range page.Items {
		items = append(items, toStudentJSON(st))
	}
	resp := gin.H{"items": items}
	if page.NextCursor != "" {
		resp["nextCursor"] = page.NextCursor
	} else {
		resp["nextCursor"] = nil
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleStudentStats(c *gin.Context) {
	stats, err := s.students.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

type createStudentRequest struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	Phone          string     `json:"phone"`
	Country        string     `json:"country"`
	Grade          string     `json:"grade"`
	Status         crm.Status `json:"status"`
	HighIntent     bool       `json:"highIntent"`
	NeedsEssayHelp bool       `json:"needsEssayHelp"`
	Progress       int        `json:"progress"`
}

func (s *Server) handleCreateStudent(c *gin.Context) {
	var req createStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, &crm.ValidationError{Field: "body", Reason: "malformed JSON"})
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = crm.StatusExploring
	}
	id, err := s.students.Create(c.Request.Context(), req.ID, students.NewStudent{
		Name:           req.Name,
		Email:          req.Email,
		Phone:          req.Phone,
		Country:        req.Country,
		Grade:          req.Grade,
		Status:         req.Status,
		HighIntent:     req.HighIntent,
		NeedsEssayHelp: req.NeedsEssayHelp,
		Progress:       req.Progress,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (s *Server) handleGetStudent(c *gin.Context) {
	st, err := s.students.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toStudentJSON(st))
}

type updateStudentRequest struct {
	Name           *string     `json:"name"`
	Email          *string     `json:"email"`
	Phone          *string     `json:"phone"`
	Country        *string     `json:"country"`
	Grade          *string     `json:"grade"`
	Status         *crm.Status `json:"status"`
	HighIntent     *bool       `json:"highIntent"`
	NeedsEssayHelp *bool       `json:"needsEssayHelp"`
	Progress       *int        `json:"progress"`
}

func (s *Server) handleUpdateStudent(c *gin.Context) {
	var req updateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, &crm.ValidationError{Field: "body", Reason: "malformed JSON"})
		return
	}
	err := s.students.Update(c.Request.Context(), c.Param("id"), students.StudentPatch{
		Name:           req.Name,
		Email:          req.Email,
		Phone:          req.Phone,
		Country:        req.Country,
		Grade:          req.Grade,
		Status:         req.Status,
		HighIntent:     req.HighIntent,
		NeedsEssayHelp: req.NeedsEssayHelp,
		Progress:       req.Progress,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDeleteStudent(c *gin.Context) {
	if err := s.students.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type noteRequest struct {
	Text      string `json:"text"`
	CreatedBy string `json:"createdBy"`
}

func (s *Server) handleListNotes(c *gin.Context) {
	notes, err := s.students.ListNotes(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": notes})
}

func (s *Server) handleAddNote(c *gin.Context) {
	var req noteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, &crm.ValidationError{Field: "body", Reason: "malformed JSON"})
		return
	}
	id, err := s.students.AddNote(c.Request.Context(), c.Param("id"), req.Text, req.CreatedBy)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (s *Server) handleUpdateNote(c *gin.Context) {
	var req noteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, &crm.ValidationError{Field: "body", Reason: "malformed JSON"})
		return
	}
	if err := s.students.UpdateNote(c.Request.Context(), c.Param("id"), c.Param("noteId"), req.Text); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDeleteNote(c *gin.Context) {
	if err := s.students.DeleteNote(c.Request.Context(), c.Param("id"), c.Param("noteId")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type communicationRequest struct {
	Type      crm.CommunicationType `json:"type"`
	Message   string                `json:"message"`
	CreatedBy string                `json:"createdBy"`
}

func (s *Server) handleListCommunications(c *gin.Context) {
	comms, err := s.students.ListCommunications(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": comms})
}

func (s *Server) handleAddCommunication(c *gin.Context) {
	var req communicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, &crm.ValidationError{Field: "body", Reason: "malformed JSON"})
		return
	}
	id, err := s.students.AddCommunication(c.Request.Context(), c.Param("id"), req.Type, req.Message, req.CreatedBy)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (s *Server) handleUpdateCommunication(c *gin.Context) {
	var req communicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, &crm.ValidationError{Field: "body", Reason: "malformed JSON"})
		return
	}
	if err := s.students.UpdateCommunication(c.Request.Context(), c.Param("id"), c.Param("commId"), req.Message); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDeleteCommunication(c *gin.Context) {
	if err := s.students.DeleteCommunication(c.Request.Context(), c.Param("id"), c.Param("commId")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type interactionRequest struct {
	Kind      string `json:"kind"`
	Details   string `json:"details"`
	CreatedBy string `json:"createdBy"`
}

func (s *Server) handleListInteractions(c *gin.Context) {
	items, err := s.students.ListInteractions(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (s *Server) handleAddInteraction(c *gin.Context) {
	var req interactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, &crm.ValidationError{Field: "body", Reason: "malformed JSON"})
		return
	}
	id, err := s.students.AddInteraction(c.Request.Context(), c.Param("id"), req.Kind, req.Details, req.CreatedBy)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}
