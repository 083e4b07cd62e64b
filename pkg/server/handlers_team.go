package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/admitdesk/admitdesk/pkg/crm"
	"github.com/admitdesk/admitdesk/pkg/crm/team"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func (s *Server) handleListMembers(c *gin.Context) {
	members, err := s.team.ListMembers(c.Request.Context(), crm.Team(c.Query("team")), c.Query("active_only") == "true")
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": members})
}

type memberRequest struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Email  string   `json:"email"`
	Team   crm.Team `json:"team"`
	Active *bool    `json:"active"`
}

func (s *Server) handleCreateMember(c *gin.Context) {
	var req memberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, &crm.ValidationError{Field: "body", Reason: "malformed JSON"})
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	id, err := s.team.CreateMember(c.Request.Context(), req.ID, team.NewMember{
		Name:   req.Name,
		Email:  req.Email,
		Team:   req.Team,
		Active: active,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (s *Server) handleGetMember(c *gin.Context) {
	member, err := s.team.GetMember(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, member)
}

type memberPatchRequest struct {
	Name   *string   `json:"name"`
	Email  *string   `json:"email"`
	Team   *crm.Team `json:"team"`
	Active *bool     `json:"active"`
}

func (s *Server) handleUpdateMember(c *gin.Context) {
	var req memberPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, &crm.ValidationError{Field: "body", Reason: "malformed JSON"})
		return
	}
	err := s.team.UpdateMember(c.Request.Context(), c.Param("id"), team.MemberPatch{
		Name:   req.Name,
		Email:  req.Email,
		Team:   req.Team,
		Active: req.Active,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDeleteMember(c *gin.Context) {
	if err := s.team.DeleteMember(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleListTasks(c *gin.Context) {
	params := team.TaskListParams{
		Team:       crm.Team(c.Query("team")),
		Status:     crm.TaskStatus(c.Query("status")),
		AssigneeID: c.Query("assignee_id"),
		Cursor:     c.Query("cursor"),
	}
	if raw := c.Query("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(c, &crm.ValidationError{Field: "page_size", Reason: "not a number"})
			return
		}
		params.PageSize = n
	}
	page, err := s.team.ListTasks(c.Request.Context(), params)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := gin.H{"items": page.Items}
	if page.NextCursor != "" {
		resp["nextCursor"] = page.NextCursor
	} else {
		resp["nextCursor"] = nil
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleTaskStats(c *gin.Context) {
	stats, err := s.team.TaskStats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

type taskRequest struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	Description      string         `json:"description"`
	Team             crm.Team       `json:"team"`
	Status           crm.TaskStatus `json:"status"`
	Priority         crm.Priority   `json:"priority"`
	AssigneeIDs      []string       `json:"assigneeIds"`
	RelatedStudentID string         `json:"relatedStudentId"`
	DueAt            *time.Time     `json:"dueAt"`
	RemindAt         *time.Time     `json:"remindAt"`
	CreatedBy        string         `json:"createdBy"`
}

func (s *Server) handleCreateTask(c *gin.Context) {
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, &crm.ValidationError{Field: "body", Reason: "malformed JSON"})
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	id, err := s.team.CreateTask(c.Request.Context(), req.ID, team.NewTask{
		Title:            req.Title,
		Description:      req.Description,
		Team:             req.Team,
		Status:           req.Status,
		Priority:         req.Priority,
		AssigneeIDs:      req.AssigneeIDs,
		RelatedStudentID: req.RelatedStudentID,
		DueAt:            req.DueAt,
		RemindAt:         req.RemindAt,
		CreatedBy:        req.CreatedBy,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (s *Server) handleGetTask(c *gin.Context) {
	task, err := s.team.GetTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

type taskPatchRequest struct {
	Title            *string         `json:"title"`
	Description      *string         `json:"description"`
	Team             *crm.Team       `json:"team"`
	Status           *crm.TaskStatus `json:"status"`
	Priority         *crm.Priority   `json:"priority"`
	AssigneeIDs      *[]string       `json:"assigneeIds"`
	RelatedStudentID *string         `json:"relatedStudentId"`
	DueAt            *time.Time      `json:"dueAt"`
	RemindAt         *time.Time      `json:"remindAt"`
}

func (s *Server) handleUpdateTask(c *gin.Context) {
	var req taskPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, &crm.ValidationError{Field: "body", Reason: "malformed JSON"})
		return
	}
	err := s.team.UpdateTask(c.Request.Context(), c.Param("id"), team.TaskPatch{
		Title:            req.Title,
		Description:      req.Description,
		Team:             req.Team,
		Status:           req.Status,
		Priority:         req.Priority,
		AssigneeIDs:      req.AssigneeIDs,
		RelatedStudentID: req.RelatedStudentID,
		DueAt:            req.DueAt,
		RemindAt:         req.RemindAt,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	if err := s.team.DeleteTask(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
