// Package crm defines the entities of the admissions funnel and the
// error taxonomy shared by the services built on top of the document store.
package crm

import "time"

// Status is the funnel stage of a student.
type Status string

const (
	StatusExploring    Status = "Exploring"
	StatusShortlisting Status = "Shortlisting"
	StatusApplying     Status = "Applying"
	StatusSubmitted    Status = "Submitted"
	StatusAccepted     Status = "Accepted"
)

// Statuses returns all funnel stages in display order.
func Statuses() []Status {
	return []Status{StatusExploring, StatusShortlisting, StatusApplying, StatusSubmitted, StatusAccepted}
}

// Valid reports whether s is one of the closed set of funnel stages.
func (s Status) Valid() bool {
	switch s {
	case StatusExploring, StatusShortlisting, StatusApplying, StatusSubmitted, StatusAccepted:
		return true
	}
	return false
}

// Team is a team affiliation for members and tasks.
type Team string

const (
	TeamCounselor        Team = "counselor"
	TeamDigitalMarketing Team = "digital_marketing"
)

// Teams returns both team affiliations.
func Teams() []Team {
	return []Team{TeamCounselor, TeamDigitalMarketing}
}

func (t Team) Valid() bool {
	return t == TeamCounselor || t == TeamDigitalMarketing
}

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskOpen       TaskStatus = "open"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
)

// TaskStatuses returns all task states.
func TaskStatuses() []TaskStatus {
	return []TaskStatus{TaskOpen, TaskInProgress, TaskCompleted}
}

func (s TaskStatus) Valid() bool {
	return s == TaskOpen || s == TaskInProgress || s == TaskCompleted
}

// Priority is the urgency of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// CommunicationType classifies an entry in a student's communication log.
type CommunicationType string

const (
	CommCall  CommunicationType = "call"
	CommEmail CommunicationType = "email"
	CommNote  CommunicationType = "note"
)

func (c CommunicationType) Valid() bool {
	return c == CommCall || c == CommEmail || c == CommNote
}

// Student is a prospective student moving through the application funnel.
// NameLC and EmailLC are lowercase mirrors of Name and Email kept in sync
// on every write; they back case-insensitive prefix search.
type Student struct {
	ID             string
	Name           string
	NameLC         string
	Email          string
	EmailLC        string
	Phone          string
	Country        string
	Grade          string
	Status         Status
	LastActive     time.Time
	HighIntent     bool
	NeedsEssayHelp bool
	Progress       int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Note is a free-text annotation on a student.
type Note struct {
	ID        string    `json:"id"`
	StudentID string    `json:"studentId"`
	Text      string    `json:"text"`
	CreatedBy string    `json:"createdBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Communication is one entry of a student's communication log.
type Communication struct {
	ID        string            `json:"id"`
	StudentID string            `json:"studentId"`
	Type      CommunicationType `json:"type"`
	Message   string            `json:"message"`
	CreatedBy string            `json:"createdBy,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// Interaction is a timeline event recorded against a student.
type Interaction struct {
	ID        string    `json:"id"`
	StudentID string    `json:"studentId"`
	Kind      string    `json:"kind"`
	Details   string    `json:"details,omitempty"`
	CreatedBy string    `json:"createdBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// TeamMember is an internal staff member.
type TeamMember struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Team      Team      `json:"team"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TaskAssignee is the denormalized member summary embedded in a task.
type TaskAssignee struct {
	MemberID string `json:"memberId"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Team     Team   `json:"team"`
}

// Task is a unit of team work, optionally linked to a student.
// AssigneeIDs is a flat list of Assignees[i].MemberID kept consistent on
// every write; the store cannot query inside the nested assignee maps.
type Task struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	Description      string         `json:"description,omitempty"`
	Team             Team           `json:"team"`
	Status           TaskStatus     `json:"status"`
	Priority         Priority       `json:"priority"`
	Assignees        []TaskAssignee `json:"assignees"`
	AssigneeIDs      []string       `json:"assigneeIds"`
	RelatedStudentID string         `json:"relatedStudentId,omitempty"`
	DueAt            *time.Time     `json:"dueAt,omitempty"`
	RemindAt         *time.Time     `json:"remindAt,omitempty"`
	CreatedBy        string         `json:"createdBy,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}
