package models

import "time"

type ContactStatus string

const (
	StatusNotAttended ContactStatus = "not_attended"
	StatusOnHold      ContactStatus = "on_hold"
	StatusAttended    ContactStatus = "attended"
	StatusSent        ContactStatus = "sent"
)

func (s ContactStatus) Valid() bool {
	switch s {
	case StatusNotAttended, StatusOnHold, StatusAttended, StatusSent:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// DefaultContactSource tags submissions from the public form.
const DefaultContactSource = "landing_page"

// Contact is a lead submitted through the public form.
type Contact struct {
	ID               string        `json:"id"`
	FullName         string        `json:"full_name"`
	Email            string        `json:"email"`
	Phone            string        `json:"phone"`
	Message          string        `json:"message"`
	Status           ContactStatus `json:"status"`
	Priority         Priority      `json:"priority"`
	AssignedTo       *string       `json:"assigned_to"`
	AssignedUsername *string       `json:"assigned_username,omitempty"`
	Notes            *string       `json:"notes"`
	Source           string        `json:"source"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// ContactUpdate carries optional changes; nil fields are left as they are.
// ClearAssignee unassigns the contact.
type ContactUpdate struct {
	Status        *ContactStatus
	Priority      *Priority
	Notes         *string
	AssignedTo    *string
	ClearAssignee bool
}

func (u ContactUpdate) Empty() bool {
	return u.Status == nil && u.Priority == nil && u.Notes == nil && u.AssignedTo == nil && !u.ClearAssignee
}

// ContactFilter drives listing and export.
type ContactFilter struct {
	Page       int
	Limit      int
	Search     string
	Status     ContactStatus
	Priority   Priority
	AssignedTo string
	SortBy     string
	SortOrder  string
}

// Offset is the number of rows skipped for Page.
func (f ContactFilter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

// MonthlyCount is the number of contacts created in a calendar month (YYYY-MM).
type MonthlyCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

// DashboardStats summarises the contact pipeline.
type DashboardStats struct {
	Total      int                   `json:"total"`
	ByStatus   map[ContactStatus]int `json:"by_status"`
	ByPriority map[Priority]int      `json:"by_priority"`
	Recent     []Contact             `json:"recent"`
	Monthly    []MonthlyCount        `json:"monthly"`
}
