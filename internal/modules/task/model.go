// README: Task aggregate (inspection / servicing work bound to one bay and one window).
package task

import (
	"time"

	"motoshop/internal/apperror"
	"motoshop/internal/types"
)

type Type string

const (
	TypeInspection Type = "inspection"
	TypeServicing  Type = "servicing"
)

func (t Type) Valid() bool {
	return t == TypeInspection || t == TypeServicing
}

type Status string

const (
	StatusScheduled   Status = "scheduled"
	StatusRescheduled Status = "rescheduled"
	StatusInProgress  Status = "in_progress"
	StatusCompleted   Status = "completed"
	// StatusCancelled releases the bay of a task that never started when its booking is cancelled.
	StatusCancelled Status = "cancelled"
)

// Active statuses hold their bay window.
func (s Status) Active() bool {
	return s == StatusScheduled || s == StatusRescheduled || s == StatusInProgress
}

// Startable statuses may still be begun or rescheduled.
func (s Status) Startable() bool {
	return s == StatusScheduled || s == StatusRescheduled
}

type Role string

const (
	RoleLead      Role = "lead"
	RoleAssistant Role = "assistant"
)

type Assignment struct {
	TechnicianID types.ID `json:"technician_id"`
	Role         Role     `json:"role"`
}

type TimelineEntry struct {
	ID        types.ID         `json:"id"`
	TaskID    types.ID         `json:"task_id"`
	Title     string           `json:"title"`
	Comment   string           `json:"comment"`
	Media     []types.MediaRef `json:"media"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

type Task struct {
	ID             types.ID         `json:"id"`
	ServiceOrderID types.ID         `json:"service_order_id"`
	Type           Type             `json:"type"`
	BayID          types.ID         `json:"bay_id"`
	Status         Status           `json:"status"`
	Window         types.Window     `json:"window"`
	ActualStart    *time.Time       `json:"actual_start,omitempty"`
	ActualEnd      *time.Time       `json:"actual_end,omitempty"`
	ExpectedEnd    time.Time        `json:"expected_end"`
	Comment        string           `json:"comment"`
	Media          []types.MediaRef `json:"media"`
	Technicians    []Assignment     `json:"technicians"`
	Timeline       []TimelineEntry  `json:"timeline,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// Lead returns the lead technician, if assigned.
func (t *Task) Lead() (types.ID, bool) {
	for _, a := range t.Technicians {
		if a.Role == RoleLead {
			return a.TechnicianID, true
		}
	}
	return "", false
}

// Remaining is the countdown to ExpectedEnd; zero once it has passed.
func (t *Task) Remaining(now time.Time) time.Duration {
	if d := t.ExpectedEnd.Sub(now); d > 0 {
		return d
	}
	return 0
}

var (
	ErrNotFound      = apperror.New(apperror.NotFound, "task not found")
	ErrEntryNotFound = apperror.New(apperror.NotFound, "timeline entry not found")
	ErrBadRequest    = apperror.New(apperror.Validation, "invalid task request")
	ErrInvalidState  = apperror.New(apperror.InvalidState, "task is not in a valid state for this operation")
	ErrBayConflict   = apperror.New(apperror.BayConflict, "bay already booked for an overlapping window")
	ErrConflict      = apperror.New(apperror.Conflict, "task changed concurrently")
)
