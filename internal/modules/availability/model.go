// README: Availability snapshot shapes returned to dispatch screens.
package availability

import (
	"time"

	"motoshop/internal/modules/bay"
	"motoshop/internal/modules/task"
	"motoshop/internal/types"
)

type Query struct {
	Lookahead time.Duration
	// Limit caps upcoming tasks per bay.
	Limit int
	// Technicians to report on; busy technicians are always included.
	Technicians []types.ID
}

// TaskView is the dispatch-facing slice of a task.
type TaskView struct {
	TaskID           types.ID     `json:"task_id"`
	ServiceOrderID   types.ID     `json:"service_order_id"`
	Type             task.Type    `json:"type"`
	Status           task.Status  `json:"status"`
	Window           types.Window `json:"window"`
	ExpectedEnd      time.Time    `json:"expected_end"`
	RemainingSeconds int64        `json:"remaining_seconds"`
	// Overdue marks an unstarted task whose window has already opened.
	Overdue          bool         `json:"overdue"`
	LeadTechnicianID *types.ID    `json:"lead_technician_id,omitempty"`
}

type BaySlot struct {
	BayID           types.ID   `json:"bay_id"`
	Number          int        `json:"number"`
	Description     string     `json:"description"`
	Status          bay.Status `json:"status"`
	Current         *TaskView  `json:"current,omitempty"`
	NextAvailableAt time.Time  `json:"next_available_at"`
	Upcoming        []TaskView `json:"upcoming"`
}

type TechnicianSlot struct {
	TechnicianID   types.ID   `json:"technician_id"`
	IsBusy         bool       `json:"is_busy"`
	AssignedTaskID *types.ID  `json:"assigned_task_id"`
	Role           *task.Role `json:"role,omitempty"`
	BusyUntil      *time.Time `json:"busy_until,omitempty"`
}

type Snapshot struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Bays        []BaySlot        `json:"bays"`
	Technicians []TechnicianSlot `json:"technicians"`
}
