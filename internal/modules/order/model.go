// README: Booking and service order aggregates, status definitions and audit events.
package order

import (
	"time"

	"motoshop/internal/apperror"
	"motoshop/internal/modules/quote"
	"motoshop/internal/types"
)

type BookingStatus string

const (
	BookingBooked     BookingStatus = "booked"
	BookingCheckedIn  BookingStatus = "checked_in"
	BookingInProgress BookingStatus = "in_progress"
	BookingCompleted  BookingStatus = "completed"
	BookingCancelled  BookingStatus = "cancelled"
)

type OrderStatus string

const (
	OrderCreated                 OrderStatus = "created"
	OrderWaitingInspection       OrderStatus = "waiting_inspection"
	OrderInspectionCompleted     OrderStatus = "inspection_completed"
	OrderWaitingCustomerApproval OrderStatus = "waiting_customer_approval"
	OrderApproved                OrderStatus = "approved"
	OrderScheduled               OrderStatus = "scheduled"
	OrderRescheduled             OrderStatus = "rescheduled"
	OrderServicing               OrderStatus = "servicing"
	OrderCompleted               OrderStatus = "completed"
	OrderCancelled               OrderStatus = "cancelled"
)

type Booking struct {
	ID            types.ID      `json:"id"`
	CustomerID    types.ID      `json:"customer_id"`
	VehicleID     types.ID      `json:"vehicle_id"`
	Slot          types.Window  `json:"slot"`
	Status        BookingStatus `json:"status"`
	StatusVersion int           `json:"status_version"`
	Note          string        `json:"note"`
	CreatedAt     time.Time     `json:"created_at"`
	CheckedInAt   *time.Time    `json:"checked_in_at,omitempty"`
	CancelledAt   *time.Time    `json:"cancelled_at,omitempty"`
	CancelReason  *string       `json:"cancel_reason,omitempty"`
}

// ServiceOrder is created at check-in and tracks the work done on the vehicle.
type ServiceOrder struct {
	ID            types.ID     `json:"id"`
	BookingID     types.ID     `json:"booking_id"`
	Status        OrderStatus  `json:"status"`
	StatusVersion int          `json:"status_version"`
	Items         []quote.Item `json:"items"`
	CreatedAt     time.Time    `json:"created_at"`
	CompletedAt   *time.Time   `json:"completed_at,omitempty"`
	CancelledAt   *time.Time   `json:"cancelled_at,omitempty"`
}

// Event is one row of the order_state_events audit trail.
type Event struct {
	ID             int64      `json:"id"`
	BookingID      types.ID   `json:"booking_id"`
	ServiceOrderID *types.ID  `json:"service_order_id,omitempty"`
	Trigger        Trigger    `json:"event"`
	FromStage      Stage      `json:"from_stage"`
	ToStage        Stage      `json:"to_stage"`
	ActorType      types.Role `json:"actor_type"`
	ActorID        *types.ID  `json:"actor_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

var (
	ErrNotFound      = apperror.New(apperror.NotFound, "booking not found")
	ErrOrderNotFound = apperror.New(apperror.NotFound, "service order not found")
	ErrBadRequest    = apperror.New(apperror.Validation, "invalid request")
	ErrConflict      = apperror.New(apperror.Conflict, "booking changed concurrently; reload and retry")
	ErrForbidden     = apperror.New(apperror.Forbidden, "booking belongs to another customer")
	ErrPendingQuote  = apperror.New(apperror.InvalidState, "a quote is still pending customer approval")
	ErrWrongTaskType = apperror.New(apperror.InvalidState, "task type does not match the operation")
)
