// README: Cancellation policy, evaluated fresh on every cancel attempt.
package order

import (
	"motoshop/internal/modules/task"
)

// Decision explains whether a booking may be cancelled and, if not, which stage blocks it.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Stage   Stage  `json:"stage"`
	Reason  string `json:"reason,omitempty"`
}

// CanCancel decides from the current booking, order (nil before check-in) and its tasks.
// Running work always blocks; otherwise only reception, the quote stage and an inspected
// order whose servicing has not begun are cancellable.
func CanCancel(b *Booking, o *ServiceOrder, tasks []task.Task) Decision {
	stage := StageOf(b, o)
	deny := func(reason string) Decision {
		return Decision{Allowed: false, Stage: stage, Reason: reason}
	}
	allow := Decision{Allowed: true, Stage: stage}

	switch b.Status {
	case BookingCancelled:
		return deny("booking already cancelled")
	case BookingCompleted:
		return deny("booking completed")
	}

	var servicing *task.Task
	for i := range tasks {
		t := &tasks[i]
		if t.Status == task.StatusInProgress {
			return deny(string(t.Type) + " in progress")
		}
		if t.Type == task.TypeServicing && t.Status.Active() {
			servicing = t
		}
	}

	if b.Status == BookingBooked || b.Status == BookingCheckedIn {
		return allow
	}
	if o == nil {
		return deny("service order missing")
	}
	switch o.Status {
	case OrderWaitingCustomerApproval:
		return allow
	case OrderInspectionCompleted:
		if servicing == nil || servicing.Status.Startable() {
			return allow
		}
		return deny("servicing in progress")
	case OrderApproved:
		return deny("quote approved")
	case OrderScheduled, OrderRescheduled:
		return deny("servicing scheduled")
	case OrderServicing:
		return deny("servicing in progress")
	case OrderCompleted:
		return deny("service order completed")
	case OrderCancelled:
		return deny("service order cancelled")
	}
	return deny("work under way")
}
