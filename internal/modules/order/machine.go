// README: Composite booking + service order state machine. Apply is the only status mutator.
package order

import (
	"motoshop/internal/apperror"
)

// Stage is the composite lifecycle position derived from booking and order status.
type Stage string

const (
	StageBooked          Stage = "booked"
	StageCheckedIn       Stage = "checked_in"
	StageInspecting      Stage = "inspecting"
	StageInspected       Stage = "inspected"
	StageWaitingApproval Stage = "waiting_approval"
	StageApproved        Stage = "approved"
	StageScheduling      Stage = "scheduling"
	StageServicing       Stage = "servicing"
	StageCompleted       Stage = "completed"
	StageCancelled       Stage = "cancelled"
	stageUnknown         Stage = "unknown"
)

// Stages lists every stage in lifecycle order.
var Stages = []Stage{
	StageBooked, StageCheckedIn, StageInspecting, StageInspected, StageWaitingApproval,
	StageApproved, StageScheduling, StageServicing, StageCompleted, StageCancelled,
}

func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageCancelled
}

type Trigger string

const (
	TriggerCheckIn             Trigger = "check_in"
	TriggerInspectionScheduled Trigger = "inspection_scheduled"
	TriggerInspectionStarted   Trigger = "inspection_started"
	TriggerInspectionCompleted Trigger = "inspection_completed"
	TriggerQuoteCreated        Trigger = "quote_created"
	TriggerQuoteApproved       Trigger = "quote_approved"
	TriggerQuoteRejected       Trigger = "quote_rejected"
	TriggerServicingScheduled  Trigger = "servicing_scheduled"
	TriggerServicingStarted    Trigger = "servicing_started"
	TriggerServicingCompleted  Trigger = "servicing_completed"
	TriggerCancel              Trigger = "cancel"

	// triggerCreate is audit-only: booking creation is not a transition.
	triggerCreate Trigger = "create"
)

// Transition is one row of the table. Empty Booking/Order leave that status unchanged.
type Transition struct {
	From    Stage
	Trigger Trigger
	To      Stage
	Booking BookingStatus
	Order   OrderStatus
}

var transitions = []Transition{
	{StageBooked, TriggerCheckIn, StageCheckedIn, BookingCheckedIn, OrderCreated},

	{StageCheckedIn, TriggerInspectionScheduled, StageInspecting, "", OrderWaitingInspection},
	{StageInspecting, TriggerInspectionScheduled, StageInspecting, "", OrderWaitingInspection},
	{StageInspecting, TriggerInspectionStarted, StageInspecting, BookingInProgress, ""},
	{StageInspecting, TriggerInspectionCompleted, StageInspected, BookingInProgress, OrderInspectionCompleted},

	{StageInspected, TriggerQuoteCreated, StageWaitingApproval, "", OrderWaitingCustomerApproval},
	{StageWaitingApproval, TriggerQuoteApproved, StageApproved, "", OrderApproved},
	{StageWaitingApproval, TriggerQuoteRejected, StageInspected, "", OrderInspectionCompleted},

	// Supplemental quotes raised after approval keep the stage; a pending one blocks servicing.
	{StageApproved, TriggerQuoteCreated, StageApproved, "", ""},
	{StageApproved, TriggerQuoteApproved, StageApproved, "", ""},
	{StageApproved, TriggerQuoteRejected, StageApproved, "", ""},

	{StageApproved, TriggerServicingScheduled, StageScheduling, "", OrderScheduled},
	{StageScheduling, TriggerServicingScheduled, StageScheduling, "", OrderRescheduled},
	{StageScheduling, TriggerServicingStarted, StageServicing, BookingInProgress, OrderServicing},
	{StageServicing, TriggerServicingCompleted, StageCompleted, BookingCompleted, OrderCompleted},
}

type transitionKey struct {
	from    Stage
	trigger Trigger
}

var table = buildTable()

func buildTable() map[transitionKey]Transition {
	m := make(map[transitionKey]Transition, len(transitions)+len(Stages))
	for _, t := range transitions {
		m[transitionKey{t.From, t.Trigger}] = t
	}
	for _, s := range Stages {
		if s.Terminal() {
			continue
		}
		m[transitionKey{s, TriggerCancel}] = Transition{s, TriggerCancel, StageCancelled, BookingCancelled, OrderCancelled}
	}
	return m
}

// StageOf derives the composite stage. o may be nil before check-in.
func StageOf(b *Booking, o *ServiceOrder) Stage {
	switch b.Status {
	case BookingCancelled:
		return StageCancelled
	case BookingCompleted:
		return StageCompleted
	case BookingBooked:
		return StageBooked
	}
	if o == nil {
		return stageUnknown
	}
	switch o.Status {
	case OrderCreated:
		return StageCheckedIn
	case OrderWaitingInspection:
		return StageInspecting
	case OrderInspectionCompleted:
		return StageInspected
	case OrderWaitingCustomerApproval:
		return StageWaitingApproval
	case OrderApproved:
		return StageApproved
	case OrderScheduled, OrderRescheduled:
		return StageScheduling
	case OrderServicing:
		return StageServicing
	case OrderCompleted:
		return StageCompleted
	case OrderCancelled:
		return StageCancelled
	}
	return stageUnknown
}

// Next looks up the transition for trigger from stage without mutating anything.
func Next(from Stage, trigger Trigger) (Transition, error) {
	t, ok := table[transitionKey{from, trigger}]
	if !ok {
		return Transition{}, invalidTransition(from, trigger)
	}
	return t, nil
}

// Allowed reports whether trigger is permitted from stage.
func Allowed(from Stage, trigger Trigger) bool {
	_, ok := table[transitionKey{from, trigger}]
	return ok
}

// Apply moves b (and o, when present) along trigger. Both statuses change together or not at all.
func Apply(b *Booking, o *ServiceOrder, trigger Trigger) (Transition, error) {
	t, err := Next(StageOf(b, o), trigger)
	if err != nil {
		return Transition{}, err
	}
	if t.Booking != "" {
		b.Status = t.Booking
	}
	if t.Order != "" && o != nil {
		o.Status = t.Order
	}
	return t, nil
}

func invalidTransition(from Stage, trigger Trigger) error {
	return apperror.Newf(apperror.InvalidTransition, "cannot apply %s in stage %s", trigger, from).
		With("current", string(from)).
		With("requested", string(trigger))
}
