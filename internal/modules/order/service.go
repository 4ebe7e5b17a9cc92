// README: Order service sequences reception, inspection, quote, servicing and cancellation.
package order

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"motoshop/internal/apperror"
	"motoshop/internal/infra"
	"motoshop/internal/modules/notify"
	"motoshop/internal/modules/quote"
	"motoshop/internal/modules/task"
	"motoshop/internal/types"
)

type Service struct {
	tx     *infra.TxRunner
	store  *Store
	tasks  *task.Service
	quotes *quote.Service
	events notify.Publisher
	log    *logrus.Logger
	now    func() time.Time
}

func NewService(
	tx *infra.TxRunner,
	store *Store,
	tasks *task.Service,
	quotes *quote.Service,
	events notify.Publisher,
	log *logrus.Logger,
) *Service {
	if events == nil {
		events = notify.Nop{}
	}
	return &Service{
		tx:     tx,
		store:  store,
		tasks:  tasks,
		quotes: quotes,
		events: events,
		log:    log,
		now:    func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// scope binds the collaborators to one transaction and collects events to publish after commit.
type scope struct {
	store  *Store
	tasks  *task.Service
	quotes *quote.Service
	events []notify.Event
}

func (s *Service) inTx(ctx context.Context, fn func(sc *scope) error) error {
	var sc *scope
	err := s.tx.InTx(ctx, func(tx pgx.Tx) error {
		sc = &scope{
			store:  s.store.WithTx(tx),
			tasks:  s.tasks.WithTx(tx),
			quotes: s.quotes.WithTx(tx),
		}
		return fn(sc)
	})
	if err != nil {
		return err
	}
	for _, e := range sc.events {
		s.log.WithFields(logrus.Fields{
			"booking_id":       e.BookingID,
			"service_order_id": e.ServiceOrderID,
			"task_id":          e.TaskID,
			"quote_id":         e.QuoteID,
			"event":            e.Kind,
			"from":             e.From,
			"to":               e.To,
			"actor_id":         e.ActorID,
			"actor_role":       e.ActorRole,
		}).Info("order transition")
		s.events.Publish(e)
	}
	return nil
}

type refs struct {
	taskID  types.ID
	quoteID types.ID
}

// step applies trigger and persists booking and order with their status_version guards,
// appending the audit row in the same transaction.
func (s *Service) step(ctx context.Context, sc *scope, b *Booking, o *ServiceOrder, trigger Trigger, actor types.Actor, r refs) (Transition, error) {
	bookingFrom, bookingVersion := b.Status, b.StatusVersion
	var orderFrom OrderStatus
	var orderVersion int
	if o != nil {
		orderFrom, orderVersion = o.Status, o.StatusVersion
	}

	tr, err := Apply(b, o, trigger)
	if err != nil {
		return Transition{}, err
	}

	now := s.now()
	switch {
	case trigger == TriggerCheckIn:
		b.CheckedInAt = &now
	case tr.To == StageCancelled:
		b.CancelledAt = &now
		if o != nil {
			o.CancelledAt = &now
		}
	case tr.To == StageCompleted && o != nil:
		o.CompletedAt = &now
	}

	ok, err := sc.store.UpdateBooking(ctx, b, bookingFrom, bookingVersion)
	if err != nil {
		return Transition{}, err
	}
	if !ok {
		return Transition{}, ErrConflict.With("booking_id", string(b.ID))
	}
	b.StatusVersion++

	var orderID *types.ID
	if o != nil {
		if orderFrom == "" {
			if err := sc.store.CreateOrder(ctx, o); err != nil {
				return Transition{}, err
			}
		} else {
			ok, err := sc.store.UpdateOrder(ctx, o, orderFrom, orderVersion)
			if err != nil {
				return Transition{}, err
			}
			if !ok {
				return Transition{}, ErrConflict.With("service_order_id", string(o.ID))
			}
			o.StatusVersion++
		}
		id := o.ID
		orderID = &id
	}

	actorID := actor.ID
	if err := sc.store.AppendEvent(ctx, &Event{
		BookingID:      b.ID,
		ServiceOrderID: orderID,
		Trigger:        trigger,
		FromStage:      tr.From,
		ToStage:        tr.To,
		ActorType:      actor.Role,
		ActorID:        &actorID,
		CreatedAt:      now,
	}); err != nil {
		return Transition{}, err
	}

	e := notify.Event{
		ID:        types.NewID(),
		Kind:      string(trigger),
		BookingID: b.ID,
		TaskID:    r.taskID,
		QuoteID:   r.quoteID,
		From:      string(tr.From),
		To:        string(tr.To),
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		At:        now,
	}
	if orderID != nil {
		e.ServiceOrderID = *orderID
	}
	sc.events = append(sc.events, e)
	return tr, nil
}

func requireWorkshop(actor types.Actor) error {
	if !actor.IsWorkshop() {
		return apperror.New(apperror.Forbidden, "workshop staff only")
	}
	return nil
}

// authorizeBooking lets workshop actors act on any booking and customers only on their own.
func authorizeBooking(actor types.Actor, b *Booking) error {
	if actor.IsWorkshop() {
		return nil
	}
	if actor.Role == types.RoleCustomer && actor.ID == b.CustomerID {
		return nil
	}
	return ErrForbidden
}

func (sc *scope) loadByOrder(ctx context.Context, orderID types.ID) (*Booking, *ServiceOrder, error) {
	o, err := sc.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	b, err := sc.store.GetBooking(ctx, o.BookingID)
	if err != nil {
		return nil, nil, err
	}
	return b, o, nil
}

func (sc *scope) loadByTask(ctx context.Context, taskID types.ID, want task.Type) (*task.Task, *Booking, *ServiceOrder, error) {
	t, err := sc.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, nil, nil, err
	}
	if t.Type != want {
		return nil, nil, nil, ErrWrongTaskType.With("task_id", string(taskID)).With("type", string(t.Type))
	}
	b, o, err := sc.loadByOrder(ctx, t.ServiceOrderID)
	if err != nil {
		return nil, nil, nil, err
	}
	return t, b, o, nil
}

func (sc *scope) loadByQuote(ctx context.Context, quoteID types.ID) (*quote.Quote, *Booking, *ServiceOrder, error) {
	q, err := sc.quotes.Get(ctx, quoteID)
	if err != nil {
		return nil, nil, nil, err
	}
	b, o, err := sc.loadByOrder(ctx, q.ServiceOrderID)
	if err != nil {
		return nil, nil, nil, err
	}
	return q, b, o, nil
}

type CreateBookingCommand struct {
	CustomerID types.ID
	VehicleID  types.ID
	Slot       types.Window
	Note       string
	Actor      types.Actor
}

func (s *Service) CreateBooking(ctx context.Context, cmd CreateBookingCommand) (*Booking, error) {
	customerID := cmd.CustomerID
	if cmd.Actor.Role == types.RoleCustomer {
		if customerID == "" {
			customerID = cmd.Actor.ID
		}
		if customerID != cmd.Actor.ID {
			return nil, ErrForbidden
		}
	} else if err := requireWorkshop(cmd.Actor); err != nil {
		return nil, err
	}
	switch {
	case customerID == "":
		return nil, ErrBadRequest.With("field", "customer_id")
	case cmd.VehicleID == "":
		return nil, ErrBadRequest.With("field", "vehicle_id")
	case !cmd.Slot.Valid():
		return nil, ErrBadRequest.With("field", "slot").With("reason", "start must be before end")
	}

	now := s.now()
	b := &Booking{
		ID:         types.NewID(),
		CustomerID: customerID,
		VehicleID:  cmd.VehicleID,
		Slot:       cmd.Slot,
		Status:     BookingBooked,
		Note:       strings.TrimSpace(cmd.Note),
		CreatedAt:  now,
	}
	err := s.inTx(ctx, func(sc *scope) error {
		if err := sc.store.CreateBooking(ctx, b); err != nil {
			return err
		}
		actorID := cmd.Actor.ID
		if err := sc.store.AppendEvent(ctx, &Event{
			BookingID: b.ID,
			Trigger:   triggerCreate,
			ToStage:   StageBooked,
			ActorType: cmd.Actor.Role,
			ActorID:   &actorID,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		sc.events = append(sc.events, notify.Event{
			ID:        types.NewID(),
			Kind:      "booking_created",
			BookingID: b.ID,
			To:        string(StageBooked),
			ActorID:   cmd.Actor.ID,
			ActorRole: cmd.Actor.Role,
			At:        now,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

type CheckInCommand struct {
	BookingID types.ID
	Actor     types.Actor
}

// CheckIn admits the vehicle and opens its service order.
func (s *Service) CheckIn(ctx context.Context, cmd CheckInCommand) (*ServiceOrder, error) {
	if err := requireWorkshop(cmd.Actor); err != nil {
		return nil, err
	}
	var o *ServiceOrder
	err := s.inTx(ctx, func(sc *scope) error {
		b, err := sc.store.GetBooking(ctx, cmd.BookingID)
		if err != nil {
			return err
		}
		o = &ServiceOrder{
			ID:        types.NewID(),
			BookingID: b.ID,
			Items:     []quote.Item{},
			CreatedAt: s.now(),
		}
		_, err = s.step(ctx, sc, b, o, TriggerCheckIn, cmd.Actor, refs{})
		return err
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

type ScheduleCommand struct {
	ServiceOrderID types.ID
	BayID          types.ID
	Window         types.Window
	Actor          types.Actor
}

// ScheduleInspection books (or re-books) the inspection bay window.
func (s *Service) ScheduleInspection(ctx context.Context, cmd ScheduleCommand) (*task.Task, error) {
	return s.schedule(ctx, cmd, task.TypeInspection, TriggerInspectionScheduled)
}

func (s *Service) schedule(ctx context.Context, cmd ScheduleCommand, typ task.Type, trigger Trigger) (*task.Task, error) {
	if err := requireWorkshop(cmd.Actor); err != nil {
		return nil, err
	}
	var t *task.Task
	err := s.inTx(ctx, func(sc *scope) error {
		b, o, err := sc.loadByOrder(ctx, cmd.ServiceOrderID)
		if err != nil {
			return err
		}
		if typ == task.TypeServicing {
			pending, err := sc.quotes.HasPending(ctx, o.ID)
			if err != nil {
				return err
			}
			if pending {
				return ErrPendingQuote.With("service_order_id", string(o.ID))
			}
		}
		if _, err := Next(StageOf(b, o), trigger); err != nil {
			return err
		}
		t, err = sc.tasks.Schedule(ctx, task.ScheduleCommand{
			ServiceOrderID: o.ID,
			Type:           typ,
			BayID:          cmd.BayID,
			Window:         cmd.Window,
		})
		if err != nil {
			return err
		}
		_, err = s.step(ctx, sc, b, o, trigger, cmd.Actor, refs{taskID: t.ID})
		return err
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

type BeginCommand struct {
	TaskID      types.ID
	Technicians []task.Assignment
	Actor       types.Actor
}

func (s *Service) BeginInspection(ctx context.Context, cmd BeginCommand) (*task.Task, error) {
	return s.begin(ctx, cmd, task.TypeInspection, TriggerInspectionStarted)
}

func (s *Service) begin(ctx context.Context, cmd BeginCommand, typ task.Type, trigger Trigger) (*task.Task, error) {
	if err := requireWorkshop(cmd.Actor); err != nil {
		return nil, err
	}
	var t *task.Task
	err := s.inTx(ctx, func(sc *scope) error {
		_, b, o, err := sc.loadByTask(ctx, cmd.TaskID, typ)
		if err != nil {
			return err
		}
		if _, err := Next(StageOf(b, o), trigger); err != nil {
			return err
		}
		t, err = sc.tasks.Begin(ctx, task.BeginCommand{TaskID: cmd.TaskID, Technicians: cmd.Technicians})
		if err != nil {
			return err
		}
		_, err = s.step(ctx, sc, b, o, trigger, cmd.Actor, refs{taskID: t.ID})
		return err
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

type CompleteCommand struct {
	TaskID  types.ID
	Comment string
	Media   []types.MediaRef
	Actor   types.Actor
}

// CompleteInspection records findings and moves the order to inspection_completed.
func (s *Service) CompleteInspection(ctx context.Context, cmd CompleteCommand) (*task.Task, error) {
	return s.complete(ctx, cmd, task.TypeInspection, TriggerInspectionCompleted)
}

func (s *Service) complete(ctx context.Context, cmd CompleteCommand, typ task.Type, trigger Trigger) (*task.Task, error) {
	if err := requireWorkshop(cmd.Actor); err != nil {
		return nil, err
	}
	var t *task.Task
	err := s.inTx(ctx, func(sc *scope) error {
		_, b, o, err := sc.loadByTask(ctx, cmd.TaskID, typ)
		if err != nil {
			return err
		}
		if typ == task.TypeServicing {
			pending, err := sc.quotes.HasPending(ctx, o.ID)
			if err != nil {
				return err
			}
			if pending {
				return ErrPendingQuote.With("service_order_id", string(o.ID))
			}
		}
		// Task state is checked first so a repeated completion reports INVALID_STATE.
		t, err = sc.tasks.Complete(ctx, task.CompleteCommand{TaskID: cmd.TaskID, Comment: cmd.Comment, Media: cmd.Media})
		if err != nil {
			return err
		}
		_, err = s.step(ctx, sc, b, o, trigger, cmd.Actor, refs{taskID: t.ID})
		return err
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

type CreateQuoteCommand struct {
	ServiceOrderID types.ID
	Items          []quote.Item
	Actor          types.Actor
}

func (s *Service) CreateQuote(ctx context.Context, cmd CreateQuoteCommand) (*quote.Quote, error) {
	if err := requireWorkshop(cmd.Actor); err != nil {
		return nil, err
	}
	var q *quote.Quote
	err := s.inTx(ctx, func(sc *scope) error {
		b, o, err := sc.loadByOrder(ctx, cmd.ServiceOrderID)
		if err != nil {
			return err
		}
		q, err = sc.quotes.Create(ctx, quote.CreateCommand{ServiceOrderID: o.ID, Items: cmd.Items})
		if err != nil {
			return err
		}
		_, err = s.step(ctx, sc, b, o, TriggerQuoteCreated, cmd.Actor, refs{quoteID: q.ID})
		return err
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

type ResolveQuoteCommand struct {
	QuoteID types.ID
	Reason  string
	Actor   types.Actor
}

// ApproveQuote accepts the quote; its items join the service order.
func (s *Service) ApproveQuote(ctx context.Context, cmd ResolveQuoteCommand) (*quote.Quote, error) {
	var q *quote.Quote
	err := s.inTx(ctx, func(sc *scope) error {
		current, b, o, err := sc.loadByQuote(ctx, cmd.QuoteID)
		if err != nil {
			return err
		}
		if err := authorizeBooking(cmd.Actor, b); err != nil {
			return err
		}
		q, err = sc.quotes.Approve(ctx, current.ID)
		if err != nil {
			return err
		}
		o.Items = append(o.Items, q.Items...)
		_, err = s.step(ctx, sc, b, o, TriggerQuoteApproved, cmd.Actor, refs{quoteID: q.ID})
		return err
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

// RejectQuote declines the quote with a reason; the order returns to inspection_completed.
func (s *Service) RejectQuote(ctx context.Context, cmd ResolveQuoteCommand) (*quote.Quote, error) {
	var q *quote.Quote
	err := s.inTx(ctx, func(sc *scope) error {
		current, b, o, err := sc.loadByQuote(ctx, cmd.QuoteID)
		if err != nil {
			return err
		}
		if err := authorizeBooking(cmd.Actor, b); err != nil {
			return err
		}
		q, err = sc.quotes.Reject(ctx, current.ID, cmd.Reason)
		if err != nil {
			return err
		}
		_, err = s.step(ctx, sc, b, o, TriggerQuoteRejected, cmd.Actor, refs{quoteID: q.ID})
		return err
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

// ScheduleServicing books the servicing window. Any pending quote blocks it.
func (s *Service) ScheduleServicing(ctx context.Context, cmd ScheduleCommand) (*task.Task, error) {
	return s.schedule(ctx, cmd, task.TypeServicing, TriggerServicingScheduled)
}

func (s *Service) StartServicing(ctx context.Context, cmd BeginCommand) (*task.Task, error) {
	return s.begin(ctx, cmd, task.TypeServicing, TriggerServicingStarted)
}

type TimelineCommand struct {
	TaskID  types.ID
	EntryID types.ID
	Title   string
	Comment string
	Media   []types.MediaRef
	Actor   types.Actor
}

func (s *Service) AppendServicingTimelineEntry(ctx context.Context, cmd TimelineCommand) (*task.TimelineEntry, error) {
	return s.timeline(ctx, cmd, "timeline_entry_added", func(sc *scope, tc task.TimelineCommand) (*task.TimelineEntry, error) {
		return sc.tasks.AppendTimelineEntry(ctx, tc)
	})
}

// UpdateServicingTimelineEntry corrects an entry by id.
func (s *Service) UpdateServicingTimelineEntry(ctx context.Context, cmd TimelineCommand) (*task.TimelineEntry, error) {
	return s.timeline(ctx, cmd, "timeline_entry_updated", func(sc *scope, tc task.TimelineCommand) (*task.TimelineEntry, error) {
		return sc.tasks.UpdateTimelineEntry(ctx, tc)
	})
}

func (s *Service) timeline(
	ctx context.Context,
	cmd TimelineCommand,
	kind string,
	write func(sc *scope, tc task.TimelineCommand) (*task.TimelineEntry, error),
) (*task.TimelineEntry, error) {
	if err := requireWorkshop(cmd.Actor); err != nil {
		return nil, err
	}
	var entry *task.TimelineEntry
	err := s.inTx(ctx, func(sc *scope) error {
		t, b, o, err := sc.loadByTask(ctx, cmd.TaskID, task.TypeServicing)
		if err != nil {
			return err
		}
		entry, err = write(sc, task.TimelineCommand{
			TaskID:  t.ID,
			EntryID: cmd.EntryID,
			Title:   cmd.Title,
			Comment: cmd.Comment,
			Media:   cmd.Media,
		})
		if err != nil {
			return err
		}
		sc.events = append(sc.events, notify.Event{
			ID:             types.NewID(),
			Kind:           kind,
			BookingID:      b.ID,
			ServiceOrderID: o.ID,
			TaskID:         t.ID,
			ActorID:        cmd.Actor.ID,
			ActorRole:      cmd.Actor.Role,
			At:             entry.UpdatedAt,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// CompleteServicing closes the servicing task and completes booking and order together.
func (s *Service) CompleteServicing(ctx context.Context, cmd CompleteCommand) (*task.Task, error) {
	return s.complete(ctx, cmd, task.TypeServicing, TriggerServicingCompleted)
}

type CancelCommand struct {
	BookingID types.ID
	Reason    string
	Actor     types.Actor
}

// CancelBooking cancels when the policy allows; unstarted tasks release their bays and
// a pending quote is rejected.
func (s *Service) CancelBooking(ctx context.Context, cmd CancelCommand) (*Booking, error) {
	var b *Booking
	err := s.inTx(ctx, func(sc *scope) error {
		var err error
		b, err = sc.store.GetBooking(ctx, cmd.BookingID)
		if err != nil {
			return err
		}
		if err := authorizeBooking(cmd.Actor, b); err != nil {
			return err
		}
		o, err := sc.store.GetOrderByBooking(ctx, b.ID)
		if err != nil {
			return err
		}
		var tasks []task.Task
		if o != nil {
			if tasks, err = sc.tasks.ListByServiceOrder(ctx, o.ID); err != nil {
				return err
			}
		}
		d := CanCancel(b, o, tasks)
		if !d.Allowed {
			return apperror.Newf(apperror.InvalidTransition, "cannot cancel booking: %s", d.Reason).
				With("current", string(d.Stage)).
				With("requested", string(TriggerCancel)).
				With("reason", d.Reason)
		}

		if reason := strings.TrimSpace(cmd.Reason); reason != "" {
			b.CancelReason = &reason
		}
		if o != nil {
			if _, err := sc.tasks.CancelOpen(ctx, o.ID); err != nil {
				return err
			}
			if _, err := sc.quotes.RejectPending(ctx, o.ID, "booking cancelled"); err != nil {
				return err
			}
		}
		_, err = s.step(ctx, sc, b, o, TriggerCancel, cmd.Actor, refs{})
		return err
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// BeginTask starts a task of either type, routing to the matching lifecycle trigger.
func (s *Service) BeginTask(ctx context.Context, cmd BeginCommand) (*task.Task, error) {
	t, err := s.tasks.Get(ctx, cmd.TaskID)
	if err != nil {
		return nil, err
	}
	if t.Type == task.TypeServicing {
		return s.StartServicing(ctx, cmd)
	}
	return s.BeginInspection(ctx, cmd)
}

func (s *Service) CompleteTask(ctx context.Context, cmd CompleteCommand) (*task.Task, error) {
	t, err := s.tasks.Get(ctx, cmd.TaskID)
	if err != nil {
		return nil, err
	}
	if t.Type == task.TypeServicing {
		return s.CompleteServicing(ctx, cmd)
	}
	return s.CompleteInspection(ctx, cmd)
}

// GetTask is visible to the workshop and to the customer owning the booking.
func (s *Service) GetTask(ctx context.Context, id types.ID, actor types.Actor) (*task.Task, error) {
	t, err := s.tasks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.GetServiceOrder(ctx, t.ServiceOrderID, actor); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) GetQuote(ctx context.Context, id types.ID, actor types.Actor) (*quote.Quote, error) {
	q, err := s.quotes.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.GetServiceOrder(ctx, q.ServiceOrderID, actor); err != nil {
		return nil, err
	}
	return q, nil
}

func (s *Service) GetBooking(ctx context.Context, id types.ID, actor types.Actor) (*Booking, error) {
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeBooking(actor, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Service) GetServiceOrder(ctx context.Context, id types.ID, actor types.Actor) (*ServiceOrder, error) {
	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	b, err := s.store.GetBooking(ctx, o.BookingID)
	if err != nil {
		return nil, err
	}
	if err := authorizeBooking(actor, b); err != nil {
		return nil, err
	}
	return o, nil
}

// Progress is the customer-facing view of one booking.
type Progress struct {
	Booking      *Booking      `json:"booking"`
	ServiceOrder *ServiceOrder `json:"service_order,omitempty"`
	Stage        Stage         `json:"stage"`
	Tasks        []task.Task   `json:"tasks"`
	Quotes       []quote.Quote `json:"quotes"`
	Cancellation Decision      `json:"cancellation"`
	History      []Event       `json:"history"`
}

func (s *Service) Progress(ctx context.Context, bookingID types.ID, actor types.Actor) (*Progress, error) {
	b, err := s.GetBooking(ctx, bookingID, actor)
	if err != nil {
		return nil, err
	}
	o, err := s.store.GetOrderByBooking(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	p := &Progress{Booking: b, ServiceOrder: o, Tasks: []task.Task{}, Quotes: []quote.Quote{}}
	if o != nil {
		if p.Tasks, err = s.tasks.ListByServiceOrder(ctx, o.ID); err != nil {
			return nil, err
		}
		if p.Quotes, err = s.quotes.ListByServiceOrder(ctx, o.ID); err != nil {
			return nil, err
		}
	}
	if p.History, err = s.store.ListEvents(ctx, b.ID); err != nil {
		return nil, err
	}
	p.Stage = StageOf(b, o)
	p.Cancellation = CanCancel(b, o, p.Tasks)
	return p, nil
}

// Dashboard counts bookings per composite stage.
type Dashboard struct {
	Stages map[Stage]int `json:"stages"`
	Total  int           `json:"total"`
}

func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	pairs, err := s.store.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	d := &Dashboard{Stages: make(map[Stage]int, len(Stages))}
	for _, st := range Stages {
		d.Stages[st] = 0
	}
	for _, p := range pairs {
		b := &Booking{Status: p.Booking}
		var o *ServiceOrder
		if p.Order != nil {
			o = &ServiceOrder{Status: *p.Order}
		}
		d.Stages[StageOf(b, o)] += p.Count
		d.Total += p.Count
	}
	return d, nil
}
