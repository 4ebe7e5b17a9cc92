// README: Booking handlers for create, read, progress, check-in and cancel.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"motoshop/internal/http/middleware"
	"motoshop/internal/modules/order"
	"motoshop/internal/modules/quote"
	"motoshop/internal/modules/task"
	"motoshop/internal/types"
)

// Workflow is the order service surface the HTTP layer drives.
type Workflow interface {
	CreateBooking(ctx context.Context, cmd order.CreateBookingCommand) (*order.Booking, error)
	GetBooking(ctx context.Context, id types.ID, actor types.Actor) (*order.Booking, error)
	Progress(ctx context.Context, bookingID types.ID, actor types.Actor) (*order.Progress, error)
	CheckIn(ctx context.Context, cmd order.CheckInCommand) (*order.ServiceOrder, error)
	CancelBooking(ctx context.Context, cmd order.CancelCommand) (*order.Booking, error)

	GetServiceOrder(ctx context.Context, id types.ID, actor types.Actor) (*order.ServiceOrder, error)
	ScheduleInspection(ctx context.Context, cmd order.ScheduleCommand) (*task.Task, error)
	ScheduleServicing(ctx context.Context, cmd order.ScheduleCommand) (*task.Task, error)
	CreateQuote(ctx context.Context, cmd order.CreateQuoteCommand) (*quote.Quote, error)

	GetTask(ctx context.Context, id types.ID, actor types.Actor) (*task.Task, error)
	BeginTask(ctx context.Context, cmd order.BeginCommand) (*task.Task, error)
	CompleteTask(ctx context.Context, cmd order.CompleteCommand) (*task.Task, error)
	AppendServicingTimelineEntry(ctx context.Context, cmd order.TimelineCommand) (*task.TimelineEntry, error)
	UpdateServicingTimelineEntry(ctx context.Context, cmd order.TimelineCommand) (*task.TimelineEntry, error)

	GetQuote(ctx context.Context, id types.ID, actor types.Actor) (*quote.Quote, error)
	ApproveQuote(ctx context.Context, cmd order.ResolveQuoteCommand) (*quote.Quote, error)
	RejectQuote(ctx context.Context, cmd order.ResolveQuoteCommand) (*quote.Quote, error)

	Dashboard(ctx context.Context) (*order.Dashboard, error)
}

type BookingHandler struct {
	orders Workflow
}

func NewBookingHandler(orders Workflow) *BookingHandler {
	return &BookingHandler{orders: orders}
}

type createBookingReq struct {
	CustomerID string       `json:"customer_id"`
	VehicleID  string       `json:"vehicle_id"`
	Slot       types.Window `json:"slot"`
	Note       string       `json:"note"`
}

func (h *BookingHandler) Create(c *gin.Context) {
	var req createBookingReq
	if !bindBody(c, &req) {
		return
	}
	b, err := h.orders.CreateBooking(c.Request.Context(), order.CreateBookingCommand{
		CustomerID: types.ID(req.CustomerID),
		VehicleID:  types.ID(req.VehicleID),
		Slot:       req.Slot,
		Note:       req.Note,
		Actor:      middleware.CallerActor(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, b)
}

func (h *BookingHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	b, err := h.orders.GetBooking(c.Request.Context(), id, middleware.CallerActor(c))
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, b)
}

func (h *BookingHandler) Progress(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	p, err := h.orders.Progress(c.Request.Context(), id, middleware.CallerActor(c))
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, p)
}

func (h *BookingHandler) CheckIn(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	o, err := h.orders.CheckIn(c.Request.Context(), order.CheckInCommand{
		BookingID: id,
		Actor:     middleware.CallerActor(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, o)
}

type cancelReq struct {
	Reason string `json:"reason"`
}

func (h *BookingHandler) Cancel(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req cancelReq
	if !bindBody(c, &req) {
		return
	}
	b, err := h.orders.CancelBooking(c.Request.Context(), order.CancelCommand{
		BookingID: id,
		Reason:    req.Reason,
		Actor:     middleware.CallerActor(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, b)
}
