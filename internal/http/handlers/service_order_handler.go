// README: Service order handlers: read, schedule inspection/servicing, raise a quote.
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

type ServiceOrderHandler struct {
	orders Workflow
}

func NewServiceOrderHandler(orders Workflow) *ServiceOrderHandler {
	return &ServiceOrderHandler{orders: orders}
}

func (h *ServiceOrderHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	o, err := h.orders.GetServiceOrder(c.Request.Context(), id, middleware.CallerActor(c))
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, o)
}

type scheduleReq struct {
	BayID  string       `json:"bay_id"`
	Window types.Window `json:"window"`
}

func (h *ServiceOrderHandler) ScheduleInspection(c *gin.Context) {
	h.schedule(c, h.orders.ScheduleInspection)
}

func (h *ServiceOrderHandler) ScheduleServicing(c *gin.Context) {
	h.schedule(c, h.orders.ScheduleServicing)
}

type scheduleFunc func(ctx context.Context, cmd order.ScheduleCommand) (*task.Task, error)

func (h *ServiceOrderHandler) schedule(c *gin.Context, fn scheduleFunc) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req scheduleReq
	if !bindBody(c, &req) {
		return
	}
	t, err := fn(c.Request.Context(), order.ScheduleCommand{
		ServiceOrderID: id,
		BayID:          types.ID(req.BayID),
		Window:         req.Window,
		Actor:          middleware.CallerActor(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, t)
}

type createQuoteReq struct {
	Items []quote.Item `json:"items"`
}

func (h *ServiceOrderHandler) CreateQuote(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req createQuoteReq
	if !bindBody(c, &req) {
		return
	}
	q, err := h.orders.CreateQuote(c.Request.Context(), order.CreateQuoteCommand{
		ServiceOrderID: id,
		Items:          req.Items,
		Actor:          middleware.CallerActor(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, q)
}
