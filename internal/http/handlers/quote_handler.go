// README: Quote handlers; approve/reject are the customer's decision.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"motoshop/internal/http/middleware"
	"motoshop/internal/modules/order"
)

type QuoteHandler struct {
	orders Workflow
}

func NewQuoteHandler(orders Workflow) *QuoteHandler {
	return &QuoteHandler{orders: orders}
}

func (h *QuoteHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	q, err := h.orders.GetQuote(c.Request.Context(), id, middleware.CallerActor(c))
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, q)
}

func (h *QuoteHandler) Approve(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	q, err := h.orders.ApproveQuote(c.Request.Context(), order.ResolveQuoteCommand{
		QuoteID: id,
		Actor:   middleware.CallerActor(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, q)
}

type rejectReq struct {
	Reason string `json:"reason"`
}

func (h *QuoteHandler) Reject(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req rejectReq
	if !bindBody(c, &req) {
		return
	}
	q, err := h.orders.RejectQuote(c.Request.Context(), order.ResolveQuoteCommand{
		QuoteID: id,
		Reason:  req.Reason,
		Actor:   middleware.CallerActor(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, q)
}
