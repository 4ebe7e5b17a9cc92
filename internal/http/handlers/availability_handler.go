// README: Dispatch read-model handlers: availability snapshot and stage dashboard.
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"motoshop/internal/modules/availability"
	"motoshop/internal/types"
)

type AvailabilityReader interface {
	Snapshot(ctx context.Context, q availability.Query) (availability.Snapshot, error)
}

type AvailabilityHandler struct {
	availability AvailabilityReader
	orders       Workflow
}

func NewAvailabilityHandler(reader AvailabilityReader, orders Workflow) *AvailabilityHandler {
	return &AvailabilityHandler{availability: reader, orders: orders}
}

// Snapshot accepts ?lookahead=2h&limit=3&technician=<id>&technician=<id>.
func (h *AvailabilityHandler) Snapshot(c *gin.Context) {
	var q availability.Query
	if v := c.Query("lookahead"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			badRequest(c, "invalid lookahead")
			return
		}
		q.Lookahead = d
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			badRequest(c, "invalid limit")
			return
		}
		q.Limit = n
	}
	for _, id := range c.QueryArray("technician") {
		if id == "" {
			badRequest(c, "invalid technician")
			return
		}
		q.Technicians = append(q.Technicians, types.ID(id))
	}
	snap, err := h.availability.Snapshot(c.Request.Context(), q)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, snap)
}

func (h *AvailabilityHandler) Dashboard(c *gin.Context) {
	d, err := h.orders.Dashboard(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, d)
}
