// README: Bay registry handlers (workshop administration).
package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"motoshop/internal/modules/bay"
	"motoshop/internal/types"
)

type BayRegistry interface {
	Create(ctx context.Context, cmd bay.CreateCommand) (*bay.Bay, error)
	Get(ctx context.Context, id types.ID) (*bay.Bay, error)
	List(ctx context.Context, includeInactive bool) ([]bay.Bay, error)
	UpdateDescription(ctx context.Context, id types.ID, description string) error
	SetActive(ctx context.Context, id types.ID, active bool) error
	Delete(ctx context.Context, id types.ID) error
}

type BayHandler struct {
	bays BayRegistry
}

func NewBayHandler(bays BayRegistry) *BayHandler {
	return &BayHandler{bays: bays}
}

func (h *BayHandler) List(c *gin.Context) {
	includeInactive, _ := strconv.ParseBool(c.Query("include_inactive"))
	bays, err := h.bays.List(c.Request.Context(), includeInactive)
	if err != nil {
		writeError(c, err)
		return
	}
	if bays == nil {
		bays = []bay.Bay{}
	}
	writeJSON(c, http.StatusOK, map[string]any{"bays": bays})
}

type createBayReq struct {
	Number      int    `json:"number"`
	Description string `json:"description"`
}

func (h *BayHandler) Create(c *gin.Context) {
	var req createBayReq
	if !bindBody(c, &req) {
		return
	}
	b, err := h.bays.Create(c.Request.Context(), bay.CreateCommand{Number: req.Number, Description: req.Description})
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, b)
}

func (h *BayHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	b, err := h.bays.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, b)
}

// updateBayReq carries optional fields; absent ones are left as they are.
type updateBayReq struct {
	Description *string `json:"description"`
	Active      *bool   `json:"active"`
}

func (h *BayHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req updateBayReq
	if !bindBody(c, &req) {
		return
	}
	ctx := c.Request.Context()
	if req.Description != nil {
		if err := h.bays.UpdateDescription(ctx, id, *req.Description); err != nil {
			writeError(c, err)
			return
		}
	}
	if req.Active != nil {
		if err := h.bays.SetActive(ctx, id, *req.Active); err != nil {
			writeError(c, err)
			return
		}
	}
	b, err := h.bays.Get(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, b)
}

func (h *BayHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.bays.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
