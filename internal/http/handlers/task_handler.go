// README: Task handlers: read, begin, complete and servicing timeline entries.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"motoshop/internal/http/middleware"
	"motoshop/internal/modules/order"
	"motoshop/internal/modules/task"
	"motoshop/internal/types"
)

type TaskHandler struct {
	orders Workflow
}

func NewTaskHandler(orders Workflow) *TaskHandler {
	return &TaskHandler{orders: orders}
}

func (h *TaskHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	t, err := h.orders.GetTask(c.Request.Context(), id, middleware.CallerActor(c))
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, t)
}

type beginReq struct {
	Technicians []task.Assignment `json:"technicians"`
}

func (h *TaskHandler) Begin(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req beginReq
	if !bindBody(c, &req) {
		return
	}
	t, err := h.orders.BeginTask(c.Request.Context(), order.BeginCommand{
		TaskID:      id,
		Technicians: req.Technicians,
		Actor:       middleware.CallerActor(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, t)
}

type completeReq struct {
	Comment string           `json:"comment"`
	Media   []types.MediaRef `json:"media"`
}

func (h *TaskHandler) Complete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req completeReq
	if !bindBody(c, &req) {
		return
	}
	t, err := h.orders.CompleteTask(c.Request.Context(), order.CompleteCommand{
		TaskID:  id,
		Comment: req.Comment,
		Media:   req.Media,
		Actor:   middleware.CallerActor(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, t)
}

type timelineReq struct {
	Title   string           `json:"title"`
	Comment string           `json:"comment"`
	Media   []types.MediaRef `json:"media"`
}

func (h *TaskHandler) AppendTimeline(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req timelineReq
	if !bindBody(c, &req) {
		return
	}
	entry, err := h.orders.AppendServicingTimelineEntry(c.Request.Context(), order.TimelineCommand{
		TaskID:  id,
		Title:   req.Title,
		Comment: req.Comment,
		Media:   req.Media,
		Actor:   middleware.CallerActor(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, entry)
}

func (h *TaskHandler) UpdateTimeline(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	entryID, ok := pathID(c, "entryId")
	if !ok {
		return
	}
	var req timelineReq
	if !bindBody(c, &req) {
		return
	}
	entry, err := h.orders.UpdateServicingTimelineEntry(c.Request.Context(), order.TimelineCommand{
		TaskID:  id,
		EntryID: entryID,
		Title:   req.Title,
		Comment: req.Comment,
		Media:   req.Media,
		Actor:   middleware.CallerActor(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, entry)
}
