// README: Router tests with stubbed services: auth, role guards, request parsing and error mapping.
package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"motoshop/internal/apperror"
	apihttp "motoshop/internal/http"
	"motoshop/internal/http/handlers"
	"motoshop/internal/infra"
	"motoshop/internal/modules/availability"
	"motoshop/internal/modules/bay"
	"motoshop/internal/modules/order"
	"motoshop/internal/modules/task"
	"motoshop/internal/types"
)

// roleVerifier treats the raw token as "<uid>:<role>".
type roleVerifier struct{}

func (roleVerifier) VerifyIDToken(_ context.Context, raw string) (*infra.Token, error) {
	for i := 0; i < len(raw); i++ {
		if raw[i] == ':' {
			return &infra.Token{UID: raw[:i], Claims: map[string]interface{}{"role": raw[i+1:]}}, nil
		}
	}
	return nil, errors.New("malformed token")
}

// stubWorkflow implements only what a test sets; other methods panic through the nil embed.
type stubWorkflow struct {
	handlers.Workflow
	createBooking func(order.CreateBookingCommand) (*order.Booking, error)
	cancel        func(order.CancelCommand) (*order.Booking, error)
	beginTask     func(order.BeginCommand) (*task.Task, error)
	schedule      func(order.ScheduleCommand) (*task.Task, error)
}

func (s *stubWorkflow) CreateBooking(_ context.Context, cmd order.CreateBookingCommand) (*order.Booking, error) {
	return s.createBooking(cmd)
}

func (s *stubWorkflow) CancelBooking(_ context.Context, cmd order.CancelCommand) (*order.Booking, error) {
	return s.cancel(cmd)
}

func (s *stubWorkflow) BeginTask(_ context.Context, cmd order.BeginCommand) (*task.Task, error) {
	return s.beginTask(cmd)
}

func (s *stubWorkflow) ScheduleServicing(_ context.Context, cmd order.ScheduleCommand) (*task.Task, error) {
	return s.schedule(cmd)
}

type stubBays struct {
	handlers.BayRegistry
	created []bay.CreateCommand
}

func (s *stubBays) Create(_ context.Context, cmd bay.CreateCommand) (*bay.Bay, error) {
	s.created = append(s.created, cmd)
	return &bay.Bay{ID: types.NewID(), Number: cmd.Number, Status: bay.StatusAvailable}, nil
}

type stubAvailability struct {
	got availability.Query
}

func (s *stubAvailability) Snapshot(_ context.Context, q availability.Query) (availability.Snapshot, error) {
	s.got = q
	return availability.Snapshot{Bays: []availability.BaySlot{}}, nil
}

type harness struct {
	router http.Handler
	orders *stubWorkflow
	bays   *stubBays
	avail  *stubAvailability
}

func newHarness() *harness {
	gin.SetMode(gin.TestMode)
	log, _ := logtest.NewNullLogger()
	h := &harness{orders: &stubWorkflow{}, bays: &stubBays{}, avail: &stubAvailability{}}
	h.router = apihttp.NewRouter(apihttp.RouterDeps{
		Orders:       h.orders,
		Bays:         h.bays,
		Availability: h.avail,
		Verifier:     roleVerifier{},
		Log:          log,
	})
	return h
}

func (h *harness) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealthNeedsNoAuth(t *testing.T) {
	h := newHarness()
	w := h.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestAPIRequiresToken(t *testing.T) {
	h := newHarness()
	w := h.do(http.MethodPost, "/api/bookings", "", map[string]any{})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateBookingPassesCallerAsActor(t *testing.T) {
	h := newHarness()
	var got order.CreateBookingCommand
	h.orders.createBooking = func(cmd order.CreateBookingCommand) (*order.Booking, error) {
		got = cmd
		return &order.Booking{ID: types.NewID(), CustomerID: cmd.Actor.ID, Status: order.BookingBooked}, nil
	}
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	w := h.do(http.MethodPost, "/api/bookings", "cust-1:customer", map[string]any{
		"vehicle_id": "veh-9",
		"slot":       map[string]any{"start": start, "end": start.Add(time.Hour)},
		"note":       "brakes squeal",
	})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, types.Actor{ID: "cust-1", Role: types.RoleCustomer}, got.Actor)
	assert.Equal(t, types.ID("veh-9"), got.VehicleID)
	assert.True(t, got.Slot.Start.Equal(start))
	assert.Equal(t, "booked", decode(t, w)["status"])
}

func TestErrorKindsMapToStatus(t *testing.T) {
	cases := []struct {
		kind   apperror.Kind
		status int
	}{
		{apperror.Validation, http.StatusBadRequest},
		{apperror.Forbidden, http.StatusForbidden},
		{apperror.NotFound, http.StatusNotFound},
		{apperror.InvalidState, http.StatusConflict},
		{apperror.InvalidTransition, http.StatusConflict},
		{apperror.BayConflict, http.StatusConflict},
		{apperror.Conflict, http.StatusConflict},
		{apperror.BayInactive, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			h := newHarness()
			h.orders.cancel = func(order.CancelCommand) (*order.Booking, error) {
				return nil, apperror.New(tc.kind, "nope").With("current", "servicing")
			}
			w := h.do(http.MethodPost, "/api/bookings/"+string(types.NewID())+"/cancel", "s1:staff", map[string]any{"reason": "x"})

			assert.Equal(t, tc.status, w.Code)
			body := decode(t, w)
			assert.Equal(t, string(tc.kind), body["error"])
			assert.Equal(t, "nope", body["message"])
			assert.Equal(t, map[string]any{"current": "servicing"}, body["details"])
		})
	}
}

func TestUnclassifiedErrorIsOpaque(t *testing.T) {
	h := newHarness()
	h.orders.cancel = func(order.CancelCommand) (*order.Booking, error) {
		return nil, errors.New("pq: connection reset")
	}
	w := h.do(http.MethodPost, "/api/bookings/"+string(types.NewID())+"/cancel", "s1:staff", nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, "INTERNAL", body["error"])
	assert.Equal(t, "internal error", body["message"])
	assert.NotContains(t, w.Body.String(), "connection reset")
}

func TestMalformedPathIDIsValidation(t *testing.T) {
	h := newHarness()
	w := h.do(http.MethodPost, "/api/bookings/not-an-id/cancel", "s1:staff", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION", decode(t, w)["error"])
}

func TestInvalidJSONIsValidation(t *testing.T) {
	h := newHarness()
	req := httptest.NewRequest(http.MethodPost, "/api/tasks/"+string(types.NewID())+"/begin", bytes.NewBufferString("{"))
	req.Header.Set("Authorization", "Bearer t1:technician")
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBeginTaskForwardsTechnicians(t *testing.T) {
	h := newHarness()
	taskID := types.NewID()
	var got order.BeginCommand
	h.orders.beginTask = func(cmd order.BeginCommand) (*task.Task, error) {
		got = cmd
		return &task.Task{ID: cmd.TaskID, Status: task.StatusInProgress}, nil
	}
	w := h.do(http.MethodPost, "/api/tasks/"+string(taskID)+"/begin", "t1:technician", map[string]any{
		"technicians": []map[string]string{
			{"technician_id": "t1", "role": "lead"},
			{"technician_id": "t2", "role": "assistant"},
		},
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, taskID, got.TaskID)
	assert.Equal(t, []task.Assignment{{TechnicianID: "t1", Role: task.RoleLead}, {TechnicianID: "t2", Role: task.RoleAssistant}}, got.Technicians)
	assert.Equal(t, types.RoleTechnician, got.Actor.Role)
}

func TestScheduleServicingBayConflictCarriesWindow(t *testing.T) {
	h := newHarness()
	h.orders.schedule = func(cmd order.ScheduleCommand) (*task.Task, error) {
		return nil, task.ErrBayConflict.With("conflicting_task_id", "t-9")
	}
	start := time.Date(2026, 3, 2, 11, 30, 0, 0, time.UTC)
	w := h.do(http.MethodPost, "/api/service-orders/"+string(types.NewID())+"/servicing", "s1:staff", map[string]any{
		"bay_id": string(types.NewID()),
		"window": map[string]any{"start": start, "end": start.Add(15 * time.Minute)},
	})

	assert.Equal(t, http.StatusConflict, w.Code)
	body := decode(t, w)
	assert.Equal(t, "BAY_CONFLICT", body["error"])
	assert.Equal(t, "t-9", body["details"].(map[string]any)["conflicting_task_id"])
}

func TestBayAdministrationIsGuarded(t *testing.T) {
	h := newHarness()

	w := h.do(http.MethodPost, "/api/bays", "c1:customer", map[string]any{"number": 3})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = h.do(http.MethodPost, "/api/bays", "t1:technician", map[string]any{"number": 3})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, h.bays.created)

	w = h.do(http.MethodPost, "/api/bays", "a1:admin", map[string]any{"number": 3, "description": "lift"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []bay.CreateCommand{{Number: 3, Description: "lift"}}, h.bays.created)
}

func TestAvailabilityQueryParsing(t *testing.T) {
	h := newHarness()

	w := h.do(http.MethodGet, "/api/availability?lookahead=2h&limit=5&technician=t1&technician=t2", "s1:staff", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, availability.Query{
		Lookahead:   2 * time.Hour,
		Limit:       5,
		Technicians: []types.ID{"t1", "t2"},
	}, h.avail.got)

	w = h.do(http.MethodGet, "/api/availability?lookahead=soon", "s1:staff", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodGet, "/api/availability", "c1:customer", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
