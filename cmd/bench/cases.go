// README: Bench cases: environment checks, an end-to-end service flow, a bay race and a read throughput probe.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"motoshop/internal/infra"
)

const (
	statusPass = "PASS"
	statusFail = "FAIL"
	statusSkip = "SKIP"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client

	runID  string
	tokens map[string]string
	flow   flowState
}

// flowState carries ids between the sequential flow cases.
type flowState struct {
	bayID       string
	bookingID   string
	orderID     string
	inspection  string
	quoteID     string
	servicing   string
	windowStart time.Time
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

type apiError struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 10 * time.Second},
		runID: fmt.Sprintf("%d", time.Now().UnixNano()),
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = infra.NewRedis(r.cfg.RedisAddr)
	}
	if r.cfg.JWTSecret != "" {
		r.tokens = map[string]string{}
		for _, role := range []string{"customer", "staff", "technician", "admin"} {
			tok, err := infra.SignJWT(r.cfg.JWTSecret, r.uid(role), role, time.Hour)
			if err == nil {
				r.tokens[role] = tok
			}
		}
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))
	for _, tc := range tests {
		res := tc.Run(ctx, r)
		res.Name = tc.Name
		results = append(results, res)
		fmt.Printf("%-5s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}
	return results
}

func (r *Runner) uid(role string) string {
	return "bench-" + role + "-" + r.runID
}

func (r *Runner) cases() []TestCase {
	return []TestCase{
		{Name: "Env: Postgres connect", Run: pingDB},
		{Name: "Env: Redis connect", Run: pingRedis},
		{Name: "Migration: apply (optional)", Run: applyMigration},
		{Name: "Migration: tables exist", Run: tablesExist},
		{Name: "API: health", Run: health},
		{Name: "Auth: missing token -> 401", Run: missingToken},

		{Name: "Bay: admin creates bay", Run: createBay},
		{Name: "Bay: customer cannot create bay -> 403", Run: customerCreatesBay},
		{Name: "Flow: customer books", Run: createBooking},
		{Name: "Flow: staff checks in", Run: checkIn},
		{Name: "Flow: schedule inspection", Run: scheduleInspection},
		{Name: "Flow: begin inspection", Run: beginInspection},
		{Name: "Flow: complete inspection", Run: completeInspection},
		{Name: "Flow: complete inspection again -> INVALID_STATE", Run: completeInspectionAgain},
		{Name: "Flow: create quote", Run: createQuote},
		{Name: "Flow: second quote while pending -> VALIDATION", Run: secondQuote},
		{Name: "Flow: customer approves quote", Run: approveQuote},
		{Name: "Flow: schedule servicing", Run: scheduleServicing},
		{Name: "Flow: start servicing", Run: startServicing},
		{Name: "Flow: cancel while servicing -> INVALID_TRANSITION", Run: cancelWhileServicing},
		{Name: "Flow: complete servicing", Run: completeServicing},
		{Name: "Flow: progress reports completed", Run: progressCompleted},
		{Name: "Consistency: audit trail recorded", Run: auditTrail},
		{Name: "Events: stream carries booking events", Run: streamEvents},

		{Name: "Race: concurrent schedule on one bay window", Run: raceSchedule},
		{Name: "Perf: availability snapshot throughput", Run: perfAvailability},
	}
}

// call sends a JSON request as role ("" for none). A 4xx/5xx body is decoded into the
// returned apiError; otherwise into out.
func (r *Runner) call(ctx context.Context, method, path, role string, body, out any) (int, apiError, time.Duration, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, apiError{}, 0, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, reader)
	if err != nil {
		return 0, apiError{}, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if tok := r.tokens[role]; tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, apiError{}, 0, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	latency := time.Since(start)
	if err != nil {
		return resp.StatusCode, apiError{}, latency, err
	}
	var apiErr apiError
	if resp.StatusCode >= 400 {
		_ = json.Unmarshal(raw, &apiErr)
	} else if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, apiErr, latency, err
		}
	}
	return resp.StatusCode, apiErr, latency, nil
}

// expect runs a call and grades it by status and, for errors, by kind.
func (r *Runner) expect(ctx context.Context, method, path, role string, body, out any, status int, kind string) Result {
	if r.tokens == nil {
		return Result{Status: statusSkip, Note: "jwt-secret not set"}
	}
	code, apiErr, latency, err := r.call(ctx, method, path, role, body, out)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	note := fmt.Sprintf("status=%d", code)
	if apiErr.Error != "" {
		note += " " + apiErr.Error + ": " + apiErr.Message
	}
	if code != status || (kind != "" && apiErr.Error != kind) {
		return Result{Status: statusFail, Latency: latency, Note: note}
	}
	return Result{Status: statusPass, Latency: latency, Note: note}
}

func needs(ids ...string) (Result, bool) {
	for _, id := range ids {
		if id == "" {
			return Result{Status: statusSkip, Note: "previous step failed"}, false
		}
	}
	return Result{}, true
}

func pingDB(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusFail, Note: "db not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.db.Ping(ctx); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	return Result{Status: statusPass}
}

func pingRedis(ctx context.Context, r *Runner) Result {
	if r.redis == nil {
		return Result{Status: statusFail, Note: "redis not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	return Result{Status: statusPass}
}

func applyMigration(ctx context.Context, r *Runner) Result {
	if !r.cfg.ApplyMigration {
		return Result{Status: statusSkip, Note: "apply-migration=false"}
	}
	if r.db == nil {
		return Result{Status: statusFail, Note: "db not configured"}
	}
	if err := infra.Migrate(ctx, r.db); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	return Result{Status: statusPass}
}

func tablesExist(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusFail, Note: "db not configured"}
	}
	tables, err := infra.MigrationTables()
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	for _, t := range tables {
		var exists bool
		err := r.db.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)", t,
		).Scan(&exists)
		if err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
		if !exists {
			return Result{Status: statusFail, Note: "missing table: " + t}
		}
	}
	return Result{Status: statusPass, Note: fmt.Sprintf("tables=%d", len(tables))}
}

func health(ctx context.Context, r *Runner) Result {
	code, _, latency, err := r.call(ctx, http.MethodGet, "/health", "", nil, nil)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	if code != http.StatusOK {
		return Result{Status: statusFail, Latency: latency, Note: fmt.Sprintf("status=%d", code)}
	}
	return Result{Status: statusPass, Latency: latency}
}

func missingToken(ctx context.Context, r *Runner) Result {
	code, _, latency, err := r.call(ctx, http.MethodGet, "/api/availability", "", nil, nil)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	if code != http.StatusUnauthorized {
		return Result{Status: statusFail, Latency: latency, Note: fmt.Sprintf("status=%d", code)}
	}
	return Result{Status: statusPass, Latency: latency}
}

type idResp struct {
	ID string `json:"id"`
}

func createBay(ctx context.Context, r *Runner) Result {
	var out idResp
	// Bay numbers are unique; derive one per run.
	number := int(time.Now().UnixNano()%1_000_000) + 1000
	res := r.expect(ctx, http.MethodPost, "/api/bays", "admin",
		map[string]any{"number": number, "description": "bench lift"}, &out, http.StatusCreated, "")
	r.flow.bayID = out.ID
	return res
}

func customerCreatesBay(ctx context.Context, r *Runner) Result {
	return r.expect(ctx, http.MethodPost, "/api/bays", "customer",
		map[string]any{"number": 1}, nil, http.StatusForbidden, "FORBIDDEN")
}

func window(start time.Time, d time.Duration) map[string]any {
	return map[string]any{"start": start, "end": start.Add(d)}
}

func createBooking(ctx context.Context, r *Runner) Result {
	var out idResp
	start := time.Now().UTC().Truncate(time.Hour).Add(48 * time.Hour)
	r.flow.windowStart = start
	res := r.expect(ctx, http.MethodPost, "/api/bookings", "customer", map[string]any{
		"vehicle_id": "bench-vehicle-" + r.runID,
		"slot":       window(start, time.Hour),
		"note":       "bench run",
	}, &out, http.StatusCreated, "")
	r.flow.bookingID = out.ID
	return res
}

func checkIn(ctx context.Context, r *Runner) Result {
	if res, ok := needs(r.flow.bookingID); !ok {
		return res
	}
	var out idResp
	res := r.expect(ctx, http.MethodPost, "/api/bookings/"+r.flow.bookingID+"/check-in", "staff", nil, &out, http.StatusCreated, "")
	r.flow.orderID = out.ID
	return res
}

func scheduleInspection(ctx context.Context, r *Runner) Result {
	if res, ok := needs(r.flow.orderID, r.flow.bayID); !ok {
		return res
	}
	var out idResp
	res := r.expect(ctx, http.MethodPost, "/api/service-orders/"+r.flow.orderID+"/inspection", "staff", map[string]any{
		"bay_id": r.flow.bayID,
		"window": window(r.flow.windowStart, 30*time.Minute),
	}, &out, http.StatusOK, "")
	r.flow.inspection = out.ID
	return res
}

func (r *Runner) crew() map[string]any {
	return map[string]any{"technicians": []map[string]string{
		{"technician_id": r.uid("technician"), "role": "lead"},
	}}
}

func beginInspection(ctx context.Context, r *Runner) Result {
	if res, ok := needs(r.flow.inspection); !ok {
		return res
	}
	return r.expect(ctx, http.MethodPost, "/api/tasks/"+r.flow.inspection+"/begin", "technician", r.crew(), nil, http.StatusOK, "")
}

func completeInspection(ctx context.Context, r *Runner) Result {
	if res, ok := needs(r.flow.inspection); !ok {
		return res
	}
	return r.expect(ctx, http.MethodPost, "/api/tasks/"+r.flow.inspection+"/complete", "technician",
		map[string]any{"comment": "front pads worn"}, nil, http.StatusOK, "")
}

func completeInspectionAgain(ctx context.Context, r *Runner) Result {
	if res, ok := needs(r.flow.inspection); !ok {
		return res
	}
	return r.expect(ctx, http.MethodPost, "/api/tasks/"+r.flow.inspection+"/complete", "technician",
		map[string]any{"comment": "again"}, nil, http.StatusConflict, "INVALID_STATE")
}

func quoteBody() map[string]any {
	return map[string]any{"items": []map[string]any{
		{"type": "part", "name": "brake pads", "unit_price": 250000, "quantity": 1},
		{"type": "service", "name": "pad replacement", "unit_price": 100000, "quantity": 1},
	}}
}

func createQuote(ctx context.Context, r *Runner) Result {
	if res, ok := needs(r.flow.orderID); !ok {
		return res
	}
	var out idResp
	res := r.expect(ctx, http.MethodPost, "/api/service-orders/"+r.flow.orderID+"/quotes", "staff", quoteBody(), &out, http.StatusCreated, "")
	r.flow.quoteID = out.ID
	return res
}

func secondQuote(ctx context.Context, r *Runner) Result {
	if res, ok := needs(r.flow.quoteID); !ok {
		return res
	}
	return r.expect(ctx, http.MethodPost, "/api/service-orders/"+r.flow.orderID+"/quotes", "staff", quoteBody(), nil, http.StatusBadRequest, "VALIDATION")
}

func approveQuote(ctx context.Context, r *Runner) Result {
	if res, ok := needs(r.flow.quoteID); !ok {
		return res
	}
	return r.expect(ctx, http.MethodPost, "/api/quotes/"+r.flow.quoteID+"/approve", "customer", nil, nil, http.StatusOK, "")
}

func scheduleServicing(ctx context.Context, r *Runner) Result {
	if res, ok := needs(r.flow.orderID, r.flow.quoteID); !ok {
		return res
	}
	var out idResp
	res := r.expect(ctx, http.MethodPost, "/api/service-orders/"+r.flow.orderID+"/servicing", "staff", map[string]any{
		"bay_id": r.flow.bayID,
		"window": window(r.flow.windowStart.Add(time.Hour), 90*time.Minute),
	}, &out, http.StatusOK, "")
	r.flow.servicing = out.ID
	return res
}

func startServicing(ctx context.Context, r *Runner) Result {
	if res, ok := needs(r.flow.servicing); !ok {
		return res
	}
	return r.expect(ctx, http.MethodPost, "/api/tasks/"+r.flow.servicing+"/begin", "technician", r.crew(), nil, http.StatusOK, "")
}

func cancelWhileServicing(ctx context.Context, r *Runner) Result {
	if res, ok := needs(r.flow.servicing); !ok {
		return res
	}
	return r.expect(ctx, http.MethodPost, "/api/bookings/"+r.flow.bookingID+"/cancel", "customer",
		map[string]any{"reason": "changed my mind"}, nil, http.StatusConflict, "INVALID_TRANSITION")
}

func completeServicing(ctx context.Context, r *Runner) Result {
	if res, ok := needs(r.flow.servicing); !ok {
		return res
	}
	return r.expect(ctx, http.MethodPost, "/api/tasks/"+r.flow.servicing+"/complete", "technician",
		map[string]any{"comment": "pads replaced, test ride ok"}, nil, http.StatusOK, "")
}

func progressCompleted(ctx context.Context, r *Runner) Result {
	if res, ok := needs(r.flow.bookingID); !ok {
		return res
	}
	var out struct {
		Stage string `json:"stage"`
	}
	res := r.expect(ctx, http.MethodGet, "/api/bookings/"+r.flow.bookingID+"/progress", "customer", nil, &out, http.StatusOK, "")
	if res.Status == statusPass && out.Stage != "completed" {
		return Result{Status: statusFail, Latency: res.Latency, Note: "stage=" + out.Stage}
	}
	return res
}

func auditTrail(ctx context.Context, r *Runner) Result {
	if res, ok := needs(r.flow.bookingID); !ok {
		return res
	}
	if r.db == nil {
		return Result{Status: statusFail, Note: "db not configured"}
	}
	var events, version int
	err := r.db.QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM order_state_events WHERE booking_id = $1),
		       (SELECT status_version FROM bookings WHERE id = $1)`, r.flow.bookingID,
	).Scan(&events, &version)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	note := fmt.Sprintf("events=%d booking_version=%d", events, version)
	// create, check_in, inspection x3, quote x2, servicing x3
	if events < 10 || version == 0 {
		return Result{Status: statusFail, Note: note}
	}
	return Result{Status: statusPass, Note: note}
}

func streamEvents(ctx context.Context, r *Runner) Result {
	if res, ok := needs(r.flow.bookingID); !ok {
		return res
	}
	if r.redis == nil {
		return Result{Status: statusSkip, Note: "redis not configured"}
	}
	// The dispatcher is asynchronous; give it a moment.
	deadline := time.Now().Add(3 * time.Second)
	for {
		msgs, err := r.redis.XRevRangeN(ctx, r.cfg.EventStream, "+", "-", 500).Result()
		if err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
		n := 0
		for _, m := range msgs {
			if m.Values["booking_id"] == r.flow.bookingID {
				n++
			}
		}
		if n > 0 || time.Now().After(deadline) {
			if n == 0 {
				return Result{Status: statusFail, Note: "no events for booking"}
			}
			return Result{Status: statusPass, Note: fmt.Sprintf("events=%d", n)}
		}
		time.Sleep(200 * time.Millisecond)
	}
}

// raceSchedule checks in several bookings and schedules all of their inspections onto the
// same bay window at once; exactly one may win.
func raceSchedule(ctx context.Context, r *Runner) Result {
	if r.tokens == nil {
		return Result{Status: statusSkip, Note: "jwt-secret not set"}
	}
	if res, ok := needs(r.flow.bayID); !ok {
		return res
	}
	n := r.cfg.Concurrency
	start := time.Now().UTC().Truncate(time.Hour).Add(72 * time.Hour)
	orders := make([]string, 0, n)
	for i := 0; i < n; i++ {
		var b, o idResp
		if code, e, _, err := r.call(ctx, http.MethodPost, "/api/bookings", "customer", map[string]any{
			"vehicle_id": fmt.Sprintf("bench-race-%s-%d", r.runID, i),
			"slot":       window(start, time.Hour),
		}, &b); err != nil || code != http.StatusCreated {
			return Result{Status: statusFail, Note: fmt.Sprintf("setup booking: status=%d %s %v", code, e.Message, err)}
		}
		if code, e, _, err := r.call(ctx, http.MethodPost, "/api/bookings/"+b.ID+"/check-in", "staff", nil, &o); err != nil || code != http.StatusCreated {
			return Result{Status: statusFail, Note: fmt.Sprintf("setup check-in: status=%d %s %v", code, e.Message, err)}
		}
		orders = append(orders, o.ID)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		won       int
		conflicts int
		other     []string
	)
	began := time.Now()
	for _, id := range orders {
		wg.Add(1)
		go func(orderID string) {
			defer wg.Done()
			code, e, _, err := r.call(ctx, http.MethodPost, "/api/service-orders/"+orderID+"/inspection", "staff", map[string]any{
				"bay_id": r.flow.bayID,
				"window": window(start, 30*time.Minute),
			}, nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				other = append(other, err.Error())
			case code == http.StatusOK:
				won++
			case code == http.StatusConflict && e.Error == "BAY_CONFLICT":
				conflicts++
			default:
				other = append(other, fmt.Sprintf("%d %s", code, e.Error))
			}
		}(id)
	}
	wg.Wait()

	note := fmt.Sprintf("won=%d bay_conflict=%d other=%v", won, conflicts, other)
	if won != 1 || conflicts != n-1 {
		return Result{Status: statusFail, Latency: time.Since(began), Note: note}
	}
	return Result{Status: statusPass, Latency: time.Since(began), Note: note}
}

func perfAvailability(ctx context.Context, r *Runner) Result {
	if r.tokens == nil {
		return Result{Status: statusSkip, Note: "jwt-secret not set"}
	}
	end := time.Now().Add(r.cfg.Duration)
	var count, errCount int64
	var mu sync.Mutex
	wg := sync.WaitGroup{}

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				code, _, _, err := r.call(ctx, http.MethodGet, "/api/availability", "staff", nil, nil)
				mu.Lock()
				if err != nil || code != http.StatusOK {
					errCount++
				} else {
					count++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if count == 0 {
		return Result{Status: statusFail, Note: "no requests completed"}
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return Result{Status: statusPass, Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount)}
}
