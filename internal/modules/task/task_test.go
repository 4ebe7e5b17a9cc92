// README: Task scheduler tests (overlap rules, crew validation, DB-backed scheduling and races).
package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"motoshop/internal/apperror"
	"motoshop/internal/infra"
	"motoshop/internal/modules/bay"
	"motoshop/internal/testutil"
	"motoshop/internal/types"
)

var base = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func win(fromMin, toMin int) types.Window {
	return types.Window{
		Start: base.Add(time.Duration(fromMin) * time.Minute),
		End:   base.Add(time.Duration(toMin) * time.Minute),
	}
}

func TestFindConflict(t *testing.T) {
	tasks := []Task{
		{ID: "a", Status: StatusScheduled, Window: win(0, 30)},
		{ID: "b", Status: StatusInProgress, Window: win(60, 120)},
		{ID: "c", Status: StatusCompleted, Window: win(30, 60)},
		{ID: "d", Status: StatusCancelled, Window: win(30, 60)},
		{ID: "e", Status: StatusRescheduled, Window: win(45, 90)},
	}

	tests := []struct {
		name    string
		w       types.Window
		exclude types.ID
		want    types.ID
	}{
		{"touching windows do not collide", win(30, 45), "", ""},
		{"completed and cancelled are ignored", win(35, 44), "", ""},
		{"partial overlap", win(20, 40), "", "a"},
		{"earliest collision wins", win(50, 70), "", "e"},
		{"excluded task is skipped", win(50, 55), "e", ""},
		{"containment", win(-10, 200), "", "a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindConflict(tasks, tt.w, tt.exclude)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.ID)
		})
	}
}

func TestConflictErrorNamesWindow(t *testing.T) {
	c := &Task{ID: "t1", BayID: "bay-1", Window: win(0, 30)}
	e, ok := apperror.As(conflictError(c))
	require.True(t, ok)
	assert.Equal(t, apperror.BayConflict, e.Kind)
	assert.Equal(t, "t1", e.Details["task_id"])
	assert.Equal(t, "2026-03-02T10:00:00Z", e.Details["start"])
	assert.Equal(t, "2026-03-02T10:30:00Z", e.Details["end"])
}

func TestValidateTechnicians(t *testing.T) {
	tests := []struct {
		name string
		in   []Assignment
		ok   bool
	}{
		{"empty", nil, false},
		{"lead only", []Assignment{{TechnicianID: "t1", Role: RoleLead}}, true},
		{"lead and assistants", []Assignment{
			{TechnicianID: "t1", Role: RoleLead},
			{TechnicianID: "t2", Role: RoleAssistant},
			{TechnicianID: "t3", Role: RoleAssistant},
		}, true},
		{"no lead", []Assignment{{TechnicianID: "t2", Role: RoleAssistant}}, false},
		{"two leads", []Assignment{
			{TechnicianID: "t1", Role: RoleLead},
			{TechnicianID: "t2", Role: RoleLead},
		}, false},
		{"duplicate technician", []Assignment{
			{TechnicianID: "t1", Role: RoleLead},
			{TechnicianID: "t1", Role: RoleAssistant},
		}, false},
		{"unknown role", []Assignment{{TechnicianID: "t1", Role: "boss"}}, false},
		{"missing id", []Assignment{{Role: RoleLead}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTechnicians(tt.in)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, apperror.Validation, apperror.KindOf(err))
		})
	}
}

func TestTechnicianLockKeysAreSorted(t *testing.T) {
	keys := technicianLockKeys([]Assignment{
		{TechnicianID: "zed", Role: RoleLead},
		{TechnicianID: "amy", Role: RoleAssistant},
	})
	assert.Equal(t, []string{"technician:amy", "technician:zed"}, keys)
}

func TestRemaining(t *testing.T) {
	tk := &Task{ExpectedEnd: base.Add(10 * time.Minute)}
	assert.Equal(t, 10*time.Minute, tk.Remaining(base))
	assert.Equal(t, time.Duration(0), tk.Remaining(base.Add(time.Hour)))
}

type fixture struct {
	db   *pgxpool.Pool
	tx   *infra.TxRunner
	svc  *Service
	bays *bay.Service
}

func newFixture(t *testing.T) *fixture {
	db := testutil.Pool(t)
	bays := bay.NewService(bay.NewStore(db))
	return &fixture{
		db:   db,
		tx:   infra.NewTxRunner(db),
		svc:  NewService(NewStore(db), bays),
		bays: bays,
	}
}

// order inserts a booking and its service order directly and returns the order id.
func (f *fixture) order(t *testing.T) types.ID {
	t.Helper()
	ctx := context.Background()
	bookingID, orderID := types.NewID(), types.NewID()
	_, err := f.db.Exec(ctx, `
		INSERT INTO bookings (id, customer_id, vehicle_id, slot_start, slot_end, status)
		VALUES ($1, 'c1', 'v1', $2, $3, 'checked_in')`,
		string(bookingID), base, base.Add(time.Hour))
	require.NoError(t, err)
	_, err = f.db.Exec(ctx, `
		INSERT INTO service_orders (id, booking_id, status) VALUES ($1, $2, 'created')`,
		string(orderID), string(bookingID))
	require.NoError(t, err)
	return orderID
}

func (f *fixture) bay(t *testing.T, number int) types.ID {
	t.Helper()
	b, err := f.bays.Create(context.Background(), bay.CreateCommand{Number: number})
	require.NoError(t, err)
	return b.ID
}

func (f *fixture) run(ctx context.Context, fn func(*Service) error) error {
	return f.tx.InTx(ctx, func(tx pgx.Tx) error {
		return fn(f.svc.WithTx(tx))
	})
}

func (f *fixture) schedule(ctx context.Context, cmd ScheduleCommand) (*Task, error) {
	var out *Task
	err := f.run(ctx, func(s *Service) error {
		var err error
		out, err = s.Schedule(ctx, cmd)
		return err
	})
	return out, err
}

func lead(id string) []Assignment {
	return []Assignment{{TechnicianID: types.ID(id), Role: RoleLead}}
}

func TestScheduleBeginComplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bay1 := f.bay(t, 1)
	o1, o2 := f.order(t), f.order(t)

	insp, err := f.schedule(ctx, ScheduleCommand{ServiceOrderID: o1, Type: TypeInspection, BayID: bay1, Window: win(0, 30)})
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, insp.Status)

	_, err = f.schedule(ctx, ScheduleCommand{ServiceOrderID: o2, Type: TypeInspection, BayID: bay1, Window: win(15, 45)})
	assert.Equal(t, apperror.BayConflict, apperror.KindOf(err))
	e, _ := apperror.As(err)
	assert.Equal(t, string(insp.ID), e.Details["task_id"])

	// Back-to-back windows are fine.
	_, err = f.schedule(ctx, ScheduleCommand{ServiceOrderID: o2, Type: TypeInspection, BayID: bay1, Window: win(30, 60)})
	require.NoError(t, err)

	// Rescheduling replaces the active task instead of adding one.
	moved, err := f.schedule(ctx, ScheduleCommand{ServiceOrderID: o1, Type: TypeInspection, BayID: bay1, Window: win(60, 90)})
	require.NoError(t, err)
	assert.Equal(t, insp.ID, moved.ID)
	assert.Equal(t, StatusRescheduled, moved.Status)
	all, err := f.svc.ListByServiceOrder(ctx, o1)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	err = f.run(ctx, func(s *Service) error {
		_, err := s.Begin(ctx, BeginCommand{TaskID: moved.ID, Technicians: []Assignment{{TechnicianID: "t2", Role: RoleAssistant}}})
		return err
	})
	assert.Equal(t, apperror.Validation, apperror.KindOf(err))

	var started *Task
	require.NoError(t, f.run(ctx, func(s *Service) error {
		var err error
		started, err = s.Begin(ctx, BeginCommand{TaskID: moved.ID, Technicians: lead("t1")})
		return err
	}))
	assert.Equal(t, StatusInProgress, started.Status)
	require.NotNil(t, started.ActualStart)
	assert.Equal(t, started.ActualStart.Add(30*time.Minute), started.ExpectedEnd)

	b, err := f.bays.Get(ctx, bay1)
	require.NoError(t, err)
	assert.Equal(t, bay.StatusOccupied, b.Status)

	_, err = f.schedule(ctx, ScheduleCommand{ServiceOrderID: o1, Type: TypeInspection, BayID: bay1, Window: win(120, 150)})
	assert.Equal(t, apperror.InvalidState, apperror.KindOf(err))

	var done *Task
	require.NoError(t, f.run(ctx, func(s *Service) error {
		var err error
		done, err = s.Complete(ctx, CompleteCommand{TaskID: moved.ID, Comment: "OK"})
		return err
	}))
	assert.Equal(t, StatusCompleted, done.Status)
	require.NotNil(t, done.ActualEnd)

	err = f.run(ctx, func(s *Service) error {
		_, err := s.Complete(ctx, CompleteCommand{TaskID: moved.ID, Comment: "again"})
		return err
	})
	assert.Equal(t, apperror.InvalidState, apperror.KindOf(err))

	got, err := f.svc.Get(ctx, moved.ID)
	require.NoError(t, err)
	assert.Equal(t, "OK", got.Comment)
	assert.True(t, got.ActualEnd.Equal(*done.ActualEnd))
	require.Len(t, got.Technicians, 1)
	assert.Equal(t, types.ID("t1"), got.Technicians[0].TechnicianID)

	b, err = f.bays.Get(ctx, bay1)
	require.NoError(t, err)
	assert.Equal(t, bay.StatusAvailable, b.Status)
}

func TestScheduleValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bay1 := f.bay(t, 1)
	o := f.order(t)

	_, err := f.schedule(ctx, ScheduleCommand{ServiceOrderID: o, Type: TypeInspection, BayID: bay1, Window: win(30, 30)})
	assert.Equal(t, apperror.Validation, apperror.KindOf(err))

	_, err = f.schedule(ctx, ScheduleCommand{ServiceOrderID: o, Type: "wash", BayID: bay1, Window: win(0, 30)})
	assert.Equal(t, apperror.Validation, apperror.KindOf(err))

	_, err = f.schedule(ctx, ScheduleCommand{ServiceOrderID: o, Type: TypeInspection, BayID: types.NewID(), Window: win(0, 30)})
	assert.Equal(t, apperror.NotFound, apperror.KindOf(err))

	require.NoError(t, f.bays.SetActive(ctx, bay1, false))
	_, err = f.schedule(ctx, ScheduleCommand{ServiceOrderID: o, Type: TypeInspection, BayID: bay1, Window: win(0, 30)})
	assert.Equal(t, apperror.BayInactive, apperror.KindOf(err))
}

func TestTechnicianCannotHoldTwoRunningTasks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bay1, bay2 := f.bay(t, 1), f.bay(t, 2)

	t1, err := f.schedule(ctx, ScheduleCommand{ServiceOrderID: f.order(t), Type: TypeInspection, BayID: bay1, Window: win(0, 30)})
	require.NoError(t, err)
	t2, err := f.schedule(ctx, ScheduleCommand{ServiceOrderID: f.order(t), Type: TypeInspection, BayID: bay2, Window: win(0, 30)})
	require.NoError(t, err)

	require.NoError(t, f.run(ctx, func(s *Service) error {
		_, err := s.Begin(ctx, BeginCommand{TaskID: t1.ID, Technicians: lead("t1")})
		return err
	}))
	err = f.run(ctx, func(s *Service) error {
		_, err := s.Begin(ctx, BeginCommand{TaskID: t2.ID, Technicians: []Assignment{
			{TechnicianID: "t9", Role: RoleLead},
			{TechnicianID: "t1", Role: RoleAssistant},
		}})
		return err
	})
	assert.Equal(t, apperror.InvalidState, apperror.KindOf(err))

	got, err := f.svc.Get(ctx, t2.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, got.Status)
	assert.Empty(t, got.Technicians)
}

func TestServicingTimeline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bay1 := f.bay(t, 1)
	o := f.order(t)

	insp, err := f.schedule(ctx, ScheduleCommand{ServiceOrderID: o, Type: TypeInspection, BayID: bay1, Window: win(0, 30)})
	require.NoError(t, err)
	svc, err := f.schedule(ctx, ScheduleCommand{ServiceOrderID: o, Type: TypeServicing, BayID: bay1, Window: win(60, 120)})
	require.NoError(t, err)

	appendEntry := func(id types.ID, title string) (*TimelineEntry, error) {
		var out *TimelineEntry
		err := f.run(ctx, func(s *Service) error {
			var err error
			out, err = s.AppendTimelineEntry(ctx, TimelineCommand{TaskID: id, Title: title, Comment: "c"})
			return err
		})
		return out, err
	}

	_, err = appendEntry(svc.ID, "too early")
	assert.Equal(t, apperror.InvalidState, apperror.KindOf(err))

	require.NoError(t, f.run(ctx, func(s *Service) error {
		if _, err := s.Begin(ctx, BeginCommand{TaskID: insp.ID, Technicians: lead("t1")}); err != nil {
			return err
		}
		_, err := s.Begin(ctx, BeginCommand{TaskID: svc.ID, Technicians: lead("t2")})
		return err
	}))

	_, err = appendEntry(insp.ID, "wrong type")
	assert.Equal(t, apperror.InvalidState, apperror.KindOf(err))

	_, err = appendEntry(svc.ID, "  ")
	assert.Equal(t, apperror.Validation, apperror.KindOf(err))

	first, err := appendEntry(svc.ID, "drained oil")
	require.NoError(t, err)
	_, err = appendEntry(svc.ID, "replaced filter")
	require.NoError(t, err)

	var fixed *TimelineEntry
	require.NoError(t, f.run(ctx, func(s *Service) error {
		var err error
		fixed, err = s.UpdateTimelineEntry(ctx, TimelineCommand{TaskID: svc.ID, EntryID: first.ID, Title: "drained engine oil"})
		return err
	}))
	assert.Equal(t, "drained engine oil", fixed.Title)

	err = f.run(ctx, func(s *Service) error {
		_, err := s.UpdateTimelineEntry(ctx, TimelineCommand{TaskID: svc.ID, EntryID: types.NewID(), Title: "x"})
		return err
	})
	assert.True(t, errors.Is(err, ErrEntryNotFound))

	got, err := f.svc.Get(ctx, svc.ID)
	require.NoError(t, err)
	require.Len(t, got.Timeline, 2)
	assert.Equal(t, "drained engine oil", got.Timeline[0].Title)
	assert.Equal(t, "replaced filter", got.Timeline[1].Title)
}

func TestCancelOpenReleasesWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bay1 := f.bay(t, 1)
	o1, o2 := f.order(t), f.order(t)

	_, err := f.schedule(ctx, ScheduleCommand{ServiceOrderID: o1, Type: TypeInspection, BayID: bay1, Window: win(0, 30)})
	require.NoError(t, err)

	var ids []types.ID
	require.NoError(t, f.run(ctx, func(s *Service) error {
		var err error
		ids, err = s.CancelOpen(ctx, o1)
		return err
	}))
	assert.Len(t, ids, 1)

	_, err = f.schedule(ctx, ScheduleCommand{ServiceOrderID: o2, Type: TypeInspection, BayID: bay1, Window: win(0, 30)})
	assert.NoError(t, err)
}

func TestConcurrentScheduleSameBayOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bay1 := f.bay(t, 1)

	const n = 8
	orders := make([]types.ID, n)
	for i := range orders {
		orders[i] = f.order(t)
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.schedule(ctx, ScheduleCommand{
				ServiceOrderID: orders[i],
				Type:           TypeInspection,
				BayID:          bay1,
				Window:         win(i, 30+i),
			})
		}(i)
	}
	wg.Wait()

	wins := 0
	for i, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.Equal(t, apperror.BayConflict, apperror.KindOf(err), fmt.Sprintf("scheduler %d", i))
	}
	assert.Equal(t, 1, wins)

	active, err := f.svc.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestReactivatedBayKeepsRunningOccupancy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bay1 := f.bay(t, 1)
	o1 := f.order(t)

	tk, err := f.schedule(ctx, ScheduleCommand{ServiceOrderID: o1, Type: TypeInspection, BayID: bay1, Window: win(0, 30)})
	require.NoError(t, err)
	require.NoError(t, f.run(ctx, func(s *Service) error {
		_, err := s.Begin(ctx, BeginCommand{TaskID: tk.ID, Technicians: lead("t1")})
		return err
	}))

	require.NoError(t, f.bays.SetActive(ctx, bay1, false))
	require.NoError(t, f.bays.SetActive(ctx, bay1, true))
	b, err := f.bays.Get(ctx, bay1)
	require.NoError(t, err)
	assert.Equal(t, bay.StatusOccupied, b.Status)

	require.NoError(t, f.run(ctx, func(s *Service) error {
		_, err := s.Complete(ctx, CompleteCommand{TaskID: tk.ID, Comment: "OK"})
		return err
	}))
	require.NoError(t, f.bays.SetActive(ctx, bay1, false))
	require.NoError(t, f.bays.SetActive(ctx, bay1, true))
	b, err = f.bays.Get(ctx, bay1)
	require.NoError(t, err)
	assert.Equal(t, bay.StatusAvailable, b.Status)
}

func TestDeactivationWaitsForOpenSchedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bay1 := f.bay(t, 1)
	o1, o2 := f.order(t), f.order(t)

	tx, err := f.db.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()
	_, err = f.svc.WithTx(tx).Schedule(ctx, ScheduleCommand{ServiceOrderID: o1, Type: TypeInspection, BayID: bay1, Window: win(0, 30)})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- f.bays.SetActive(ctx, bay1, false) }()
	select {
	case err := <-done:
		t.Fatalf("deactivation finished before the scheduling commit: %v", err)
	case <-time.After(200 * time.Millisecond):
	}

	require.NoError(t, tx.Commit(ctx))
	require.NoError(t, <-done)

	active, err := f.svc.ListByServiceOrder(ctx, o1)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	_, err = f.schedule(ctx, ScheduleCommand{ServiceOrderID: o2, Type: TypeInspection, BayID: bay1, Window: win(60, 90)})
	assert.Equal(t, apperror.BayInactive, apperror.KindOf(err))
}
