// README: Task scheduler service (bay-serialized scheduling, begin/complete, servicing timeline).
package task

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"motoshop/internal/infra"
	"motoshop/internal/modules/bay"
	"motoshop/internal/types"
)

// Service methods that write must run inside a transaction (see WithTx); the
// advisory locks they take are released at commit.
type Service struct {
	store *Store
	bays  *bay.Service
	now   func() time.Time
}

func NewService(store *Store, bays *bay.Service) *Service {
	return &Service{store: store, bays: bays, now: clock}
}

// clock matches Postgres timestamp precision so stamped times survive a round trip.
func clock() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func (s *Service) WithTx(tx pgx.Tx) *Service {
	return &Service{store: s.store.WithTx(tx), bays: s.bays.WithTx(tx), now: s.now}
}

type ScheduleCommand struct {
	ServiceOrderID types.ID
	Type           Type
	BayID          types.ID
	Window         types.Window
}

// Schedule creates the active task of cmd.Type for the order, or moves the existing
// unstarted one to the new bay/window and marks it rescheduled.
func (s *Service) Schedule(ctx context.Context, cmd ScheduleCommand) (*Task, error) {
	if !cmd.Type.Valid() {
		return nil, ErrBadRequest.With("field", "type")
	}
	if cmd.ServiceOrderID == "" || cmd.BayID == "" {
		return nil, ErrBadRequest.With("field", "bay_id")
	}
	if !cmd.Window.Valid() {
		return nil, ErrBadRequest.With("field", "window").With("reason", "start must be before end")
	}
	if err := infra.LockKey(ctx, s.store.db, bayLockKey(cmd.BayID)); err != nil {
		return nil, err
	}
	if _, err := s.bays.Schedulable(ctx, cmd.BayID); err != nil {
		return nil, err
	}

	existing, err := s.store.ActiveForOrder(ctx, cmd.ServiceOrderID, cmd.Type)
	if err != nil {
		return nil, err
	}
	if existing != nil && !existing.Status.Startable() {
		return nil, ErrInvalidState.
			With("task_id", string(existing.ID)).
			With("status", string(existing.Status))
	}
	if existing == nil {
		done, err := s.store.HasCompleted(ctx, cmd.ServiceOrderID, cmd.Type)
		if err != nil {
			return nil, err
		}
		if done {
			return nil, ErrInvalidState.With("reason", string(cmd.Type)+" already completed")
		}
	}

	candidates, err := s.store.OverlappingOnBay(ctx, cmd.BayID, cmd.Window)
	if err != nil {
		return nil, err
	}
	var exclude types.ID
	if existing != nil {
		exclude = existing.ID
	}
	if c := FindConflict(candidates, cmd.Window, exclude); c != nil {
		return nil, conflictError(c)
	}

	if existing != nil {
		ok, err := s.store.Reschedule(ctx, existing.ID, cmd.BayID, cmd.Window)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrConflict.With("task_id", string(existing.ID))
		}
		return s.store.Get(ctx, existing.ID)
	}

	now := s.now()
	t := &Task{
		ID:             types.NewID(),
		ServiceOrderID: cmd.ServiceOrderID,
		Type:           cmd.Type,
		BayID:          cmd.BayID,
		Status:         StatusScheduled,
		Window:         cmd.Window,
		ExpectedEnd:    cmd.Window.End,
		Media:          []types.MediaRef{},
		Technicians:    []Assignment{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

type BeginCommand struct {
	TaskID      types.ID
	Technicians []Assignment
}

// Begin starts a scheduled task with its crew. ExpectedEnd is now plus the planned duration.
func (s *Service) Begin(ctx context.Context, cmd BeginCommand) (*Task, error) {
	if err := ValidateTechnicians(cmd.Technicians); err != nil {
		return nil, err
	}
	t, err := s.store.Get(ctx, cmd.TaskID)
	if err != nil {
		return nil, err
	}
	if !t.Status.Startable() {
		return nil, ErrInvalidState.With("task_id", string(t.ID)).With("status", string(t.Status))
	}

	for _, key := range technicianLockKeys(cmd.Technicians) {
		if err := infra.LockKey(ctx, s.store.db, key); err != nil {
			return nil, err
		}
	}
	ids := make([]types.ID, len(cmd.Technicians))
	for i, a := range cmd.Technicians {
		ids[i] = a.TechnicianID
	}
	busy, err := s.store.BusyTechnicians(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if taskID, ok := busy[id]; ok {
			return nil, ErrInvalidState.
				With("reason", "technician busy").
				With("technician_id", string(id)).
				With("task_id", string(taskID))
		}
	}

	now := s.now()
	expected := now.Add(t.Window.Duration())
	ok, err := s.store.MarkStarted(ctx, t.ID, now, expected)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict.With("task_id", string(t.ID))
	}
	if err := s.store.InsertAssignments(ctx, t.ID, cmd.Technicians); err != nil {
		return nil, err
	}
	if err := s.bays.MarkOccupied(ctx, t.BayID); err != nil {
		return nil, err
	}

	t.Status = StatusInProgress
	t.ActualStart = &now
	t.ExpectedEnd = expected
	t.Technicians = append([]Assignment(nil), cmd.Technicians...)
	t.UpdatedAt = now
	return t, nil
}

type CompleteCommand struct {
	TaskID  types.ID
	Comment string
	Media   []types.MediaRef
}

// Complete closes an in_progress task. Completing twice fails without re-stamping.
func (s *Service) Complete(ctx context.Context, cmd CompleteCommand) (*Task, error) {
	t, err := s.store.Get(ctx, cmd.TaskID)
	if err != nil {
		return nil, err
	}
	if t.Status != StatusInProgress {
		return nil, ErrInvalidState.With("task_id", string(t.ID)).With("status", string(t.Status))
	}
	comment := strings.TrimSpace(cmd.Comment)
	media := cmd.Media
	if media == nil {
		media = []types.MediaRef{}
	}

	now := s.now()
	ok, err := s.store.MarkCompleted(ctx, t.ID, now, comment, media)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict.With("task_id", string(t.ID))
	}
	others, err := s.store.InProgressOnBay(ctx, t.BayID, t.ID)
	if err != nil {
		return nil, err
	}
	if others == 0 {
		if err := s.bays.MarkAvailable(ctx, t.BayID); err != nil {
			return nil, err
		}
	}

	t.Status = StatusCompleted
	t.ActualEnd = &now
	t.Comment = comment
	t.Media = media
	t.UpdatedAt = now
	return t, nil
}

type TimelineCommand struct {
	TaskID  types.ID
	EntryID types.ID
	Title   string
	Comment string
	Media   []types.MediaRef
}

// AppendTimelineEntry adds a progress entry to an in_progress servicing task.
func (s *Service) AppendTimelineEntry(ctx context.Context, cmd TimelineCommand) (*TimelineEntry, error) {
	if _, err := s.timelineTask(ctx, cmd); err != nil {
		return nil, err
	}
	now := s.now()
	e := &TimelineEntry{
		ID:        types.NewID(),
		TaskID:    cmd.TaskID,
		Title:     strings.TrimSpace(cmd.Title),
		Comment:   strings.TrimSpace(cmd.Comment),
		Media:     cmd.Media,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if e.Media == nil {
		e.Media = []types.MediaRef{}
	}
	if err := s.store.AppendTimeline(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// UpdateTimelineEntry corrects an existing entry in place; its position is kept.
func (s *Service) UpdateTimelineEntry(ctx context.Context, cmd TimelineCommand) (*TimelineEntry, error) {
	if cmd.EntryID == "" {
		return nil, ErrBadRequest.With("field", "entry_id")
	}
	if _, err := s.timelineTask(ctx, cmd); err != nil {
		return nil, err
	}
	e := &TimelineEntry{
		ID:        cmd.EntryID,
		TaskID:    cmd.TaskID,
		Title:     strings.TrimSpace(cmd.Title),
		Comment:   strings.TrimSpace(cmd.Comment),
		Media:     cmd.Media,
		UpdatedAt: s.now(),
	}
	if e.Media == nil {
		e.Media = []types.MediaRef{}
	}
	ok, err := s.store.UpdateTimeline(ctx, e)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrEntryNotFound
	}
	entries, err := s.store.Timeline(ctx, cmd.TaskID)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].ID == e.ID {
			return &entries[i], nil
		}
	}
	return nil, ErrEntryNotFound
}

func (s *Service) timelineTask(ctx context.Context, cmd TimelineCommand) (*Task, error) {
	if strings.TrimSpace(cmd.Title) == "" {
		return nil, ErrBadRequest.With("field", "title")
	}
	t, err := s.store.Get(ctx, cmd.TaskID)
	if err != nil {
		return nil, err
	}
	if t.Type != TypeServicing {
		return nil, ErrInvalidState.With("reason", "timeline entries apply to servicing tasks only")
	}
	if t.Status != StatusInProgress {
		return nil, ErrInvalidState.With("task_id", string(t.ID)).With("status", string(t.Status))
	}
	return t, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Task, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) ListByServiceOrder(ctx context.Context, orderID types.ID) ([]Task, error) {
	return s.store.ListByServiceOrder(ctx, orderID)
}

// ListActive returns all tasks currently holding a bay window.
func (s *Service) ListActive(ctx context.Context) ([]Task, error) {
	return s.store.ListActive(ctx)
}

// CancelOpen cancels the order's unstarted tasks, releasing their bay windows.
func (s *Service) CancelOpen(ctx context.Context, orderID types.ID) ([]types.ID, error) {
	return s.store.CancelOpen(ctx, orderID)
}
