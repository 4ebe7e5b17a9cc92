// README: Task store backed by PostgreSQL (tasks, technician assignments, servicing timeline).
package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"motoshop/internal/infra"
	"motoshop/internal/types"
)

const (
	overlapConstraint       = "tasks_bay_no_overlap"
	activePerTypeConstraint = "tasks_one_active_per_type"
)

type Store struct {
	db infra.DBTX
}

func NewStore(db infra.DBTX) *Store {
	return &Store{db: db}
}

func (s *Store) WithTx(tx pgx.Tx) *Store {
	return &Store{db: tx}
}

const taskColumns = `
	id, service_order_id, type, bay_id, status,
	scheduled_start, scheduled_end, actual_start, actual_end, expected_end,
	comment, media, created_at, updated_at`

func (s *Store) Create(ctx context.Context, t *Task) error {
	media, err := marshalMedia(t.Media)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO tasks (
			id, service_order_id, type, bay_id, status,
			scheduled_start, scheduled_end, expected_end,
			comment, media, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		string(t.ID), string(t.ServiceOrderID), string(t.Type), string(t.BayID), string(t.Status),
		t.Window.Start, t.Window.End, t.ExpectedEnd,
		t.Comment, media, t.CreatedAt, t.UpdatedAt,
	)
	return translateWriteErr(err)
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Task, error) {
	row := s.db.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, string(id))
	t, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if err := s.loadAssignments(ctx, []*Task{t}); err != nil {
		return nil, err
	}
	if t.Type == TypeServicing {
		entries, err := s.Timeline(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		t.Timeline = entries
	}
	return t, nil
}

// ActiveForOrder returns the scheduled/rescheduled/in_progress task of the given type, or nil.
func (s *Store) ActiveForOrder(ctx context.Context, orderID types.ID, typ Type) (*Task, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE service_order_id = $1 AND type = $2
		  AND status IN ('scheduled','rescheduled','in_progress')`,
		string(orderID), string(typ),
	)
	t, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active task: %w", err)
	}
	return t, nil
}

func (s *Store) HasCompleted(ctx context.Context, orderID types.ID, typ Type) (bool, error) {
	var done bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM tasks
			WHERE service_order_id = $1 AND type = $2 AND status = 'completed'
		)`, string(orderID), string(typ),
	).Scan(&done)
	return done, err
}

// OverlappingOnBay returns active tasks on bayID whose window intersects w.
func (s *Store) OverlappingOnBay(ctx context.Context, bayID types.ID, w types.Window) ([]Task, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE bay_id = $1
		  AND status IN ('scheduled','rescheduled','in_progress')
		  AND scheduled_start < $3 AND scheduled_end > $2
		ORDER BY scheduled_start`,
		string(bayID), w.Start, w.End,
	)
	if err != nil {
		return nil, fmt.Errorf("overlapping tasks: %w", err)
	}
	return collectTasks(rows)
}

func (s *Store) ListByServiceOrder(ctx context.Context, orderID types.ID) ([]Task, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE service_order_id = $1
		ORDER BY created_at`, string(orderID),
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	tasks, err := collectTasks(rows)
	if err != nil {
		return nil, err
	}
	if err := s.loadAssignments(ctx, ptrs(tasks)); err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListActive returns every task holding a bay window, with technician assignments.
func (s *Store) ListActive(ctx context.Context) ([]Task, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE status IN ('scheduled','rescheduled','in_progress')
		ORDER BY bay_id, scheduled_start`,
	)
	if err != nil {
		return nil, fmt.Errorf("list active tasks: %w", err)
	}
	tasks, err := collectTasks(rows)
	if err != nil {
		return nil, err
	}
	if err := s.loadAssignments(ctx, ptrs(tasks)); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Reschedule moves an unstarted task to a new bay/window and marks it rescheduled.
func (s *Store) Reschedule(ctx context.Context, id types.ID, bayID types.ID, w types.Window) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE tasks
		SET bay_id = $1, scheduled_start = $2, scheduled_end = $3, expected_end = $3,
		    status = 'rescheduled', updated_at = NOW()
		WHERE id = $4 AND status IN ('scheduled','rescheduled')`,
		string(bayID), w.Start, w.End, string(id),
	)
	if err != nil {
		return false, translateWriteErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) MarkStarted(ctx context.Context, id types.ID, at, expectedEnd time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE tasks
		SET status = 'in_progress', actual_start = $1, expected_end = $2, updated_at = NOW()
		WHERE id = $3 AND status IN ('scheduled','rescheduled')`,
		at, expectedEnd, string(id),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) MarkCompleted(ctx context.Context, id types.ID, at time.Time, comment string, media []types.MediaRef) (bool, error) {
	raw, err := marshalMedia(media)
	if err != nil {
		return false, err
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE tasks
		SET status = 'completed', actual_end = $1, comment = $2, media = $3, updated_at = NOW()
		WHERE id = $4 AND status = 'in_progress'`,
		at, comment, raw, string(id),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// CancelOpen cancels unstarted tasks of a service order and returns their bay ids.
func (s *Store) CancelOpen(ctx context.Context, orderID types.ID) ([]types.ID, error) {
	rows, err := s.db.Query(ctx, `
		UPDATE tasks
		SET status = 'cancelled', updated_at = NOW()
		WHERE service_order_id = $1 AND status IN ('scheduled','rescheduled')
		RETURNING id`, string(orderID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []types.ID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, types.ID(id))
	}
	return ids, rows.Err()
}

// InProgressOnBay counts in_progress tasks on bayID other than exclude.
func (s *Store) InProgressOnBay(ctx context.Context, bayID, exclude types.ID) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM tasks
		WHERE bay_id = $1 AND status = 'in_progress' AND id <> $2`,
		string(bayID), string(exclude),
	).Scan(&n)
	return n, err
}

func (s *Store) InsertAssignments(ctx context.Context, taskID types.ID, as []Assignment) error {
	for _, a := range as {
		_, err := s.db.Exec(ctx, `
			INSERT INTO task_assignments (task_id, technician_id, role)
			VALUES ($1, $2, $3)`,
			string(taskID), string(a.TechnicianID), string(a.Role),
		)
		if err != nil {
			return fmt.Errorf("insert assignment: %w", err)
		}
	}
	return nil
}

// BusyTechnicians maps each of ids currently on an in_progress task to that task.
func (s *Store) BusyTechnicians(ctx context.Context, ids []types.ID) (map[types.ID]types.ID, error) {
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = string(id)
	}
	rows, err := s.db.Query(ctx, `
		SELECT a.technician_id, a.task_id
		FROM task_assignments a
		JOIN tasks t ON t.id = a.task_id
		WHERE t.status = 'in_progress' AND a.technician_id = ANY($1)`, raw,
	)
	if err != nil {
		return nil, fmt.Errorf("busy technicians: %w", err)
	}
	defer rows.Close()
	out := make(map[types.ID]types.ID)
	for rows.Next() {
		var tech, task string
		if err := rows.Scan(&tech, &task); err != nil {
			return nil, err
		}
		out[types.ID(tech)] = types.ID(task)
	}
	return out, rows.Err()
}

func (s *Store) AppendTimeline(ctx context.Context, e *TimelineEntry) error {
	media, err := marshalMedia(e.Media)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO task_timeline (id, task_id, title, comment, media, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(e.ID), string(e.TaskID), e.Title, e.Comment, media, e.CreatedAt, e.UpdatedAt,
	)
	return err
}

func (s *Store) UpdateTimeline(ctx context.Context, e *TimelineEntry) (bool, error) {
	media, err := marshalMedia(e.Media)
	if err != nil {
		return false, err
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE task_timeline
		SET title = $1, comment = $2, media = $3, updated_at = $4
		WHERE id = $5 AND task_id = $6`,
		e.Title, e.Comment, media, e.UpdatedAt, string(e.ID), string(e.TaskID),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) Timeline(ctx context.Context, taskID types.ID) ([]TimelineEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, task_id, title, comment, media, created_at, updated_at
		FROM task_timeline
		WHERE task_id = $1
		ORDER BY created_at, id`, string(taskID),
	)
	if err != nil {
		return nil, fmt.Errorf("timeline: %w", err)
	}
	defer rows.Close()
	var out []TimelineEntry
	for rows.Next() {
		var e TimelineEntry
		var id, tid string
		var media []byte
		if err := rows.Scan(&id, &tid, &e.Title, &e.Comment, &media, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		e.ID, e.TaskID = types.ID(id), types.ID(tid)
		if err := json.Unmarshal(media, &e.Media); err != nil {
			return nil, fmt.Errorf("decode timeline media: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) loadAssignments(ctx context.Context, tasks []*Task) error {
	if len(tasks) == 0 {
		return nil
	}
	ids := make([]string, len(tasks))
	byID := make(map[types.ID]*Task, len(tasks))
	for i, t := range tasks {
		ids[i] = string(t.ID)
		byID[t.ID] = t
	}
	rows, err := s.db.Query(ctx, `
		SELECT task_id, technician_id, role
		FROM task_assignments
		WHERE task_id = ANY($1)
		ORDER BY task_id, role DESC, technician_id`, ids,
	)
	if err != nil {
		return fmt.Errorf("load assignments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var taskID, techID, role string
		if err := rows.Scan(&taskID, &techID, &role); err != nil {
			return err
		}
		if t, ok := byID[types.ID(taskID)]; ok {
			t.Technicians = append(t.Technicians, Assignment{TechnicianID: types.ID(techID), Role: Role(role)})
		}
	}
	return rows.Err()
}

func scanTask(row pgx.Row) (*Task, error) {
	var t Task
	var id, orderID, typ, bayID, status string
	var media []byte
	err := row.Scan(
		&id, &orderID, &typ, &bayID, &status,
		&t.Window.Start, &t.Window.End, &t.ActualStart, &t.ActualEnd, &t.ExpectedEnd,
		&t.Comment, &media, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.ID, t.ServiceOrderID, t.BayID = types.ID(id), types.ID(orderID), types.ID(bayID)
	t.Type, t.Status = Type(typ), Status(status)
	if err := json.Unmarshal(media, &t.Media); err != nil {
		return nil, fmt.Errorf("decode task media: %w", err)
	}
	return &t, nil
}

func collectTasks(rows pgx.Rows) ([]Task, error) {
	defer rows.Close()
	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func ptrs(tasks []Task) []*Task {
	out := make([]*Task, len(tasks))
	for i := range tasks {
		out[i] = &tasks[i]
	}
	return out
}

func marshalMedia(m []types.MediaRef) ([]byte, error) {
	if m == nil {
		m = []types.MediaRef{}
	}
	return json.Marshal(m)
}

// translateWriteErr maps the storage-level backstops onto the task error kinds.
func translateWriteErr(err error) error {
	if err == nil {
		return nil
	}
	name, ok := infra.ConstraintViolation(err)
	if !ok {
		return err
	}
	switch name {
	case overlapConstraint:
		return ErrBayConflict
	case activePerTypeConstraint:
		return ErrConflict
	}
	return err
}
