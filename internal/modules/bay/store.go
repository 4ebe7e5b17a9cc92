// README: Bay store backed by PostgreSQL.
package bay

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"motoshop/internal/infra"
	"motoshop/internal/types"
)

type Store struct {
	db infra.DBTX
}

func NewStore(db infra.DBTX) *Store {
	return &Store{db: db}
}

// WithTx returns a store bound to tx.
func (s *Store) WithTx(tx pgx.Tx) *Store {
	return &Store{db: tx}
}

const bayColumns = `id, number, description, status, created_at, updated_at`

func (s *Store) Create(ctx context.Context, b *Bay) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO bays (id, number, description, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		string(b.ID), b.Number, b.Description, string(b.Status), b.CreatedAt, b.UpdatedAt,
	)
	if _, ok := infra.ConstraintViolation(err); ok {
		return ErrDuplicate
	}
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Bay, error) {
	row := s.db.QueryRow(ctx, `SELECT `+bayColumns+` FROM bays WHERE id = $1`, string(id))
	b, err := scanBay(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get bay: %w", err)
	}
	return b, nil
}

// GetForShare reads the bay under a FOR SHARE row lock, so a concurrent status change
// waits for the caller's transaction to finish.
func (s *Store) GetForShare(ctx context.Context, id types.ID) (*Bay, error) {
	row := s.db.QueryRow(ctx, `SELECT `+bayColumns+` FROM bays WHERE id = $1 FOR SHARE`, string(id))
	b, err := scanBay(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get bay for share: %w", err)
	}
	return b, nil
}

func (s *Store) List(ctx context.Context, includeInactive bool) ([]Bay, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+bayColumns+`
		FROM bays
		WHERE $1 OR status <> 'inactive'
		ORDER BY number`, includeInactive,
	)
	if err != nil {
		return nil, fmt.Errorf("list bays: %w", err)
	}
	defer rows.Close()

	var out []Bay
	for rows.Next() {
		b, err := scanBay(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (s *Store) UpdateDescription(ctx context.Context, id types.ID, description string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE bays SET description = $1, updated_at = NOW() WHERE id = $2`,
		description, string(id),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// SetStatus writes status unconditionally (staff activation/deactivation).
func (s *Store) SetStatus(ctx context.Context, id types.ID, status Status) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE bays SET status = $1, updated_at = NOW() WHERE id = $2`,
		string(status), string(id),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Activate returns an inactive bay to service, occupied when a task on it is still running.
func (s *Store) Activate(ctx context.Context, id types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE bays SET
			status = CASE
				WHEN EXISTS (SELECT 1 FROM tasks t WHERE t.bay_id = bays.id AND t.status = 'in_progress')
				THEN 'occupied' ELSE 'available' END,
			updated_at = NOW()
		WHERE id = $1`,
		string(id),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// SetOccupancy toggles between available and occupied and never touches an inactive bay.
func (s *Store) SetOccupancy(ctx context.Context, id types.ID, occupied bool) error {
	status := StatusAvailable
	if occupied {
		status = StatusOccupied
	}
	_, err := s.db.Exec(ctx, `
		UPDATE bays SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status <> 'inactive'`,
		string(status), string(id),
	)
	return err
}

func (s *Store) Delete(ctx context.Context, id types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM bays WHERE id = $1`, string(id))
	if _, ok := infra.ConstraintViolation(err); ok {
		return false, ErrReferenced
	}
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func scanBay(row pgx.Row) (*Bay, error) {
	var b Bay
	var id, status string
	if err := row.Scan(&id, &b.Number, &b.Description, &status, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.ID = types.ID(id)
	b.Status = Status(status)
	return &b, nil
}
