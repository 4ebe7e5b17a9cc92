// README: Quote store backed by PostgreSQL.
package quote

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

const pendingConstraint = "quotes_one_pending"

type Store struct {
	db infra.DBTX
}

func NewStore(db infra.DBTX) *Store {
	return &Store{db: db}
}

func (s *Store) WithTx(tx pgx.Tx) *Store {
	return &Store{db: tx}
}

const quoteColumns = `
	id, service_order_id, items, subtotal, tax, tax_rate, grand_total, currency,
	status, rejection_reason, created_at, updated_at, resolved_at`

func (s *Store) Create(ctx context.Context, q *Quote) error {
	items, err := json.Marshal(q.Items)
	if err != nil {
		return fmt.Errorf("encode quote items: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO quotes (
			id, service_order_id, items, subtotal, tax, tax_rate, grand_total, currency,
			status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		string(q.ID), string(q.ServiceOrderID), items, q.Subtotal, q.Tax, q.TaxRate, q.GrandTotal,
		q.Currency, string(q.Status), q.CreatedAt, q.UpdatedAt,
	)
	if name, ok := infra.ConstraintViolation(err); ok && name == pendingConstraint {
		return ErrPendingExists
	}
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Quote, error) {
	row := s.db.QueryRow(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE id = $1`, string(id))
	q, err := scanQuote(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get quote: %w", err)
	}
	return q, nil
}

func (s *Store) ListByServiceOrder(ctx context.Context, orderID types.ID) ([]Quote, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+quoteColumns+`
		FROM quotes
		WHERE service_order_id = $1
		ORDER BY created_at`, string(orderID),
	)
	if err != nil {
		return nil, fmt.Errorf("list quotes: %w", err)
	}
	defer rows.Close()
	var out []Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *q)
	}
	return out, rows.Err()
}

func (s *Store) HasPending(ctx context.Context, orderID types.ID) (bool, error) {
	var pending bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM quotes WHERE service_order_id = $1 AND status = 'pending')`,
		string(orderID),
	).Scan(&pending)
	return pending, err
}

// Resolve moves a pending quote to status; false when it was not pending.
func (s *Store) Resolve(ctx context.Context, id types.ID, status Status, reason *string, at time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE quotes
		SET status = $1, rejection_reason = $2, updated_at = $3, resolved_at = $3
		WHERE id = $4 AND status = 'pending'`,
		string(status), reason, at, string(id),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// RejectPending rejects whatever quote is pending for the order and returns its id.
func (s *Store) RejectPending(ctx context.Context, orderID types.ID, reason string, at time.Time) ([]types.ID, error) {
	rows, err := s.db.Query(ctx, `
		UPDATE quotes
		SET status = 'rejected', rejection_reason = $1, updated_at = $2, resolved_at = $2
		WHERE service_order_id = $3 AND status = 'pending'
		RETURNING id`,
		reason, at, string(orderID),
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

func scanQuote(row pgx.Row) (*Quote, error) {
	var q Quote
	var id, orderID, status string
	var items []byte
	err := row.Scan(
		&id, &orderID, &items, &q.Subtotal, &q.Tax, &q.TaxRate, &q.GrandTotal, &q.Currency,
		&status, &q.RejectionReason, &q.CreatedAt, &q.UpdatedAt, &q.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	q.ID, q.ServiceOrderID, q.Status = types.ID(id), types.ID(orderID), Status(status)
	if err := json.Unmarshal(items, &q.Items); err != nil {
		return nil, fmt.Errorf("decode quote items: %w", err)
	}
	return &q, nil
}
