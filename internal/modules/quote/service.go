// README: Quote gate service (create with pending guard, approve/reject exactly once).
package quote

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"motoshop/internal/types"
)

type Service struct {
	store    *Store
	taxRate  float64
	currency string
	now      func() time.Time
}

func NewService(store *Store, taxRate float64, currency string) *Service {
	return &Service{
		store:    store,
		taxRate:  taxRate,
		currency: currency,
		now:      func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

func (s *Service) WithTx(tx pgx.Tx) *Service {
	return &Service{store: s.store.WithTx(tx), taxRate: s.taxRate, currency: s.currency, now: s.now}
}

type CreateCommand struct {
	ServiceOrderID types.ID
	Items          []Item
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Quote, error) {
	if cmd.ServiceOrderID == "" {
		return nil, ErrBadRequest.With("field", "service_order_id")
	}
	items := make([]Item, len(cmd.Items))
	for i, it := range cmd.Items {
		it.Name = strings.TrimSpace(it.Name)
		items[i] = it
	}
	if err := ValidateItems(items); err != nil {
		return nil, err
	}
	pending, err := s.store.HasPending(ctx, cmd.ServiceOrderID)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, ErrPendingExists.With("service_order_id", string(cmd.ServiceOrderID))
	}

	totals := ComputeTotals(items, s.taxRate)
	now := s.now()
	q := &Quote{
		ID:             types.NewID(),
		ServiceOrderID: cmd.ServiceOrderID,
		Items:          items,
		Subtotal:       totals.Subtotal,
		Tax:            totals.Tax,
		TaxRate:        s.taxRate,
		GrandTotal:     totals.GrandTotal,
		Currency:       s.currency,
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Create(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

func (s *Service) Approve(ctx context.Context, id types.ID) (*Quote, error) {
	return s.resolve(ctx, id, StatusApproved, nil)
}

func (s *Service) Reject(ctx context.Context, id types.ID, reason string) (*Quote, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrBadRequest.With("field", "reason")
	}
	return s.resolve(ctx, id, StatusRejected, &reason)
}

func (s *Service) resolve(ctx context.Context, id types.ID, to Status, reason *string) (*Quote, error) {
	q, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if q.Status != StatusPending {
		return nil, ErrNotPending.With("quote_id", string(id)).With("status", string(q.Status))
	}
	now := s.now()
	ok, err := s.store.Resolve(ctx, id, to, reason, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost the race to another approve/reject.
		return nil, ErrNotPending.With("quote_id", string(id))
	}
	q.Status = to
	q.RejectionReason = reason
	q.UpdatedAt = now
	q.ResolvedAt = &now
	return q, nil
}

func (s *Service) HasPending(ctx context.Context, orderID types.ID) (bool, error) {
	return s.store.HasPending(ctx, orderID)
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Quote, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) ListByServiceOrder(ctx context.Context, orderID types.ID) ([]Quote, error) {
	return s.store.ListByServiceOrder(ctx, orderID)
}

// RejectPending closes any pending quote of an order that is being cancelled.
func (s *Service) RejectPending(ctx context.Context, orderID types.ID, reason string) ([]types.ID, error) {
	return s.store.RejectPending(ctx, orderID, reason, s.now())
}
