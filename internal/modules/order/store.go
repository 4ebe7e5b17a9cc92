// README: Booking / service order store backed by PostgreSQL with optimistic status locking.
package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"motoshop/internal/infra"
	"motoshop/internal/modules/quote"
	"motoshop/internal/types"
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

func (s *Store) CreateBooking(ctx context.Context, b *Booking) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO bookings (
			id, customer_id, vehicle_id, slot_start, slot_end,
			status, status_version, note, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		string(b.ID), string(b.CustomerID), string(b.VehicleID), b.Slot.Start, b.Slot.End,
		string(b.Status), b.StatusVersion, b.Note, b.CreatedAt,
	)
	return err
}

func (s *Store) GetBooking(ctx context.Context, id types.ID) (*Booking, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, customer_id, vehicle_id, slot_start, slot_end, status, status_version,
		       note, created_at, checked_in_at, cancelled_at, cancel_reason
		FROM bookings
		WHERE id = $1`, string(id),
	)
	var b Booking
	var bid, customerID, vehicleID, status string
	err := row.Scan(
		&bid, &customerID, &vehicleID, &b.Slot.Start, &b.Slot.End, &status, &b.StatusVersion,
		&b.Note, &b.CreatedAt, &b.CheckedInAt, &b.CancelledAt, &b.CancelReason,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	b.ID, b.CustomerID, b.VehicleID = types.ID(bid), types.ID(customerID), types.ID(vehicleID)
	b.Status = BookingStatus(status)
	return &b, nil
}

// UpdateBooking persists b if the row is still at (from, version). False means a concurrent writer won.
func (s *Store) UpdateBooking(ctx context.Context, b *Booking, from BookingStatus, version int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE bookings
		SET status = $1,
		    status_version = status_version + 1,
		    checked_in_at = $2,
		    cancelled_at = $3,
		    cancel_reason = $4
		WHERE id = $5 AND status = $6 AND status_version = $7`,
		string(b.Status), b.CheckedInAt, b.CancelledAt, b.CancelReason,
		string(b.ID), string(from), version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) CreateOrder(ctx context.Context, o *ServiceOrder) error {
	items, err := marshalItems(o.Items)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO service_orders (id, booking_id, status, status_version, items, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		string(o.ID), string(o.BookingID), string(o.Status), o.StatusVersion, items, o.CreatedAt,
	)
	if _, ok := infra.ConstraintViolation(err); ok {
		return ErrConflict
	}
	return err
}

const orderColumns = `id, booking_id, status, status_version, items, created_at, completed_at, cancelled_at`

func (s *Store) GetOrder(ctx context.Context, id types.ID) (*ServiceOrder, error) {
	row := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM service_orders WHERE id = $1`, string(id))
	return scanOrder(row)
}

// GetOrderByBooking returns nil without error when the booking has not been checked in.
func (s *Store) GetOrderByBooking(ctx context.Context, bookingID types.ID) (*ServiceOrder, error) {
	row := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM service_orders WHERE booking_id = $1`, string(bookingID))
	o, err := scanOrder(row)
	if errors.Is(err, ErrOrderNotFound) {
		return nil, nil
	}
	return o, err
}

func (s *Store) UpdateOrder(ctx context.Context, o *ServiceOrder, from OrderStatus, version int) (bool, error) {
	items, err := marshalItems(o.Items)
	if err != nil {
		return false, err
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE service_orders
		SET status = $1,
		    status_version = status_version + 1,
		    items = $2,
		    completed_at = $3,
		    cancelled_at = $4
		WHERE id = $5 AND status = $6 AND status_version = $7`,
		string(o.Status), items, o.CompletedAt, o.CancelledAt,
		string(o.ID), string(from), version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) AppendEvent(ctx context.Context, e *Event) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO order_state_events (
			booking_id, service_order_id, event, from_stage, to_stage, actor_type, actor_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		string(e.BookingID), toStringPtr(e.ServiceOrderID), string(e.Trigger),
		string(e.FromStage), string(e.ToStage), string(e.ActorType), toStringPtr(e.ActorID), e.CreatedAt,
	)
	return err
}

func (s *Store) ListEvents(ctx context.Context, bookingID types.ID) ([]Event, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, booking_id, service_order_id, event, from_stage, to_stage, actor_type, actor_id, created_at
		FROM order_state_events
		WHERE booking_id = $1
		ORDER BY id`, string(bookingID),
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var e Event
		var bookingID, trigger, from, to, actorType string
		var orderID, actorID *string
		if err := rows.Scan(&e.ID, &bookingID, &orderID, &trigger, &from, &to, &actorType, &actorID, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.BookingID = types.ID(bookingID)
		e.ServiceOrderID = toIDPtr(orderID)
		e.Trigger, e.FromStage, e.ToStage = Trigger(trigger), Stage(from), Stage(to)
		e.ActorType = types.Role(actorType)
		e.ActorID = toIDPtr(actorID)
		out = append(out, e)
	}
	return out, rows.Err()
}

// StatusPair is one (booking status, order status) combination and its row count.
type StatusPair struct {
	Booking BookingStatus
	Order   *OrderStatus
	Count   int
}

func (s *Store) CountByStatus(ctx context.Context) ([]StatusPair, error) {
	rows, err := s.db.Query(ctx, `
		SELECT b.status, o.status, COUNT(*)
		FROM bookings b
		LEFT JOIN service_orders o ON o.booking_id = b.id
		GROUP BY b.status, o.status`,
	)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()
	var out []StatusPair
	for rows.Next() {
		var booking string
		var order *string
		var p StatusPair
		if err := rows.Scan(&booking, &order, &p.Count); err != nil {
			return nil, err
		}
		p.Booking = BookingStatus(booking)
		if order != nil {
			st := OrderStatus(*order)
			p.Order = &st
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (*ServiceOrder, error) {
	var o ServiceOrder
	var id, bookingID, status string
	var items []byte
	err := row.Scan(&id, &bookingID, &status, &o.StatusVersion, &items, &o.CreatedAt, &o.CompletedAt, &o.CancelledAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get service order: %w", err)
	}
	o.ID, o.BookingID, o.Status = types.ID(id), types.ID(bookingID), OrderStatus(status)
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("decode order items: %w", err)
	}
	return &o, nil
}

func marshalItems(items []quote.Item) ([]byte, error) {
	if items == nil {
		items = []quote.Item{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode order items: %w", err)
	}
	return b, nil
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func toIDPtr(v *string) *types.ID {
	if v == nil {
		return nil
	}
	id := types.ID(*v)
	return &id
}
