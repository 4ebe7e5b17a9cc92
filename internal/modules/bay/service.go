// README: Bay registry service (staff CRUD plus the schedulability rule).
package bay

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"motoshop/internal/types"
)

type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

func (s *Service) WithTx(tx pgx.Tx) *Service {
	return &Service{store: s.store.WithTx(tx)}
}

type CreateCommand struct {
	Number      int
	Description string
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Bay, error) {
	if cmd.Number <= 0 {
		return nil, ErrBadRequest.With("field", "number")
	}
	now := time.Now()
	b := &Bay{
		ID:          types.NewID(),
		Number:      cmd.Number,
		Description: strings.TrimSpace(cmd.Description),
		Status:      StatusAvailable,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Bay, error) {
	return s.store.Get(ctx, id)
}

// List returns bays ordered by number; inactive bays only when includeInactive is set,
// so scheduling candidate listings never offer them.
func (s *Service) List(ctx context.Context, includeInactive bool) ([]Bay, error) {
	return s.store.List(ctx, includeInactive)
}

func (s *Service) UpdateDescription(ctx context.Context, id types.ID, description string) error {
	ok, err := s.store.UpdateDescription(ctx, id, strings.TrimSpace(description))
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// SetActive activates or deactivates a bay. Deactivation does not touch tasks already
// assigned to it; it only blocks new assignments. Activation restores the occupancy
// implied by running tasks.
func (s *Service) SetActive(ctx context.Context, id types.ID, active bool) error {
	var ok bool
	var err error
	if active {
		ok, err = s.store.Activate(ctx, id)
	} else {
		ok, err = s.store.SetStatus(ctx, id, StatusInactive)
	}
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, id types.ID) error {
	ok, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// Schedulable loads the bay and fails with ErrInactive when it cannot take new tasks.
// Inside a transaction the row stays share-locked until commit, holding off deactivation.
func (s *Service) Schedulable(ctx context.Context, id types.ID) (*Bay, error) {
	b, err := s.store.GetForShare(ctx, id)
	if err != nil {
		return nil, err
	}
	if !b.Schedulable() {
		return nil, ErrInactive.With("bay_id", string(id))
	}
	return b, nil
}

func (s *Service) MarkOccupied(ctx context.Context, id types.ID) error {
	return s.store.SetOccupancy(ctx, id, true)
}

func (s *Service) MarkAvailable(ctx context.Context, id types.ID) error {
	return s.store.SetOccupancy(ctx, id, false)
}
