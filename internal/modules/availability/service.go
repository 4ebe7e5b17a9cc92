// README: Availability service reads bays and active tasks and builds a fresh snapshot per call.
package availability

import (
	"context"
	"time"

	"motoshop/internal/modules/bay"
	"motoshop/internal/modules/task"
)

type BayLister interface {
	List(ctx context.Context, includeInactive bool) ([]bay.Bay, error)
}

type TaskLister interface {
	ListActive(ctx context.Context) ([]task.Task, error)
}

type Service struct {
	bays     BayLister
	tasks    TaskLister
	defaults Query
	now      func() time.Time
}

func NewService(bays BayLister, tasks TaskLister, lookahead time.Duration, limit int) *Service {
	return &Service{
		bays:     bays,
		tasks:    tasks,
		defaults: Query{Lookahead: lookahead, Limit: limit},
		now:      time.Now,
	}
}

// Snapshot never writes and is never cached. Zero query fields fall back to the configured defaults.
func (s *Service) Snapshot(ctx context.Context, q Query) (Snapshot, error) {
	if q.Lookahead <= 0 {
		q.Lookahead = s.defaults.Lookahead
	}
	if q.Limit <= 0 {
		q.Limit = s.defaults.Limit
	}
	bays, err := s.bays.List(ctx, false)
	if err != nil {
		return Snapshot{}, err
	}
	tasks, err := s.tasks.ListActive(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Build(s.now().UTC(), bays, tasks, q), nil
}
