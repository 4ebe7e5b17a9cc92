// README: Bay registry tests (pure rules + DB-backed CRUD).
package bay

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"motoshop/internal/apperror"
	"motoshop/internal/testutil"
	"motoshop/internal/types"
)

func TestSchedulable(t *testing.T) {
	assert.True(t, (&Bay{Status: StatusAvailable}).Schedulable())
	assert.True(t, (&Bay{Status: StatusOccupied}).Schedulable())
	assert.False(t, (&Bay{Status: StatusInactive}).Schedulable())
}

func TestCreateRejectsNonPositiveNumber(t *testing.T) {
	svc := NewService(nil)
	_, err := svc.Create(context.Background(), CreateCommand{Number: 0})
	assert.Equal(t, apperror.Validation, apperror.KindOf(err))
}

func TestBayLifecycle(t *testing.T) {
	svc := NewService(NewStore(testutil.Pool(t)))
	ctx := context.Background()

	b1, err := svc.Create(ctx, CreateCommand{Number: 1, Description: " lift A "})
	require.NoError(t, err)
	assert.Equal(t, "lift A", b1.Description)
	assert.Equal(t, StatusAvailable, b1.Status)

	_, err = svc.Create(ctx, CreateCommand{Number: 1})
	assert.True(t, errors.Is(err, ErrDuplicate))

	b2, err := svc.Create(ctx, CreateCommand{Number: 2})
	require.NoError(t, err)

	require.NoError(t, svc.SetActive(ctx, b2.ID, false))

	_, err = svc.Schedulable(ctx, b2.ID)
	assert.Equal(t, apperror.BayInactive, apperror.KindOf(err))

	_, err = svc.Schedulable(ctx, types.NewID())
	assert.Equal(t, apperror.NotFound, apperror.KindOf(err))

	active, err := svc.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, b1.ID, active[0].ID)

	all, err := svc.List(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, svc.MarkOccupied(ctx, b1.ID))
	got, err := svc.Get(ctx, b1.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusOccupied, got.Status)

	// Occupancy never reactivates an inactive bay.
	require.NoError(t, svc.MarkAvailable(ctx, b2.ID))
	got, err = svc.Get(ctx, b2.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusInactive, got.Status)

	require.NoError(t, svc.Delete(ctx, b2.ID))
	assert.True(t, errors.Is(svc.Delete(ctx, b2.ID), ErrNotFound))
}
