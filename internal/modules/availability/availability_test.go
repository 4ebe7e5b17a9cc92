// README: Availability projection tests.
package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"motoshop/internal/modules/bay"
	"motoshop/internal/modules/task"
	"motoshop/internal/types"
)

var now = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func mins(m int) time.Time { return now.Add(time.Duration(m) * time.Minute) }

func w(from, to int) types.Window { return types.Window{Start: mins(from), End: mins(to)} }

func fixture() ([]bay.Bay, []task.Task) {
	bays := []bay.Bay{
		{ID: "bay-1", Number: 1, Status: bay.StatusOccupied},
		{ID: "bay-2", Number: 2, Status: bay.StatusAvailable},
		{ID: "bay-3", Number: 3, Status: bay.StatusInactive},
	}
	tasks := []task.Task{
		{
			ID: "run", ServiceOrderID: "o1", BayID: "bay-1", Type: task.TypeServicing,
			Status: task.StatusInProgress, Window: w(-30, 30), ExpectedEnd: mins(45),
			Technicians: []task.Assignment{
				{TechnicianID: "T1", Role: task.RoleLead},
				{TechnicianID: "T2", Role: task.RoleAssistant},
			},
		},
		{ID: "later", ServiceOrderID: "o3", BayID: "bay-1", Type: task.TypeInspection, Status: task.StatusScheduled, Window: w(120, 150), ExpectedEnd: mins(150)},
		{ID: "next", ServiceOrderID: "o2", BayID: "bay-1", Type: task.TypeInspection, Status: task.StatusRescheduled, Window: w(60, 90), ExpectedEnd: mins(90)},
		{ID: "far", ServiceOrderID: "o4", BayID: "bay-1", Type: task.TypeInspection, Status: task.StatusScheduled, Window: w(600, 630), ExpectedEnd: mins(630)},
		{ID: "done", ServiceOrderID: "o5", BayID: "bay-2", Type: task.TypeInspection, Status: task.StatusCompleted, Window: w(-60, -30)},
		{ID: "off", ServiceOrderID: "o6", BayID: "bay-3", Type: task.TypeInspection, Status: task.StatusScheduled, Window: w(0, 30), ExpectedEnd: mins(30)},
	}
	return bays, tasks
}

func TestBuildBays(t *testing.T) {
	bays, tasks := fixture()
	snap := Build(now, bays, tasks, Query{Lookahead: 4 * time.Hour, Limit: 5})

	require.Len(t, snap.Bays, 2, "inactive bay hidden")
	b1, b2 := snap.Bays[0], snap.Bays[1]

	require.NotNil(t, b1.Current)
	assert.Equal(t, types.ID("run"), b1.Current.TaskID)
	assert.Equal(t, types.ID("o1"), b1.Current.ServiceOrderID)
	assert.Equal(t, int64(45*60), b1.Current.RemainingSeconds)
	require.NotNil(t, b1.Current.LeadTechnicianID)
	assert.Equal(t, types.ID("T1"), *b1.Current.LeadTechnicianID)
	assert.False(t, b1.Current.Overdue)

	// Ordered by start, bounded by the lookahead.
	require.Len(t, b1.Upcoming, 2)
	assert.Equal(t, types.ID("next"), b1.Upcoming[0].TaskID)
	assert.Equal(t, types.ID("later"), b1.Upcoming[1].TaskID)
	assert.Equal(t, mins(630), b1.NextAvailableAt)

	assert.Nil(t, b2.Current)
	assert.Empty(t, b2.Upcoming)
	assert.Equal(t, now, b2.NextAvailableAt)
}

func TestBuildLimitsUpcoming(t *testing.T) {
	bays, tasks := fixture()
	snap := Build(now, bays, tasks, Query{Lookahead: 24 * time.Hour, Limit: 1})
	require.Len(t, snap.Bays[0].Upcoming, 1)
	assert.Equal(t, types.ID("next"), snap.Bays[0].Upcoming[0].TaskID)
}

func TestBuildFlagsOverdueUpcoming(t *testing.T) {
	bays := []bay.Bay{{ID: "bay-1", Number: 1, Status: bay.StatusAvailable}}
	tasks := []task.Task{
		{ID: "late", BayID: "bay-1", Status: task.StatusScheduled, Window: w(-20, 10), ExpectedEnd: mins(10)},
		{ID: "soon", BayID: "bay-1", Status: task.StatusScheduled, Window: w(15, 45), ExpectedEnd: mins(45)},
	}
	snap := Build(now, bays, tasks, Query{Lookahead: time.Hour})

	up := snap.Bays[0].Upcoming
	require.Len(t, up, 2)
	assert.Equal(t, types.ID("late"), up[0].TaskID)
	assert.True(t, up[0].Overdue)
	assert.Nil(t, up[0].LeadTechnicianID)
	assert.Equal(t, types.ID("soon"), up[1].TaskID)
	assert.False(t, up[1].Overdue)
}

func TestBuildNextAvailableUsesOverrunCountdown(t *testing.T) {
	bays := []bay.Bay{{ID: "bay-1", Number: 1, Status: bay.StatusOccupied}}
	tasks := []task.Task{{
		ID: "run", BayID: "bay-1", Status: task.StatusInProgress, Window: w(-60, -10), ExpectedEnd: mins(20),
	}}
	snap := Build(now, bays, tasks, Query{Lookahead: time.Hour})
	assert.Equal(t, mins(20), snap.Bays[0].NextAvailableAt)
}

func TestBuildTechnicians(t *testing.T) {
	bays, tasks := fixture()
	snap := Build(now, bays, tasks, Query{Lookahead: time.Hour, Technicians: []types.ID{"T3", "T2", "T3"}})

	require.Len(t, snap.Technicians, 3)
	assert.Equal(t, types.ID("T3"), snap.Technicians[0].TechnicianID)
	assert.False(t, snap.Technicians[0].IsBusy)
	assert.Nil(t, snap.Technicians[0].AssignedTaskID)

	t2 := snap.Technicians[1]
	assert.True(t, t2.IsBusy)
	require.NotNil(t, t2.AssignedTaskID)
	assert.Equal(t, types.ID("run"), *t2.AssignedTaskID)
	assert.Equal(t, task.RoleAssistant, *t2.Role)

	// Busy technicians not asked about are still reported.
	assert.Equal(t, types.ID("T1"), snap.Technicians[2].TechnicianID)
	assert.Equal(t, task.RoleLead, *snap.Technicians[2].Role)
}

type fakeBays struct {
	bays []bay.Bay
	err  error
}

func (f fakeBays) List(_ context.Context, includeInactive bool) ([]bay.Bay, error) {
	if includeInactive {
		return nil, errors.New("snapshot must not ask for inactive bays")
	}
	return f.bays, f.err
}

type fakeTasks []task.Task

func (f fakeTasks) ListActive(context.Context) ([]task.Task, error) { return f, nil }

func TestSnapshotAppliesDefaults(t *testing.T) {
	bays, tasks := fixture()
	svc := NewService(fakeBays{bays: bays}, fakeTasks(tasks), 4*time.Hour, 1)
	svc.now = func() time.Time { return now }

	snap, err := svc.Snapshot(context.Background(), Query{})
	require.NoError(t, err)
	assert.Equal(t, now, snap.GeneratedAt)
	require.NotEmpty(t, snap.Bays)
	assert.Len(t, snap.Bays[0].Upcoming, 1)
}

func TestSnapshotPropagatesErrors(t *testing.T) {
	svc := NewService(fakeBays{err: errors.New("db down")}, fakeTasks(nil), time.Hour, 3)
	_, err := svc.Snapshot(context.Background(), Query{})
	assert.EqualError(t, err, "db down")
}
