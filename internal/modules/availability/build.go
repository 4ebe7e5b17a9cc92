// README: Pure projection from bays and active tasks to an availability snapshot.
package availability

import (
	"sort"
	"time"

	"motoshop/internal/modules/bay"
	"motoshop/internal/modules/task"
	"motoshop/internal/types"
)

// Build projects the snapshot at now. Inactive bays and non-active tasks are ignored.
func Build(now time.Time, bays []bay.Bay, tasks []task.Task, q Query) Snapshot {
	byBay := make(map[types.ID][]task.Task)
	for _, t := range tasks {
		if t.Status.Active() {
			byBay[t.BayID] = append(byBay[t.BayID], t)
		}
	}

	snap := Snapshot{GeneratedAt: now, Bays: []BaySlot{}, Technicians: []TechnicianSlot{}}
	for _, b := range bays {
		if !b.Schedulable() {
			continue
		}
		snap.Bays = append(snap.Bays, baySlot(now, b, byBay[b.ID], q))
	}
	snap.Technicians = technicianSlots(tasks, q.Technicians)
	return snap
}

func baySlot(now time.Time, b bay.Bay, tasks []task.Task, q Query) BaySlot {
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].Window.Start.Before(tasks[j].Window.Start)
	})

	slot := BaySlot{
		BayID:           b.ID,
		Number:          b.Number,
		Description:     b.Description,
		Status:          b.Status,
		NextAvailableAt: now,
		Upcoming:        []TaskView{},
	}
	horizon := now.Add(q.Lookahead)
	for i := range tasks {
		t := &tasks[i]
		if end := occupiedUntil(t); end.After(slot.NextAvailableAt) {
			slot.NextAvailableAt = end
		}
		if t.Status == task.StatusInProgress {
			if slot.Current == nil {
				v := view(now, t)
				slot.Current = &v
			}
			continue
		}
		if t.Window.Start.Before(horizon) && (q.Limit <= 0 || len(slot.Upcoming) < q.Limit) {
			slot.Upcoming = append(slot.Upcoming, view(now, t))
		}
	}
	return slot
}

// occupiedUntil is when the task is expected to free its bay; running tasks use the countdown.
func occupiedUntil(t *task.Task) time.Time {
	if t.Status == task.StatusInProgress && t.ExpectedEnd.After(t.Window.End) {
		return t.ExpectedEnd
	}
	return t.Window.End
}

func view(now time.Time, t *task.Task) TaskView {
	v := TaskView{
		TaskID:         t.ID,
		ServiceOrderID: t.ServiceOrderID,
		Type:           t.Type,
		Status:         t.Status,
		Window:         t.Window,
		ExpectedEnd:    t.ExpectedEnd,
	}
	if t.Status == task.StatusInProgress {
		v.RemainingSeconds = int64(t.Remaining(now) / time.Second)
	} else {
		v.Overdue = !t.Window.Start.After(now)
	}
	if lead, ok := t.Lead(); ok {
		v.LeadTechnicianID = &lead
	}
	return v
}

func technicianSlots(tasks []task.Task, requested []types.ID) []TechnicianSlot {
	busy := make(map[types.ID]TechnicianSlot)
	for i := range tasks {
		t := &tasks[i]
		if t.Status != task.StatusInProgress {
			continue
		}
		for _, a := range t.Technicians {
			id, role, until := t.ID, a.Role, t.ExpectedEnd
			busy[a.TechnicianID] = TechnicianSlot{
				TechnicianID:   a.TechnicianID,
				IsBusy:         true,
				AssignedTaskID: &id,
				Role:           &role,
				BusyUntil:      &until,
			}
		}
	}

	out := []TechnicianSlot{}
	seen := make(map[types.ID]bool)
	for _, id := range requested {
		if seen[id] {
			continue
		}
		seen[id] = true
		if s, ok := busy[id]; ok {
			out = append(out, s)
			continue
		}
		out = append(out, TechnicianSlot{TechnicianID: id})
	}
	var rest []TechnicianSlot
	for id, s := range busy {
		if !seen[id] {
			rest = append(rest, s)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].TechnicianID < rest[j].TechnicianID })
	return append(out, rest...)
}
