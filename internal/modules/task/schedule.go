// README: Pure scheduling rules: overlap detection and technician assignment validation.
package task

import (
	"fmt"
	"sort"
	"time"

	"motoshop/internal/apperror"
	"motoshop/internal/types"
)

// FindConflict returns the first active task in candidates (excluding exclude) whose window
// overlaps w. Candidates are expected to share one bay.
func FindConflict(candidates []Task, w types.Window, exclude types.ID) *Task {
	var hit *Task
	for i := range candidates {
		c := &candidates[i]
		if c.ID == exclude || !c.Status.Active() {
			continue
		}
		if !c.Window.Overlaps(w) {
			continue
		}
		if hit == nil || c.Window.Start.Before(hit.Window.Start) {
			hit = c
		}
	}
	return hit
}

// conflictError names the colliding window so the caller can offer an alternative.
func conflictError(c *Task) error {
	return ErrBayConflict.
		With("task_id", string(c.ID)).
		With("bay_id", string(c.BayID)).
		With("start", c.Window.Start.Format(time.RFC3339)).
		With("end", c.Window.End.Format(time.RFC3339))
}

// ValidateTechnicians requires exactly one lead, any number of assistants and no duplicates.
func ValidateTechnicians(as []Assignment) error {
	if len(as) == 0 {
		return apperror.New(apperror.Validation, "at least one technician (the lead) is required")
	}
	leads := 0
	seen := make(map[types.ID]bool, len(as))
	for _, a := range as {
		if a.TechnicianID == "" {
			return apperror.New(apperror.Validation, "technician id is required")
		}
		if seen[a.TechnicianID] {
			return apperror.Newf(apperror.Validation, "technician %s assigned twice", a.TechnicianID)
		}
		seen[a.TechnicianID] = true
		switch a.Role {
		case RoleLead:
			leads++
		case RoleAssistant:
		default:
			return apperror.Newf(apperror.Validation, "unknown technician role %q", a.Role)
		}
	}
	if leads != 1 {
		return apperror.New(apperror.Validation, fmt.Sprintf("exactly one lead technician required, got %d", leads))
	}
	return nil
}

// technicianLockKeys returns advisory lock keys in a stable order to avoid lock-order deadlocks.
func technicianLockKeys(as []Assignment) []string {
	keys := make([]string, 0, len(as))
	for _, a := range as {
		keys = append(keys, "technician:"+string(a.TechnicianID))
	}
	sort.Strings(keys)
	return keys
}

func bayLockKey(id types.ID) string {
	return "bay:" + string(id)
}
