// README: Half-open time window [Start, End) used for slots and task schedules.
package types

import "time"

type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (w Window) Valid() bool {
	return !w.Start.IsZero() && !w.End.IsZero() && w.Start.Before(w.End)
}

func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Overlaps reports whether two half-open windows share any instant.
// Windows that only touch ([10:00,10:30) and [10:30,11:00)) do not overlap.
func (w Window) Overlaps(o Window) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}
