// README: Outbound transition events consumed by notification collaborators.
package notify

import (
	"time"

	"motoshop/internal/types"
)

// Event describes one committed state change. Kind is the trigger name
// (check_in, quote_approved, ...) or a task-level action such as timeline_entry_added.
type Event struct {
	ID             types.ID   `json:"id"`
	Kind           string     `json:"kind"`
	BookingID      types.ID   `json:"booking_id"`
	ServiceOrderID types.ID   `json:"service_order_id,omitempty"`
	TaskID         types.ID   `json:"task_id,omitempty"`
	QuoteID        types.ID   `json:"quote_id,omitempty"`
	From           string     `json:"from,omitempty"`
	To             string     `json:"to,omitempty"`
	ActorID        types.ID   `json:"actor_id,omitempty"`
	ActorRole      types.Role `json:"actor_role"`
	At             time.Time  `json:"at"`
}

// Fields flattens the event for stream entries and log lines. Empty values are omitted.
func (e Event) Fields() map[string]any {
	out := map[string]any{
		"id":         string(e.ID),
		"kind":       e.Kind,
		"booking_id": string(e.BookingID),
		"actor_role": string(e.ActorRole),
		"at":         e.At.UTC().Format(time.RFC3339Nano),
	}
	opt := map[string]string{
		"service_order_id": string(e.ServiceOrderID),
		"task_id":          string(e.TaskID),
		"quote_id":         string(e.QuoteID),
		"from":             e.From,
		"to":               e.To,
		"actor_id":         string(e.ActorID),
	}
	for k, v := range opt {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// Publisher accepts events without blocking the caller.
type Publisher interface {
	Publish(e Event)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(Event) {}
