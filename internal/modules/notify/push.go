// README: FCM push sink; customer-facing transitions are sent to the booking's topic.
package notify

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/messaging"
)

// Messenger is satisfied by *messaging.Client.
type Messenger interface {
	Send(ctx context.Context, msg *messaging.Message) (string, error)
}

// pushCopy holds the notification text per event kind. Kinds not listed are not pushed.
var pushCopy = map[string]messaging.Notification{
	"check_in":             {Title: "Vehicle checked in", Body: "We have received your motorcycle."},
	"inspection_completed": {Title: "Inspection finished", Body: "A technician has finished inspecting your motorcycle."},
	"quote_created":        {Title: "Quote ready", Body: "Please review and approve the repair quote."},
	"servicing_scheduled":  {Title: "Service scheduled", Body: "Your repair has been scheduled."},
	"servicing_started":    {Title: "Service started", Body: "Work on your motorcycle has begun."},
	"timeline_entry_added": {Title: "Service update", Body: "A new progress update is available."},
	"servicing_completed":  {Title: "Ready for pickup", Body: "Your motorcycle is ready."},
	"cancel":               {Title: "Booking cancelled", Body: "Your booking has been cancelled."},
}

type PushSink struct {
	client Messenger
}

func NewPushSink(client Messenger) *PushSink {
	return &PushSink{client: client}
}

func (s *PushSink) Name() string { return "fcm" }

// Topic is the FCM topic the customer app subscribes to for one booking.
func Topic(bookingID string) string {
	return "booking-" + bookingID
}

func (s *PushSink) Deliver(ctx context.Context, e Event) error {
	note, ok := pushCopy[e.Kind]
	if !ok {
		return nil
	}
	data := make(map[string]string)
	for k, v := range e.Fields() {
		data[k] = fmt.Sprint(v)
	}
	msg := &messaging.Message{
		Topic:        Topic(string(e.BookingID)),
		Data:         data,
		Notification: &note,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
	}
	if _, err := s.client.Send(ctx, msg); err != nil {
		return fmt.Errorf("fcm send %s for booking %s: %w", e.Kind, e.BookingID, err)
	}
	return nil
}
