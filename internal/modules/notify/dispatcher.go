// README: Async fan-out of transition events to sinks; failures never reach the publisher.
package notify

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

type Sink interface {
	Name() string
	Deliver(ctx context.Context, e Event) error
}

const deliverTimeout = 5 * time.Second

type Dispatcher struct {
	ch      chan Event
	sinks   []Sink
	log     *logrus.Logger
	dropped atomic.Int64
}

func NewDispatcher(buffer int, log *logrus.Logger, sinks ...Sink) *Dispatcher {
	if buffer <= 0 {
		buffer = 1
	}
	return &Dispatcher{ch: make(chan Event, buffer), sinks: sinks, log: log}
}

// Publish enqueues e, dropping it with a warning when the buffer is full.
func (d *Dispatcher) Publish(e Event) {
	select {
	case d.ch <- e:
	default:
		d.dropped.Add(1)
		d.log.WithFields(logrus.Fields{
			"kind":       e.Kind,
			"booking_id": e.BookingID,
		}).Warn("notify buffer full; event dropped")
	}
}

// Dropped reports how many events were discarded because the buffer was full.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Run delivers events until ctx is cancelled, then flushes what is already buffered.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case e := <-d.ch:
			d.deliver(ctx, e)
		case <-ctx.Done():
			d.drain()
			return
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case e := <-d.ch:
			d.deliver(context.Background(), e)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, e Event) {
	for _, s := range d.sinks {
		dctx, cancel := context.WithTimeout(ctx, deliverTimeout)
		err := s.Deliver(dctx, e)
		cancel()
		if err != nil {
			d.log.WithError(err).WithFields(logrus.Fields{
				"sink":       s.Name(),
				"kind":       e.Kind,
				"booking_id": e.BookingID,
			}).Warn("notify delivery failed")
		}
	}
}
