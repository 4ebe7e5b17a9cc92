// README: Shutdown ordering between the HTTP server and the event dispatcher.
package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"motoshop/internal/modules/notify"
)

type recordingSink struct {
	mu    sync.Mutex
	kinds []string
}

func (s *recordingSink) Name() string { return "record" }

func (s *recordingSink) Deliver(_ context.Context, e notify.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kinds = append(s.kinds, e.Kind)
	return nil
}

func (s *recordingSink) got() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.kinds...)
}

func TestServeFlushesEventsPublishedDuringGracePeriod(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	sink := &recordingSink{}
	d := notify.NewDispatcher(8, log, sink)
	ctx, cancel := context.WithCancel(context.Background())

	err := serve(ctx, func(ctx context.Context) error {
		cancel()
		<-ctx.Done()
		// An in-flight request finishing after the signal.
		time.Sleep(50 * time.Millisecond)
		d.Publish(notify.Event{Kind: "servicing_completed", BookingID: "b1"})
		return nil
	}, d)

	require.NoError(t, err)
	assert.Equal(t, []string{"servicing_completed"}, sink.got())
	assert.Zero(t, d.Dropped())
}

func TestServeReturnsServerError(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	d := notify.NewDispatcher(1, log)
	boom := errors.New("listen tcp :8080: address already in use")

	err := serve(context.Background(), func(context.Context) error { return boom }, d)
	assert.ErrorIs(t, err, boom)
}
