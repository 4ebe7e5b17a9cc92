// README: Event sinks: Redis stream (XADD) for downstream email/chat workers, and the log.
package notify

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// streamMaxLen caps the stream; consumers are expected to keep up well within it.
const streamMaxLen = 100000

type RedisSink struct {
	redis  *redis.Client
	stream string
}

func NewRedisSink(client *redis.Client, stream string) *RedisSink {
	return &RedisSink{redis: client, stream: stream}
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Deliver(ctx context.Context, e Event) error {
	return s.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: e.Fields(),
	}).Err()
}

type LogSink struct {
	log *logrus.Logger
}

func NewLogSink(log *logrus.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Deliver(_ context.Context, e Event) error {
	s.log.WithFields(logrus.Fields(e.Fields())).Debug("order event")
	return nil
}
