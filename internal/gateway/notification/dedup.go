package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"dgtt/pkg/platform/circuit"
)

// keyClaimer is the subset of the Redis client used for de-duplication.
type keyClaimer interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// DedupSink forwards a message only the first time its key is seen within
// the TTL, so re-driven workflow steps do not notify twice. When Redis keeps
// failing the breaker opens and messages go straight to next, with one
// probe per cooldown.
type DedupSink struct {
	next    Sink
	client  keyClaimer
	ttl     time.Duration
	prefix  string
	metrics *Metrics
	breaker *circuit.Breaker
}

func NewDedupSink(next Sink, client keyClaimer, ttl time.Duration, m *Metrics) *DedupSink {
	return &DedupSink{
		next:    next,
		client:  client,
		ttl:     ttl,
		prefix:  "dgtt:notification:",
		metrics: m,
		breaker: circuit.New("notification-dedup"),
	}
}

// Degraded reports whether de-duplication is currently bypassed.
func (s *DedupSink) Degraded() bool {
	return s.breaker.IsOpen()
}

func (s *DedupSink) Send(ctx context.Context, msg Message) error {
	if !s.breaker.Allow() {
		return s.next.Send(ctx, msg)
	}
	key := s.prefix + msg.Key()
	claimed, err := s.client.SetNX(ctx, key, msg.OccurredAt.UnixMilli(), s.ttl).Result()
	if err != nil {
		s.breaker.RecordFailure()
		return s.next.Send(ctx, msg)
	}
	s.breaker.RecordSuccess()
	if !claimed {
		if s.metrics != nil {
			s.metrics.Skipped.Inc()
		}
		return nil
	}
	if err := s.next.Send(ctx, msg); err != nil {
		if delErr := s.client.Del(ctx, key).Err(); delErr != nil {
			return fmt.Errorf("%w (release dedup key: %v)", err, delErr)
		}
		return err
	}
	return nil
}
