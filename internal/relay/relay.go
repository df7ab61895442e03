package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ashveil/jobscout/internal/task"
)

// ErrNoEvent is returned by Subscription.Next when the bounded wait elapses
// with nothing published.
var ErrNoEvent = errors.New("no event available")

// ErrMalformedEvent is returned when a published payload cannot be decoded.
// The subscription remains usable; the next poll picks up where it left off.
var ErrMalformedEvent = errors.New("malformed event payload")

// Relay is the Redis-backed pub/sub transport connecting executors to
// stream subscribers. Delivery is at-most-once: publishes with no live
// subscriber are dropped and nothing is replayed to late subscribers.
type Relay struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// New connects a Relay to Redis. The caller owns the returned client and
// must Close it.
func New(redisURL string, logger *zap.Logger) (*Relay, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Relay{rdb: rdb, logger: logger}, nil
}

// channelKey derives the pub/sub channel for a task identifier.
func channelKey(taskID string) string {
	return "events:" + taskID
}

// Publish sends one event on a task's channel. Fire-and-forget: whether any
// subscriber receives it is not observable here.
func (r *Relay) Publish(ctx context.Context, taskID string, ev *task.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := r.rdb.Publish(ctx, channelKey(taskID), data).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", channelKey(taskID), err)
	}
	r.logger.Debug("published event",
		zap.String("task", taskID),
		zap.String("type", ev.Type))
	return nil
}

// Subscribe opens an independent subscription on a task's channel. Each
// subscription receives its own copy of events published after this call
// returns. The caller must Close it on every exit path.
func (r *Relay) Subscribe(ctx context.Context, taskID string) (*Subscription, error) {
	pubsub := r.rdb.Subscribe(ctx, channelKey(taskID))
	// Force the subscribe round-trip so events published after this call
	// are guaranteed to be seen.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channelKey(taskID), err)
	}
	return &Subscription{pubsub: pubsub, channel: channelKey(taskID)}, nil
}

// Close shuts down the Redis connection.
func (r *Relay) Close() error {
	return r.rdb.Close()
}

// Subscription is one subscriber's handle on a task channel.
type Subscription struct {
	pubsub  *redis.PubSub
	channel string
}

// Next waits up to timeout for the next event. It returns ErrNoEvent when
// the wait elapses, ErrMalformedEvent for an undecodable payload, and the
// underlying transport error otherwise.
func (s *Subscription) Next(ctx context.Context, timeout time.Duration) (*task.Event, error) {
	msg, err := s.pubsub.ReceiveTimeout(ctx, timeout)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, ErrNoEvent
		}
		return nil, err
	}

	switch m := msg.(type) {
	case *redis.Message:
		var ev task.Event
		if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		return &ev, nil
	case *redis.Subscription:
		// Subscribe/unsubscribe confirmations carry no payload.
		return nil, ErrNoEvent
	default:
		return nil, ErrNoEvent
	}
}

// Close unsubscribes and releases the channel-specific connection.
func (s *Subscription) Close() error {
	return s.pubsub.Close()
}
