package notify

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultChannel is the pub/sub channel invalidation events go out on.
const DefaultChannel = "lifereality:invalidate"

// RedisPublisher publishes one message per stale collection. The payload is
// the collection name.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
}

// NewRedisPublisher publishes on channel, or DefaultChannel when empty.
func NewRedisPublisher(rdb *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{rdb: rdb, channel: channel}
}

func (p *RedisPublisher) Invalidate(ctx context.Context, collections ...Collection) error {
	pipe := p.rdb.Pipeline()
	for _, c := range collections {
		pipe.Publish(ctx, p.channel, string(c))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish invalidation: %w", err)
	}
	return nil
}

// Subscriber listens on the invalidation channel and hands every valid event
// to an Invalidator, typically a local cache in another process.
type Subscriber struct {
	rdb     *redis.Client
	channel string
	target  Invalidator
	logger  *zap.Logger
}

func NewSubscriber(rdb *redis.Client, channel string, target Invalidator, logger *zap.Logger) *Subscriber {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Subscriber{rdb: rdb, channel: channel, target: target, logger: logger}
}

// Run blocks until ctx is cancelled. ready, if non-nil, is closed once the
// subscription is confirmed.
func (s *Subscriber) Run(ctx context.Context, ready chan<- struct{}) error {
	sub := s.rdb.Subscribe(ctx, s.channel)
	defer sub.Close()

	// Wait for the subscribe confirmation so no event published afterwards is missed
	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", s.channel, err)
	}
	if ready != nil {
		close(ready)
	}
	s.logger.Info("Listening for invalidations", zap.String("channel", s.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			c := Collection(msg.Payload)
			if !Valid(c) {
				s.logger.Warn("Ignoring unknown collection", zap.String("payload", msg.Payload))
				continue
			}
			if err := s.target.Invalidate(ctx, c); err != nil {
				s.logger.Error("Invalidation failed", zap.String("collection", string(c)), zap.Error(err))
			}
		}
	}
}
