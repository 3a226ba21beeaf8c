// Package cache is a Redis read-through cache for rendered API responses.
// Each entry is tagged with the collections it was built from, so a store
// invalidation drops exactly the entries that went stale.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"life-reality/internal/notify"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyPrefix = "resp:"
	tagPrefix = "tag:"
	genPrefix = "gen:"

	// DefaultTTL is how long a response stays cached without invalidation.
	DefaultTTL = 5 * time.Minute
)

type ResponseCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

var _ notify.Invalidator = (*ResponseCache)(nil)

func New(client *redis.Client, ttl time.Duration, logger *zap.Logger) *ResponseCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ResponseCache{client: client, ttl: ttl, logger: logger}
}

// Get returns the cached body for key. Errors count as a miss.
func (c *ResponseCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("Cache get failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return val, true
}

// Stamp holds the tag generations seen before a response was built.
type Stamp struct {
	tags []notify.Collection
	gens []string
	ok   bool
}

var errStale = errors.New("tag generation moved")

// Begin records the current generation of each tag. Call it before reading
// the data a response is built from and hand the result to Set.
func (c *ResponseCache) Begin(ctx context.Context, tags ...notify.Collection) Stamp {
	gens, err := c.generations(ctx, c.client, tags)
	if err != nil {
		c.logger.Warn("Cache generation read failed", zap.Error(err))
		return Stamp{}
	}
	return Stamp{tags: tags, gens: gens, ok: true}
}

type mgetter interface {
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
}

func (c *ResponseCache) generations(ctx context.Context, cmd mgetter, tags []notify.Collection) ([]string, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	vals, err := cmd.MGet(ctx, genKeys(tags)...).Result()
	if err != nil {
		return nil, err
	}
	gens := make([]string, len(vals))
	for i, v := range vals {
		if str, ok := v.(string); ok {
			gens[i] = str
		}
	}
	return gens, nil
}

// Set stores body under key and records key in each tag's set. Nothing is
// stored if any tag was invalidated since stamp was taken.
func (c *ResponseCache) Set(ctx context.Context, key string, body []byte, stamp Stamp) {
	if !stamp.ok {
		return
	}

	write := func(tx *redis.Tx) error {
		gens, err := c.generations(ctx, tx, stamp.tags)
		if err != nil {
			return err
		}
		for i := range gens {
			if gens[i] != stamp.gens[i] {
				return errStale
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, keyPrefix+key, body, c.ttl)
			for _, tag := range stamp.tags {
				pipe.SAdd(ctx, tagPrefix+string(tag), key)
				// The tag set outlives its entries so late invalidations still find them
				pipe.Expire(ctx, tagPrefix+string(tag), 2*c.ttl)
			}
			return nil
		})
		return err
	}

	err := c.client.Watch(ctx, write, genKeys(stamp.tags)...)
	switch {
	case err == nil:
	case errors.Is(err, errStale), errors.Is(err, redis.TxFailedErr):
		c.logger.Debug("Cache set skipped, response is stale", zap.String("key", key))
	default:
		c.logger.Warn("Cache set failed", zap.String("key", key), zap.Error(err))
	}
}

func genKeys(tags []notify.Collection) []string {
	keys := make([]string, len(tags))
	for i, tag := range tags {
		keys[i] = genPrefix + string(tag)
	}
	return keys
}

// Invalidate bumps each collection's generation, then deletes every entry
// tagged with it. Reads already in flight cannot store their results after
// the bump.
func (c *ResponseCache) Invalidate(ctx context.Context, collections ...notify.Collection) error {
	deleted := 0
	for _, col := range collections {
		if err := c.client.Incr(ctx, genPrefix+string(col)).Err(); err != nil {
			return fmt.Errorf("bump generation %s: %w", col, err)
		}

		tag := tagPrefix + string(col)
		keys, err := c.client.SMembers(ctx, tag).Result()
		if err != nil {
			return fmt.Errorf("read tag %s: %w", tag, err)
		}

		doomed := make([]string, 0, len(keys)+1)
		for _, k := range keys {
			doomed = append(doomed, keyPrefix+k)
		}
		doomed = append(doomed, tag)
		if err := c.client.Del(ctx, doomed...).Err(); err != nil {
			return fmt.Errorf("drop tag %s: %w", tag, err)
		}
		deleted += len(keys)
	}
	c.logger.Debug("Cache invalidated", zap.Any("collections", collections), zap.Int("entries", deleted))
	return nil
}
