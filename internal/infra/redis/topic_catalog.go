package redis

import (
	"context"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const topicsKey = "battle:topics"

// TopicLoader fetches the topic list from a backing store (e.g., Postgres).
type TopicLoader interface {
	LoadTopics(ctx context.Context) ([]string, error)
}

// TopicCatalog caches the topic list in Redis (list at battle:topics) and
// falls back to a loader on cache miss.
type TopicCatalog struct {
	client *redis.Client
	loader TopicLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
	logger zerolog.Logger
}

func NewTopicCatalog(client *redis.Client, loader TopicLoader, ttl time.Duration, logger zerolog.Logger) *TopicCatalog {
	return &TopicCatalog{
		client: client,
		loader: loader,
		ttl:    ttl,
		logger: logger,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *TopicCatalog) Topics(ctx context.Context) ([]string, error) {
	topics, err := c.client.LRange(ctx, topicsKey, 0, -1).Result()
	if err == nil && len(topics) > 0 {
		return topics, nil
	}

	result, err, _ := c.sf.Do(topicsKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		topics, err := c.client.LRange(ctx, topicsKey, 0, -1).Result()
		if err == nil && len(topics) > 0 {
			return topics, nil
		}

		topics, err = c.loader.LoadTopics(ctx)
		if err != nil {
			return nil, err
		}
		if len(topics) == 0 {
			return topics, nil
		}

		values := make([]interface{}, len(topics))
		for i, t := range topics {
			values[i] = t
		}
		pipe := c.client.TxPipeline()
		pipe.Del(ctx, topicsKey)
		pipe.RPush(ctx, topicsKey, values...)
		if ttl := c.ttlWithJitter(); ttl > 0 {
			pipe.Expire(ctx, topicsKey, ttl)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			// the loaded list is still good, only the cache write failed
			c.logger.Warn().Err(err).Msg("failed to cache topics")
		}

		return topics, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}

// Invalidate drops the cached list so the next read goes to the loader.
func (c *TopicCatalog) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, topicsKey).Err()
}

func (c *TopicCatalog) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
