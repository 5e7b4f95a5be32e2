package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// TopicLoader fetches the topic list from a backing store.
type TopicLoader interface {
	LoadTopics(ctx context.Context) ([]string, error)
}

// TopicCatalog caches the topic list with TTL to avoid repeated store hits.
type TopicCatalog struct {
	loader TopicLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	topics    []string
	expiresAt time.Time
}

func NewTopicCatalog(loader TopicLoader, ttl time.Duration) *TopicCatalog {
	return &TopicCatalog{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *TopicCatalog) Topics(ctx context.Context) ([]string, error) {
	if topics, ok := c.cached(c.clock()); ok {
		return topics, nil
	}

	result, err, _ := c.sf.Do("topics", func() (interface{}, error) {
		now := c.clock()
		if topics, ok := c.cached(now); ok {
			return topics, nil
		}

		topics, err := c.loader.LoadTopics(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.topics = append([]string(nil), topics...)
		c.expiresAt = now.Add(c.ttlWithJitter())
		c.mu.Unlock()
		return append([]string(nil), topics...), nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}

func (c *TopicCatalog) cached(now time.Time) ([]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.topics == nil || !c.expiresAt.After(now) {
		return nil, false
	}
	return append([]string(nil), c.topics...), true
}

func (c *TopicCatalog) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter; only called inside the singleflight
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// StaticTopicLoader serves a fixed list (config defaults, tests, demos).
type StaticTopicLoader struct {
	topics []string
}

func NewStaticTopicLoader(topics []string) *StaticTopicLoader {
	return &StaticTopicLoader{topics: append([]string(nil), topics...)}
}

func (l *StaticTopicLoader) LoadTopics(_ context.Context) ([]string, error) {
	return append([]string(nil), l.topics...), nil
}
