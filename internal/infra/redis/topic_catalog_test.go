package redis

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"

	"concept-battle-service/internal/infra/memory"
)

func TestTopicCatalogCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	loader := &countingLoader{
		TopicLoader: memory.NewStaticTopicLoader([]string{"Algebra", "Biology", "Chemistry"}),
	}
	catalog := NewTopicCatalog(client, loader, time.Minute, zerolog.Nop())

	topics, err := catalog.Topics(context.Background())
	if err != nil {
		t.Fatalf("topics: %v", err)
	}
	if len(topics) != 3 || topics[0] != "Algebra" {
		t.Fatalf("unexpected topics %v", topics)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}

	// Second call should hit cache, loader not incremented.
	cached, _ := catalog.Topics(context.Background())
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if len(cached) != 3 || cached[2] != "Chemistry" {
		t.Fatalf("expected order to survive the cache, got %v", cached)
	}
	if ttl := mr.TTL(topicsKey); ttl <= 0 {
		t.Fatalf("expected ttl on cached topics, got %v", ttl)
	}

	_ = catalog.Invalidate(context.Background())
	_, _ = catalog.Topics(context.Background())
	if loader.calls != 2 {
		t.Fatalf("expected reload after invalidate, loader calls=%d", loader.calls)
	}
}

func TestTopicCatalogLogsFailedCacheWrite(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	var logs bytes.Buffer
	loader := breakingLoader{
		TopicLoader: memory.NewStaticTopicLoader([]string{"Algebra", "Biology"}),
		mr:          mr,
	}
	catalog := NewTopicCatalog(newClient(mr), loader, time.Minute, zerolog.New(&logs))

	topics, err := catalog.Topics(context.Background())
	if err != nil {
		t.Fatalf("expected loaded topics despite cache failure, got %v", err)
	}
	if len(topics) != 2 {
		t.Fatalf("unexpected topics %v", topics)
	}
	if !strings.Contains(logs.String(), "failed to cache topics") {
		t.Fatalf("expected cache write failure to be logged, got %q", logs.String())
	}
}

// breakingLoader makes Redis fail every command once the topics are loaded.
type breakingLoader struct {
	memory.TopicLoader
	mr *miniredis.Miniredis
}

func (l breakingLoader) LoadTopics(ctx context.Context) ([]string, error) {
	l.mr.SetError("cache unavailable")
	return l.TopicLoader.LoadTopics(ctx)
}

type countingLoader struct {
	memory.TopicLoader
	calls int
}

func (l *countingLoader) LoadTopics(ctx context.Context) ([]string, error) {
	l.calls++
	return l.TopicLoader.LoadTopics(ctx)
}
