package memory

import (
	"context"
	"testing"
	"time"
)

func TestChangeFeedDeliversLatestSnapshotFirst(t *testing.T) {
	feed := NewChangeFeed()
	ctx := context.Background()
	game := sampleGame("g1", "c1", time.Now())
	_ = feed.Publish(ctx, game)

	ch, cancel, err := feed.Subscribe(ctx, "g1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	select {
	case got := <-ch:
		if got.ID != "g1" || got.Version != 1 {
			t.Fatalf("unexpected snapshot %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected initial snapshot")
	}
}

func TestChangeFeedIgnoresStaleVersions(t *testing.T) {
	feed := NewChangeFeed()
	ctx := context.Background()
	ch, cancel, _ := feed.Subscribe(ctx, "g1")
	defer cancel()

	newer := sampleGame("g1", "c1", time.Now())
	newer.Version = 3
	older := newer
	older.Version = 2

	_ = feed.Publish(ctx, newer)
	_ = feed.Publish(ctx, older)

	got := <-ch
	if got.Version != 3 {
		t.Fatalf("expected version 3, got %d", got.Version)
	}
	select {
	case extra := <-ch:
		t.Fatalf("stale snapshot delivered: version %d", extra.Version)
	default:
	}
}

func TestChangeFeedDropsOldestWhenSubscriberIsSlow(t *testing.T) {
	feed := NewChangeFeed()
	ctx := context.Background()
	ch, cancel, _ := feed.Subscribe(ctx, "g1")
	defer cancel()

	game := sampleGame("g1", "c1", time.Now())
	for v := int64(1); v <= 20; v++ {
		game.Version = v
		_ = feed.Publish(ctx, game)
	}

	var last int64
	for {
		select {
		case got := <-ch:
			last = got.Version
			continue
		default:
		}
		break
	}
	if last != 20 {
		t.Fatalf("expected newest snapshot to survive, got %d", last)
	}
}

func TestChangeFeedCancelClosesChannel(t *testing.T) {
	feed := NewChangeFeed()
	ch, cancel, _ := feed.Subscribe(context.Background(), "g1")
	if feed.Subscribers("g1") != 1 {
		t.Fatalf("expected one subscriber")
	}
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel")
	}
	if feed.Subscribers("g1") != 0 {
		t.Fatalf("expected no subscribers after cancel")
	}
}
