package memory

import (
	"context"
	"sync"

	"concept-battle-service/internal/domain"
)

// ChangeFeed fans committed game documents out to in-process subscribers.
type ChangeFeed struct {
	mu     sync.Mutex
	latest map[string]domain.Game
	subs   map[string]map[chan domain.Game]struct{}
}

func NewChangeFeed() *ChangeFeed {
	return &ChangeFeed{
		latest: make(map[string]domain.Game),
		subs:   make(map[string]map[chan domain.Game]struct{}),
	}
}

// Publish records game as the latest snapshot and pushes it to subscribers.
// Snapshots older than the one already seen are ignored.
func (f *ChangeFeed) Publish(_ context.Context, game domain.Game) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if prev, ok := f.latest[game.ID]; ok && prev.Version > game.Version {
		return nil
	}
	f.latest[game.ID] = game.Clone()
	for ch := range f.subs[game.ID] {
		deliverLatest(ch, game.Clone())
	}
	return nil
}

// Subscribe returns a channel of snapshots for gameID. The last published
// snapshot, if any, is delivered first.
func (f *ChangeFeed) Subscribe(_ context.Context, gameID string) (<-chan domain.Game, func(), error) {
	ch := make(chan domain.Game, 8)

	f.mu.Lock()
	if f.subs[gameID] == nil {
		f.subs[gameID] = make(map[chan domain.Game]struct{})
	}
	f.subs[gameID][ch] = struct{}{}
	if initial, ok := f.latest[gameID]; ok {
		ch <- initial.Clone()
	}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		subs := f.subs[gameID]
		if _, ok := subs[ch]; !ok {
			return
		}
		delete(subs, ch)
		close(ch)
		if len(subs) == 0 {
			delete(f.subs, gameID)
		}
	}
	return ch, cancel, nil
}

// Subscribers reports how many observers are attached to gameID.
func (f *ChangeFeed) Subscribers(gameID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[gameID])
}

// deliverLatest never blocks: when the buffer is full the oldest snapshot is
// dropped, since only the newest one matters to observers.
func deliverLatest(ch chan domain.Game, game domain.Game) {
	select {
	case ch <- game:
	default:
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- game:
		default:
		}
	}
}
