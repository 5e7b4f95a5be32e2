package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"concept-battle-service/internal/domain"
)

// GameStore is an in-memory implementation of app.GameRepository. Each game
// has its own lock so updates to different games never contend.
type GameStore struct {
	mu    sync.RWMutex
	games map[string]*gameEntry
}

type gameEntry struct {
	mu   sync.Mutex
	game domain.Game
}

func NewGameStore() *GameStore {
	return &GameStore{
		games: make(map[string]*gameEntry),
	}
}

func (s *GameStore) Create(_ context.Context, game domain.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[game.ID]; ok {
		return domain.ErrVersionConflict
	}
	if game.Version == 0 {
		game.Version = 1
	}
	s.games[game.ID] = &gameEntry{game: game.Clone()}
	return nil
}

func (s *GameStore) Get(_ context.Context, gameID string) (domain.Game, error) {
	entry, ok := s.entry(gameID)
	if !ok {
		return domain.Game{}, domain.ErrGameNotFound
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.game.Clone(), nil
}

// Update runs mutate on a copy while holding the game's lock and swaps the
// copy in only when mutate succeeds.
func (s *GameStore) Update(ctx context.Context, gameID string, mutate func(*domain.Game) error) (domain.Game, error) {
	entry, ok := s.entry(gameID)
	if !ok {
		return domain.Game{}, domain.ErrGameNotFound
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return domain.Game{}, err
	}

	next := entry.game.Clone()
	if err := mutate(&next); err != nil {
		return domain.Game{}, err
	}
	next.Version = entry.game.Version + 1
	entry.game = next
	return next.Clone(), nil
}

func (s *GameStore) ListByCommunity(_ context.Context, communityID string, limit int) ([]domain.Game, error) {
	s.mu.RLock()
	entries := make([]*gameEntry, 0, len(s.games))
	for _, entry := range s.games {
		entries = append(entries, entry)
	}
	s.mu.RUnlock()

	games := make([]domain.Game, 0)
	for _, entry := range entries {
		entry.mu.Lock()
		if entry.game.CommunityID == communityID {
			games = append(games, entry.game.Clone())
		}
		entry.mu.Unlock()
	}

	sort.Slice(games, func(i, j int) bool {
		if !games[i].CreatedAt.Equal(games[j].CreatedAt) {
			return games[i].CreatedAt.After(games[j].CreatedAt)
		}
		return games[i].ID < games[j].ID
	})
	if limit > 0 && len(games) > limit {
		games = games[:limit]
	}
	return games, nil
}

func (s *GameStore) ListExpired(_ context.Context, now time.Time, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0)
	for id, entry := range s.games {
		entry.mu.Lock()
		deadline := entry.game.ActiveDeadline()
		entry.mu.Unlock()
		if deadline != nil && !now.Before(*deadline) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (s *GameStore) entry(gameID string) (*gameEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.games[gameID]
	return entry, ok
}
