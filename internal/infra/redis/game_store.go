package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"concept-battle-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	deadlinesKey      = "battle:deadlines"
	defaultMaxRetries = 10
)

// GameStore keeps each game as one JSON document and commits updates with
// WATCH/MULTI so concurrent writers on any instance never lose an update.
// Keys:
//
//	battle:game:{id}                 game document
//	battle:community:{cid}:games     ZSET of game ids scored by creation time
//	battle:deadlines                 ZSET of active round deadlines (unix ms)
type GameStore struct {
	client     *redis.Client
	ttl        time.Duration
	maxRetries int
}

func NewGameStore(client *redis.Client, ttl time.Duration) *GameStore {
	return &GameStore{client: client, ttl: ttl, maxRetries: defaultMaxRetries}
}

func (s *GameStore) Create(ctx context.Context, game domain.Game) error {
	if game.Version == 0 {
		game.Version = 1
	}
	data, err := json.Marshal(game)
	if err != nil {
		return fmt.Errorf("encode game: %w", err)
	}
	created, err := s.client.SetNX(ctx, s.gameKey(game.ID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("store game: %w", err)
	}
	if !created {
		return domain.ErrVersionConflict
	}

	if err := s.client.ZAdd(ctx, s.communityKey(game.CommunityID), redis.Z{
		Score:  float64(game.CreatedAt.UnixMilli()),
		Member: game.ID,
	}).Err(); err != nil {
		return fmt.Errorf("index game: %w", err)
	}
	return nil
}

func (s *GameStore) Get(ctx context.Context, gameID string) (domain.Game, error) {
	return s.load(ctx, s.client, gameID)
}

// Update retries on a concurrent write up to maxRetries times, then returns
// ErrVersionConflict.
func (s *GameStore) Update(ctx context.Context, gameID string, mutate func(*domain.Game) error) (domain.Game, error) {
	key := s.gameKey(gameID)
	var committed domain.Game

	txf := func(tx *redis.Tx) error {
		current, err := s.load(ctx, tx, gameID)
		if err != nil {
			return err
		}
		next := current.Clone()
		if err := mutate(&next); err != nil {
			return err
		}
		next.Version = current.Version + 1

		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode game: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			if deadline := next.ActiveDeadline(); deadline != nil {
				pipe.ZAdd(ctx, deadlinesKey, redis.Z{Score: float64(deadline.UnixMilli()), Member: gameID})
			} else {
				pipe.ZRem(ctx, deadlinesKey, gameID)
			}
			return nil
		})
		if err != nil {
			return err
		}
		committed = next
		return nil
	}

	for i := 0; i < s.maxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return committed, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, domain.ErrGameNotFound) {
			// expired document, drop it from the deadline index so sweeps move on
			_ = s.client.ZRem(ctx, deadlinesKey, gameID).Err()
		}
		return domain.Game{}, err
	}
	return domain.Game{}, domain.ErrVersionConflict
}

func (s *GameStore) ListByCommunity(ctx context.Context, communityID string, limit int) ([]domain.Game, error) {
	if limit <= 0 {
		limit = 20
	}
	ids, err := s.client.ZRevRange(ctx, s.communityKey(communityID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list community games: %w", err)
	}

	games := make([]domain.Game, 0, len(ids))
	for _, id := range ids {
		game, err := s.Get(ctx, id)
		if errors.Is(err, domain.ErrGameNotFound) {
			// expired document, drop the stale index entry
			_ = s.client.ZRem(ctx, s.communityKey(communityID), id).Err()
			continue
		}
		if err != nil {
			return nil, err
		}
		games = append(games, game)
	}
	return games, nil
}

func (s *GameStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]string, error) {
	opt := &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", now.UnixMilli()),
	}
	if limit > 0 {
		opt.Count = int64(limit)
	}
	ids, err := s.client.ZRangeByScore(ctx, deadlinesKey, opt).Result()
	if err != nil {
		return nil, fmt.Errorf("list expired games: %w", err)
	}
	return ids, nil
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *GameStore) load(ctx context.Context, c stringGetter, gameID string) (domain.Game, error) {
	data, err := c.Get(ctx, s.gameKey(gameID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Game{}, domain.ErrGameNotFound
	}
	if err != nil {
		return domain.Game{}, fmt.Errorf("load game: %w", err)
	}
	var game domain.Game
	if err := json.Unmarshal(data, &game); err != nil {
		return domain.Game{}, fmt.Errorf("decode game %s: %w", gameID, err)
	}
	return game, nil
}

func (s *GameStore) gameKey(gameID string) string {
	return "battle:game:" + gameID
}

func (s *GameStore) communityKey(communityID string) string {
	return "battle:community:" + communityID + ":games"
}
