package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"concept-battle-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// GameReader loads the stored document sent to new subscribers.
type GameReader interface {
	Get(ctx context.Context, gameID string) (domain.Game, error)
}

// ChangeFeed fans game snapshots out across instances over Redis pub/sub on
// battle:game:{id}:events. New subscribers get the stored document first.
type ChangeFeed struct {
	client *redis.Client
	games  GameReader
	logger zerolog.Logger
}

func NewChangeFeed(client *redis.Client, games GameReader, logger zerolog.Logger) *ChangeFeed {
	return &ChangeFeed{client: client, games: games, logger: logger}
}

func (f *ChangeFeed) Publish(ctx context.Context, game domain.Game) error {
	data, err := json.Marshal(game)
	if err != nil {
		return fmt.Errorf("encode game: %w", err)
	}
	if err := f.client.Publish(ctx, f.channel(game.ID), data).Err(); err != nil {
		return fmt.Errorf("publish game: %w", err)
	}
	return nil
}

func (f *ChangeFeed) Subscribe(ctx context.Context, gameID string) (<-chan domain.Game, func(), error) {
	pubsub := f.client.Subscribe(ctx, f.channel(gameID))
	// wait for the subscription to be confirmed so no publish is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe game: %w", err)
	}

	out := make(chan domain.Game, 8)
	done := make(chan struct{})

	var lastVersion int64
	if f.games != nil {
		if game, err := f.games.Get(ctx, gameID); err == nil {
			out <- game
			lastVersion = game.Version
		}
	}

	go func() {
		defer close(out)
		msgs := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var game domain.Game
				if err := json.Unmarshal([]byte(msg.Payload), &game); err != nil {
					f.logger.Warn().Err(err).Str("game_id", gameID).Msg("dropping malformed game event")
					continue
				}
				if game.Version <= lastVersion {
					continue
				}
				lastVersion = game.Version
				deliverLatest(out, game)
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = pubsub.Close()
		})
	}
	return out, cancel, nil
}

func (f *ChangeFeed) channel(gameID string) string {
	return "battle:game:" + gameID + ":events"
}

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
