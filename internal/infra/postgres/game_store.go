package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"concept-battle-service/internal/domain"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const defaultMaxRetries = 10

// GameStore persists game documents as JSONB in the games table. Updates are
// compare-and-swap on the version column.
type GameStore struct {
	pool       *pgxpool.Pool
	maxRetries int
}

func NewGameStore(pool *pgxpool.Pool) *GameStore {
	return &GameStore{pool: pool, maxRetries: defaultMaxRetries}
}

func (s *GameStore) Create(ctx context.Context, game domain.Game) error {
	if game.Version == 0 {
		game.Version = 1
	}
	data, err := json.Marshal(game)
	if err != nil {
		return fmt.Errorf("encode game: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO games (id, community_id, status, version, data, deadline, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		game.ID, game.CommunityID, string(game.Status), game.Version, data,
		game.ActiveDeadline(), game.CreatedAt, game.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return domain.ErrVersionConflict
	}
	if err != nil {
		return fmt.Errorf("insert game: %w", err)
	}
	return nil
}

func (s *GameStore) Get(ctx context.Context, gameID string) (domain.Game, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM games WHERE id=$1`, gameID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Game{}, domain.ErrGameNotFound
	}
	if err != nil {
		return domain.Game{}, fmt.Errorf("load game: %w", err)
	}
	return decodeGame(raw)
}

// Update reloads and retries when another writer bumped the version first.
func (s *GameStore) Update(ctx context.Context, gameID string, mutate func(*domain.Game) error) (domain.Game, error) {
	for i := 0; i < s.maxRetries; i++ {
		current, err := s.Get(ctx, gameID)
		if err != nil {
			return domain.Game{}, err
		}
		next := current.Clone()
		if err := mutate(&next); err != nil {
			return domain.Game{}, err
		}
		next.Version = current.Version + 1

		data, err := json.Marshal(next)
		if err != nil {
			return domain.Game{}, fmt.Errorf("encode game: %w", err)
		}
		tag, err := s.pool.Exec(ctx, `
			UPDATE games
			SET status=$3, version=$4, data=$5, deadline=$6, updated_at=$7
			WHERE id=$1 AND version=$2`,
			gameID, current.Version, string(next.Status), next.Version, data,
			next.ActiveDeadline(), next.UpdatedAt,
		)
		if err != nil {
			return domain.Game{}, fmt.Errorf("update game: %w", err)
		}
		if tag.RowsAffected() == 1 {
			return next, nil
		}
	}
	return domain.Game{}, domain.ErrVersionConflict
}

func (s *GameStore) ListByCommunity(ctx context.Context, communityID string, limit int) ([]domain.Game, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT data FROM games
		WHERE community_id=$1
		ORDER BY created_at DESC, id
		LIMIT $2`, communityID, limit)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	defer rows.Close()

	games := make([]domain.Game, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		game, err := decodeGame(raw)
		if err != nil {
			return nil, err
		}
		games = append(games, game)
	}
	return games, rows.Err()
}

func (s *GameStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id FROM games
		WHERE status=$1 AND deadline IS NOT NULL AND deadline <= $2
		ORDER BY deadline
		LIMIT $3`, string(domain.GameStatusInProgress), now, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired games: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan game id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func decodeGame(raw []byte) (domain.Game, error) {
	var game domain.Game
	if err := json.Unmarshal(raw, &game); err != nil {
		return domain.Game{}, fmt.Errorf("unmarshal game: %w", err)
	}
	return game, nil
}
