package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
)

// TopicLoader loads the topic catalog from the topics table.
type TopicLoader struct {
	pool *pgxpool.Pool
}

func NewTopicLoader(pool *pgxpool.Pool) *TopicLoader {
	return &TopicLoader{pool: pool}
}

func (l *TopicLoader) LoadTopics(ctx context.Context) ([]string, error) {
	rows, err := l.pool.Query(ctx, `SELECT name FROM topics ORDER BY position, name`)
	if err != nil {
		return nil, fmt.Errorf("load topics: %w", err)
	}
	defer rows.Close()

	topics := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		topics = append(topics, name)
	}
	return topics, rows.Err()
}
