package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"concept-battle-service/internal/domain"
	"github.com/IBM/sarama"
	"github.com/rs/zerolog"
)

// DefaultTopic receives one message per created game.
const DefaultTopic = "battle-announcements"

// Notifier publishes game announcements to Kafka, keyed by game id.
type Notifier struct {
	producer sarama.SyncProducer
	topic    string
	logger   zerolog.Logger
}

// NewProducer builds a sync producer that waits for the leader ack.
func NewProducer(brokers []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Compression = sarama.CompressionSnappy
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Retry.Backoff = 100 * time.Millisecond
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return producer, nil
}

func NewNotifier(producer sarama.SyncProducer, topic string, logger zerolog.Logger) *Notifier {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Notifier{producer: producer, topic: topic, logger: logger}
}

func (n *Notifier) Announce(ctx context.Context, announcement domain.Announcement) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(announcement)
	if err != nil {
		return fmt.Errorf("encode announcement: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic:     n.topic,
		Key:       sarama.StringEncoder(announcement.GameID),
		Value:     sarama.ByteEncoder(data),
		Timestamp: announcement.CreatedAt,
	}
	partition, offset, err := n.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("send announcement: %w", err)
	}

	n.logger.Debug().
		Str("game_id", announcement.GameID).
		Int32("partition", partition).
		Int64("offset", offset).
		Msg("announcement published")
	return nil
}

func (n *Notifier) Close() error {
	return n.producer.Close()
}
