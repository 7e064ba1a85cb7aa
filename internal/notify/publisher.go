package notify

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
	Close() error
}

type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
	}
}

func kafkaMessage(env Envelope) (kafka.Message, error) {
	value, err := json.Marshal(env)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(env.ID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(env.Type)},
		},
	}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, env Envelope) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	msg, err := kafkaMessage(env)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// RedisStreamPublisher кладёт уведомление в Redis Stream (XADD).
type RedisStreamPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewRedisStreamPublisher(client *redis.Client, stream string) *RedisStreamPublisher {
	return &RedisStreamPublisher{client: client, stream: stream, maxLen: 100_000}
}

func streamValues(env Envelope) map[string]any {
	return map[string]any{
		"id":         env.ID,
		"type":       env.Type,
		"user_ids":   strings.Join(env.UserIDs, ","),
		"payload":    string(env.Payload),
		"created_at": env.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func (p *RedisStreamPublisher) Publish(ctx context.Context, env Envelope) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: streamValues(env),
	}).Err()
}

func (p *RedisStreamPublisher) Close() error {
	return p.client.Close()
}

// LogPublisher: для NOTIFY_BACKEND=none: только пишет в лог.
type LogPublisher struct {
	log *zap.Logger
}

func NewLogPublisher(log *zap.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, env Envelope) error {
	p.log.Info("notification",
		zap.String("id", env.ID),
		zap.String("type", env.Type),
		zap.Strings("user_ids", env.UserIDs))
	return nil
}

func (p *LogPublisher) Close() error { return nil }
