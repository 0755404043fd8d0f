package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rudhramentertainment/RBackend/internal/domain"
	"github.com/segmentio/kafka-go"
)

type Producer struct {
	writer *kafka.Writer
	topic  string
}

func NewProducer(brokers []string, topic string) *Producer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &Producer{writer: w, topic: topic}
}

func (p *Producer) Publish(ctx context.Context, key string, value []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  time.Now(),
	})
}

func (p *Producer) PublishJSON(ctx context.Context, key string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.Publish(ctx, key, b)
}

// PublishMessageCreated announces a persisted chat message, keyed by sender
// so one sender's messages stay on one partition.
func (p *Producer) PublishMessageCreated(ctx context.Context, m *domain.Message) error {
	return p.PublishJSON(ctx, m.SenderID.Hex(), map[string]any{
		"type":    "message.created",
		"message": m,
	})
}

func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
