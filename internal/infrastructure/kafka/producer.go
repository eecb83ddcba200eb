package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	bus "github.com/example/chat-storefront/internal/events"
)

const headerEventType = "event-type"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer implements events.Publisher on a kafka topic. Messages are keyed
// by aggregate id so one order's events stay in one partition.
type Producer struct {
	writer messageWriter
	logger *zap.Logger
}

func NewProducer(brokers []string, topic string, logger *zap.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}
	return &Producer{writer: writer, logger: logger.Named("kafka")}
}

func (p *Producer) Publish(ctx context.Context, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	msg := kafka.Message{Key: []byte(key), Value: data, Time: time.Now()}
	if t := typeOf(event); t != "" {
		msg.Headers = []kafka.Header{{Key: headerEventType, Value: []byte(t)}}
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s event: %w", typeOf(event), err)
	}
	p.logger.Debug("event published", zap.String("key", key), zap.String("type", typeOf(event)), zap.Int("bytes", len(data)))
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

func typeOf(event any) string {
	switch e := event.(type) {
	case bus.Event:
		return e.Type
	case *bus.Event:
		if e != nil {
			return e.Type
		}
	}
	return ""
}
