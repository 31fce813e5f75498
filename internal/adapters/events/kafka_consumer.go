package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/fairhold/escrow-arbitration-service/internal/contracts"
	"github.com/fairhold/escrow-arbitration-service/internal/domain"
)

type KafkaConsumer struct {
	reader *kafka.Reader
}

func NewKafkaConsumer(brokers []string, groupID string, topics []string) (*KafkaConsumer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka consumer requires at least one broker")
	}
	if groupID == "" {
		return nil, fmt.Errorf("kafka consumer requires group id")
	}
	if len(topics) == 0 {
		return nil, fmt.Errorf("kafka consumer requires at least one topic")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		GroupTopics: topics,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
	})
	return &KafkaConsumer{reader: reader}, nil
}

// Receive reads one canonical envelope, returning (nil, nil) when the poll
// window elapses without a message.
func (c *KafkaConsumer) Receive(ctx context.Context) (*contracts.EventEnvelope, error) {
	readCtx, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
	defer cancel()
	msg, err := c.reader.ReadMessage(readCtx)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return nil, nil
		case errors.Is(err, context.Canceled):
			return nil, ctx.Err()
		default:
			return nil, err
		}
	}
	var env contracts.EventEnvelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidEnvelope, err)
	}
	return &env, nil
}

func (c *KafkaConsumer) Close() error { return c.reader.Close() }
