package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/fairhold/escrow-arbitration-service/internal/contracts"
)

// Topics maps event classes to broker topics. DLQ records go to their own
// topic so poison events never circulate with the live stream.
type Topics struct {
	Domain    string
	Analytics string
	DLQ       string
}

type KafkaPublisher struct {
	writer *kafka.Writer
	topics Topics
}

func NewKafkaPublisher(brokers []string, topics Topics) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	if topics.Domain == "" {
		topics.Domain = "escrow.domain.events"
	}
	if topics.Analytics == "" {
		topics.Analytics = "escrow.analytics.events"
	}
	if topics.DLQ == "" {
		topics.DLQ = "escrow.domain.events.dlq"
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
		},
		topics: topics,
	}, nil
}

func (p *KafkaPublisher) PublishDomain(ctx context.Context, event contracts.EventEnvelope) error {
	return p.publish(ctx, p.topics.Domain, event.PartitionKey, event)
}

func (p *KafkaPublisher) PublishAnalytics(ctx context.Context, event contracts.EventEnvelope) error {
	return p.publish(ctx, p.topics.Analytics, event.PartitionKey, event)
}

func (p *KafkaPublisher) PublishDLQ(ctx context.Context, record contracts.DLQRecord) error {
	record.DLQTopic = p.topics.DLQ
	return p.publish(ctx, p.topics.DLQ, record.OriginalEvent.PartitionKey, record)
}

func (p *KafkaPublisher) publish(ctx context.Context, topic, partitionKey string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(partitionKey),
		Value: payload,
		Time:  time.Now().UTC(),
	})
}

func (p *KafkaPublisher) Close() error { return p.writer.Close() }
