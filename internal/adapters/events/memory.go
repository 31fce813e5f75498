package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/fairhold/escrow-arbitration-service/internal/contracts"
)

// MemoryDomainPublisher records published envelopes. Used by the test suite
// and the broker-less runtime profile.
type MemoryDomainPublisher struct {
	mu     sync.Mutex
	events []contracts.EventEnvelope
}

func NewMemoryDomainPublisher() *MemoryDomainPublisher { return &MemoryDomainPublisher{} }

func (p *MemoryDomainPublisher) PublishDomain(_ context.Context, event contracts.EventEnvelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *MemoryDomainPublisher) Events() []contracts.EventEnvelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]contracts.EventEnvelope(nil), p.events...)
}

type MemoryAnalyticsPublisher struct {
	mu     sync.Mutex
	events []contracts.EventEnvelope
}

func NewMemoryAnalyticsPublisher() *MemoryAnalyticsPublisher { return &MemoryAnalyticsPublisher{} }

func (p *MemoryAnalyticsPublisher) PublishAnalytics(_ context.Context, event contracts.EventEnvelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *MemoryAnalyticsPublisher) Events() []contracts.EventEnvelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]contracts.EventEnvelope(nil), p.events...)
}

type LoggingDLQPublisher struct {
	logger *slog.Logger
}

func NewLoggingDLQPublisher(logger *slog.Logger) *LoggingDLQPublisher {
	return &LoggingDLQPublisher{logger: logger}
}

func (p *LoggingDLQPublisher) PublishDLQ(ctx context.Context, record contracts.DLQRecord) error {
	p.logger.ErrorContext(ctx, "event dead-lettered",
		"module", "events.dlq",
		"layer", "adapter",
		"operation", "publish_dlq",
		"outcome", "failure",
		"event_id", record.OriginalEvent.EventID,
		"event_type", record.OriginalEvent.EventType,
		"error_summary", record.ErrorSummary,
		"retry_count", record.RetryCount,
	)
	return nil
}

// MemoryConsumer is a hand-fed consumer for tests and the broker-less
// profile. Receive pops in FIFO order and returns (nil, nil) when drained.
type MemoryConsumer struct {
	mu    sync.Mutex
	queue []contracts.EventEnvelope
}

func NewMemoryConsumer() *MemoryConsumer { return &MemoryConsumer{} }

func (c *MemoryConsumer) Push(env contracts.EventEnvelope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = append(c.queue, env)
}

func (c *MemoryConsumer) Receive(ctx context.Context) (*contracts.EventEnvelope, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return nil, nil
	}
	env := c.queue[0]
	c.queue = c.queue[1:]
	return &env, nil
}
