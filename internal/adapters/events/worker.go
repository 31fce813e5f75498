package events

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fairhold/escrow-arbitration-service/internal/application"
	"github.com/fairhold/escrow-arbitration-service/internal/ports"
)

// Worker drives the service's asynchronous sides: it drains the inbound
// canonical stream into HandleCanonicalEvent and flushes the outbox to the
// publishers on every tick.
type Worker struct {
	logger   *slog.Logger
	consumer ports.EventConsumer
	service  *application.Service
	interval time.Duration
}

func NewWorker(logger *slog.Logger, consumer ports.EventConsumer, service *application.Service, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Worker{logger: logger, consumer: consumer, service: service, interval: interval}
}

func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.processOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.ErrorContext(ctx, "worker iteration failed",
				"module", "events.worker",
				"layer", "adapter",
				"operation", "process_once",
				"outcome", "failure",
				"error", err,
			)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *Worker) processOnce(ctx context.Context) error {
	if w.consumer != nil {
		for i := 0; i < 50; i++ {
			env, err := w.consumer.Receive(ctx)
			if err != nil {
				return err
			}
			if env == nil {
				break
			}
			if err := w.service.HandleCanonicalEvent(ctx, env); err != nil {
				w.logger.WarnContext(ctx, "inbound event rejected",
					"module", "events.worker",
					"layer", "adapter",
					"operation", "handle_event",
					"outcome", "failure",
					"event_id", env.EventID,
					"event_type", env.EventType,
					"error", err,
				)
			}
		}
	}
	if _, err := w.service.FlushOutbox(ctx); err != nil {
		return err
	}
	return nil
}
