package application

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fairhold/escrow-arbitration-service/internal/contracts"
	"github.com/fairhold/escrow-arbitration-service/internal/domain"
	"github.com/fairhold/escrow-arbitration-service/internal/ports"
)

const envelopeSchemaVersion = "1.0"

func (s *Service) buildEnvelope(eventType, projectKey, traceID string, now time.Time, payload any) (contracts.EventEnvelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return contracts.EventEnvelope{}, err
	}
	return contracts.EventEnvelope{
		EventID:          newID(),
		EventType:        eventType,
		EventClass:       domain.CanonicalEventClass(eventType),
		OccurredAt:       now,
		PartitionKeyPath: domain.CanonicalPartitionKeyPath(eventType),
		PartitionKey:     projectKey,
		SourceService:    s.cfg.ServiceName,
		TraceID:          traceID,
		SchemaVersion:    envelopeSchemaVersion,
		Data:             data,
	}, nil
}

func (s *Service) enqueueEnvelope(ctx context.Context, env contracts.EventEnvelope, now time.Time) error {
	if s.outbox == nil {
		return nil
	}
	return s.outbox.Enqueue(ctx, ports.OutboxRecord{
		RecordID:   newID(),
		EventClass: env.EventClass,
		Envelope:   env,
		CreatedAt:  now,
	})
}

func (s *Service) enqueueProjectCreated(ctx context.Context, project domain.Project, traceID string, now time.Time) error {
	env, err := s.buildEnvelope(domain.EventProjectCreated, project.ProjectKey, traceID, now, contracts.ProjectCreatedPayload{
		ProjectKey:      project.ProjectKey,
		Client:          project.Client,
		Maker:           project.Maker,
		Arbiter:         project.Arbiter,
		EscrowID:        project.EscrowID,
		MilestonesCount: project.MilestonesCount,
		StartedAt:       project.StartTime.Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	return s.enqueueEnvelope(ctx, env, now)
}

func (s *Service) enqueueProjectEnded(ctx context.Context, eventType string, project domain.Project, endedBy, reason, traceID string, now time.Time) error {
	env, err := s.buildEnvelope(eventType, project.ProjectKey, traceID, now, contracts.ProjectEndedPayload{
		ProjectKey: project.ProjectKey,
		EndedBy:    endedBy,
		Reason:     reason,
		EndedAt:    now.Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	return s.enqueueEnvelope(ctx, env, now)
}

func (s *Service) enqueueMilestoneEvent(ctx context.Context, eventType string, milestone domain.Milestone, traceID string, now time.Time) error {
	env, err := s.buildEnvelope(eventType, milestone.ProjectKey, traceID, now, contracts.MilestonePayload{
		ProjectKey:    milestone.ProjectKey,
		Sequence:      milestone.Sequence,
		DepositAmount: milestone.DepositAmount,
		Currency:      milestone.Currency,
		OccurredAt:    now.Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	return s.enqueueEnvelope(ctx, env, now)
}

func (s *Service) enqueueEscrowMovement(ctx context.Context, acc domain.EscrowAccount, kind, sender, target string, amount int64, currency, traceID string, now time.Time) error {
	env, err := s.buildEnvelope(movementEventType(kind), acc.ProjectKey, traceID, now, contracts.EscrowMovementPayload{
		ProjectKey: acc.ProjectKey,
		EscrowID:   acc.EscrowID,
		Kind:       kind,
		Sender:     sender,
		Target:     target,
		Amount:     amount,
		Currency:   currency,
		OccurredAt: now.Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	return s.enqueueEnvelope(ctx, env, now)
}

func (s *Service) enqueueDisputeEvent(ctx context.Context, eventType string, dispute domain.Dispute, traceID string, now time.Time) error {
	payload := contracts.DisputePayload{
		ProjectKey: dispute.ProjectKey,
		DisputeID:  dispute.DisputeID,
		Initiator:  dispute.Initiator,
		Respondent: dispute.Respondent,
		OccurredAt: now.Format(time.RFC3339Nano),
	}
	if eventType == domain.EventDisputeSettled {
		payload.RespondentShare = dispute.RespondentShare
		payload.InitiatorShare = dispute.InitiatorShare
	}
	env, err := s.buildEnvelope(eventType, dispute.ProjectKey, traceID, now, payload)
	if err != nil {
		return err
	}
	return s.enqueueEnvelope(ctx, env, now)
}

func movementEventType(kind string) string {
	switch kind {
	case domain.MovementDeposit:
		return domain.EventEscrowDeposited
	case domain.MovementWithdraw:
		return domain.EventEscrowWithdrawn
	case domain.MovementBlock:
		return domain.EventEscrowBlocked
	case domain.MovementUnblock:
		return domain.EventEscrowUnblocked
	default:
		return domain.EventEscrowDistributed
	}
}

// FlushOutbox drains pending outbox records to the class-appropriate
// publisher. Domain publishes that fail land on the DLQ so the stream never
// wedges on one bad record; analytics publishes are best-effort.
func (s *Service) FlushOutbox(ctx context.Context) (int, error) {
	if s.outbox == nil {
		return 0, nil
	}
	pending, err := s.outbox.ListPending(ctx, s.cfg.OutboxFlushBatchSize)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, record := range pending {
		now := s.nowFn()
		switch record.EventClass {
		case domain.CanonicalEventClassDomain:
			if s.domainEvents != nil {
				if err := s.domainEvents.PublishDomain(ctx, record.Envelope); err != nil {
					if s.dlq != nil {
						_ = s.dlq.PublishDLQ(ctx, contracts.DLQRecord{
							OriginalEvent: record.Envelope,
							ErrorSummary:  err.Error(),
							RetryCount:    1,
							FirstSeenAt:   record.CreatedAt,
							LastErrorAt:   now,
							TraceID:       record.Envelope.TraceID,
						})
					}
				}
			}
		case domain.CanonicalEventClassAnalyticsOnly, domain.CanonicalEventClassOps:
			if s.analytics != nil {
				_ = s.analytics.PublishAnalytics(ctx, record.Envelope)
			}
		default:
			// Unknown classes are dropped; marking them sent keeps the
			// queue moving.
		}
		if err := s.outbox.MarkSent(ctx, record.RecordID, now); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

// HandleCanonicalEvent consumes one inbound canonical event. Only
// payment.confirmed mutates state: a confirmed external payment credits the
// project's escrow as a deposit by the payer. Processing is deduplicated by
// event id so redelivery from the broker is harmless.
func (s *Service) HandleCanonicalEvent(ctx context.Context, env *contracts.EventEnvelope) error {
	if err := validateEnvelope(env); err != nil {
		return err
	}
	if !domain.IsCanonicalInputEvent(env.EventType) {
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedEventType, env.EventType)
	}
	now := s.nowFn()
	if s.eventDedup != nil {
		dup, err := s.eventDedup.IsDuplicate(ctx, env.EventID, now)
		if err != nil {
			return err
		}
		if dup {
			return nil
		}
	}

	switch env.EventType {
	case domain.EventPaymentConfirmed:
		var payload contracts.PaymentConfirmedPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidEnvelope, err)
		}
		if strings.TrimSpace(payload.ProjectKey) == "" || strings.TrimSpace(payload.Payer) == "" {
			return domain.ErrInvalidEnvelope
		}
		s.mu.Lock()
		_, err := s.depositLocked(ctx, payload.ProjectKey, payload.Payer, payload.Amount, payload.Currency, env.TraceID)
		s.mu.Unlock()
		if err != nil {
			return err
		}
	}

	if s.eventDedup != nil {
		if err := s.eventDedup.MarkProcessed(ctx, env.EventID, env.EventType, now.Add(s.cfg.EventDedupTTL)); err != nil {
			return err
		}
	}
	return nil
}

func validateEnvelope(env *contracts.EventEnvelope) error {
	if env == nil {
		return domain.ErrInvalidEnvelope
	}
	if strings.TrimSpace(env.EventID) == "" || strings.TrimSpace(env.EventType) == "" {
		return domain.ErrInvalidEnvelope
	}
	if len(env.Data) == 0 {
		return domain.ErrInvalidEnvelope
	}
	return nil
}
