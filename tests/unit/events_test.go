package unit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	eventadapter "github.com/fairhold/escrow-arbitration-service/internal/adapters/events"
	"github.com/fairhold/escrow-arbitration-service/internal/application"
	"github.com/fairhold/escrow-arbitration-service/internal/contracts"
	"github.com/fairhold/escrow-arbitration-service/internal/domain"
)

func paymentEnvelope(eventID, key, payer string, amount int64) *contracts.EventEnvelope {
	data, _ := json.Marshal(contracts.PaymentConfirmedPayload{ProjectKey: key, Payer: payer, Amount: amount, Currency: domain.CurrencyNative})
	return &contracts.EventEnvelope{
		EventID:       eventID,
		EventType:     domain.EventPaymentConfirmed,
		EventClass:    domain.CanonicalEventClassDomain,
		OccurredAt:    time.Now().UTC(),
		PartitionKey:  key,
		SourceService: "svc_payments",
		TraceID:       "trace-" + eventID,
		SchemaVersion: "1.0",
		Data:          data,
	}
}

func TestOperationsEnqueueOutboxEvents(t *testing.T) {
	fx := newService()
	p := startProject(t, fx.svc, projectKey(0x71), 1)
	deposit(t, fx.svc, p, "ob-dep", 5)
	pending, err := fx.repos.Outbox.ListPending(context.Background(), 100)
	if err != nil { t.Fatalf("ListPending: %v", err) }
	// project.created plus escrow.deposited.
	if len(pending) != 2 { t.Fatalf("expected 2 pending records, got %d", len(pending)) }
	if pending[0].Envelope.EventType != domain.EventProjectCreated { t.Fatalf("first event = %s, want project.created", pending[0].Envelope.EventType) }
	if pending[0].Envelope.PartitionKey != p.key { t.Fatalf("partition key = %s, want project key", pending[0].Envelope.PartitionKey) }
	if pending[0].Envelope.SchemaVersion != "1.0" { t.Fatalf("schema version = %s", pending[0].Envelope.SchemaVersion) }
}

func TestFlushOutboxRoutesByClass(t *testing.T) {
	fx := newService()
	p := startProject(t, fx.svc, projectKey(0x72), 1)
	deposit(t, fx.svc, p, "fl-dep", 5)

	sent, err := fx.svc.FlushOutbox(context.Background())
	if err != nil { t.Fatalf("FlushOutbox: %v", err) }
	if sent != 2 { t.Fatalf("flushed %d records, want 2", sent) }

	domainEvents := fx.domainPub.Events()
	analyticsEvents := fx.analytics.Events()
	if len(domainEvents)+len(analyticsEvents) != 2 { t.Fatalf("published %d domain + %d analytics, want 2 total", len(domainEvents), len(analyticsEvents)) }
	for _, env := range domainEvents {
		if domain.CanonicalEventClass(env.EventType) != domain.CanonicalEventClassDomain { t.Fatalf("non-domain event %s on domain stream", env.EventType) }
	}

	again, err := fx.svc.FlushOutbox(context.Background())
	if err != nil { t.Fatalf("FlushOutbox second: %v", err) }
	if again != 0 { t.Fatalf("second flush sent %d, want 0", again) }
}

func TestHandleCanonicalEventPaymentConfirmed(t *testing.T) {
	fx := newService()
	p := startProject(t, fx.svc, projectKey(0x73), 1)
	payer, _ := newParty(t)

	env := paymentEnvelope("evt-pay-1", p.key, payer, 7)
	if err := fx.svc.HandleCanonicalEvent(context.Background(), env); err != nil { t.Fatalf("HandleCanonicalEvent: %v", err) }
	acc, err := fx.svc.GetEscrowBalance(context.Background(), actor(p.client, "pay-bal"), p.key)
	if err != nil { t.Fatalf("GetEscrowBalance: %v", err) }
	if acc.AvailableBalance(domain.CurrencyNative) != 7 { t.Fatalf("available = %d, want 7", acc.AvailableBalance(domain.CurrencyNative)) }
}

func TestHandleCanonicalEventDeduplicatesByEventID(t *testing.T) {
	fx := newService()
	p := startProject(t, fx.svc, projectKey(0x74), 1)
	payer, _ := newParty(t)

	env := paymentEnvelope("evt-pay-dup", p.key, payer, 7)
	if err := fx.svc.HandleCanonicalEvent(context.Background(), env); err != nil { t.Fatalf("HandleCanonicalEvent first: %v", err) }
	if err := fx.svc.HandleCanonicalEvent(context.Background(), env); err != nil { t.Fatalf("HandleCanonicalEvent redelivery: %v", err) }
	acc, err := fx.svc.GetEscrowBalance(context.Background(), actor(p.client, "dup-bal"), p.key)
	if err != nil { t.Fatalf("GetEscrowBalance: %v", err) }
	if acc.AvailableBalance(domain.CurrencyNative) != 7 { t.Fatalf("available = %d after redelivery, want 7", acc.AvailableBalance(domain.CurrencyNative)) }
}

func TestHandleCanonicalEventRejectsMalformed(t *testing.T) {
	fx := newService()
	err := fx.svc.HandleCanonicalEvent(context.Background(), nil)
	if !errors.Is(err, domain.ErrInvalidEnvelope) { t.Fatalf("expected ErrInvalidEnvelope for nil, got %v", err) }

	env := paymentEnvelope("evt-bad-type", projectKey(0x75), "payer", 1)
	env.EventType = "escrow.deposited"
	err = fx.svc.HandleCanonicalEvent(context.Background(), env)
	if !errors.Is(err, domain.ErrUnsupportedEventType) { t.Fatalf("expected ErrUnsupportedEventType, got %v", err) }

	env = paymentEnvelope("evt-no-key", projectKey(0x75), "", 1)
	err = fx.svc.HandleCanonicalEvent(context.Background(), env)
	if !errors.Is(err, domain.ErrInvalidEnvelope) { t.Fatalf("expected ErrInvalidEnvelope for empty payer, got %v", err) }
}

func TestWorkerDrainsConsumerAndOutbox(t *testing.T) {
	fx := newService()
	p := startProject(t, fx.svc, projectKey(0x76), 1)
	payer, _ := newParty(t)

	consumer := eventadapter.NewMemoryConsumer()
	consumer.Push(*paymentEnvelope("evt-worker-1", p.key, payer, 9))
	worker := eventadapter.NewWorker(slog.New(slog.NewTextHandler(io.Discard, nil)), consumer, fx.svc, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := worker.Run(ctx); !errors.Is(err, context.DeadlineExceeded) { t.Fatalf("worker Run: %v", err) }

	acc, err := fx.svc.GetEscrowBalance(context.Background(), actor(p.client, "wk-bal"), p.key)
	if err != nil { t.Fatalf("GetEscrowBalance: %v", err) }
	if acc.AvailableBalance(domain.CurrencyNative) != 9 { t.Fatalf("available = %d, want 9", acc.AvailableBalance(domain.CurrencyNative)) }
	pending, err := fx.repos.Outbox.ListPending(context.Background(), 10)
	if err != nil { t.Fatalf("ListPending: %v", err) }
	if len(pending) != 0 { t.Fatalf("expected drained outbox, got %d pending", len(pending)) }
	if len(fx.domainPub.Events()) == 0 { t.Fatalf("expected domain events published") }
}

func TestDisputeSettledEventCarriesShares(t *testing.T) {
	fx := newService()
	p := startProject(t, fx.svc, projectKey(0x77), 1)
	rejectedMilestone(t, fx.svc, p, "ev", 10)
	if _, err := fx.svc.StartDispute(context.Background(), actor(p.client, "ev-dispute"), application.StartDisputeInput{ProjectKey: p.key, Respondent: p.maker, RespondentShareProposal: intPtr(100)}); err != nil { t.Fatalf("StartDispute: %v", err) }

	pending, err := fx.repos.Outbox.ListPending(context.Background(), 100)
	if err != nil { t.Fatalf("ListPending: %v", err) }
	var settled *contracts.EventEnvelope
	for i := range pending {
		if pending[i].Envelope.EventType == domain.EventDisputeSettled {
			settled = &pending[i].Envelope
		}
	}
	if settled == nil { t.Fatalf("expected dispute.settled in outbox") }
	var payload contracts.DisputePayload
	if err := json.Unmarshal(settled.Data, &payload); err != nil { t.Fatalf("unmarshal payload: %v", err) }
	if payload.RespondentShare != 100 || payload.InitiatorShare != 0 { t.Fatalf("settled shares = %d/%d, want 100/0", payload.RespondentShare, payload.InitiatorShare) }
}
