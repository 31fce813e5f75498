package unit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	eventadapter "github.com/fairhold/escrow-arbitration-service/internal/adapters/events"
	"github.com/fairhold/escrow-arbitration-service/internal/adapters/memory"
	"github.com/fairhold/escrow-arbitration-service/internal/application"
	"github.com/fairhold/escrow-arbitration-service/internal/domain"
	"github.com/fairhold/escrow-arbitration-service/internal/ports"
)

func intPtr(v int) *int { return &v }

func TestStartDisputeRequiresDisputableMilestone(t *testing.T) {
	fx := newService()
	p := startProject(t, fx.svc, projectKey(0x61), 1)
	deposit(t, fx.svc, p, "nd-dep", 5)
	startMilestone(t, fx.svc, p, "nd-start", 2)
	_, err := fx.svc.StartDispute(context.Background(), actor(p.client, "nd-dispute"), application.StartDisputeInput{ProjectKey: p.key, Respondent: p.maker})
	if !errors.Is(err, domain.ErrNotDisputable) { t.Fatalf("expected ErrNotDisputable, got %v", err) }
}

func TestStartDisputeRequiresBothPartiesOnProject(t *testing.T) {
	fx := newService()
	p := startProject(t, fx.svc, projectKey(0x62), 1)
	rejectedMilestone(t, fx.svc, p, "el", 4)
	outsider, _ := newParty(t)
	_, err := fx.svc.StartDispute(context.Background(), actor(p.client, "el-outsider"), application.StartDisputeInput{ProjectKey: p.key, Respondent: outsider})
	if !errors.Is(err, domain.ErrForbidden) { t.Fatalf("expected ErrForbidden for outsider respondent, got %v", err) }
	_, err = fx.svc.StartDispute(context.Background(), actor(p.arbiter, "el-arbiter"), application.StartDisputeInput{ProjectKey: p.key, Respondent: p.maker})
	if !errors.Is(err, domain.ErrForbidden) { t.Fatalf("expected ErrForbidden for arbiter initiator, got %v", err) }
}

// A proposal of exactly 100 concedes everything: the dispute settles inside
// the starting call and the project terminates with it.
func TestStartDisputeFullConcessionSettlesImmediately(t *testing.T) {
	fx := newService()
	p := startProject(t, fx.svc, projectKey(0x63), 1)
	rejectedMilestone(t, fx.svc, p, "fc", 10)

	dispute, err := fx.svc.StartDispute(context.Background(), actor(p.client, "fc-dispute"), application.StartDisputeInput{ProjectKey: p.key, Respondent: p.maker, RespondentShareProposal: intPtr(100)})
	if err != nil { t.Fatalf("StartDispute: %v", err) }
	if !dispute.Settled() { t.Fatalf("expected settled dispute, got %+v", dispute) }
	if dispute.RespondentShare != 100 || dispute.InitiatorShare != 0 { t.Fatalf("shares = %d/%d, want 100/0", dispute.RespondentShare, dispute.InitiatorShare) }

	acc, err := fx.svc.GetEscrowBalance(context.Background(), actor(p.client, "fc-bal"), p.key)
	if err != nil { t.Fatalf("GetEscrowBalance: %v", err) }
	if acc.AllowanceOf(p.maker, domain.CurrencyNative) != 10 { t.Fatalf("maker allowance = %d, want 10", acc.AllowanceOf(p.maker, domain.CurrencyNative)) }
	if acc.BlockedBalance(domain.CurrencyNative) != 0 { t.Fatalf("blocked = %d, want 0", acc.BlockedBalance(domain.CurrencyNative)) }

	project, err := fx.svc.GetProject(context.Background(), actor(p.client, "fc-get"), p.key)
	if err != nil { t.Fatalf("GetProject: %v", err) }
	if !project.Ended() { t.Fatalf("settlement must terminate the project") }
}

func TestAcceptProposalSettlesAtOffer(t *testing.T) {
	fx := newService()
	p := startProject(t, fx.svc, projectKey(0x64), 1)
	rejectedMilestone(t, fx.svc, p, "ap", 8)

	if _, err := fx.svc.StartDispute(context.Background(), actor(p.client, "ap-dispute"), application.StartDisputeInput{ProjectKey: p.key, Respondent: p.maker, RespondentShareProposal: intPtr(25)}); err != nil { t.Fatalf("StartDispute: %v", err) }
	dispute, err := fx.svc.AcceptProposal(context.Background(), actor(p.maker, "ap-accept"), p.key)
	if err != nil { t.Fatalf("AcceptProposal: %v", err) }
	if !dispute.Settled() || dispute.RespondentShare != 25 || dispute.InitiatorShare != 75 { t.Fatalf("settlement = %+v, want 25/75", dispute) }

	acc, err := fx.svc.GetEscrowBalance(context.Background(), actor(p.client, "ap-bal"), p.key)
	if err != nil { t.Fatalf("GetEscrowBalance: %v", err) }
	if acc.AllowanceOf(p.maker, domain.CurrencyNative) != 2 { t.Fatalf("maker allowance = %d, want 2", acc.AllowanceOf(p.maker, domain.CurrencyNative)) }
	if acc.AvailableBalance(domain.CurrencyNative) != 6 { t.Fatalf("client available = %d, want 6", acc.AvailableBalance(domain.CurrencyNative)) }
}

func TestAcceptProposalOnlyRespondent(t *testing.T) {
	fx := newService()
	p := startProject(t, fx.svc, projectKey(0x65), 1)
	rejectedMilestone(t, fx.svc, p, "or", 5)
	if _, err := fx.svc.StartDispute(context.Background(), actor(p.client, "or-dispute"), application.StartDisputeInput{ProjectKey: p.key, Respondent: p.maker, RespondentShareProposal: intPtr(50)}); err != nil { t.Fatalf("StartDispute: %v", err) }
	_, err := fx.svc.AcceptProposal(context.Background(), actor(p.client, "or-accept"), p.key)
	if !errors.Is(err, domain.ErrForbidden) { t.Fatalf("expected ErrForbidden, got %v", err) }
}

func TestArbiterBlockedWhileProposalOutstanding(t *testing.T) {
	fx := newService()
	p := startProject(t, fx.svc, projectKey(0x66), 1)
	rejectedMilestone(t, fx.svc, p, "po", 10)
	if _, err := fx.svc.StartDispute(context.Background(), actor(p.client, "po-dispute"), application.StartDisputeInput{ProjectKey: p.key, Respondent: p.maker, RespondentShareProposal: intPtr(67)}); err != nil { t.Fatalf("StartDispute: %v", err) }
	_, err := fx.svc.SettleDispute(context.Background(), actor(p.arbiter, "po-settle"), application.SettleDisputeInput{ProjectKey: p.key, RespondentShare: 50, InitiatorShare: 50})
	if !errors.Is(err, domain.ErrProposalOutstanding) { t.Fatalf("expected ErrProposalOutstanding, got %v", err) }
}

func TestRejectProposalThenArbiterSettles(t *testing.T) {
	fx := newService()
	p := startProject(t, fx.svc, projectKey(0x67), 1)
	rejectedMilestone(t, fx.svc, p, "rs", 10)
	if _, err := fx.svc.StartDispute(context.Background(), actor(p.client, "rs-dispute"), application.StartDisputeInput{ProjectKey: p.key, Respondent: p.maker, RespondentShareProposal: intPtr(67)}); err != nil { t.Fatalf("StartDispute: %v", err) }

	dispute, err := fx.svc.RejectProposal(context.Background(), actor(p.maker, "rs-reject-proposal"), p.key)
	if err != nil { t.Fatalf("RejectProposal: %v", err) }
	if dispute.HasProposal() { t.Fatalf("proposal must be cleared after rejection") }

	dispute, err = fx.svc.SettleDispute(context.Background(), actor(p.arbiter, "rs-settle"), application.SettleDisputeInput{ProjectKey: p.key, RespondentShare: 40, InitiatorShare: 60})
	if err != nil { t.Fatalf("SettleDispute: %v", err) }
	if !dispute.Settled() { t.Fatalf("expected settled dispute") }

	acc, err := fx.svc.GetEscrowBalance(context.Background(), actor(p.client, "rs-bal"), p.key)
	if err != nil { t.Fatalf("GetEscrowBalance: %v", err) }
	if acc.AllowanceOf(p.maker, domain.CurrencyNative) != 4 { t.Fatalf("maker allowance = %d, want 4", acc.AllowanceOf(p.maker, domain.CurrencyNative)) }
	if acc.AvailableBalance(domain.CurrencyNative) != 6 { t.Fatalf("client available = %d, want 6", acc.AvailableBalance(domain.CurrencyNative)) }
	if acc.BlockedBalance(domain.CurrencyNative) != 0 { t.Fatalf("blocked = %d, want 0", acc.BlockedBalance(domain.CurrencyNative)) }
}

func TestSettleDisputeOnlyArbiter(t *testing.T) {
	fx := newService()
	p := startProject(t, fx.svc, projectKey(0x68), 1)
	rejectedMilestone(t, fx.svc, p, "oa", 5)
	if _, err := fx.svc.StartDispute(context.Background(), actor(p.client, "oa-dispute"), application.StartDisputeInput{ProjectKey: p.key, Respondent: p.maker}); err != nil { t.Fatalf("StartDispute: %v", err) }
	_, err := fx.svc.SettleDispute(context.Background(), actor(p.maker, "oa-settle"), application.SettleDisputeInput{ProjectKey: p.key, RespondentShare: 50, InitiatorShare: 50})
	if !errors.Is(err, domain.ErrForbidden) { t.Fatalf("expected ErrForbidden, got %v", err) }
}

func TestSettleDisputeSplitMustSumToHundred(t *testing.T) {
	fx := newService()
	p := startProject(t, fx.svc, projectKey(0x69), 1)
	rejectedMilestone(t, fx.svc, p, "sp", 5)
	if _, err := fx.svc.StartDispute(context.Background(), actor(p.client, "sp-dispute"), application.StartDisputeInput{ProjectKey: p.key, Respondent: p.maker}); err != nil { t.Fatalf("StartDispute: %v", err) }
	_, err := fx.svc.SettleDispute(context.Background(), actor(p.arbiter, "sp-settle"), application.SettleDisputeInput{ProjectKey: p.key, RespondentShare: 40, InitiatorShare: 50})
	if !errors.Is(err, domain.ErrInvalidSplit) { t.Fatalf("expected ErrInvalidSplit, got %v", err) }
}

// Out-of-range proposals degrade to no-proposal rather than failing the
// dispute start, so the arbiter can settle at once.
func TestOutOfRangeProposalNormalizesToNone(t *testing.T) {
	fx := newService()
	p := startProject(t, fx.svc, projectKey(0x6a), 1)
	rejectedMilestone(t, fx.svc, p, "nr", 5)
	dispute, err := fx.svc.StartDispute(context.Background(), actor(p.client, "nr-dispute"), application.StartDisputeInput{ProjectKey: p.key, Respondent: p.maker, RespondentShareProposal: intPtr(250)})
	if err != nil { t.Fatalf("StartDispute: %v", err) }
	if dispute.HasProposal() { t.Fatalf("expected no proposal, got %d", dispute.RespondentShareProposal) }
	if _, err := fx.svc.SettleDispute(context.Background(), actor(p.arbiter, "nr-settle"), application.SettleDisputeInput{ProjectKey: p.key, RespondentShare: 100, InitiatorShare: 0}); err != nil { t.Fatalf("SettleDispute: %v", err) }
}

func TestSecondDisputeWhileOpenRejected(t *testing.T) {
	fx := newService()
	p := startProject(t, fx.svc, projectKey(0x6b), 1)
	rejectedMilestone(t, fx.svc, p, "tw", 5)
	if _, err := fx.svc.StartDispute(context.Background(), actor(p.client, "tw-dispute-1"), application.StartDisputeInput{ProjectKey: p.key, Respondent: p.maker}); err != nil { t.Fatalf("StartDispute: %v", err) }
	_, err := fx.svc.StartDispute(context.Background(), actor(p.maker, "tw-dispute-2"), application.StartDisputeInput{ProjectKey: p.key, Respondent: p.client})
	if !errors.Is(err, domain.ErrDisputeOpen) { t.Fatalf("expected ErrDisputeOpen, got %v", err) }
}

// Arbiter fees frozen at project creation come off the blocked deposit
// before the adjudicated split applies; the integer-division remainder goes
// to the initiator.
func TestSettlementAppliesFrozenArbiterFees(t *testing.T) {
	fx := newService()
	arbiter, _ := newParty(t)
	if _, err := fx.svc.UpsertFeeSchedule(context.Background(), actor(arbiter, "fee-upsert"), application.UpsertFeeScheduleInput{FixedFee: 1, ShareFeePercent: 10}); err != nil { t.Fatalf("UpsertFeeSchedule: %v", err) }

	key := projectKey(0x6c)
	client, _ := newParty(t)
	maker, makerKey := newParty(t)
	sig, err := domain.SignAgreement(makerKey, key, arbiter)
	if err != nil { t.Fatalf("SignAgreement: %v", err) }
	project, err := fx.svc.StartProject(context.Background(), actor(client, "fee-create"), application.StartProjectInput{
		AgreementID: key, Client: client, Maker: maker, Arbiter: arbiter,
		MakerSignature: sig, MilestonesCount: 1,
	})
	if err != nil { t.Fatalf("StartProject: %v", err) }
	if project.ArbiterFixedFee != 1 || project.ArbiterShareFee != 10 { t.Fatalf("frozen fees = %d/%d, want 1/10", project.ArbiterFixedFee, project.ArbiterShareFee) }

	p := testProject{key: key, client: client, maker: maker, makerKey: makerKey, arbiter: arbiter}
	rejectedMilestone(t, fx.svc, p, "fee", 10)
	if _, err := fx.svc.StartDispute(context.Background(), actor(client, "fee-dispute"), application.StartDisputeInput{ProjectKey: key, Respondent: maker}); err != nil { t.Fatalf("StartDispute: %v", err) }
	if _, err := fx.svc.SettleDispute(context.Background(), actor(arbiter, "fee-settle"), application.SettleDisputeInput{ProjectKey: key, RespondentShare: 50, InitiatorShare: 50}); err != nil { t.Fatalf("SettleDispute: %v", err) }

	// Blocked 10: arbiter cut 1 + 10% of 10 = 2, remainder 8 splits 4/4.
	acc, err := fx.svc.GetEscrowBalance(context.Background(), actor(client, "fee-bal"), key)
	if err != nil { t.Fatalf("GetEscrowBalance: %v", err) }
	if acc.AllowanceOf(arbiter, domain.CurrencyNative) != 2 { t.Fatalf("arbiter allowance = %d, want 2", acc.AllowanceOf(arbiter, domain.CurrencyNative)) }
	if acc.AllowanceOf(maker, domain.CurrencyNative) != 4 { t.Fatalf("maker allowance = %d, want 4", acc.AllowanceOf(maker, domain.CurrencyNative)) }
	if acc.AvailableBalance(domain.CurrencyNative) != 4 { t.Fatalf("client available = %d, want 4", acc.AvailableBalance(domain.CurrencyNative)) }
}

func TestGetDisputeReturnsHistoryAfterSettlement(t *testing.T) {
	fx := newService()
	p := startProject(t, fx.svc, projectKey(0x6d), 1)
	rejectedMilestone(t, fx.svc, p, "hist", 5)
	started, err := fx.svc.StartDispute(context.Background(), actor(p.client, "hist-dispute"), application.StartDisputeInput{ProjectKey: p.key, Respondent: p.maker, RespondentShareProposal: intPtr(100)})
	if err != nil { t.Fatalf("StartDispute: %v", err) }
	got, err := fx.svc.GetDispute(context.Background(), actor(p.client, "hist-get"), p.key)
	if err != nil { t.Fatalf("GetDispute: %v", err) }
	if got.DisputeID != started.DisputeID || !got.Settled() { t.Fatalf("GetDispute = %+v, want settled %s", got, started.DisputeID) }
}

func TestGetDisputeNoneFound(t *testing.T) {
	fx := newService()
	p := startProject(t, fx.svc, projectKey(0x6e), 1)
	_, err := fx.svc.GetDispute(context.Background(), actor(p.client, "none-get"), p.key)
	if !errors.Is(err, domain.ErrNotFound) { t.Fatalf("expected ErrNotFound, got %v", err) }
}

func TestUpsertFeeScheduleValidation(t *testing.T) {
	fx := newService()
	arbiter, _ := newParty(t)
	_, err := fx.svc.UpsertFeeSchedule(context.Background(), actor(arbiter, "fee-bad"), application.UpsertFeeScheduleInput{FixedFee: -1, ShareFeePercent: 10})
	if !errors.Is(err, domain.ErrInvalidInput) { t.Fatalf("expected ErrInvalidInput, got %v", err) }
	fees, err := fx.svc.UpsertFeeSchedule(context.Background(), actor(arbiter, "fee-good"), application.UpsertFeeScheduleInput{FixedFee: 3, ShareFeePercent: 5})
	if err != nil { t.Fatalf("UpsertFeeSchedule: %v", err) }
	got, err := fx.svc.GetFees(context.Background(), actor(arbiter, "fee-get"), arbiter)
	if err != nil { t.Fatalf("GetFees: %v", err) }
	if got.FixedFee != fees.FixedFee || got.ShareFeePercent != fees.ShareFeePercent { t.Fatalf("fees = %+v, want %+v", got, fees) }
}

// brokenDisputeWrites passes reads through and fails every write once armed,
// standing in for a repository outage mid-settlement.
type brokenDisputeWrites struct {
	ports.DisputeRepository
	armed bool
}

func (r *brokenDisputeWrites) Update(ctx context.Context, row domain.Dispute) error {
	if r.armed {
		return domain.ErrConflict
	}
	return r.DisputeRepository.Update(ctx, row)
}

func countOutboxEvents(t *testing.T, outbox ports.OutboxRepository, eventType string) int {
	t.Helper()
	pending, err := outbox.ListPending(context.Background(), 100)
	if err != nil { t.Fatalf("ListPending: %v", err) }
	n := 0
	for _, rec := range pending {
		if rec.Envelope.EventType == eventType {
			n++
		}
	}
	return n
}

func TestFailedSettlementEnqueuesNoDisputeEvents(t *testing.T) {
	repos := memory.NewRepositories()
	disputes := &brokenDisputeWrites{DisputeRepository: repos.Disputes}
	svc := application.NewService(application.Dependencies{
		Escrows:      repos.Escrows,
		Movements:    repos.Movements,
		Projects:     repos.Projects,
		Milestones:   repos.Milestones,
		Disputes:     disputes,
		Ratings:      repos.Ratings,
		Fees:         repos.Fees,
		Idempotency:  repos.Idempotency,
		EventDedup:   repos.EventDedup,
		Outbox:       repos.Outbox,
		DomainEvents: eventadapter.NewMemoryDomainPublisher(),
		Analytics:    eventadapter.NewMemoryAnalyticsPublisher(),
		DLQ:          eventadapter.NewLoggingDLQPublisher(slog.New(slog.NewTextHandler(io.Discard, nil))),
	})

	p := startProject(t, svc, projectKey(0x71), 1)
	rejectedMilestone(t, svc, p, "brk", 10)
	disputes.armed = true
	_, err := svc.StartDispute(context.Background(), actor(p.maker, "brk-dispute"), application.StartDisputeInput{ProjectKey: p.key, Respondent: p.client, RespondentShareProposal: intPtr(100)})
	if err == nil { t.Fatal("expected the conceded settlement to fail") }
	if n := countOutboxEvents(t, repos.Outbox, domain.EventDisputeStarted); n != 0 { t.Fatalf("dispute.started events after failed start = %d, want 0", n) }
	if n := countOutboxEvents(t, repos.Outbox, domain.EventDisputeSettled); n != 0 { t.Fatalf("dispute.settled events after failed start = %d, want 0", n) }
	disputes.armed = false

	p2 := startProject(t, svc, projectKey(0x72), 1)
	rejectedMilestone(t, svc, p2, "brk2", 10)
	_, err = svc.StartDispute(context.Background(), actor(p2.maker, "brk2-dispute"), application.StartDisputeInput{ProjectKey: p2.key, Respondent: p2.client, RespondentShareProposal: intPtr(40)})
	if err != nil { t.Fatalf("StartDispute: %v", err) }
	disputes.armed = true
	_, err = svc.AcceptProposal(context.Background(), actor(p2.client, "brk2-accept"), p2.key)
	if err == nil { t.Fatal("expected the accepted settlement to fail") }
	if n := countOutboxEvents(t, repos.Outbox, domain.EventDisputeProposalAccepted); n != 0 { t.Fatalf("dispute.proposal_accepted events after failed accept = %d, want 0", n) }
	if n := countOutboxEvents(t, repos.Outbox, domain.EventDisputeSettled); n != 0 { t.Fatalf("dispute.settled events after failed accept = %d, want 0", n) }
}
