package unit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fairhold/escrow-arbitration-service/internal/application"
	"github.com/fairhold/escrow-arbitration-service/internal/domain"
)

func TestStartProjectProvisionsEscrow(t *testing.T) {
	fx := newService()
	p := startProject(t, fx.svc, projectKey(0x11), 3)
	project, err := fx.svc.GetProject(context.Background(), actor(p.client, "get-1"), p.key)
	if err != nil { t.Fatalf("GetProject: %v", err) }
	if project.EscrowID == "" { t.Fatalf("expected escrow provisioned") }
	if project.Ended() { t.Fatalf("new project must not be ended") }
	acc, err := fx.svc.GetEscrowBalance(context.Background(), actor(p.client, "bal-1"), p.key)
	if err != nil { t.Fatalf("GetEscrowBalance: %v", err) }
	if acc.Owner != p.client { t.Fatalf("escrow owner = %s, want client", acc.Owner) }
	if !acc.Initialized { t.Fatalf("escrow must be initialized at creation") }
}

func TestStartProjectUppercaseKeyIsCanonicalized(t *testing.T) {
	fx := newService()
	key := projectKey(0xab)
	client, _ := newParty(t)
	maker, makerKey := newParty(t)
	arbiter, _ := newParty(t)
	sig, err := domain.SignAgreement(makerKey, key, arbiter)
	if err != nil { t.Fatalf("SignAgreement: %v", err) }
	project, err := fx.svc.StartProject(context.Background(), actor(client, "start-upper"), application.StartProjectInput{
		AgreementID: strings.ToUpper(key), Client: client, Maker: maker, Arbiter: arbiter,
		MakerSignature: sig, MilestonesCount: 1, MilestoneStartWindow: time.Hour, FeedbackWindow: time.Hour,
	})
	if err != nil { t.Fatalf("StartProject: %v", err) }
	if project.ProjectKey != key { t.Fatalf("project key = %s, want lowercase %s", project.ProjectKey, key) }
}

func TestStartProjectRejectsBadSignature(t *testing.T) {
	fx := newService()
	key := projectKey(0x22)
	client, _ := newParty(t)
	maker, _ := newParty(t)
	arbiter, _ := newParty(t)
	otherKey := projectKey(0x23)
	_, wrongSigner := newParty(t)
	sig, err := domain.SignAgreement(wrongSigner, otherKey, arbiter)
	if err != nil { t.Fatalf("SignAgreement: %v", err) }
	_, err = fx.svc.StartProject(context.Background(), actor(client, "start-bad-sig"), application.StartProjectInput{
		AgreementID: key, Client: client, Maker: maker, Arbiter: arbiter,
		MakerSignature: sig, MilestonesCount: 1,
	})
	if !errors.Is(err, domain.ErrInvalidSignature) { t.Fatalf("expected ErrInvalidSignature, got %v", err) }
}

func TestStartProjectRejectsOverlappingParties(t *testing.T) {
	fx := newService()
	client, _ := newParty(t)
	arbiter, _ := newParty(t)
	_, err := fx.svc.StartProject(context.Background(), actor(client, "start-same"), application.StartProjectInput{
		AgreementID: projectKey(0x24), Client: client, Maker: client, Arbiter: arbiter,
		MakerSignature: "deadbeef", MilestonesCount: 1,
	})
	if !errors.Is(err, domain.ErrInvalidInput) { t.Fatalf("expected ErrInvalidInput, got %v", err) }
}

func TestStartProjectRejectsMalformedKey(t *testing.T) {
	fx := newService()
	client, _ := newParty(t)
	maker, _ := newParty(t)
	arbiter, _ := newParty(t)
	_, err := fx.svc.StartProject(context.Background(), actor(client, "start-bad-key"), application.StartProjectInput{
		AgreementID: "not-a-digest", Client: client, Maker: maker, Arbiter: arbiter,
		MakerSignature: "deadbeef", MilestonesCount: 1,
	})
	if !errors.Is(err, domain.ErrInvalidInput) { t.Fatalf("expected ErrInvalidInput, got %v", err) }
}

func TestStartProjectDuplicateKeyConflicts(t *testing.T) {
	fx := newService()
	key := projectKey(0x25)
	p := startProject(t, fx.svc, key, 1)
	sig, err := domain.SignAgreement(p.makerKey, key, p.arbiter)
	if err != nil { t.Fatalf("SignAgreement: %v", err) }
	_, err = fx.svc.StartProject(context.Background(), actor(p.client, "start-dup"), application.StartProjectInput{
		AgreementID: key, Client: p.client, Maker: p.maker, Arbiter: p.arbiter,
		MakerSignature: sig, MilestonesCount: 1, MilestoneStartWindow: time.Hour, FeedbackWindow: time.Hour,
	})
	if !errors.Is(err, domain.ErrConflict) { t.Fatalf("expected ErrConflict, got %v", err) }
}

func TestStartProjectIdempotentReplay(t *testing.T) {
	fx := newService()
	key := projectKey(0x26)
	client, _ := newParty(t)
	maker, makerKey := newParty(t)
	arbiter, _ := newParty(t)
	sig, err := domain.SignAgreement(makerKey, key, arbiter)
	if err != nil { t.Fatalf("SignAgreement: %v", err) }
	input := application.StartProjectInput{
		AgreementID: key, Client: client, Maker: maker, Arbiter: arbiter,
		MakerSignature: sig, MilestonesCount: 2, MilestoneStartWindow: time.Hour, FeedbackWindow: time.Hour,
	}
	first, err := fx.svc.StartProject(context.Background(), actor(client, "start-replay"), input)
	if err != nil { t.Fatalf("StartProject first: %v", err) }
	second, err := fx.svc.StartProject(context.Background(), actor(client, "start-replay"), input)
	if err != nil { t.Fatalf("StartProject replay: %v", err) }
	if first.ProjectKey != second.ProjectKey || first.EscrowID != second.EscrowID { t.Fatalf("replay mismatch: first=%+v second=%+v", first, second) }
}

func TestIdempotencyKeyReuseAcrossRequestsConflicts(t *testing.T) {
	fx := newService()
	p := startProject(t, fx.svc, projectKey(0x27), 1)
	deposit(t, fx.svc, p, "shared-key", 5)
	_, err := fx.svc.Deposit(context.Background(), actor(p.client, "shared-key"), application.DepositInput{ProjectKey: p.key, Amount: 9, Currency: domain.CurrencyNative})
	if !errors.Is(err, domain.ErrIdempotencyConflict) { t.Fatalf("expected ErrIdempotencyConflict, got %v", err) }
}

func TestRequireActorGates(t *testing.T) {
	fx := newService()
	_, err := fx.svc.Deposit(context.Background(), application.Actor{IdempotencyKey: "k"}, application.DepositInput{ProjectKey: projectKey(0x28), Amount: 1, Currency: domain.CurrencyNative})
	if !errors.Is(err, domain.ErrUnauthorized) { t.Fatalf("expected ErrUnauthorized, got %v", err) }
	_, err = fx.svc.Deposit(context.Background(), application.Actor{SubjectID: "someone"}, application.DepositInput{ProjectKey: projectKey(0x28), Amount: 1, Currency: domain.CurrencyNative})
	if !errors.Is(err, domain.ErrIdempotencyRequired) { t.Fatalf("expected ErrIdempotencyRequired, got %v", err) }
}

func TestClientTerminatesIdleProject(t *testing.T) {
	fx := newService()
	p := startProject(t, fx.svc, projectKey(0x31), 2)
	project, err := fx.svc.TerminateProject(context.Background(), actor(p.client, "term-1"), p.key)
	if err != nil { t.Fatalf("TerminateProject: %v", err) }
	if !project.Ended() { t.Fatalf("expected ended project") }
	_, err = fx.svc.TerminateProject(context.Background(), actor(p.client, "term-2"), p.key)
	if !errors.Is(err, domain.ErrProjectEnded) { t.Fatalf("expected ErrProjectEnded, got %v", err) }
}

func TestMakerCannotTerminateInsideStartWindow(t *testing.T) {
	fx := newService()
	p := startProject(t, fx.svc, projectKey(0x32), 2)
	_, err := fx.svc.TerminateProject(context.Background(), actor(p.maker, "term-maker"), p.key)
	if !errors.Is(err, domain.ErrForbidden) { t.Fatalf("expected ErrForbidden, got %v", err) }
}

func TestTerminateBlockedWhileFundsLocked(t *testing.T) {
	fx := newService()
	p := startProject(t, fx.svc, projectKey(0x33), 2)
	deposit(t, fx.svc, p, "term-dep", 5)
	startMilestone(t, fx.svc, p, "term-ms", 2)
	_, err := fx.svc.TerminateProject(context.Background(), actor(p.client, "term-locked"), p.key)
	if !errors.Is(err, domain.ErrForbidden) { t.Fatalf("expected ErrForbidden, got %v", err) }
}

func TestRatingOncePerPartyAfterEnd(t *testing.T) {
	fx := newService()
	p := startProject(t, fx.svc, projectKey(0x34), 1)

	_, err := fx.svc.RateSecondParty(context.Background(), actor(p.client, "rate-early"), application.RateInput{ProjectKey: p.key, Rating: 7})
	if !errors.Is(err, domain.ErrProjectActive) { t.Fatalf("expected ErrProjectActive, got %v", err) }

	deposit(t, fx.svc, p, "rate-dep", 5)
	startMilestone(t, fx.svc, p, "rate-ms", 5)
	if _, err := fx.svc.DeliverMilestone(context.Background(), actor(p.maker, "rate-deliver"), p.key); err != nil { t.Fatalf("DeliverMilestone: %v", err) }
	if _, err := fx.svc.AcceptMilestone(context.Background(), actor(p.client, "rate-accept"), p.key); err != nil { t.Fatalf("AcceptMilestone: %v", err) }

	if _, err := fx.svc.RateSecondParty(context.Background(), actor(p.client, "rate-1"), application.RateInput{ProjectKey: p.key, Rating: 9}); err != nil { t.Fatalf("RateSecondParty client: %v", err) }
	_, err = fx.svc.RateSecondParty(context.Background(), actor(p.client, "rate-again"), application.RateInput{ProjectKey: p.key, Rating: 3})
	if !errors.Is(err, domain.ErrRatingAlreadySet) { t.Fatalf("expected ErrRatingAlreadySet, got %v", err) }
	if _, err := fx.svc.RateSecondParty(context.Background(), actor(p.maker, "rate-2"), application.RateInput{ProjectKey: p.key, Rating: 4}); err != nil { t.Fatalf("RateSecondParty maker: %v", err) }

	agg, err := fx.svc.GetPartyRating(context.Background(), actor(p.client, "rate-get"), p.maker)
	if err != nil { t.Fatalf("GetPartyRating: %v", err) }
	if agg.Sum != 9 || agg.Count != 1 { t.Fatalf("maker aggregate = %+v, want sum 9 count 1", agg) }
	if agg.Average() != 9 { t.Fatalf("maker average = %v, want 9", agg.Average()) }
}

func TestRatingOutOfRangeRejected(t *testing.T) {
	fx := newService()
	p := startProject(t, fx.svc, projectKey(0x35), 1)
	_, err := fx.svc.RateSecondParty(context.Background(), actor(p.client, "rate-zero"), application.RateInput{ProjectKey: p.key, Rating: 0})
	if !errors.Is(err, domain.ErrInvalidInput) { t.Fatalf("expected ErrInvalidInput for rating 0, got %v", err) }
	_, err = fx.svc.RateSecondParty(context.Background(), actor(p.client, "rate-high"), application.RateInput{ProjectKey: p.key, Rating: 11})
	if !errors.Is(err, domain.ErrInvalidInput) { t.Fatalf("expected ErrInvalidInput for rating 11, got %v", err) }
}

func TestListProjectsByParty(t *testing.T) {
	fx := newService()
	p := startProject(t, fx.svc, projectKey(0x36), 1)
	keys, err := fx.svc.ListProjectsByParty(context.Background(), actor(p.maker, "list-1"), p.maker)
	if err != nil { t.Fatalf("ListProjectsByParty: %v", err) }
	if len(keys) != 1 || keys[0] != p.key { t.Fatalf("expected [%s], got %v", p.key, keys) }
}
