package unit

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"io"
	"log/slog"
	"testing"
	"time"

	eventadapter "github.com/fairhold/escrow-arbitration-service/internal/adapters/events"
	"github.com/fairhold/escrow-arbitration-service/internal/adapters/memory"
	"github.com/fairhold/escrow-arbitration-service/internal/application"
	"github.com/fairhold/escrow-arbitration-service/internal/domain"
)

type fixture struct {
	svc       *application.Service
	repos     *memory.Repositories
	domainPub *eventadapter.MemoryDomainPublisher
	analytics *eventadapter.MemoryAnalyticsPublisher
}

func newService() fixture {
	repos := memory.NewRepositories()
	domainPub := eventadapter.NewMemoryDomainPublisher()
	analytics := eventadapter.NewMemoryAnalyticsPublisher()
	svc := application.NewService(application.Dependencies{
		Escrows:      repos.Escrows,
		Movements:    repos.Movements,
		Projects:     repos.Projects,
		Milestones:   repos.Milestones,
		Disputes:     repos.Disputes,
		Ratings:      repos.Ratings,
		Fees:         repos.Fees,
		Idempotency:  repos.Idempotency,
		EventDedup:   repos.EventDedup,
		Outbox:       repos.Outbox,
		DomainEvents: domainPub,
		Analytics:    analytics,
		DLQ:          eventadapter.NewLoggingDLQPublisher(slog.New(slog.NewTextHandler(io.Discard, nil))),
	})
	return fixture{svc: svc, repos: repos, domainPub: domainPub, analytics: analytics}
}

// newParty mints an identity: a lowercase hex ed25519 public key plus the
// private key that signs agreements for it.
func newParty(t *testing.T) (string, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil { t.Fatalf("GenerateKey: %v", err) }
	return hex.EncodeToString(pub), priv
}

func projectKey(fill byte) string {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = fill
	}
	return hex.EncodeToString(raw)
}

func actor(subject, idemKey string) application.Actor {
	return application.Actor{SubjectID: subject, Role: "party", RequestID: "req_" + idemKey, IdempotencyKey: idemKey}
}

type testProject struct {
	key       string
	client    string
	maker     string
	makerKey  ed25519.PrivateKey
	arbiter   string
	clientKey ed25519.PrivateKey
}

// startProject wires three fresh identities into a registered project with a
// funded signature from the maker.
func startProject(t *testing.T, svc *application.Service, key string, milestones int) testProject {
	t.Helper()
	client, clientKey := newParty(t)
	maker, makerKey := newParty(t)
	arbiter, _ := newParty(t)
	sig, err := domain.SignAgreement(makerKey, key, arbiter)
	if err != nil { t.Fatalf("SignAgreement: %v", err) }
	_, err = svc.StartProject(context.Background(), actor(client, "start-"+key), application.StartProjectInput{
		AgreementID:          key,
		Client:               client,
		Maker:                maker,
		Arbiter:              arbiter,
		MakerSignature:       sig,
		MilestonesCount:      milestones,
		MilestoneStartWindow: time.Hour,
		FeedbackWindow:       time.Hour,
	})
	if err != nil { t.Fatalf("StartProject: %v", err) }
	return testProject{key: key, client: client, maker: maker, makerKey: makerKey, arbiter: arbiter, clientKey: clientKey}
}

func deposit(t *testing.T, svc *application.Service, p testProject, idemKey string, amount int64) domain.EscrowAccount {
	t.Helper()
	acc, err := svc.Deposit(context.Background(), actor(p.client, idemKey), application.DepositInput{ProjectKey: p.key, Amount: amount, Currency: domain.CurrencyNative})
	if err != nil { t.Fatalf("Deposit: %v", err) }
	return acc
}

func startMilestone(t *testing.T, svc *application.Service, p testProject, idemKey string, amount int64) domain.Milestone {
	t.Helper()
	m, err := svc.StartMilestone(context.Background(), actor(p.client, idemKey), application.StartMilestoneInput{ProjectKey: p.key, DepositAmount: amount, Currency: domain.CurrencyNative, Duration: time.Hour})
	if err != nil { t.Fatalf("StartMilestone: %v", err) }
	return m
}

// rejectedMilestone drives one milestone to the rejected-with-blocked-funds
// state, the canonical entry point for arbitration.
func rejectedMilestone(t *testing.T, svc *application.Service, p testProject, prefix string, amount int64) {
	t.Helper()
	deposit(t, svc, p, prefix+"-dep", amount)
	startMilestone(t, svc, p, prefix+"-start", amount)
	if _, err := svc.DeliverMilestone(context.Background(), actor(p.maker, prefix+"-deliver"), p.key); err != nil { t.Fatalf("DeliverMilestone: %v", err) }
	if _, err := svc.RejectMilestone(context.Background(), actor(p.client, prefix+"-reject"), p.key); err != nil { t.Fatalf("RejectMilestone: %v", err) }
}
