package application

import (
	"sync"
	"time"

	"github.com/fairhold/escrow-arbitration-service/internal/ports"
)

type Config struct {
	ServiceName          string
	OperatorIdentity     string
	DisputeReplyWindow   time.Duration
	IdempotencyTTL       time.Duration
	EventDedupTTL        time.Duration
	ConsumerPollInterval time.Duration
	OutboxFlushBatchSize int
}

type Actor struct {
	SubjectID      string
	Role           string
	RequestID      string
	IdempotencyKey string
}

type StartProjectInput struct {
	AgreementID          string
	Client               string
	Maker                string
	Arbiter              string
	MakerSignature       string
	MilestonesCount      int
	MilestoneStartWindow time.Duration
	FeedbackWindow       time.Duration
	Encrypted            bool
}

type RateInput struct {
	ProjectKey string
	Rating     int
}

type DepositInput struct {
	ProjectKey string
	Amount     int64
	Currency   string
}

type WithdrawInput struct {
	ProjectKey string
	Amount     int64
	Currency   string
}

type BlockInput struct {
	ProjectKey string
	Amount     int64
	Currency   string
}

type DistributeInput struct {
	ProjectKey string
	Target     string
	Amount     int64
	Currency   string
}

type StartMilestoneInput struct {
	ProjectKey    string
	DepositAmount int64
	Currency      string
	Duration      time.Duration
}

type AdjustMilestoneInput struct {
	ProjectKey string
	Duration   time.Duration
}

type StartDisputeInput struct {
	ProjectKey              string
	Respondent              string
	RespondentShareProposal *int
}

type SettleDisputeInput struct {
	ProjectKey      string
	RespondentShare int
	InitiatorShare  int
}

type UpsertFeeScheduleInput struct {
	FixedFee        int64
	ShareFeePercent int
}

// Service implements the four core modules over injected ports. Every
// state-changing operation serializes on mu: one global commit per step,
// matching the all-or-nothing execution model of the protocol, so a second
// concurrent submission that would violate an invariant fails cleanly.
type Service struct {
	cfg Config
	mu  sync.Mutex

	escrows    ports.EscrowAccountRepository
	movements  ports.MovementRepository
	projects   ports.ProjectRepository
	milestones ports.MilestoneRepository
	disputes   ports.DisputeRepository
	ratings    ports.RatingRepository
	fees       ports.FeeScheduleRepository

	idempotency ports.IdempotencyRepository
	eventDedup  ports.EventDedupRepository
	outbox      ports.OutboxRepository
	feeCache    ports.FeeScheduleCache
	registry    ports.ComponentRegistry

	domainEvents ports.DomainPublisher
	analytics    ports.AnalyticsPublisher
	dlq          ports.DLQPublisher

	nowFn func() time.Time
}

type Dependencies struct {
	Config Config

	Escrows    ports.EscrowAccountRepository
	Movements  ports.MovementRepository
	Projects   ports.ProjectRepository
	Milestones ports.MilestoneRepository
	Disputes   ports.DisputeRepository
	Ratings    ports.RatingRepository
	Fees       ports.FeeScheduleRepository

	Idempotency ports.IdempotencyRepository
	EventDedup  ports.EventDedupRepository
	Outbox      ports.OutboxRepository
	FeeCache    ports.FeeScheduleCache
	Registry    ports.ComponentRegistry

	DomainEvents ports.DomainPublisher
	Analytics    ports.AnalyticsPublisher
	DLQ          ports.DLQPublisher
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.ServiceName == "" {
		cfg.ServiceName = "Escrow-Arbitration-Service"
	}
	if cfg.OperatorIdentity == "" {
		cfg.OperatorIdentity = "svc_milestone_engine"
	}
	if cfg.DisputeReplyWindow <= 0 {
		cfg.DisputeReplyWindow = 72 * time.Hour
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 7 * 24 * time.Hour
	}
	if cfg.EventDedupTTL <= 0 {
		cfg.EventDedupTTL = 7 * 24 * time.Hour
	}
	if cfg.ConsumerPollInterval <= 0 {
		cfg.ConsumerPollInterval = 2 * time.Second
	}
	if cfg.OutboxFlushBatchSize <= 0 {
		cfg.OutboxFlushBatchSize = 100
	}
	return &Service{
		cfg:          cfg,
		escrows:      deps.Escrows,
		movements:    deps.Movements,
		projects:     deps.Projects,
		milestones:   deps.Milestones,
		disputes:     deps.Disputes,
		ratings:      deps.Ratings,
		fees:         deps.Fees,
		idempotency:  deps.Idempotency,
		eventDedup:   deps.EventDedup,
		outbox:       deps.Outbox,
		feeCache:     deps.FeeCache,
		registry:     deps.Registry,
		domainEvents: deps.DomainEvents,
		analytics:    deps.Analytics,
		dlq:          deps.DLQ,
		nowFn:        func() time.Time { return time.Now().UTC() },
	}
}
