package ports

import (
	"context"
	"time"

	"github.com/fairhold/escrow-arbitration-service/internal/domain"
)

type EscrowAccountRepository interface {
	Create(ctx context.Context, row domain.EscrowAccount) error
	GetByID(ctx context.Context, escrowID string) (domain.EscrowAccount, error)
	GetByProjectKey(ctx context.Context, projectKey string) (domain.EscrowAccount, error)
	Update(ctx context.Context, row domain.EscrowAccount) error
}

type MovementRepository interface {
	Append(ctx context.Context, row domain.Movement) error
	ListByProjectKey(ctx context.Context, projectKey string) ([]domain.Movement, error)
}

type ProjectRepository interface {
	Create(ctx context.Context, row domain.Project) error
	GetByKey(ctx context.Context, projectKey string) (domain.Project, error)
	Update(ctx context.Context, row domain.Project) error
	ListKeysByParty(ctx context.Context, partyID string) ([]string, error)
}

type MilestoneRepository interface {
	Create(ctx context.Context, row domain.Milestone) error
	Update(ctx context.Context, row domain.Milestone) error
	Get(ctx context.Context, projectKey string, sequence int) (domain.Milestone, error)
	GetLatest(ctx context.Context, projectKey string) (domain.Milestone, error)
	ListByProjectKey(ctx context.Context, projectKey string) ([]domain.Milestone, error)
}

type DisputeRepository interface {
	Create(ctx context.Context, row domain.Dispute) error
	Update(ctx context.Context, row domain.Dispute) error
	GetOpenByProjectKey(ctx context.Context, projectKey string) (domain.Dispute, error)
	ListByProjectKey(ctx context.Context, projectKey string) ([]domain.Dispute, error)
}

type RatingRepository interface {
	Get(ctx context.Context, partyID string) (domain.RatingAggregate, error)
	Apply(ctx context.Context, partyID string, rating int, at time.Time) (domain.RatingAggregate, error)
}

type FeeScheduleRepository interface {
	Get(ctx context.Context, arbiterID string) (domain.FeeSchedule, error)
	Upsert(ctx context.Context, row domain.FeeSchedule) error
}

type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	ResponseCode int
	ResponseBody []byte
	ExpiresAt    time.Time
}

type IdempotencyRepository interface {
	Get(ctx context.Context, key string, now time.Time) (*IdempotencyRecord, error)
	Reserve(ctx context.Context, key, requestHash string, now, expiresAt time.Time) error
	Complete(ctx context.Context, key string, responseCode int, responseBody []byte, at time.Time) error
}

type EventDedupRepository interface {
	IsDuplicate(ctx context.Context, eventID string, now time.Time) (bool, error)
	MarkProcessed(ctx context.Context, eventID, eventType string, expiresAt time.Time) error
}

type OutboxRepository interface {
	Enqueue(ctx context.Context, record OutboxRecord) error
	ListPending(ctx context.Context, limit int) ([]OutboxRecord, error)
	MarkSent(ctx context.Context, recordID string, at time.Time) error
}
