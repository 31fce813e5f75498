package postgres

import "gorm.io/gorm"

type Repositories struct {
	Escrows     *EscrowAccountRepository
	Movements   *MovementRepository
	Projects    *ProjectRepository
	Milestones  *MilestoneRepository
	Disputes    *DisputeRepository
	Ratings     *RatingRepository
	Fees        *FeeScheduleRepository
	Idempotency *IdempotencyRepository
	EventDedup  *EventDedupRepository
	Outbox      *OutboxRepository
}

func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Escrows:     &EscrowAccountRepository{db: db},
		Movements:   &MovementRepository{db: db},
		Projects:    &ProjectRepository{db: db},
		Milestones:  &MilestoneRepository{db: db},
		Disputes:    &DisputeRepository{db: db},
		Ratings:     &RatingRepository{db: db},
		Fees:        &FeeScheduleRepository{db: db},
		Idempotency: &IdempotencyRepository{db: db},
		EventDedup:  &EventDedupRepository{db: db},
		Outbox:      &OutboxRepository{db: db},
	}
}
