package ports

import (
	"context"

	"github.com/fairhold/escrow-arbitration-service/internal/domain"
)

// FeeScheduleCache fronts the fee-schedule repository for the hot read path
// at project creation. A nil cache is always legal.
type FeeScheduleCache interface {
	Get(ctx context.Context, arbiterID string) (*domain.FeeSchedule, bool, error)
	Set(ctx context.Context, row domain.FeeSchedule) error
	Invalidate(ctx context.Context, arbiterID string) error
}

// ComponentRegistry is the external service-discovery capability. The core
// only consumes lookups; registration is an administrative concern elsewhere.
type ComponentRegistry interface {
	Resolve(ctx context.Context, component string) (string, error)
}
