package application

import (
	"context"
	"strings"
	"time"

	"github.com/fairhold/escrow-arbitration-service/internal/domain"
)

// createEscrowAccount is the factory capability: every project gets a fresh,
// independently-owned account initialized exactly once with its owner and the
// milestone engine as operator. No state is shared between instances.
func (s *Service) createEscrowAccount(ctx context.Context, projectKey, owner string, now time.Time) (domain.EscrowAccount, error) {
	acc := domain.NewEscrowAccount(newID(), projectKey, now)
	if err := acc.Initialize(owner, s.cfg.OperatorIdentity, now); err != nil {
		return domain.EscrowAccount{}, err
	}
	if err := s.escrows.Create(ctx, acc); err != nil {
		return domain.EscrowAccount{}, err
	}
	return acc, nil
}

// Deposit credits the available balance. Anyone may fund an escrow; only the
// positive-amount and overflow rules gate the call.
func (s *Service) Deposit(ctx context.Context, actor Actor, input DepositInput) (domain.EscrowAccount, error) {
	if err := s.requireActor(actor); err != nil {
		return domain.EscrowAccount{}, err
	}
	requestHash := hashJSON(input)
	if cached, ok, err := getIdempotent[domain.EscrowAccount](ctx, s, actor, requestHash); err != nil {
		return domain.EscrowAccount{}, err
	} else if ok {
		return cached, nil
	}
	if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil {
		return domain.EscrowAccount{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, err := s.depositLocked(ctx, input.ProjectKey, actor.SubjectID, input.Amount, input.Currency, actor.RequestID)
	if err != nil {
		return domain.EscrowAccount{}, err
	}
	_ = s.completeIdempotencyJSON(ctx, actor.IdempotencyKey, 200, acc)
	return acc, nil
}

func (s *Service) depositLocked(ctx context.Context, projectKey, sender string, amount int64, currency, traceID string) (domain.EscrowAccount, error) {
	acc, err := s.escrows.GetByProjectKey(ctx, strings.TrimSpace(projectKey))
	if err != nil {
		return domain.EscrowAccount{}, err
	}
	now := s.nowFn()
	if err := acc.Deposit(amount, currency, now); err != nil {
		return domain.EscrowAccount{}, err
	}
	if err := s.escrows.Update(ctx, acc); err != nil {
		return domain.EscrowAccount{}, err
	}
	s.recordMovement(ctx, acc, domain.MovementDeposit, sender, "", amount, currency, traceID, now)
	return acc, nil
}

// Withdraw pays out to the caller: the owner against the available balance,
// anyone else against their standing allowance.
func (s *Service) Withdraw(ctx context.Context, actor Actor, input WithdrawInput) (domain.EscrowAccount, error) {
	if err := s.requireActor(actor); err != nil {
		return domain.EscrowAccount{}, err
	}
	requestHash := hashJSON(input)
	if cached, ok, err := getIdempotent[domain.EscrowAccount](ctx, s, actor, requestHash); err != nil {
		return domain.EscrowAccount{}, err
	} else if ok {
		return cached, nil
	}
	if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil {
		return domain.EscrowAccount{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, err := s.escrows.GetByProjectKey(ctx, strings.TrimSpace(input.ProjectKey))
	if err != nil {
		return domain.EscrowAccount{}, err
	}
	now := s.nowFn()
	if err := acc.Withdraw(actor.SubjectID, input.Amount, input.Currency, now); err != nil {
		return domain.EscrowAccount{}, err
	}
	if err := s.escrows.Update(ctx, acc); err != nil {
		return domain.EscrowAccount{}, err
	}
	s.recordMovement(ctx, acc, domain.MovementWithdraw, actor.SubjectID, actor.SubjectID, input.Amount, input.Currency, actor.RequestID, now)
	_ = s.completeIdempotencyJSON(ctx, actor.IdempotencyKey, 200, acc)
	return acc, nil
}

// Block earmarks available funds. Exposed for the operator identity; the
// milestone engine uses the same path internally when starting a milestone.
func (s *Service) Block(ctx context.Context, actor Actor, input BlockInput) (domain.EscrowAccount, error) {
	return s.operatorMove(ctx, actor, input.ProjectKey, domain.MovementBlock, "", input.Amount, input.Currency)
}

func (s *Service) Unblock(ctx context.Context, actor Actor, input BlockInput) (domain.EscrowAccount, error) {
	return s.operatorMove(ctx, actor, input.ProjectKey, domain.MovementUnblock, "", input.Amount, input.Currency)
}

func (s *Service) Distribute(ctx context.Context, actor Actor, input DistributeInput) (domain.EscrowAccount, error) {
	return s.operatorMove(ctx, actor, input.ProjectKey, domain.MovementDistribute, input.Target, input.Amount, input.Currency)
}

func (s *Service) operatorMove(ctx context.Context, actor Actor, projectKey, kind, target string, amount int64, currency string) (domain.EscrowAccount, error) {
	if err := s.requireActor(actor); err != nil {
		return domain.EscrowAccount{}, err
	}
	requestHash := hashJSON(map[string]any{"project_key": projectKey, "kind": kind, "target": target, "amount": amount, "currency": currency})
	if cached, ok, err := getIdempotent[domain.EscrowAccount](ctx, s, actor, requestHash); err != nil {
		return domain.EscrowAccount{}, err
	} else if ok {
		return cached, nil
	}
	if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil {
		return domain.EscrowAccount{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, err := s.escrows.GetByProjectKey(ctx, strings.TrimSpace(projectKey))
	if err != nil {
		return domain.EscrowAccount{}, err
	}
	now := s.nowFn()
	switch kind {
	case domain.MovementBlock:
		err = acc.Block(actor.SubjectID, amount, currency, now)
	case domain.MovementUnblock:
		err = acc.Unblock(actor.SubjectID, amount, currency, now)
	case domain.MovementDistribute:
		err = acc.Distribute(actor.SubjectID, target, amount, currency, now)
	default:
		err = domain.ErrInvalidInput
	}
	if err != nil {
		return domain.EscrowAccount{}, err
	}
	if err := s.escrows.Update(ctx, acc); err != nil {
		return domain.EscrowAccount{}, err
	}
	s.recordMovement(ctx, acc, kind, actor.SubjectID, target, amount, currency, actor.RequestID, now)
	_ = s.completeIdempotencyJSON(ctx, actor.IdempotencyKey, 200, acc)
	return acc, nil
}

// blockFundsLocked and friends are the internal fund-movement paths used by
// the milestone and arbitration layers while already holding the service
// lock. They act as the account's operator.
func (s *Service) blockFundsLocked(ctx context.Context, acc *domain.EscrowAccount, amount int64, currency, traceID string, now time.Time) error {
	if err := acc.Block(acc.Operator, amount, currency, now); err != nil {
		return err
	}
	if err := s.escrows.Update(ctx, *acc); err != nil {
		return err
	}
	s.recordMovement(ctx, *acc, domain.MovementBlock, acc.Operator, "", amount, currency, traceID, now)
	return nil
}

func (s *Service) unblockFundsLocked(ctx context.Context, acc *domain.EscrowAccount, amount int64, currency, traceID string, now time.Time) error {
	if err := acc.Unblock(acc.Operator, amount, currency, now); err != nil {
		return err
	}
	if err := s.escrows.Update(ctx, *acc); err != nil {
		return err
	}
	s.recordMovement(ctx, *acc, domain.MovementUnblock, acc.Operator, "", amount, currency, traceID, now)
	return nil
}

func (s *Service) distributeFundsLocked(ctx context.Context, acc *domain.EscrowAccount, target string, amount int64, currency, traceID string, now time.Time) error {
	if amount == 0 {
		return nil
	}
	if err := acc.Distribute(acc.Operator, target, amount, currency, now); err != nil {
		return err
	}
	if err := s.escrows.Update(ctx, *acc); err != nil {
		return err
	}
	s.recordMovement(ctx, *acc, domain.MovementDistribute, acc.Operator, target, amount, currency, traceID, now)
	return nil
}

func (s *Service) recordMovement(ctx context.Context, acc domain.EscrowAccount, kind, sender, target string, amount int64, currency, traceID string, now time.Time) {
	if s.movements != nil {
		_ = s.movements.Append(ctx, domain.Movement{
			MovementID: newID(),
			EscrowID:   acc.EscrowID,
			ProjectKey: acc.ProjectKey,
			Kind:       kind,
			Sender:     sender,
			Target:     target,
			Amount:     amount,
			Currency:   currency,
			OccurredAt: now,
		})
	}
	_ = s.enqueueEscrowMovement(ctx, acc, kind, sender, target, amount, currency, traceID, now)
}

func (s *Service) GetEscrowBalance(ctx context.Context, actor Actor, projectKey string) (domain.EscrowAccount, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.EscrowAccount{}, domain.ErrUnauthorized
	}
	return s.escrows.GetByProjectKey(ctx, strings.TrimSpace(projectKey))
}

func (s *Service) ListMovements(ctx context.Context, actor Actor, projectKey string) ([]domain.Movement, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return nil, domain.ErrUnauthorized
	}
	if s.movements == nil {
		return nil, nil
	}
	return s.movements.ListByProjectKey(ctx, strings.TrimSpace(projectKey))
}
