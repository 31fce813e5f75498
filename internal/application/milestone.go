package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fairhold/escrow-arbitration-service/internal/domain"
)

// StartMilestone opens the next milestone for a project and blocks its
// deposit inside the escrow. Only the client may start one, only while the
// previous milestone is terminal, the count is not exhausted, and no dispute
// is open. A re-start after a rejection first releases the rejected
// milestone's still-blocked deposit back to the available pool.
func (s *Service) StartMilestone(ctx context.Context, actor Actor, input StartMilestoneInput) (domain.Milestone, error) {
	if err := s.requireActor(actor); err != nil {
		return domain.Milestone{}, err
	}
	if input.DepositAmount <= 0 || strings.TrimSpace(input.Currency) == "" || input.Duration <= 0 {
		return domain.Milestone{}, domain.ErrInvalidInput
	}
	requestHash := hashJSON(input)
	if cached, ok, err := getIdempotent[domain.Milestone](ctx, s, actor, requestHash); err != nil {
		return domain.Milestone{}, err
	} else if ok {
		return cached, nil
	}
	if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil {
		return domain.Milestone{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	project, err := s.projects.GetByKey(ctx, strings.TrimSpace(input.ProjectKey))
	if err != nil {
		return domain.Milestone{}, err
	}
	if project.Ended() {
		return domain.Milestone{}, domain.ErrProjectEnded
	}
	if actor.SubjectID != project.Client {
		return domain.Milestone{}, domain.ErrForbidden
	}
	if err := s.requireNoOpenDispute(ctx, project.ProjectKey); err != nil {
		return domain.Milestone{}, err
	}

	sequence := 1
	latest, err := s.milestones.GetLatest(ctx, project.ProjectKey)
	haveLatest := err == nil
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.Milestone{}, err
	}
	if haveLatest {
		if !latest.Terminal() {
			return domain.Milestone{}, domain.ErrMilestoneActive
		}
		sequence = latest.Sequence + 1
	}
	if sequence > project.MilestonesCount {
		return domain.Milestone{}, domain.ErrMilestonesExhausted
	}

	acc, err := s.escrows.GetByProjectKey(ctx, project.ProjectKey)
	if err != nil {
		return domain.Milestone{}, err
	}
	now := s.nowFn()
	// Mutate the working copy for both fund moves, then persist once so a
	// failed block never leaves a half-applied unblock behind.
	releaseRejected := haveLatest && latest.Status == domain.MilestoneStatusRejected && latest.FundsBlocked
	if releaseRejected {
		if err := acc.Unblock(acc.Operator, latest.DepositAmount, latest.Currency, now); err != nil {
			return domain.Milestone{}, err
		}
	}
	if err := acc.Block(acc.Operator, input.DepositAmount, input.Currency, now); err != nil {
		return domain.Milestone{}, err
	}
	if err := s.escrows.Update(ctx, acc); err != nil {
		return domain.Milestone{}, err
	}
	if releaseRejected {
		latest.FundsBlocked = false
		latest.UpdatedAt = now
		if err := s.milestones.Update(ctx, latest); err != nil {
			return domain.Milestone{}, err
		}
		s.recordMovement(ctx, acc, domain.MovementUnblock, acc.Operator, "", latest.DepositAmount, latest.Currency, actor.RequestID, now)
	}
	s.recordMovement(ctx, acc, domain.MovementBlock, acc.Operator, "", input.DepositAmount, input.Currency, actor.RequestID, now)

	milestone := domain.Milestone{
		ProjectKey:    project.ProjectKey,
		Sequence:      sequence,
		DepositAmount: input.DepositAmount,
		Currency:      strings.TrimSpace(input.Currency),
		Duration:      input.Duration,
		StartTime:     now,
		Status:        domain.MilestoneStatusStarted,
		FundsBlocked:  true,
		UpdatedAt:     now,
	}
	if err := s.milestones.Create(ctx, milestone); err != nil {
		return domain.Milestone{}, err
	}
	_ = s.enqueueMilestoneEvent(ctx, domain.EventMilestoneStarted, milestone, actor.RequestID, now)
	_ = s.completeIdempotencyJSON(ctx, actor.IdempotencyKey, 200, milestone)
	return milestone, nil
}

// DeliverMilestone records the maker's delivery on the active milestone and
// starts the client's feedback window.
func (s *Service) DeliverMilestone(ctx context.Context, actor Actor, projectKey string) (domain.Milestone, error) {
	if err := s.requireActor(actor); err != nil {
		return domain.Milestone{}, err
	}
	requestHash := hashJSON(map[string]string{"op": "deliver", "project_key": projectKey})
	if cached, ok, err := getIdempotent[domain.Milestone](ctx, s, actor, requestHash); err != nil {
		return domain.Milestone{}, err
	} else if ok {
		return cached, nil
	}
	if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil {
		return domain.Milestone{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	project, milestone, err := s.activeMilestone(ctx, projectKey)
	if err != nil {
		return domain.Milestone{}, err
	}
	if actor.SubjectID != project.Maker {
		return domain.Milestone{}, domain.ErrForbidden
	}
	if milestone.Delivered() {
		return domain.Milestone{}, domain.ErrConflict
	}
	now := s.nowFn()
	milestone.DeliveryTime = &now
	milestone.UpdatedAt = now
	if err := s.milestones.Update(ctx, milestone); err != nil {
		return domain.Milestone{}, err
	}
	_ = s.enqueueMilestoneEvent(ctx, domain.EventMilestoneDelivered, milestone, actor.RequestID, now)
	_ = s.completeIdempotencyJSON(ctx, actor.IdempotencyKey, 200, milestone)
	return milestone, nil
}

// AcceptMilestone settles the active milestone in the maker's favor: the
// blocked deposit becomes the maker's withdrawal allowance. Accepting the
// final milestone completes the project in the same step.
func (s *Service) AcceptMilestone(ctx context.Context, actor Actor, projectKey string) (domain.Milestone, error) {
	if err := s.requireActor(actor); err != nil {
		return domain.Milestone{}, err
	}
	requestHash := hashJSON(map[string]string{"op": "accept", "project_key": projectKey})
	if cached, ok, err := getIdempotent[domain.Milestone](ctx, s, actor, requestHash); err != nil {
		return domain.Milestone{}, err
	} else if ok {
		return cached, nil
	}
	if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil {
		return domain.Milestone{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	project, milestone, err := s.activeMilestone(ctx, projectKey)
	if err != nil {
		return domain.Milestone{}, err
	}
	if actor.SubjectID != project.Client {
		return domain.Milestone{}, domain.ErrForbidden
	}
	if err := s.requireNoOpenDispute(ctx, project.ProjectKey); err != nil {
		return domain.Milestone{}, err
	}
	acc, err := s.escrows.GetByProjectKey(ctx, project.ProjectKey)
	if err != nil {
		return domain.Milestone{}, err
	}
	now := s.nowFn()
	if err := s.distributeFundsLocked(ctx, &acc, project.Maker, milestone.DepositAmount, milestone.Currency, actor.RequestID, now); err != nil {
		return domain.Milestone{}, err
	}
	milestone.Status = domain.MilestoneStatusAccepted
	milestone.FundsBlocked = false
	milestone.UpdatedAt = now
	if err := s.milestones.Update(ctx, milestone); err != nil {
		return domain.Milestone{}, err
	}
	_ = s.enqueueMilestoneEvent(ctx, domain.EventMilestoneAccepted, milestone, actor.RequestID, now)
	if milestone.Sequence == project.MilestonesCount {
		if err := s.completeProjectLocked(ctx, project, actor.SubjectID, now, actor.RequestID); err != nil {
			return domain.Milestone{}, err
		}
	}
	_ = s.completeIdempotencyJSON(ctx, actor.IdempotencyKey, 200, milestone)
	return milestone, nil
}

// RejectMilestone is the client's refusal of a delivered milestone. The
// deposit stays blocked; the parties either renegotiate a re-start or
// escalate to arbitration.
func (s *Service) RejectMilestone(ctx context.Context, actor Actor, projectKey string) (domain.Milestone, error) {
	if err := s.requireActor(actor); err != nil {
		return domain.Milestone{}, err
	}
	requestHash := hashJSON(map[string]string{"op": "reject", "project_key": projectKey})
	if cached, ok, err := getIdempotent[domain.Milestone](ctx, s, actor, requestHash); err != nil {
		return domain.Milestone{}, err
	} else if ok {
		return cached, nil
	}
	if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil {
		return domain.Milestone{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	project, milestone, err := s.activeMilestone(ctx, projectKey)
	if err != nil {
		return domain.Milestone{}, err
	}
	if actor.SubjectID != project.Client {
		return domain.Milestone{}, domain.ErrForbidden
	}
	if !milestone.Delivered() {
		return domain.Milestone{}, domain.ErrNotDelivered
	}
	now := s.nowFn()
	milestone.Status = domain.MilestoneStatusRejected
	milestone.UpdatedAt = now
	if err := s.milestones.Update(ctx, milestone); err != nil {
		return domain.Milestone{}, err
	}
	_ = s.enqueueMilestoneEvent(ctx, domain.EventMilestoneRejected, milestone, actor.RequestID, now)
	_ = s.completeIdempotencyJSON(ctx, actor.IdempotencyKey, 200, milestone)
	return milestone, nil
}

// AdjustMilestoneDuration is the minimal renegotiation entry point: the
// client grants the active milestone a new effective duration.
func (s *Service) AdjustMilestoneDuration(ctx context.Context, actor Actor, input AdjustMilestoneInput) (domain.Milestone, error) {
	if err := s.requireActor(actor); err != nil {
		return domain.Milestone{}, err
	}
	if input.Duration <= 0 {
		return domain.Milestone{}, domain.ErrInvalidInput
	}
	requestHash := hashJSON(input)
	if cached, ok, err := getIdempotent[domain.Milestone](ctx, s, actor, requestHash); err != nil {
		return domain.Milestone{}, err
	} else if ok {
		return cached, nil
	}
	if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil {
		return domain.Milestone{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	project, milestone, err := s.activeMilestone(ctx, input.ProjectKey)
	if err != nil {
		return domain.Milestone{}, err
	}
	if actor.SubjectID != project.Client {
		return domain.Milestone{}, domain.ErrForbidden
	}
	now := s.nowFn()
	milestone.AdjustedDuration = input.Duration
	milestone.UpdatedAt = now
	if err := s.milestones.Update(ctx, milestone); err != nil {
		return domain.Milestone{}, err
	}
	_ = s.completeIdempotencyJSON(ctx, actor.IdempotencyKey, 200, milestone)
	return milestone, nil
}

func (s *Service) ListMilestones(ctx context.Context, actor Actor, projectKey string) ([]domain.Milestone, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return nil, domain.ErrUnauthorized
	}
	return s.milestones.ListByProjectKey(ctx, strings.TrimSpace(projectKey))
}

func (s *Service) activeMilestone(ctx context.Context, projectKey string) (domain.Project, domain.Milestone, error) {
	project, err := s.projects.GetByKey(ctx, strings.TrimSpace(projectKey))
	if err != nil {
		return domain.Project{}, domain.Milestone{}, err
	}
	if project.Ended() {
		return domain.Project{}, domain.Milestone{}, domain.ErrProjectEnded
	}
	milestone, err := s.milestones.GetLatest(ctx, project.ProjectKey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Project{}, domain.Milestone{}, domain.ErrNoActiveMilestone
		}
		return domain.Project{}, domain.Milestone{}, err
	}
	if milestone.Terminal() {
		return domain.Project{}, domain.Milestone{}, domain.ErrNoActiveMilestone
	}
	return project, milestone, nil
}

// projectComplete is the single completion gate: the latest milestone is the
// final sequence number and was accepted.
func (s *Service) projectComplete(ctx context.Context, project domain.Project) (bool, error) {
	latest, err := s.milestones.GetLatest(ctx, project.ProjectKey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return latest.Sequence == project.MilestonesCount && latest.Status == domain.MilestoneStatusAccepted, nil
}

// canTerminate is the termination predicate the registry consults. Either
// party may walk away while nothing is locked; the maker additionally has to
// wait out the milestone-start window, which protects it from a client that
// never starts work.
func (s *Service) canTerminate(ctx context.Context, project domain.Project, party string, now time.Time) (bool, error) {
	if party != project.Client && party != project.Maker {
		return false, nil
	}
	if err := s.requireNoOpenDispute(ctx, project.ProjectKey); err != nil {
		return false, nil
	}
	latest, err := s.milestones.GetLatest(ctx, project.ProjectKey)
	haveLatest := err == nil
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return false, err
	}
	if haveLatest && (!latest.Terminal() || latest.FundsBlocked) {
		return false, nil
	}
	if party == project.Client {
		return true, nil
	}
	reference := project.StartTime
	if haveLatest {
		reference = latest.UpdatedAt
	}
	if project.MilestoneStartWindow <= 0 {
		return false, nil
	}
	return now.After(reference.Add(project.MilestoneStartWindow)), nil
}

// Disputable-target capability consumed by the arbitration engine.

func (s *Service) isReadyForDispute(ctx context.Context, project domain.Project, now time.Time) (bool, error) {
	latest, err := s.milestones.GetLatest(ctx, project.ProjectKey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if !latest.FundsBlocked {
		return false, nil
	}
	if latest.Status == domain.MilestoneStatusRejected {
		return true, nil
	}
	return latest.Overdue(now) || latest.FeedbackExpired(project.FeedbackWindow, now), nil
}

func isEligibleForDispute(project domain.Project, party string) bool {
	return party == project.Client || party == project.Maker
}

func (s *Service) requireNoOpenDispute(ctx context.Context, projectKey string) error {
	if s.disputes == nil {
		return nil
	}
	if open, err := s.disputes.GetOpenByProjectKey(ctx, projectKey); err == nil && open.DisputeID != "" {
		return domain.ErrDisputeOpen
	} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return nil
}
