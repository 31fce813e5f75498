package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fairhold/escrow-arbitration-service/internal/domain"
)

// StartDispute opens arbitration over a project's blocked milestone deposit.
// The initiator may attach a share proposal for the respondent; a proposal of
// exactly 100 concedes the whole deposit and settles within the same call.
func (s *Service) StartDispute(ctx context.Context, actor Actor, input StartDisputeInput) (domain.Dispute, error) {
	if err := s.requireActor(actor); err != nil {
		return domain.Dispute{}, err
	}
	respondent := strings.TrimSpace(input.Respondent)
	if respondent == "" {
		return domain.Dispute{}, domain.ErrInvalidInput
	}
	requestHash := hashJSON(input)
	if cached, ok, err := getIdempotent[domain.Dispute](ctx, s, actor, requestHash); err != nil {
		return domain.Dispute{}, err
	} else if ok {
		return cached, nil
	}
	if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil {
		return domain.Dispute{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	project, err := s.projects.GetByKey(ctx, strings.TrimSpace(input.ProjectKey))
	if err != nil {
		return domain.Dispute{}, err
	}
	if !isEligibleForDispute(project, actor.SubjectID) || !isEligibleForDispute(project, respondent) || actor.SubjectID == respondent {
		return domain.Dispute{}, domain.ErrForbidden
	}
	now := s.nowFn()
	ready, err := s.isReadyForDispute(ctx, project, now)
	if err != nil {
		return domain.Dispute{}, err
	}
	if !ready {
		return domain.Dispute{}, domain.ErrNotDisputable
	}
	if err := s.requireNoOpenDispute(ctx, project.ProjectKey); err != nil {
		return domain.Dispute{}, err
	}

	proposal := domain.ProposalNone
	if input.RespondentShareProposal != nil {
		proposal = domain.NormalizeShareProposal(*input.RespondentShareProposal)
	}
	dispute := domain.Dispute{
		DisputeID:               newID(),
		ProjectKey:              project.ProjectKey,
		Initiator:               actor.SubjectID,
		Respondent:              respondent,
		RespondentShareProposal: proposal,
		StartTime:               now,
		ReplyDeadline:           now.Add(s.cfg.DisputeReplyWindow),
		UpdatedAt:               now,
	}
	if err := s.disputes.Create(ctx, dispute); err != nil {
		return domain.Dispute{}, err
	}
	created := dispute

	// A full concession skips negotiation entirely: the dispute settles
	// inside the starting call, with everything awarded to the respondent.
	if proposal == 100 {
		dispute, err = s.settleDisputeLocked(ctx, project, dispute, 100, 0, actor.RequestID, now)
		if err != nil {
			return domain.Dispute{}, err
		}
	}
	_ = s.enqueueDisputeEvent(ctx, domain.EventDisputeStarted, created, actor.RequestID, now)
	_ = s.completeIdempotencyJSON(ctx, actor.IdempotencyKey, 201, dispute)
	return dispute, nil
}

// AcceptProposal lets the respondent take the initiator's outstanding offer,
// settling at (proposal, 100-proposal).
func (s *Service) AcceptProposal(ctx context.Context, actor Actor, projectKey string) (domain.Dispute, error) {
	if err := s.requireActor(actor); err != nil {
		return domain.Dispute{}, err
	}
	requestHash := hashJSON(map[string]string{"op": "accept_proposal", "project_key": projectKey})
	if cached, ok, err := getIdempotent[domain.Dispute](ctx, s, actor, requestHash); err != nil {
		return domain.Dispute{}, err
	} else if ok {
		return cached, nil
	}
	if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil {
		return domain.Dispute{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	project, dispute, err := s.openDispute(ctx, projectKey)
	if err != nil {
		return domain.Dispute{}, err
	}
	if actor.SubjectID != dispute.Respondent {
		return domain.Dispute{}, domain.ErrForbidden
	}
	if !dispute.HasProposal() {
		return domain.Dispute{}, domain.ErrNoProposal
	}
	now := s.nowFn()
	accepted := dispute
	dispute, err = s.settleDisputeLocked(ctx, project, dispute, dispute.RespondentShareProposal, 100-dispute.RespondentShareProposal, actor.RequestID, now)
	if err != nil {
		return domain.Dispute{}, err
	}
	_ = s.enqueueDisputeEvent(ctx, domain.EventDisputeProposalAccepted, accepted, actor.RequestID, now)
	_ = s.completeIdempotencyJSON(ctx, actor.IdempotencyKey, 200, dispute)
	return dispute, nil
}

// RejectProposal clears the outstanding offer but keeps the dispute open for
// arbiter settlement.
func (s *Service) RejectProposal(ctx context.Context, actor Actor, projectKey string) (domain.Dispute, error) {
	if err := s.requireActor(actor); err != nil {
		return domain.Dispute{}, err
	}
	requestHash := hashJSON(map[string]string{"op": "reject_proposal", "project_key": projectKey})
	if cached, ok, err := getIdempotent[domain.Dispute](ctx, s, actor, requestHash); err != nil {
		return domain.Dispute{}, err
	} else if ok {
		return cached, nil
	}
	if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil {
		return domain.Dispute{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, dispute, err := s.openDispute(ctx, projectKey)
	if err != nil {
		return domain.Dispute{}, err
	}
	if actor.SubjectID != dispute.Respondent {
		return domain.Dispute{}, domain.ErrForbidden
	}
	if !dispute.HasProposal() {
		return domain.Dispute{}, domain.ErrNoProposal
	}
	now := s.nowFn()
	dispute.RespondentShareProposal = domain.ProposalNone
	dispute.UpdatedAt = now
	if err := s.disputes.Update(ctx, dispute); err != nil {
		return domain.Dispute{}, err
	}
	_ = s.enqueueDisputeEvent(ctx, domain.EventDisputeProposalRejected, dispute, actor.RequestID, now)
	_ = s.completeIdempotencyJSON(ctx, actor.IdempotencyKey, 200, dispute)
	return dispute, nil
}

// SettleDispute is the arbiter's adjudication. The split must sum to exactly
// 100, and an unexpired proposal blocks the arbiter until the respondent
// answers or the reply deadline strictly elapses.
func (s *Service) SettleDispute(ctx context.Context, actor Actor, input SettleDisputeInput) (domain.Dispute, error) {
	if err := s.requireActor(actor); err != nil {
		return domain.Dispute{}, err
	}
	if err := domain.ValidateSettlementSplit(input.RespondentShare, input.InitiatorShare); err != nil {
		return domain.Dispute{}, err
	}
	requestHash := hashJSON(input)
	if cached, ok, err := getIdempotent[domain.Dispute](ctx, s, actor, requestHash); err != nil {
		return domain.Dispute{}, err
	} else if ok {
		return cached, nil
	}
	if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil {
		return domain.Dispute{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	project, dispute, err := s.openDispute(ctx, input.ProjectKey)
	if err != nil {
		return domain.Dispute{}, err
	}
	if actor.SubjectID != project.Arbiter {
		return domain.Dispute{}, domain.ErrForbidden
	}
	now := s.nowFn()
	if dispute.HasProposal() && !dispute.ProposalExpired(now) {
		return domain.Dispute{}, domain.ErrProposalOutstanding
	}
	dispute, err = s.settleDisputeLocked(ctx, project, dispute, input.RespondentShare, input.InitiatorShare, actor.RequestID, now)
	if err != nil {
		return domain.Dispute{}, err
	}
	_ = s.completeIdempotencyJSON(ctx, actor.IdempotencyKey, 200, dispute)
	return dispute, nil
}

// settleDisputeLocked applies a settlement: arbiter fees come off the
// blocked deposit first, the remainder is split by the adjudicated shares
// (integer division remainder to the initiator), the milestone is closed,
// and the project ends as a consequence.
func (s *Service) settleDisputeLocked(ctx context.Context, project domain.Project, dispute domain.Dispute, respondentShare, initiatorShare int, traceID string, now time.Time) (domain.Dispute, error) {
	if err := domain.ValidateSettlementSplit(respondentShare, initiatorShare); err != nil {
		return domain.Dispute{}, err
	}
	latest, err := s.milestones.GetLatest(ctx, project.ProjectKey)
	if err != nil {
		return domain.Dispute{}, err
	}
	if !latest.FundsBlocked {
		return domain.Dispute{}, domain.ErrInsufficientBlocked
	}
	acc, err := s.escrows.GetByProjectKey(ctx, project.ProjectKey)
	if err != nil {
		return domain.Dispute{}, err
	}

	blocked := latest.DepositAmount
	arbiterCut := project.ArbiterFixedFee + blocked*int64(project.ArbiterShareFee)/100
	if arbiterCut > blocked {
		arbiterCut = blocked
	}
	remainder := blocked - arbiterCut
	respondentAmount := remainder * int64(respondentShare) / 100
	initiatorAmount := remainder - respondentAmount

	if err := s.distributeFundsLocked(ctx, &acc, project.Arbiter, arbiterCut, latest.Currency, traceID, now); err != nil {
		return domain.Dispute{}, err
	}
	if err := s.distributeFundsLocked(ctx, &acc, dispute.Respondent, respondentAmount, latest.Currency, traceID, now); err != nil {
		return domain.Dispute{}, err
	}
	if err := s.distributeFundsLocked(ctx, &acc, dispute.Initiator, initiatorAmount, latest.Currency, traceID, now); err != nil {
		return domain.Dispute{}, err
	}

	if !latest.Terminal() {
		latest.Status = domain.MilestoneStatusRejected
	}
	latest.FundsBlocked = false
	latest.UpdatedAt = now
	if err := s.milestones.Update(ctx, latest); err != nil {
		return domain.Dispute{}, err
	}

	dispute.SettledTime = &now
	dispute.RespondentShare = respondentShare
	dispute.InitiatorShare = initiatorShare
	dispute.UpdatedAt = now
	if err := s.disputes.Update(ctx, dispute); err != nil {
		return domain.Dispute{}, err
	}
	_ = s.enqueueDisputeEvent(ctx, domain.EventDisputeSettled, dispute, traceID, now)

	if !project.Ended() {
		if _, err := s.terminateProjectLocked(ctx, project, project.Arbiter, "dispute settled", now, traceID); err != nil {
			return domain.Dispute{}, err
		}
	}
	return dispute, nil
}

func (s *Service) GetDispute(ctx context.Context, actor Actor, projectKey string) (domain.Dispute, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.Dispute{}, domain.ErrUnauthorized
	}
	key := strings.TrimSpace(projectKey)
	if open, err := s.disputes.GetOpenByProjectKey(ctx, key); err == nil && open.DisputeID != "" {
		return open, nil
	}
	history, err := s.disputes.ListByProjectKey(ctx, key)
	if err != nil {
		return domain.Dispute{}, err
	}
	if len(history) == 0 {
		return domain.Dispute{}, domain.ErrNotFound
	}
	return history[len(history)-1], nil
}

func (s *Service) openDispute(ctx context.Context, projectKey string) (domain.Project, domain.Dispute, error) {
	project, err := s.projects.GetByKey(ctx, strings.TrimSpace(projectKey))
	if err != nil {
		return domain.Project{}, domain.Dispute{}, err
	}
	dispute, err := s.disputes.GetOpenByProjectKey(ctx, project.ProjectKey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Project{}, domain.Dispute{}, domain.ErrNotFound
		}
		return domain.Project{}, domain.Dispute{}, err
	}
	if dispute.Settled() {
		return domain.Project{}, domain.Dispute{}, domain.ErrDisputeSettled
	}
	return project, dispute, nil
}

// Fee-schedule capability: arbiters publish their terms; the registry reads
// them once per project at creation. Unknown arbiters get the zero schedule.

func (s *Service) getFees(ctx context.Context, arbiterID string) (domain.FeeSchedule, error) {
	if s.feeCache != nil {
		if cached, ok, err := s.feeCache.Get(ctx, arbiterID); err == nil && ok {
			return *cached, nil
		}
	}
	if s.fees == nil {
		return domain.FeeSchedule{ArbiterID: arbiterID}, nil
	}
	fees, err := s.fees.Get(ctx, arbiterID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.FeeSchedule{ArbiterID: arbiterID}, nil
	}
	if err != nil {
		return domain.FeeSchedule{}, err
	}
	if s.feeCache != nil {
		_ = s.feeCache.Set(ctx, fees)
	}
	return fees, nil
}

func (s *Service) GetFees(ctx context.Context, actor Actor, arbiterID string) (domain.FeeSchedule, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.FeeSchedule{}, domain.ErrUnauthorized
	}
	return s.getFees(ctx, strings.TrimSpace(arbiterID))
}

// UpsertFeeSchedule lets an arbiter publish its own fee terms. Existing
// projects keep the schedule frozen at their creation.
func (s *Service) UpsertFeeSchedule(ctx context.Context, actor Actor, input UpsertFeeScheduleInput) (domain.FeeSchedule, error) {
	if err := s.requireActor(actor); err != nil {
		return domain.FeeSchedule{}, err
	}
	row := domain.FeeSchedule{
		ArbiterID:       actor.SubjectID,
		FixedFee:        input.FixedFee,
		ShareFeePercent: input.ShareFeePercent,
		UpdatedAt:       s.nowFn(),
	}
	if !row.Valid() {
		return domain.FeeSchedule{}, domain.ErrInvalidInput
	}
	if s.fees == nil {
		return domain.FeeSchedule{}, domain.ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fees.Upsert(ctx, row); err != nil {
		return domain.FeeSchedule{}, err
	}
	if s.feeCache != nil {
		_ = s.feeCache.Invalidate(ctx, row.ArbiterID)
	}
	return row, nil
}
