package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fairhold/escrow-arbitration-service/internal/domain"
)

// StartProject registers an agreement, provisions its dedicated escrow, and
// freezes the arbiter's current fee schedule into the record. The caller must
// be the client; the maker consents through its signature over the canonical
// digest of (agreement id, arbiter).
func (s *Service) StartProject(ctx context.Context, actor Actor, input StartProjectInput) (domain.Project, error) {
	if err := s.requireActor(actor); err != nil {
		return domain.Project{}, err
	}
	key := strings.ToLower(strings.TrimSpace(input.AgreementID))
	client := strings.TrimSpace(input.Client)
	maker := strings.TrimSpace(input.Maker)
	arbiter := strings.TrimSpace(input.Arbiter)
	if !domain.ValidProjectKey(key) {
		return domain.Project{}, domain.ErrInvalidInput
	}
	if actor.SubjectID != client {
		return domain.Project{}, domain.ErrForbidden
	}
	if err := domain.ValidateParties(client, maker, arbiter); err != nil {
		return domain.Project{}, err
	}
	if !domain.ValidMilestonesCount(input.MilestonesCount) {
		return domain.Project{}, domain.ErrInvalidInput
	}
	if err := domain.VerifyMakerSignature(maker, key, arbiter, input.MakerSignature); err != nil {
		return domain.Project{}, err
	}
	requestHash := hashJSON(input)
	if cached, ok, err := getIdempotent[domain.Project](ctx, s, actor, requestHash); err != nil {
		return domain.Project{}, err
	} else if ok {
		return cached, nil
	}
	if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil {
		return domain.Project{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, err := s.projects.GetByKey(ctx, key); err == nil && existing.ProjectKey != "" {
		return domain.Project{}, domain.ErrConflict
	} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.Project{}, err
	}

	fees, err := s.getFees(ctx, arbiter)
	if err != nil {
		return domain.Project{}, err
	}
	now := s.nowFn()
	acc, err := s.createEscrowAccount(ctx, key, client, now)
	if err != nil {
		return domain.Project{}, err
	}
	project := domain.Project{
		ProjectKey:           key,
		Client:               client,
		Maker:                maker,
		Arbiter:              arbiter,
		EscrowID:             acc.EscrowID,
		StartTime:            now,
		MilestoneStartWindow: input.MilestoneStartWindow,
		FeedbackWindow:       input.FeedbackWindow,
		MilestonesCount:      input.MilestonesCount,
		ArbiterFixedFee:      fees.FixedFee,
		ArbiterShareFee:      fees.ShareFeePercent,
		Encrypted:            input.Encrypted,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.projects.Create(ctx, project); err != nil {
		return domain.Project{}, err
	}
	_ = s.enqueueProjectCreated(ctx, project, actor.RequestID, now)
	_ = s.completeIdempotencyJSON(ctx, actor.IdempotencyKey, 201, project)
	return project, nil
}

// TerminateProject ends an agreement early. A party may call it only while
// the milestone layer's termination predicate holds for that party; dispute
// settlements terminate through the internal path instead.
func (s *Service) TerminateProject(ctx context.Context, actor Actor, projectKey string) (domain.Project, error) {
	if err := s.requireActor(actor); err != nil {
		return domain.Project{}, err
	}
	requestHash := hashJSON(map[string]string{"op": "terminate", "project_key": projectKey})
	if cached, ok, err := getIdempotent[domain.Project](ctx, s, actor, requestHash); err != nil {
		return domain.Project{}, err
	} else if ok {
		return cached, nil
	}
	if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil {
		return domain.Project{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	project, err := s.projects.GetByKey(ctx, strings.TrimSpace(projectKey))
	if err != nil {
		return domain.Project{}, err
	}
	if project.Ended() {
		return domain.Project{}, domain.ErrProjectEnded
	}
	now := s.nowFn()
	allowed, err := s.canTerminate(ctx, project, actor.SubjectID, now)
	if err != nil {
		return domain.Project{}, err
	}
	if !allowed {
		return domain.Project{}, domain.ErrForbidden
	}
	project, err = s.terminateProjectLocked(ctx, project, actor.SubjectID, "terminated by party", now, actor.RequestID)
	if err != nil {
		return domain.Project{}, err
	}
	_ = s.completeIdempotencyJSON(ctx, actor.IdempotencyKey, 200, project)
	return project, nil
}

func (s *Service) terminateProjectLocked(ctx context.Context, project domain.Project, endedBy, reason string, now time.Time, traceID string) (domain.Project, error) {
	if project.Ended() {
		return domain.Project{}, domain.ErrProjectEnded
	}
	project.EndTime = &now
	project.UpdatedAt = now
	if err := s.projects.Update(ctx, project); err != nil {
		return domain.Project{}, err
	}
	_ = s.enqueueProjectEnded(ctx, domain.EventProjectTerminated, project, endedBy, reason, traceID, now)
	return project, nil
}

// completeProjectLocked is reachable only from the milestone layer once the
// completion gate holds (final milestone accepted by the recorded client).
func (s *Service) completeProjectLocked(ctx context.Context, project domain.Project, client string, now time.Time, traceID string) error {
	if project.Ended() {
		return domain.ErrProjectEnded
	}
	if client != project.Client {
		return domain.ErrForbidden
	}
	done, err := s.projectComplete(ctx, project)
	if err != nil {
		return err
	}
	if !done {
		return domain.ErrProjectActive
	}
	project.EndTime = &now
	project.UpdatedAt = now
	if err := s.projects.Update(ctx, project); err != nil {
		return err
	}
	_ = s.enqueueProjectEnded(ctx, domain.EventProjectCompleted, project, client, "all milestones accepted", traceID, now)
	return nil
}

// RateSecondParty stores a party's one-time rating of its counterparty on an
// ended project and rolls it into the counterparty's lifetime aggregate.
func (s *Service) RateSecondParty(ctx context.Context, actor Actor, input RateInput) (domain.Project, error) {
	if err := s.requireActor(actor); err != nil {
		return domain.Project{}, err
	}
	if !domain.ValidRating(input.Rating) {
		return domain.Project{}, domain.ErrInvalidInput
	}
	requestHash := hashJSON(input)
	if cached, ok, err := getIdempotent[domain.Project](ctx, s, actor, requestHash); err != nil {
		return domain.Project{}, err
	} else if ok {
		return cached, nil
	}
	if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil {
		return domain.Project{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	project, err := s.projects.GetByKey(ctx, strings.TrimSpace(input.ProjectKey))
	if err != nil {
		return domain.Project{}, err
	}
	if !project.Ended() {
		return domain.Project{}, domain.ErrProjectActive
	}
	now := s.nowFn()
	var ratedParty string
	switch actor.SubjectID {
	case project.Client:
		if project.ClientRating != 0 {
			return domain.Project{}, domain.ErrRatingAlreadySet
		}
		project.ClientRating = input.Rating
		ratedParty = project.Maker
	case project.Maker:
		if project.MakerRating != 0 {
			return domain.Project{}, domain.ErrRatingAlreadySet
		}
		project.MakerRating = input.Rating
		ratedParty = project.Client
	default:
		return domain.Project{}, domain.ErrForbidden
	}
	project.UpdatedAt = now
	if err := s.projects.Update(ctx, project); err != nil {
		return domain.Project{}, err
	}
	if s.ratings != nil {
		if _, err := s.ratings.Apply(ctx, ratedParty, input.Rating, now); err != nil {
			return domain.Project{}, err
		}
	}
	_ = s.completeIdempotencyJSON(ctx, actor.IdempotencyKey, 200, project)
	return project, nil
}

func (s *Service) GetProject(ctx context.Context, actor Actor, projectKey string) (domain.Project, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.Project{}, domain.ErrUnauthorized
	}
	return s.projects.GetByKey(ctx, strings.ToLower(strings.TrimSpace(projectKey)))
}

func (s *Service) ListProjectsByParty(ctx context.Context, actor Actor, partyID string) ([]string, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return nil, domain.ErrUnauthorized
	}
	return s.projects.ListKeysByParty(ctx, strings.TrimSpace(partyID))
}

func (s *Service) GetPartyRating(ctx context.Context, actor Actor, partyID string) (domain.RatingAggregate, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.RatingAggregate{}, domain.ErrUnauthorized
	}
	if s.ratings == nil {
		return domain.RatingAggregate{PartyID: strings.TrimSpace(partyID)}, nil
	}
	agg, err := s.ratings.Get(ctx, strings.TrimSpace(partyID))
	if errors.Is(err, domain.ErrNotFound) {
		return domain.RatingAggregate{PartyID: strings.TrimSpace(partyID)}, nil
	}
	return agg, err
}
