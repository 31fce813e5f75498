package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fairhold/escrow-arbitration-service/internal/application"
	"github.com/fairhold/escrow-arbitration-service/internal/contracts"
	"github.com/fairhold/escrow-arbitration-service/internal/domain"
)

type Handler struct{ service *application.Service }

func NewHandler(service *application.Service) *Handler { return &Handler{service: service} }

func (h *Handler) startProject(w http.ResponseWriter, r *http.Request) {
	var req contracts.StartProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil { writeError(w, http.StatusBadRequest, "invalid_input", "invalid json body", requestIDFromContext(r.Context())); return }
	actor := actorFromContext(r.Context())
	project, err := h.service.StartProject(r.Context(), actor, application.StartProjectInput{
		AgreementID:          req.AgreementID,
		Client:               req.Client,
		Maker:                req.Maker,
		Arbiter:              req.Arbiter,
		MakerSignature:       req.MakerSignature,
		MilestonesCount:      req.MilestonesCount,
		MilestoneStartWindow: time.Duration(req.MilestoneStartWindowSeconds) * time.Second,
		FeedbackWindow:       time.Duration(req.FeedbackWindowSeconds) * time.Second,
		Encrypted:            req.Encrypted,
	})
	if err != nil { code, c := mapDomainError(err); writeError(w, code, c, err.Error(), requestIDFromContext(r.Context())); return }
	writeSuccess(w, http.StatusCreated, "project created", toProjectResponse(project))
}

func (h *Handler) terminateProject(w http.ResponseWriter, r *http.Request) {
	var req contracts.TerminateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil { writeError(w, http.StatusBadRequest, "invalid_input", "invalid json body", requestIDFromContext(r.Context())); return }
	actor := actorFromContext(r.Context())
	project, err := h.service.TerminateProject(r.Context(), actor, req.ProjectKey)
	if err != nil { code, c := mapDomainError(err); writeError(w, code, c, err.Error(), requestIDFromContext(r.Context())); return }
	writeSuccess(w, http.StatusOK, "project terminated", toProjectResponse(project))
}

func (h *Handler) rate(w http.ResponseWriter, r *http.Request) {
	var req contracts.RateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil { writeError(w, http.StatusBadRequest, "invalid_input", "invalid json body", requestIDFromContext(r.Context())); return }
	actor := actorFromContext(r.Context())
	project, err := h.service.RateSecondParty(r.Context(), actor, application.RateInput{ProjectKey: req.ProjectKey, Rating: req.Rating})
	if err != nil { code, c := mapDomainError(err); writeError(w, code, c, err.Error(), requestIDFromContext(r.Context())); return }
	writeSuccess(w, http.StatusOK, "rating recorded", toProjectResponse(project))
}

func (h *Handler) getProject(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	project, err := h.service.GetProject(r.Context(), actor, chi.URLParam(r, "projectKey"))
	if err != nil { code, c := mapDomainError(err); writeError(w, code, c, err.Error(), requestIDFromContext(r.Context())); return }
	writeSuccess(w, http.StatusOK, "project", toProjectResponse(project))
}

func (h *Handler) partyProjects(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	partyID := chi.URLParam(r, "partyID")
	keys, err := h.service.ListProjectsByParty(r.Context(), actor, partyID)
	if err != nil { code, c := mapDomainError(err); writeError(w, code, c, err.Error(), requestIDFromContext(r.Context())); return }
	writeSuccess(w, http.StatusOK, "party projects", contracts.PartyProjectsResponse{PartyID: partyID, ProjectKeys: keys})
}

func (h *Handler) partyRating(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	partyID := chi.URLParam(r, "partyID")
	agg, err := h.service.GetPartyRating(r.Context(), actor, partyID)
	if err != nil { code, c := mapDomainError(err); writeError(w, code, c, err.Error(), requestIDFromContext(r.Context())); return }
	writeSuccess(w, http.StatusOK, "party rating", contracts.PartyRatingResponse{PartyID: partyID, Sum: agg.Sum, Count: agg.Count, Average: agg.Average()})
}

func (h *Handler) deposit(w http.ResponseWriter, r *http.Request) {
	var req contracts.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil { writeError(w, http.StatusBadRequest, "invalid_input", "invalid json body", requestIDFromContext(r.Context())); return }
	actor := actorFromContext(r.Context())
	acc, err := h.service.Deposit(r.Context(), actor, application.DepositInput{ProjectKey: chi.URLParam(r, "projectKey"), Amount: req.Amount, Currency: req.Currency})
	if err != nil { code, c := mapDomainError(err); writeError(w, code, c, err.Error(), requestIDFromContext(r.Context())); return }
	writeSuccess(w, http.StatusOK, "deposit recorded", toBalanceResponse(acc, actor.SubjectID))
}

func (h *Handler) withdraw(w http.ResponseWriter, r *http.Request) {
	var req contracts.WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil { writeError(w, http.StatusBadRequest, "invalid_input", "invalid json body", requestIDFromContext(r.Context())); return }
	actor := actorFromContext(r.Context())
	acc, err := h.service.Withdraw(r.Context(), actor, application.WithdrawInput{ProjectKey: chi.URLParam(r, "projectKey"), Amount: req.Amount, Currency: req.Currency})
	if err != nil { code, c := mapDomainError(err); writeError(w, code, c, err.Error(), requestIDFromContext(r.Context())); return }
	writeSuccess(w, http.StatusOK, "withdrawal processed", toBalanceResponse(acc, actor.SubjectID))
}

func (h *Handler) escrowBalance(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	acc, err := h.service.GetEscrowBalance(r.Context(), actor, chi.URLParam(r, "projectKey"))
	if err != nil { code, c := mapDomainError(err); writeError(w, code, c, err.Error(), requestIDFromContext(r.Context())); return }
	writeSuccess(w, http.StatusOK, "escrow balance", toBalanceResponse(acc, actor.SubjectID))
}

func (h *Handler) escrowMovements(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	movements, err := h.service.ListMovements(r.Context(), actor, chi.URLParam(r, "projectKey"))
	if err != nil { code, c := mapDomainError(err); writeError(w, code, c, err.Error(), requestIDFromContext(r.Context())); return }
	out := make([]contracts.MovementResponse, 0, len(movements))
	for _, m := range movements {
		out = append(out, contracts.MovementResponse{MovementID: m.MovementID, Kind: m.Kind, Sender: m.Sender, Target: m.Target, Amount: m.Amount, Currency: m.Currency, OccurredAt: m.OccurredAt.Format(time.RFC3339Nano)})
	}
	writeSuccess(w, http.StatusOK, "escrow movements", out)
}

func (h *Handler) startMilestone(w http.ResponseWriter, r *http.Request) {
	var req contracts.StartMilestoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil { writeError(w, http.StatusBadRequest, "invalid_input", "invalid json body", requestIDFromContext(r.Context())); return }
	actor := actorFromContext(r.Context())
	milestone, err := h.service.StartMilestone(r.Context(), actor, application.StartMilestoneInput{
		ProjectKey:    req.ProjectKey,
		DepositAmount: req.DepositAmount,
		Currency:      req.Currency,
		Duration:      time.Duration(req.DurationSeconds) * time.Second,
	})
	if err != nil { code, c := mapDomainError(err); writeError(w, code, c, err.Error(), requestIDFromContext(r.Context())); return }
	writeSuccess(w, http.StatusCreated, "milestone started", toMilestoneResponse(milestone))
}

func (h *Handler) deliverMilestone(w http.ResponseWriter, r *http.Request) {
	var req contracts.MilestoneKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil { writeError(w, http.StatusBadRequest, "invalid_input", "invalid json body", requestIDFromContext(r.Context())); return }
	actor := actorFromContext(r.Context())
	milestone, err := h.service.DeliverMilestone(r.Context(), actor, req.ProjectKey)
	if err != nil { code, c := mapDomainError(err); writeError(w, code, c, err.Error(), requestIDFromContext(r.Context())); return }
	writeSuccess(w, http.StatusOK, "milestone delivered", toMilestoneResponse(milestone))
}

func (h *Handler) acceptMilestone(w http.ResponseWriter, r *http.Request) {
	var req contracts.MilestoneKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil { writeError(w, http.StatusBadRequest, "invalid_input", "invalid json body", requestIDFromContext(r.Context())); return }
	actor := actorFromContext(r.Context())
	milestone, err := h.service.AcceptMilestone(r.Context(), actor, req.ProjectKey)
	if err != nil { code, c := mapDomainError(err); writeError(w, code, c, err.Error(), requestIDFromContext(r.Context())); return }
	writeSuccess(w, http.StatusOK, "milestone accepted", toMilestoneResponse(milestone))
}

func (h *Handler) rejectMilestone(w http.ResponseWriter, r *http.Request) {
	var req contracts.MilestoneKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil { writeError(w, http.StatusBadRequest, "invalid_input", "invalid json body", requestIDFromContext(r.Context())); return }
	actor := actorFromContext(r.Context())
	milestone, err := h.service.RejectMilestone(r.Context(), actor, req.ProjectKey)
	if err != nil { code, c := mapDomainError(err); writeError(w, code, c, err.Error(), requestIDFromContext(r.Context())); return }
	writeSuccess(w, http.StatusOK, "milestone rejected", toMilestoneResponse(milestone))
}

func (h *Handler) adjustMilestone(w http.ResponseWriter, r *http.Request) {
	var req contracts.AdjustMilestoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil { writeError(w, http.StatusBadRequest, "invalid_input", "invalid json body", requestIDFromContext(r.Context())); return }
	actor := actorFromContext(r.Context())
	milestone, err := h.service.AdjustMilestoneDuration(r.Context(), actor, application.AdjustMilestoneInput{ProjectKey: req.ProjectKey, Duration: time.Duration(req.DurationSeconds) * time.Second})
	if err != nil { code, c := mapDomainError(err); writeError(w, code, c, err.Error(), requestIDFromContext(r.Context())); return }
	writeSuccess(w, http.StatusOK, "milestone duration adjusted", toMilestoneResponse(milestone))
}

func (h *Handler) listMilestones(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	milestones, err := h.service.ListMilestones(r.Context(), actor, chi.URLParam(r, "projectKey"))
	if err != nil { code, c := mapDomainError(err); writeError(w, code, c, err.Error(), requestIDFromContext(r.Context())); return }
	out := make([]contracts.MilestoneResponse, 0, len(milestones))
	for _, m := range milestones {
		out = append(out, toMilestoneResponse(m))
	}
	writeSuccess(w, http.StatusOK, "milestones", out)
}

func (h *Handler) startDispute(w http.ResponseWriter, r *http.Request) {
	var req contracts.StartDisputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil { writeError(w, http.StatusBadRequest, "invalid_input", "invalid json body", requestIDFromContext(r.Context())); return }
	actor := actorFromContext(r.Context())
	dispute, err := h.service.StartDispute(r.Context(), actor, application.StartDisputeInput{ProjectKey: req.ProjectKey, Respondent: req.Respondent, RespondentShareProposal: req.RespondentShareProposal})
	if err != nil { code, c := mapDomainError(err); writeError(w, code, c, err.Error(), requestIDFromContext(r.Context())); return }
	writeSuccess(w, http.StatusCreated, "dispute started", toDisputeResponse(dispute))
}

func (h *Handler) acceptProposal(w http.ResponseWriter, r *http.Request) {
	var req contracts.DisputeKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil { writeError(w, http.StatusBadRequest, "invalid_input", "invalid json body", requestIDFromContext(r.Context())); return }
	actor := actorFromContext(r.Context())
	dispute, err := h.service.AcceptProposal(r.Context(), actor, req.ProjectKey)
	if err != nil { code, c := mapDomainError(err); writeError(w, code, c, err.Error(), requestIDFromContext(r.Context())); return }
	writeSuccess(w, http.StatusOK, "proposal accepted", toDisputeResponse(dispute))
}

func (h *Handler) rejectProposal(w http.ResponseWriter, r *http.Request) {
	var req contracts.DisputeKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil { writeError(w, http.StatusBadRequest, "invalid_input", "invalid json body", requestIDFromContext(r.Context())); return }
	actor := actorFromContext(r.Context())
	dispute, err := h.service.RejectProposal(r.Context(), actor, req.ProjectKey)
	if err != nil { code, c := mapDomainError(err); writeError(w, code, c, err.Error(), requestIDFromContext(r.Context())); return }
	writeSuccess(w, http.StatusOK, "proposal rejected", toDisputeResponse(dispute))
}

func (h *Handler) settleDispute(w http.ResponseWriter, r *http.Request) {
	var req contracts.SettleDisputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil { writeError(w, http.StatusBadRequest, "invalid_input", "invalid json body", requestIDFromContext(r.Context())); return }
	actor := actorFromContext(r.Context())
	dispute, err := h.service.SettleDispute(r.Context(), actor, application.SettleDisputeInput{ProjectKey: req.ProjectKey, RespondentShare: req.RespondentShare, InitiatorShare: req.InitiatorShare})
	if err != nil { code, c := mapDomainError(err); writeError(w, code, c, err.Error(), requestIDFromContext(r.Context())); return }
	writeSuccess(w, http.StatusOK, "dispute settled", toDisputeResponse(dispute))
}

func (h *Handler) getDispute(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	dispute, err := h.service.GetDispute(r.Context(), actor, chi.URLParam(r, "projectKey"))
	if err != nil { code, c := mapDomainError(err); writeError(w, code, c, err.Error(), requestIDFromContext(r.Context())); return }
	writeSuccess(w, http.StatusOK, "dispute", toDisputeResponse(dispute))
}

func (h *Handler) upsertFees(w http.ResponseWriter, r *http.Request) {
	var req contracts.UpsertFeeScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil { writeError(w, http.StatusBadRequest, "invalid_input", "invalid json body", requestIDFromContext(r.Context())); return }
	actor := actorFromContext(r.Context())
	fees, err := h.service.UpsertFeeSchedule(r.Context(), actor, application.UpsertFeeScheduleInput{FixedFee: req.FixedFee, ShareFeePercent: req.ShareFeePercent})
	if err != nil { code, c := mapDomainError(err); writeError(w, code, c, err.Error(), requestIDFromContext(r.Context())); return }
	writeSuccess(w, http.StatusOK, "fee schedule saved", contracts.FeeScheduleResponse{ArbiterID: fees.ArbiterID, FixedFee: fees.FixedFee, ShareFeePercent: fees.ShareFeePercent})
}

func (h *Handler) getFees(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	fees, err := h.service.GetFees(r.Context(), actor, chi.URLParam(r, "arbiterID"))
	if err != nil { code, c := mapDomainError(err); writeError(w, code, c, err.Error(), requestIDFromContext(r.Context())); return }
	writeSuccess(w, http.StatusOK, "fee schedule", contracts.FeeScheduleResponse{ArbiterID: fees.ArbiterID, FixedFee: fees.FixedFee, ShareFeePercent: fees.ShareFeePercent})
}

func (h *Handler) resolveComponent(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	component := chi.URLParam(r, "component")
	addr, err := h.service.ResolveComponent(r.Context(), actor, component)
	if err != nil { code, c := mapDomainError(err); writeError(w, code, c, err.Error(), requestIDFromContext(r.Context())); return }
	writeSuccess(w, http.StatusOK, "component resolved", contracts.ComponentResolveResponse{Component: component, Address: addr})
}

func toProjectResponse(project domain.Project) contracts.ProjectResponse {
	out := contracts.ProjectResponse{
		ProjectKey:      project.ProjectKey,
		Client:          project.Client,
		Maker:           project.Maker,
		Arbiter:         project.Arbiter,
		EscrowID:        project.EscrowID,
		MilestonesCount: project.MilestonesCount,
		StartTime:       project.StartTime.Format(time.RFC3339Nano),
		ClientRating:    project.ClientRating,
		MakerRating:     project.MakerRating,
		ArbiterFixedFee: project.ArbiterFixedFee,
		ArbiterShareFee: project.ArbiterShareFee,
		Encrypted:       project.Encrypted,
	}
	if project.EndTime != nil {
		out.EndTime = project.EndTime.Format(time.RFC3339Nano)
	}
	return out
}

// toBalanceResponse renders the caller's own view of the account: full
// balances plus the allowance earmarked for the caller, if any.
func toBalanceResponse(acc domain.EscrowAccount, viewer string) contracts.EscrowBalanceResponse {
	out := contracts.EscrowBalanceResponse{
		ProjectKey: acc.ProjectKey,
		EscrowID:   acc.EscrowID,
		Owner:      acc.Owner,
		Operator:   acc.Operator,
		Available:  acc.Available,
		Blocked:    acc.Blocked,
	}
	if viewer = strings.TrimSpace(viewer); viewer != "" {
		if byCur, ok := acc.Allowances[viewer]; ok {
			out.Allowance = byCur
		}
	}
	return out
}

func toMilestoneResponse(milestone domain.Milestone) contracts.MilestoneResponse {
	out := contracts.MilestoneResponse{
		ProjectKey:      milestone.ProjectKey,
		Sequence:        milestone.Sequence,
		DepositAmount:   milestone.DepositAmount,
		Currency:        milestone.Currency,
		DurationSeconds: int64(milestone.Duration / time.Second),
		Status:          milestone.Status,
		StartTime:       milestone.StartTime.Format(time.RFC3339Nano),
		FundsBlocked:    milestone.FundsBlocked,
	}
	if milestone.AdjustedDuration > 0 {
		out.AdjustedSeconds = int64(milestone.AdjustedDuration / time.Second)
	}
	if milestone.DeliveryTime != nil {
		out.DeliveryTime = milestone.DeliveryTime.Format(time.RFC3339Nano)
	}
	return out
}

func toDisputeResponse(dispute domain.Dispute) contracts.DisputeResponse {
	out := contracts.DisputeResponse{
		DisputeID:       dispute.DisputeID,
		ProjectKey:      dispute.ProjectKey,
		Initiator:       dispute.Initiator,
		Respondent:      dispute.Respondent,
		StartTime:       dispute.StartTime.Format(time.RFC3339Nano),
		ReplyDeadline:   dispute.ReplyDeadline.Format(time.RFC3339Nano),
		RespondentShare: dispute.RespondentShare,
		InitiatorShare:  dispute.InitiatorShare,
	}
	if dispute.HasProposal() {
		proposal := dispute.RespondentShareProposal
		out.RespondentShareProposal = &proposal
	}
	if dispute.SettledTime != nil {
		out.SettledTime = dispute.SettledTime.Format(time.RFC3339Nano)
	}
	return out
}
