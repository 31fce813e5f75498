package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fairhold/escrow-arbitration-service/internal/contracts"
	"github.com/fairhold/escrow-arbitration-service/internal/domain"
)

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

func writeSuccess(w http.ResponseWriter, statusCode int, message string, data any) {
	writeJSON(w, statusCode, contracts.SuccessResponse{Status: "success", Message: message, Data: data})
}

func writeError(w http.ResponseWriter, statusCode int, code, message, requestID string) {
	writeJSON(w, statusCode, contracts.ErrorResponse{
		Status: "error",
		Error:  contracts.ErrorPayload{Code: code, Message: message, RequestID: requestID},
	})
}

func mapDomainError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrIdempotencyConflict),
		errors.Is(err, domain.ErrAlreadyInitialized),
		errors.Is(err, domain.ErrRatingAlreadySet),
		errors.Is(err, domain.ErrMilestoneActive),
		errors.Is(err, domain.ErrMilestonesExhausted),
		errors.Is(err, domain.ErrDisputeOpen),
		errors.Is(err, domain.ErrDisputeSettled),
		errors.Is(err, domain.ErrProposalOutstanding),
		errors.Is(err, domain.ErrProjectEnded),
		errors.Is(err, domain.ErrProjectActive):
		return http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrInsufficientAvailable),
		errors.Is(err, domain.ErrInsufficientBlocked),
		errors.Is(err, domain.ErrInsufficientAllowance):
		return http.StatusUnprocessableEntity, "insufficient_funds"
	case errors.Is(err, domain.ErrNotDelivered),
		errors.Is(err, domain.ErrNoActiveMilestone),
		errors.Is(err, domain.ErrNotDisputable),
		errors.Is(err, domain.ErrNoProposal):
		return http.StatusUnprocessableEntity, "precondition_failed"
	case errors.Is(err, domain.ErrInvalidSignature):
		return http.StatusUnprocessableEntity, "invalid_signature"
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidSplit),
		errors.Is(err, domain.ErrAmountOverflow),
		errors.Is(err, domain.ErrIdempotencyRequired),
		errors.Is(err, domain.ErrNotInitialized):
		return http.StatusBadRequest, "invalid_input"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
