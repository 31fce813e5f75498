package domain

import "errors"

var (
	ErrUnauthorized          = errors.New("unauthorized")
	ErrForbidden             = errors.New("forbidden")
	ErrNotFound              = errors.New("not found")
	ErrInvalidInput          = errors.New("invalid input")
	ErrConflict              = errors.New("conflict")
	ErrIdempotencyRequired   = errors.New("idempotency key required")
	ErrIdempotencyConflict   = errors.New("idempotency conflict")
	ErrUnsupportedEventType  = errors.New("unsupported event type")
	ErrUnsupportedEventClass = errors.New("unsupported event class")
	ErrInvalidEnvelope       = errors.New("invalid envelope")

	ErrAlreadyInitialized    = errors.New("escrow already initialized")
	ErrNotInitialized        = errors.New("escrow not initialized")
	ErrInsufficientAvailable = errors.New("insufficient available balance")
	ErrInsufficientBlocked   = errors.New("insufficient blocked balance")
	ErrInsufficientAllowance = errors.New("insufficient withdrawal allowance")
	ErrAmountOverflow        = errors.New("amount overflow")

	ErrProjectEnded        = errors.New("project already ended")
	ErrProjectActive       = errors.New("project still active")
	ErrInvalidSignature    = errors.New("invalid maker signature")
	ErrRatingAlreadySet    = errors.New("rating already set")
	ErrMilestoneActive     = errors.New("milestone already active")
	ErrNoActiveMilestone   = errors.New("no active milestone")
	ErrMilestonesExhausted = errors.New("milestone count exhausted")
	ErrNotDelivered        = errors.New("milestone not delivered")

	ErrDisputeOpen         = errors.New("dispute already open")
	ErrDisputeSettled      = errors.New("dispute already settled")
	ErrNotDisputable       = errors.New("target not in a disputable state")
	ErrProposalOutstanding = errors.New("proposal outstanding")
	ErrNoProposal          = errors.New("no outstanding proposal")
	ErrInvalidSplit        = errors.New("settlement shares must sum to 100")
)
