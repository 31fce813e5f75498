package domain

const (
	CanonicalEventClassDomain        = "domain"
	CanonicalEventClassAnalyticsOnly = "analytics_only"
	CanonicalEventClassOps           = "ops"
)

const (
	EventProjectCreated    = "project.created"
	EventProjectCompleted  = "project.completed"
	EventProjectTerminated = "project.terminated"

	EventMilestoneStarted   = "milestone.started"
	EventMilestoneDelivered = "milestone.delivered"
	EventMilestoneAccepted  = "milestone.accepted"
	EventMilestoneRejected  = "milestone.rejected"

	EventEscrowDeposited   = "escrow.deposited"
	EventEscrowWithdrawn   = "escrow.withdrawn"
	EventEscrowBlocked     = "escrow.blocked"
	EventEscrowUnblocked   = "escrow.unblocked"
	EventEscrowDistributed = "escrow.distributed"

	EventDisputeStarted          = "dispute.started"
	EventDisputeProposalAccepted = "dispute.proposal_accepted"
	EventDisputeProposalRejected = "dispute.proposal_rejected"
	EventDisputeSettled          = "dispute.settled"

	EventPaymentConfirmed = "payment.confirmed"
)

func IsCanonicalInputEvent(eventType string) bool {
	return eventType == EventPaymentConfirmed
}

func IsCanonicalEmittedEvent(eventType string) bool {
	switch eventType {
	case EventProjectCreated, EventProjectCompleted, EventProjectTerminated,
		EventMilestoneStarted, EventMilestoneDelivered, EventMilestoneAccepted, EventMilestoneRejected,
		EventEscrowDeposited, EventEscrowWithdrawn, EventEscrowBlocked, EventEscrowUnblocked, EventEscrowDistributed,
		EventDisputeStarted, EventDisputeProposalAccepted, EventDisputeProposalRejected, EventDisputeSettled:
		return true
	default:
		return false
	}
}

func CanonicalEventClass(eventType string) string {
	switch eventType {
	case EventEscrowDeposited, EventEscrowWithdrawn, EventEscrowBlocked, EventEscrowUnblocked, EventEscrowDistributed,
		EventDisputeSettled, EventProjectCompleted, EventProjectTerminated:
		return CanonicalEventClassDomain
	case EventProjectCreated,
		EventMilestoneStarted, EventMilestoneDelivered, EventMilestoneAccepted, EventMilestoneRejected,
		EventDisputeStarted, EventDisputeProposalAccepted, EventDisputeProposalRejected:
		return CanonicalEventClassAnalyticsOnly
	default:
		return ""
	}
}

func CanonicalPartitionKeyPath(eventType string) string {
	if IsCanonicalEmittedEvent(eventType) {
		return "data.project_key"
	}
	return ""
}
