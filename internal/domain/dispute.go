package domain

import "time"

// ProposalNone is the sentinel for "no outstanding share proposal".
const ProposalNone = -1

// Dispute is one arbitration round over a project's blocked milestone
// deposit. A settled dispute is terminal; the project key may carry a new
// dispute afterwards, subject to the milestone layer's own sequencing.
type Dispute struct {
	DisputeID               string
	ProjectKey              string
	Initiator               string
	Respondent              string
	RespondentShareProposal int
	StartTime               time.Time
	ReplyDeadline           time.Time
	SettledTime             *time.Time
	RespondentShare         int
	InitiatorShare          int
	UpdatedAt               time.Time
}

func (d Dispute) Settled() bool { return d.SettledTime != nil }

func (d Dispute) HasProposal() bool { return d.RespondentShareProposal != ProposalNone }

// ProposalExpired reports whether the reply deadline strictly elapsed. An
// unexpired proposal blocks arbiter settlement until the respondent answers
// or the deadline passes.
func (d Dispute) ProposalExpired(now time.Time) bool {
	return d.HasProposal() && now.After(d.ReplyDeadline)
}

// NormalizeShareProposal maps out-of-range proposals to the no-proposal
// sentinel rather than rejecting the call.
func NormalizeShareProposal(proposal int) int {
	if proposal < 0 || proposal > 100 {
		return ProposalNone
	}
	return proposal
}

// ValidateSettlementSplit enforces the exact-100 settlement rule.
func ValidateSettlementSplit(respondentShare, initiatorShare int) error {
	if respondentShare < 0 || respondentShare > 100 || initiatorShare < 0 || initiatorShare > 100 {
		return ErrInvalidSplit
	}
	if respondentShare+initiatorShare != 100 {
		return ErrInvalidSplit
	}
	return nil
}
