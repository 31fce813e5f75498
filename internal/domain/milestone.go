package domain

import "time"

const (
	MilestoneStatusStarted  = "started"
	MilestoneStatusAccepted = "accepted"
	MilestoneStatusRejected = "rejected"
)

// Milestone is one sequenced delivery unit of a project. Sequence numbers
// start at 1 and are gapless; at most one milestone per project is
// non-terminal at a time.
type Milestone struct {
	ProjectKey       string
	Sequence         int
	DepositAmount    int64
	Currency         string
	Duration         time.Duration
	AdjustedDuration time.Duration
	StartTime        time.Time
	DeliveryTime     *time.Time
	Status           string
	FundsBlocked     bool
	UpdatedAt        time.Time
}

func (m Milestone) Terminal() bool { return m.Status != MilestoneStatusStarted }

func (m Milestone) Delivered() bool { return m.DeliveryTime != nil }

// EffectiveDuration is the renegotiated duration when one was agreed,
// otherwise the original one.
func (m Milestone) EffectiveDuration() time.Duration {
	if m.AdjustedDuration > 0 {
		return m.AdjustedDuration
	}
	return m.Duration
}

func (m Milestone) Deadline() time.Time { return m.StartTime.Add(m.EffectiveDuration()) }

// Overdue reports whether the delivery deadline passed without a delivery.
func (m Milestone) Overdue(now time.Time) bool {
	return m.Status == MilestoneStatusStarted && !m.Delivered() && now.After(m.Deadline())
}

// FeedbackExpired reports whether the client let the feedback window elapse
// after a delivery without accepting or rejecting.
func (m Milestone) FeedbackExpired(window time.Duration, now time.Time) bool {
	return m.Status == MilestoneStatusStarted && m.Delivered() && window > 0 && now.After(m.DeliveryTime.Add(window))
}
