package domain

import (
	"regexp"
	"time"
)

const (
	MinMilestones = 1
	MaxMilestones = 24
	MinRating     = 1
	MaxRating     = 10
)

var projectKeyPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Project binds client, maker, and arbiter to a dedicated escrow account.
// The key is the content hash of the off-chain agreement document. A project
// is never deleted; setting EndTime marks it ended.
type Project struct {
	ProjectKey           string
	Client               string
	Maker                string
	Arbiter              string
	EscrowID             string
	StartTime            time.Time
	EndTime              *time.Time
	MilestoneStartWindow time.Duration
	FeedbackWindow       time.Duration
	MilestonesCount      int
	ClientRating         int
	MakerRating          int
	ArbiterFixedFee      int64
	ArbiterShareFee      int
	Encrypted            bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (p Project) Ended() bool { return p.EndTime != nil }

func ValidProjectKey(key string) bool { return projectKeyPattern.MatchString(key) }

// ValidateParties enforces the three-distinct-identities rule fixed at
// project creation.
func ValidateParties(client, maker, arbiter string) error {
	if client == "" || maker == "" || arbiter == "" {
		return ErrInvalidInput
	}
	if client == maker || arbiter == client || arbiter == maker {
		return ErrInvalidInput
	}
	return nil
}

func ValidMilestonesCount(count int) bool {
	return count >= MinMilestones && count <= MaxMilestones
}

func ValidRating(rating int) bool { return rating >= MinRating && rating <= MaxRating }

// RatingAggregate is the running counterparty-rating sum/count for one
// identity across all of its ended projects.
type RatingAggregate struct {
	PartyID   string
	Sum       int64
	Count     int64
	UpdatedAt time.Time
}

func (r RatingAggregate) Average() float64 {
	if r.Count == 0 {
		return 0
	}
	return float64(r.Sum) / float64(r.Count)
}

// FeeSchedule is an arbiter's published fee terms. A project freezes a copy
// of the schedule at creation; later schedule changes never affect existing
// projects.
type FeeSchedule struct {
	ArbiterID       string
	FixedFee        int64
	ShareFeePercent int
	UpdatedAt       time.Time
}

func (f FeeSchedule) Valid() bool {
	return f.FixedFee >= 0 && f.ShareFeePercent >= 0 && f.ShareFeePercent <= 100
}
