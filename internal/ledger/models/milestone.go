package models

import (
	"time"

	dErrors "aidtrace/pkg/domain-errors"
)

// MaxMilestones bounds a schedule.
const MaxMilestones = 8

// MilestoneRule is one (stage, percentage) payout rule of a schedule.
type MilestoneRule struct {
	Stage   Stage `json:"stage" yaml:"stage"`
	Percent uint8 `json:"percent" yaml:"percent"`
}

// Schedule is the ordered rule list instantiated for each new asset.
type Schedule []MilestoneRule

// DefaultSchedule pays 40% at Hub and 60% at Beneficiary.
func DefaultSchedule() Schedule {
	return Schedule{
		{Stage: StageHub, Percent: 40},
		{Stage: StageBeneficiary, Percent: 60},
	}
}

// NewSchedule validates rules: 1..MaxMilestones entries, each 1..100 percent,
// summing to at most 100.
func NewSchedule(rules []MilestoneRule) (Schedule, error) {
	if len(rules) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "milestone schedule must not be empty")
	}
	if len(rules) > MaxMilestones {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "milestone schedule has %d entries, at most %d allowed", len(rules), MaxMilestones)
	}
	var total int
	for i, r := range rules {
		if !r.Stage.IsValid() {
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "milestone %d has an invalid stage", i)
		}
		if r.Percent == 0 || r.Percent > 100 {
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "milestone %d percent must be between 1 and 100", i)
		}
		total += int(r.Percent)
	}
	if total > 100 {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "milestone percentages sum to %d, at most 100 allowed", total)
	}
	out := make(Schedule, len(rules))
	copy(out, rules)
	return out, nil
}

// Instantiate creates the unreleased milestone list for a new asset.
func (s Schedule) Instantiate() []Milestone {
	out := make([]Milestone, len(s))
	for i, r := range s {
		out[i] = Milestone{Position: i, Stage: r.Stage, Percent: r.Percent}
	}
	return out
}

// Milestone is a per-asset payout rule and its release record.
// IsReleased goes false→true at most once and never reverts.
type Milestone struct {
	Position       int        `json:"position"`
	Stage          Stage      `json:"stage"`
	Percent        uint8      `json:"percent"`
	IsReleased     bool       `json:"is_released"`
	ReleasedAmount uint64     `json:"released_amount"`
	ReleasedAt     *time.Time `json:"released_at,omitempty"`
}

// Reached reports whether the asset's stage satisfies this milestone.
func (m Milestone) Reached(stage Stage) bool {
	return stage >= m.Stage
}

// ApplyRelease records the payout. Callers must check IsReleased first.
func (m *Milestone) ApplyRelease(amount uint64, now time.Time) {
	at := now
	m.IsReleased = true
	m.ReleasedAmount = amount
	m.ReleasedAt = &at
}
