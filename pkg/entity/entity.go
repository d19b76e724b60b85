package entity

import (
	"time"
)

// Plan is a single daily-savings commitment. Timestamps are unix seconds, 0 means "never".
type Plan struct {
	ID                 int64  `json:"id"`
	Owner              string `json:"owner"`
	Asset              string `json:"asset"`
	DailyAmount        int64  `json:"daily_amount"`
	TotalDays          int64  `json:"total_days"`
	PenaltyStake       int64  `json:"penalty_stake"`
	PenaltyPercent     int64  `json:"penalty_percent"`
	CurrentDay         int64  `json:"current_day"`
	MissedDays         int64  `json:"missed_days"`
	StartTime          int64  `json:"start_time"`
	LastPaidAt         int64  `json:"last_paid_at"`
	FirstMissTime      int64  `json:"first_miss_time"`
	LastPenaltyDay     int64  `json:"last_penalty_day"`
	HasUsedGracePeriod bool   `json:"has_used_grace_period"`
	IsActive           bool   `json:"is_active"`
	IsCompleted        bool   `json:"is_completed"`
	IsFailed           bool   `json:"is_failed"`
	IsWithdrawn        bool   `json:"is_withdrawn"`
	WithdrawnAmount    int64  `json:"withdrawn_amount"`
}

// SavedAmount is what the owner deposits over the whole streak.
func (p *Plan) SavedAmount() int64 {
	return p.DailyAmount * p.TotalDays
}

type PlanStatus struct {
	PlanID           int64 `json:"plan_id"`
	Now              int64 `json:"now"`
	DaysSinceStart   int64 `json:"days_since_start"`
	IsBehind         bool  `json:"is_behind"`
	MissedAt         int64 `json:"missed_at,omitempty"`
	NextDeadline     int64 `json:"next_deadline,omitempty"`
	GraceEndsAt      int64 `json:"grace_ends_at,omitempty"`
	CanDeductPenalty bool  `json:"can_deduct_penalty"`
	CanMarkFailed    bool  `json:"can_mark_failed"`
	SavedAmount      int64 `json:"saved_amount"`
	ProjectedPayout  int64 `json:"projected_payout"`
}

type Payout struct {
	SavedAmount     int64 `json:"saved_amount"`
	CompletionBonus int64 `json:"completion_bonus"`
	ReturnedStake   int64 `json:"returned_stake"`
	PoolShare       int64 `json:"pool_share"`
}

func (p Payout) Total() int64 {
	return p.SavedAmount + p.CompletionBonus + p.ReturnedStake + p.PoolShare
}

type Level struct {
	Name           string `json:"name" yaml:"name"`
	MinDays        int64  `json:"min_days" yaml:"min_days"`
	MaxDays        int64  `json:"max_days" yaml:"max_days"`
	MinDailyAmount int64  `json:"min_daily_amount" yaml:"min_daily_amount"`
	MaxDailyAmount int64  `json:"max_daily_amount" yaml:"max_daily_amount"`
	PenaltyPercent int64  `json:"penalty_percent" yaml:"penalty_percent"`
	Description    string `json:"description" yaml:"description"`
}

type EventType string

const (
	EventPlanCreated       EventType = "PlanCreated"
	EventDailyPaid         EventType = "DailyPaid"
	EventPlanCompleted     EventType = "PlanCompleted"
	EventPlanFailed        EventType = "PlanFailed"
	EventGraceStarted      EventType = "GraceStarted"
	EventPenaltyDeducted   EventType = "PenaltyDeducted"
	EventPlanWithdrawn     EventType = "PlanWithdrawn"
	EventRewardPoolDrained EventType = "RewardPoolDrained"
)

// PlanEvent is a fact emitted for external observers and indexers.
type PlanEvent struct {
	ID           string    `json:"id"`
	Type         EventType `json:"type"`
	PlanID       int64     `json:"plan_id,omitempty"`
	Owner        string    `json:"owner,omitempty"`
	Asset        string    `json:"asset,omitempty"`
	DailyAmount  int64     `json:"daily_amount,omitempty"`
	TotalDays    int64     `json:"total_days,omitempty"`
	PenaltyStake int64     `json:"penalty_stake,omitempty"`
	CurrentDay   int64     `json:"current_day,omitempty"`
	Amount       int64     `json:"amount,omitempty"`
	Recipient    string    `json:"recipient,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// RewardPool accumulates slashed stakes of one asset
type RewardPool struct {
	Asset         string `json:"asset"`
	Balance       int64  `json:"balance"`
	TotalCredited int64  `json:"total_credited"`
	TotalDebited  int64  `json:"total_debited"`
}

type PenaltyOutcome string

const (
	PenaltyNone         PenaltyOutcome = "none"
	PenaltyGraceStarted PenaltyOutcome = "grace_started"
	PenaltyDeducted     PenaltyOutcome = "deducted"
)

// PenaltyCheck is the result of one penalty evaluation
type PenaltyCheck struct {
	PlanID       int64          `json:"plan_id"`
	Outcome      PenaltyOutcome `json:"outcome"`
	Deducted     int64          `json:"deducted"`
	PenaltyStake int64          `json:"penalty_stake"`
	MissedDays   int64          `json:"missed_days"`
	GraceEndsAt  int64          `json:"grace_ends_at,omitempty"`
}
