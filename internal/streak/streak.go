// Package streak holds the time arithmetic of a savings streak. Everything here is a pure
// function of a plan snapshot and the current unix time.
package streak

import (
	"math"
	"math/bits"
	"time"

	"github.com/limbo/stakesave/pkg/entity"
)

const (
	SecondsPerDay int64 = 86400

	DefaultGracePeriod = 2 * SecondsPerDay
	DefaultRewardBPS   = 2000

	bpsDenominator = 10000
)

type Action int

const (
	ActionNone Action = iota
	// First detected miss: the one-time grace window opens, nothing is slashed.
	ActionStartGrace
	ActionDeduct
)

type Policy struct {
	// Seconds
	GracePeriod int64
	RewardBPS   int64
}

func DefaultPolicy() Policy {
	return Policy{
		GracePeriod: DefaultGracePeriod,
		RewardBPS:   DefaultRewardBPS,
	}
}

func NewPolicy(gracePeriod time.Duration, rewardBPS int64) Policy {
	p := DefaultPolicy()
	if gracePeriod > 0 {
		p.GracePeriod = int64(gracePeriod / time.Second)
	}
	if rewardBPS >= 0 {
		p.RewardBPS = rewardBPS
	}
	return p
}

// DaysSinceStart counts whole days elapsed since the first payment. Not started plans return 0.
func DaysSinceStart(plan *entity.Plan, now int64) int64 {
	if plan.StartTime == 0 || now <= plan.StartTime {
		return 0
	}
	return (now - plan.StartTime) / SecondsPerDay
}

func IsBehind(plan *entity.Plan, now int64) bool {
	return plan.StartTime > 0 && plan.CurrentDay < DaysSinceStart(plan, now)
}

// MissedAt is the moment the next unpaid day becomes overdue.
func MissedAt(plan *entity.Plan) int64 {
	if plan.StartTime == 0 {
		return 0
	}
	return plan.StartTime + (plan.CurrentDay+1)*SecondsPerDay
}

// NextDeadline is the end of the current day window.
func NextDeadline(plan *entity.Plan, now int64) int64 {
	if plan.StartTime == 0 {
		return 0
	}
	return plan.StartTime + (DaysSinceStart(plan, now)+1)*SecondsPerDay
}

// GraceEndsAt anchors on the recorded first miss, or on the overdue moment when no miss was recorded yet.
func (p Policy) GraceEndsAt(plan *entity.Plan) int64 {
	if plan.FirstMissTime > 0 {
		return plan.FirstMissTime + p.GracePeriod
	}
	if plan.StartTime == 0 {
		return 0
	}
	return MissedAt(plan) + p.GracePeriod
}

func PenaltyAmount(plan *entity.Plan) int64 {
	amount := plan.DailyAmount * plan.PenaltyPercent / 100
	if amount > plan.PenaltyStake {
		amount = plan.PenaltyStake
	}
	if amount < 0 {
		return 0
	}
	return amount
}

func (p Policy) AssessPenalty(plan *entity.Plan, now int64) Action {
	if !plan.IsActive || !IsBehind(plan, now) {
		return ActionNone
	}
	if plan.FirstMissTime == 0 {
		return ActionStartGrace
	}
	if now <= plan.FirstMissTime+p.GracePeriod {
		return ActionNone
	}
	// at most one deduction per day boundary
	if DaysSinceStart(plan, now) <= plan.LastPenaltyDay {
		return ActionNone
	}
	if PenaltyAmount(plan) == 0 {
		return ActionNone
	}
	return ActionDeduct
}

func (p Policy) GraceElapsed(plan *entity.Plan, now int64) bool {
	end := p.GraceEndsAt(plan)
	return end > 0 && now > end
}

func (p Policy) CanMarkFailed(plan *entity.Plan, now int64) bool {
	return plan.IsActive && IsBehind(plan, now) && p.GraceElapsed(plan, now)
}

// Payout without the reward-pool share.
func (p Policy) Payout(plan *entity.Plan) entity.Payout {
	saved := plan.SavedAmount()
	return entity.Payout{
		SavedAmount:     saved,
		CompletionBonus: saved * p.RewardBPS / bpsDenominator,
		ReturnedStake:   plan.PenaltyStake,
	}
}

// PayoutFits reports whether every amount derived from the plan parameters stays within int64.
func (p Policy) PayoutFits(dailyAmount, totalDays, penaltyStake int64) bool {
	if dailyAmount <= 0 || totalDays <= 0 || penaltyStake < 0 {
		return false
	}
	if dailyAmount > math.MaxInt64/100 || dailyAmount > math.MaxInt64/totalDays {
		return false
	}
	saved := dailyAmount * totalDays
	if p.RewardBPS > 0 && saved > math.MaxInt64/p.RewardBPS {
		return false
	}
	bonus := saved * p.RewardBPS / bpsDenominator
	return saved <= math.MaxInt64-bonus-penaltyStake
}

// PoolShare splits the pool pro rata by saved amount: balance * saved / pendingSaved.
func PoolShare(balance, saved, pendingSaved int64) int64 {
	if balance <= 0 || saved <= 0 || pendingSaved <= 0 {
		return 0
	}
	if saved >= pendingSaved {
		return balance
	}
	hi, lo := bits.Mul64(uint64(balance), uint64(saved))
	q, _ := bits.Div64(hi, lo, uint64(pendingSaved))
	return int64(q)
}

func (p Policy) Status(plan *entity.Plan, now int64) entity.PlanStatus {
	payout := p.Payout(plan)
	status := entity.PlanStatus{
		PlanID:          plan.ID,
		Now:             now,
		DaysSinceStart:  DaysSinceStart(plan, now),
		IsBehind:        plan.IsActive && IsBehind(plan, now),
		SavedAmount:     payout.SavedAmount,
		ProjectedPayout: payout.Total(),
	}
	if plan.IsActive {
		status.NextDeadline = NextDeadline(plan, now)
		status.CanDeductPenalty = p.AssessPenalty(plan, now) == ActionDeduct
		status.CanMarkFailed = p.CanMarkFailed(plan, now)
		if status.IsBehind {
			status.MissedAt = MissedAt(plan)
		}
		if status.IsBehind || plan.FirstMissTime > 0 {
			status.GraceEndsAt = p.GraceEndsAt(plan)
		}
	}
	return status
}
