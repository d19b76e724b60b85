package service

import (
	"context"

	"github.com/limbo/stakesave/pkg/entity"
)

type CreatePlanRequest struct {
	Asset        string `validate:"required,asset_ref"`
	DailyAmount  int64  `validate:"gt=0"`
	TotalDays    int64  `validate:"gt=0"`
	PenaltyStake int64  `validate:"gt=0"`
	// Falls back to the level's percent, then to DefaultPenaltyPercent
	PenaltyPercent *int64 `validate:"omitempty,min=0,max=100"`
	Level          string
}

type PaginationOpts struct {
	Limit  int
	Offset int
}

// TransferGatewayI moves funds between users and custody. Both calls are all-or-nothing
type TransferGatewayI interface {
	// Resolves asset to the spelling every record is keyed by. false for unsupported assets
	Canonical(asset string) (string, bool)
	// Takes amount from identity into custody
	Debit(ctx context.Context, identity, asset string, amount int64) error
	// Pays amount from custody to identity
	Credit(ctx context.Context, identity, asset string, amount int64) error
}

type AllowanceGatewayI interface {
	Approve(ctx context.Context, identity, asset string, amount int64) error
}

type PublisherI interface {
	Publish(ctx context.Context, event *entity.PlanEvent) error
}

type PlansServiceI interface {
	// Takes the stake from owner and stores a new active plan. Returns plan with its ID
	CreatePlan(ctx context.Context, owner string, req *CreatePlanRequest) (*entity.Plan, error)
	// Takes one daily amount from the caller and advances the streak
	PayDaily(ctx context.Context, caller string, planID int64) (*entity.Plan, error)
	// Permissionless. Opens the grace window on the first miss, slashes afterwards
	CheckAndDeductPenalty(ctx context.Context, planID int64) (*entity.PenaltyCheck, error)
	// Forfeits the remaining stake of a plan whose grace window is over
	MarkFailed(ctx context.Context, caller string, planID int64) (*entity.Plan, error)
	// Pays out a completed plan once
	Withdraw(ctx context.Context, caller string, planID int64) (*entity.Payout, error)

	GetPlan(ctx context.Context, planID int64) (*entity.Plan, error)
	GetPlanStatus(ctx context.Context, planID int64) (*entity.PlanStatus, error)
	ListPlans(ctx context.Context, owner string, pagination PaginationOpts) ([]*entity.Plan, error)
	PlanCount(ctx context.Context) (int64, error)
	RewardPoolBalance(ctx context.Context, asset string) (*entity.RewardPool, error)
	Levels() []entity.Level
}

type AdminServiceI interface {
	// Sweeps the whole pool of asset to recipient. Only the operator may call it
	EmergencyWithdrawRewardPool(ctx context.Context, caller, asset, recipient string) (int64, error)
}

type AllowanceServiceI interface {
	Approve(ctx context.Context, identity, asset string, amount int64) error
}
