package service

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"math"
	"time"

	errorvalues "github.com/limbo/stakesave/internal/error_values"
	"github.com/limbo/stakesave/internal/metrics"
	"github.com/limbo/stakesave/internal/repository"
	"github.com/limbo/stakesave/internal/streak"
	"github.com/limbo/stakesave/pkg/entity"
)

const DefaultPenaltyPercent int64 = 10

type PlansService struct {
	plans   repository.PlansRepositoryI
	pools   repository.RewardPoolRepositoryI
	gateway TransferGatewayI
	events  PublisherI
	policy  streak.Policy
	levels  *LevelCatalog
	admin   string
	now     func() time.Time
}

type Option func(*PlansService)

func WithPolicy(p streak.Policy) Option {
	return func(ps *PlansService) { ps.policy = p }
}

func WithLevels(c *LevelCatalog) Option {
	return func(ps *PlansService) {
		if c != nil {
			ps.levels = c
		}
	}
}

// WithAdmin lets the operator identity mark any plan failed
func WithAdmin(identity string) Option {
	return func(ps *PlansService) { ps.admin = identity }
}

func WithClock(now func() time.Time) Option {
	return func(ps *PlansService) {
		if now != nil {
			ps.now = now
		}
	}
}

func NewPlansService(plans repository.PlansRepositoryI, pools repository.RewardPoolRepositoryI, gateway TransferGatewayI, publisher PublisherI, opts ...Option) *PlansService {
	if plans == nil {
		log.Fatal("provided nil plansRepo")
	}
	if pools == nil {
		log.Fatal("provided nil rewardPoolRepo")
	}
	if gateway == nil {
		log.Fatal("provided nil transfer gateway")
	}
	if publisher == nil {
		log.Fatal("provided nil publisher")
	}
	InitValidator()
	ps := &PlansService{
		plans:   plans,
		pools:   pools,
		gateway: gateway,
		events:  publisher,
		policy:  streak.DefaultPolicy(),
		levels:  DefaultLevels(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(ps)
	}
	return ps
}

func (ps *PlansService) CreatePlan(ctx context.Context, owner string, req *CreatePlanRequest) (plan *entity.Plan, err error) {
	defer func() { metrics.RecordOperation("createPlan", err) }()
	if req == nil {
		return nil, errorvalues.ErrInvalidParameter
	}
	if err := validate.Struct(*req); err != nil {
		return nil, validationError(err)
	}
	asset, ok := ps.gateway.Canonical(req.Asset)
	if !ok {
		return nil, errorvalues.InvalidParameter("invalid-token")
	}
	percent, err := ps.resolvePercent(req)
	if err != nil {
		return nil, err
	}
	if !ps.policy.PayoutFits(req.DailyAmount, req.TotalDays, req.PenaltyStake) {
		return nil, errorvalues.InvalidParameter("amount-overflow")
	}
	p := entity.Plan{
		Owner:          owner,
		Asset:          asset,
		DailyAmount:    req.DailyAmount,
		TotalDays:      req.TotalDays,
		PenaltyStake:   req.PenaltyStake,
		PenaltyPercent: percent,
		IsActive:       true,
	}
	transferred := false
	id, err := ps.plans.Insert(ctx, &p, func(ctx context.Context, id int64) error {
		if err := ps.gateway.Debit(ctx, owner, p.Asset, p.PenaltyStake); err != nil {
			return errorvalues.TransferDenied(err)
		}
		transferred = true
		return nil
	})
	if err != nil {
		if transferred {
			ps.refund(ctx, owner, p.Asset, p.PenaltyStake, err)
		}
		return nil, repoError(err)
	}
	p.ID = id
	ps.publish(ctx, &entity.PlanEvent{
		Type:         entity.EventPlanCreated,
		PlanID:       p.ID,
		Owner:        p.Owner,
		Asset:        p.Asset,
		DailyAmount:  p.DailyAmount,
		TotalDays:    p.TotalDays,
		PenaltyStake: p.PenaltyStake,
	})
	return &p, nil
}

func (ps *PlansService) resolvePercent(req *CreatePlanRequest) (int64, error) {
	percent := DefaultPenaltyPercent
	if req.Level != "" {
		level, ok := ps.levels.Find(req.Level)
		if !ok {
			return 0, errorvalues.InvalidParameter("unknown-level")
		}
		if req.TotalDays < level.MinDays || req.TotalDays > level.MaxDays ||
			req.DailyAmount < level.MinDailyAmount || req.DailyAmount > level.MaxDailyAmount {
			return 0, errorvalues.InvalidParameter("level-range")
		}
		percent = level.PenaltyPercent
	}
	if req.PenaltyPercent != nil {
		percent = *req.PenaltyPercent
	}
	return percent, nil
}

func (ps *PlansService) PayDaily(ctx context.Context, caller string, planID int64) (plan *entity.Plan, err error) {
	defer func() { metrics.RecordOperation("payDaily", err) }()
	transferred := false
	var debited entity.Plan
	updated, err := ps.plans.Update(ctx, planID, func(ctx context.Context, p *entity.Plan, _ repository.PoolReader) (*repository.Change, error) {
		if p.Owner != caller {
			return nil, errorvalues.ErrNotPlanOwner
		}
		if !p.IsActive || p.CurrentDay >= p.TotalDays {
			return nil, errorvalues.ErrAlreadyTerminal
		}
		now := ps.now().Unix()
		if p.CurrentDay == 0 {
			p.StartTime = now
		}
		p.LastPaidAt = now
		p.CurrentDay++
		if p.CurrentDay == p.TotalDays {
			p.IsActive = false
			p.IsCompleted = true
		}
		debited = *p
		return &repository.Change{
			BeforeCommit: func(ctx context.Context) error {
				if err := ps.gateway.Debit(ctx, caller, p.Asset, p.DailyAmount); err != nil {
					return errorvalues.TransferDenied(err)
				}
				transferred = true
				return nil
			},
		}, nil
	})
	if err != nil {
		if transferred {
			ps.refund(ctx, caller, debited.Asset, debited.DailyAmount, err)
		}
		return nil, repoError(err)
	}
	event := &entity.PlanEvent{
		Type:       entity.EventDailyPaid,
		PlanID:     updated.ID,
		Owner:      updated.Owner,
		Asset:      updated.Asset,
		CurrentDay: updated.CurrentDay,
		Amount:     updated.DailyAmount,
	}
	if updated.IsCompleted {
		event.Type = entity.EventPlanCompleted
	}
	ps.publish(ctx, event)
	return updated, nil
}

func (ps *PlansService) CheckAndDeductPenalty(ctx context.Context, planID int64) (check *entity.PenaltyCheck, err error) {
	defer func() { metrics.RecordOperation("checkAndDeductPenalty", err) }()
	outcome := entity.PenaltyNone
	var deducted int64
	updated, err := ps.plans.Update(ctx, planID, func(ctx context.Context, p *entity.Plan, _ repository.PoolReader) (*repository.Change, error) {
		// terminal plans fall through as a no-op
		now := ps.now().Unix()
		switch ps.policy.AssessPenalty(p, now) {
		case streak.ActionStartGrace:
			p.FirstMissTime = now
			p.HasUsedGracePeriod = true
			outcome = entity.PenaltyGraceStarted
			return nil, nil
		case streak.ActionDeduct:
			deducted = streak.PenaltyAmount(p)
			p.PenaltyStake -= deducted
			p.MissedDays++
			p.LastPenaltyDay = streak.DaysSinceStart(p, now)
			outcome = entity.PenaltyDeducted
			return &repository.Change{PoolCredit: deducted}, nil
		}
		return nil, nil
	})
	if err != nil {
		return nil, repoError(err)
	}
	check = &entity.PenaltyCheck{
		PlanID:       updated.ID,
		Outcome:      outcome,
		Deducted:     deducted,
		PenaltyStake: updated.PenaltyStake,
		MissedDays:   updated.MissedDays,
	}
	if updated.FirstMissTime > 0 {
		check.GraceEndsAt = ps.policy.GraceEndsAt(updated)
	}
	switch outcome {
	case entity.PenaltyGraceStarted:
		ps.publish(ctx, &entity.PlanEvent{
			Type:       entity.EventGraceStarted,
			PlanID:     updated.ID,
			Owner:      updated.Owner,
			Asset:      updated.Asset,
			CurrentDay: updated.CurrentDay,
		})
	case entity.PenaltyDeducted:
		metrics.PenaltiesDeducted.WithLabelValues(updated.Asset, "penalty").Add(float64(deducted))
		ps.publish(ctx, &entity.PlanEvent{
			Type:         entity.EventPenaltyDeducted,
			PlanID:       updated.ID,
			Owner:        updated.Owner,
			Asset:        updated.Asset,
			PenaltyStake: updated.PenaltyStake,
			CurrentDay:   updated.CurrentDay,
			Amount:       deducted,
		})
	}
	return check, nil
}

func (ps *PlansService) MarkFailed(ctx context.Context, caller string, planID int64) (plan *entity.Plan, err error) {
	defer func() { metrics.RecordOperation("markFailed", err) }()
	var forfeited int64
	updated, err := ps.plans.Update(ctx, planID, func(ctx context.Context, p *entity.Plan, _ repository.PoolReader) (*repository.Change, error) {
		if p.Owner != caller && (ps.admin == "" || caller != ps.admin) {
			return nil, errorvalues.ErrNotPlanOwner
		}
		if !p.IsActive {
			return nil, errorvalues.ErrAlreadyTerminal
		}
		now := ps.now().Unix()
		if !streak.IsBehind(p, now) {
			return nil, errorvalues.ErrNoMissedPayment
		}
		if !ps.policy.GraceElapsed(p, now) {
			return nil, errorvalues.ErrGracePeriodActive
		}
		forfeited = p.PenaltyStake
		p.PenaltyStake = 0
		p.IsActive = false
		p.IsFailed = true
		return &repository.Change{PoolCredit: forfeited}, nil
	})
	if err != nil {
		return nil, repoError(err)
	}
	metrics.PenaltiesDeducted.WithLabelValues(updated.Asset, "forfeit").Add(float64(forfeited))
	ps.publish(ctx, &entity.PlanEvent{
		Type:       entity.EventPlanFailed,
		PlanID:     updated.ID,
		Owner:      updated.Owner,
		Asset:      updated.Asset,
		CurrentDay: updated.CurrentDay,
		Amount:     forfeited,
	})
	return updated, nil
}

func (ps *PlansService) Withdraw(ctx context.Context, caller string, planID int64) (payout *entity.Payout, err error) {
	defer func() { metrics.RecordOperation("withdraw", err) }()
	var result entity.Payout
	transferred := false
	updated, err := ps.plans.Update(ctx, planID, func(ctx context.Context, p *entity.Plan, pool repository.PoolReader) (*repository.Change, error) {
		if p.Owner != caller {
			return nil, errorvalues.ErrNotPlanOwner
		}
		if p.IsWithdrawn {
			return nil, errorvalues.ErrAlreadyWithdrawn
		}
		if !p.IsCompleted {
			return nil, errorvalues.ErrPlanNotCompleted
		}
		result = ps.policy.Payout(p)
		balance, err := pool.Balance(ctx, p.Asset)
		if err != nil {
			return nil, err
		}
		pending, err := pool.PendingSaved(ctx, p.Asset)
		if err != nil {
			return nil, err
		}
		share := streak.PoolShare(balance, result.SavedAmount, pending)
		if room := math.MaxInt64 - result.Total(); share > room {
			share = room
		}
		result.PoolShare = share
		p.IsWithdrawn = true
		p.WithdrawnAmount = result.Total()
		return &repository.Change{
			PoolDebit: share,
			BeforeCommit: func(ctx context.Context) error {
				if err := ps.gateway.Credit(ctx, caller, p.Asset, result.Total()); err != nil {
					return errorvalues.TransferDenied(err)
				}
				transferred = true
				return nil
			},
		}, nil
	})
	if err != nil {
		if transferred {
			// a credit can't be pulled back without the owner's allowance
			slog.ErrorContext(ctx, "payout credited but withdrawal not recorded",
				slog.Int64("plan_id", planID),
				slog.String("owner", caller),
				slog.Int64("amount", result.Total()),
				slog.String("error", err.Error()),
			)
		}
		return nil, repoError(err)
	}
	metrics.PayoutsTotal.WithLabelValues(updated.Asset).Add(float64(result.Total()))
	ps.publish(ctx, &entity.PlanEvent{
		Type:       entity.EventPlanWithdrawn,
		PlanID:     updated.ID,
		Owner:      updated.Owner,
		Asset:      updated.Asset,
		CurrentDay: updated.CurrentDay,
		Amount:     result.Total(),
		Recipient:  caller,
	})
	return &result, nil
}

func (ps *PlansService) GetPlan(ctx context.Context, planID int64) (*entity.Plan, error) {
	plan, err := ps.plans.GetByID(ctx, planID)
	if err != nil {
		return nil, repoError(err)
	}
	return plan, nil
}

func (ps *PlansService) GetPlanStatus(ctx context.Context, planID int64) (*entity.PlanStatus, error) {
	plan, err := ps.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	status := ps.policy.Status(plan, ps.now().Unix())
	return &status, nil
}

func (ps *PlansService) ListPlans(ctx context.Context, owner string, pagination PaginationOpts) ([]*entity.Plan, error) {
	plans, err := ps.plans.GetByOwner(ctx, owner, pagination.Limit, pagination.Offset)
	if err != nil {
		return nil, repoError(err)
	}
	return plans, nil
}

func (ps *PlansService) PlanCount(ctx context.Context) (int64, error) {
	count, err := ps.plans.Count(ctx)
	if err != nil {
		return 0, repoError(err)
	}
	return count, nil
}

func (ps *PlansService) RewardPoolBalance(ctx context.Context, asset string) (*entity.RewardPool, error) {
	if canonical, ok := ps.gateway.Canonical(asset); ok {
		asset = canonical
	}
	pool, err := ps.pools.Get(ctx, asset)
	if err != nil {
		return nil, errors.New("reward pool repository error: " + err.Error())
	}
	return pool, nil
}

func (ps *PlansService) Levels() []entity.Level {
	return ps.levels.All()
}

// refund returns a debit whose state change was not committed
func (ps *PlansService) refund(ctx context.Context, identity, asset string, amount int64, cause error) {
	err := ps.gateway.Credit(ctx, identity, asset, amount)
	if err != nil {
		slog.ErrorContext(ctx, "refund failed",
			slog.String("identity", identity),
			slog.String("asset", asset),
			slog.Int64("amount", amount),
			slog.String("cause", cause.Error()),
			slog.String("error", err.Error()),
		)
		return
	}
	slog.WarnContext(ctx, "debit refunded after failed commit",
		slog.String("identity", identity),
		slog.String("asset", asset),
		slog.Int64("amount", amount),
		slog.String("cause", cause.Error()),
	)
}

func (ps *PlansService) publish(ctx context.Context, event *entity.PlanEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = ps.now().UTC()
	}
	if err := ps.events.Publish(ctx, event); err != nil {
		metrics.EventsPublishFailures.Inc()
		slog.ErrorContext(ctx, "publishing plan event error",
			slog.String("type", string(event.Type)),
			slog.Int64("plan_id", event.PlanID),
			slog.String("error", err.Error()),
		)
	}
}

var knownErrors = []error{
	errorvalues.ErrInvalidParameter,
	errorvalues.ErrPlanNotFound,
	errorvalues.ErrNotPlanOwner,
	errorvalues.ErrPlanNotCompleted,
	errorvalues.ErrAlreadyTerminal,
	errorvalues.ErrAlreadyWithdrawn,
	errorvalues.ErrNoMissedPayment,
	errorvalues.ErrGracePeriodActive,
	errorvalues.ErrTransferDenied,
	errorvalues.ErrInsufficientPool,
	errorvalues.ErrNotAuthorized,
}

// repoError passes domain errors through and hides everything else behind a generic message
func repoError(err error) error {
	for _, known := range knownErrors {
		if errors.Is(err, known) {
			return err
		}
	}
	return errors.New("plans repository error: " + err.Error())
}
