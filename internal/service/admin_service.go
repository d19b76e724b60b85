package service

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"time"

	errorvalues "github.com/limbo/stakesave/internal/error_values"
	"github.com/limbo/stakesave/internal/metrics"
	"github.com/limbo/stakesave/internal/repository"
	"github.com/limbo/stakesave/pkg/entity"
)

type AdminService struct {
	pools    repository.RewardPoolRepositoryI
	gateway  TransferGatewayI
	events   PublisherI
	operator string
}

func NewAdminService(pools repository.RewardPoolRepositoryI, gateway TransferGatewayI, publisher PublisherI, operator string) *AdminService {
	if pools == nil {
		log.Fatal("provided nil rewardPoolRepo")
	}
	if gateway == nil {
		log.Fatal("provided nil transfer gateway")
	}
	if publisher == nil {
		log.Fatal("provided nil publisher")
	}
	if operator == "" {
		slog.Warn("admin identity is not set, admin operations are disabled")
	}
	return &AdminService{
		pools:    pools,
		gateway:  gateway,
		events:   publisher,
		operator: operator,
	}
}

func (as *AdminService) EmergencyWithdrawRewardPool(ctx context.Context, caller, asset, recipient string) (amount int64, err error) {
	defer func() { metrics.RecordOperation("emergencyWithdrawRewardPool", err) }()
	if as.operator == "" || caller != as.operator {
		return 0, errorvalues.ErrNotAuthorized
	}
	if recipient == "" {
		return 0, errorvalues.InvalidParameter("recipient")
	}
	asset, ok := as.gateway.Canonical(asset)
	if !ok {
		return 0, errorvalues.InvalidParameter("invalid-token")
	}
	transferred := false
	amount, err = as.pools.Drain(ctx, asset, func(ctx context.Context, amount int64) error {
		if err := as.gateway.Credit(ctx, recipient, asset, amount); err != nil {
			return errorvalues.TransferDenied(err)
		}
		transferred = true
		return nil
	})
	if err != nil {
		if transferred {
			slog.ErrorContext(ctx, "pool drained to recipient but balance not zeroed",
				slog.String("asset", asset),
				slog.String("recipient", recipient),
				slog.String("error", err.Error()),
			)
		}
		if errors.Is(err, errorvalues.ErrTransferDenied) {
			return 0, err
		}
		return 0, errors.New("reward pool repository error: " + err.Error())
	}
	if amount > 0 {
		event := &entity.PlanEvent{
			Type:       entity.EventRewardPoolDrained,
			Asset:      asset,
			Amount:     amount,
			Recipient:  recipient,
			OccurredAt: time.Now().UTC(),
		}
		if err := as.events.Publish(ctx, event); err != nil {
			metrics.EventsPublishFailures.Inc()
			slog.ErrorContext(ctx, "publishing pool event error", slog.String("error", err.Error()))
		}
	}
	return amount, nil
}

type AllowanceService struct {
	gateway AllowanceGatewayI
}

func NewAllowanceService(gateway AllowanceGatewayI) *AllowanceService {
	if gateway == nil {
		log.Fatal("provided nil allowance gateway")
	}
	return &AllowanceService{gateway: gateway}
}

func (as *AllowanceService) Approve(ctx context.Context, identity, asset string, amount int64) error {
	if amount < 0 {
		return errorvalues.InvalidParameter("amount")
	}
	err := as.gateway.Approve(ctx, identity, asset, amount)
	if err != nil {
		if errors.Is(err, errorvalues.ErrAssetUnsupported) {
			return errorvalues.InvalidParameter("invalid-token")
		}
		if errors.Is(err, errorvalues.ErrInvalidParameter) {
			return err
		}
		return errors.New("ledger error: " + err.Error())
	}
	return nil
}
