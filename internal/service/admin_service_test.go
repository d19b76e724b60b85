package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errorvalues "github.com/limbo/stakesave/internal/error_values"
	"github.com/limbo/stakesave/internal/service"
	"github.com/limbo/stakesave/pkg/entity"
)

func TestEmergencyWithdrawRewardPool(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	plans := e.service()
	adminService := service.NewAdminService(e.store, e.ledger, e.publisher, admin)

	plan := missedPlan(t, e, plans)
	e.clock.Advance(10 * day)
	_, err := plans.MarkFailed(ctx, owner, plan.ID)
	require.NoError(t, err)

	t.Run("not authorized", func(t *testing.T) {
		_, err := adminService.EmergencyWithdrawRewardPool(ctx, owner, usdc, owner)
		assert.ErrorIs(t, err, errorvalues.ErrNotAuthorized)
		pool, _ := plans.RewardPoolBalance(ctx, usdc)
		assert.Equal(t, int64(100), pool.Balance)
	})
	t.Run("missing recipient", func(t *testing.T) {
		_, err := adminService.EmergencyWithdrawRewardPool(ctx, admin, usdc, "")
		assert.ErrorIs(t, err, errorvalues.ErrInvalidParameter)
	})
	t.Run("drains to recipient", func(t *testing.T) {
		amount, err := adminService.EmergencyWithdrawRewardPool(ctx, admin, usdc, "0xTREASURY")
		require.NoError(t, err)
		assert.Equal(t, int64(100), amount)
		assert.Equal(t, int64(100), e.ledger.Balance("0xTREASURY", usdc))
		pool, _ := plans.RewardPoolBalance(ctx, usdc)
		assert.Equal(t, int64(0), pool.Balance)
		ev := e.publisher.last()
		assert.Equal(t, entity.EventRewardPoolDrained, ev.Type)
		assert.Equal(t, "0xTREASURY", ev.Recipient)
	})
	t.Run("empty pool", func(t *testing.T) {
		amount, err := adminService.EmergencyWithdrawRewardPool(ctx, admin, usdc, "0xTREASURY")
		assert.NoError(t, err)
		assert.Equal(t, int64(0), amount)
	})
	t.Run("disabled without operator", func(t *testing.T) {
		nobody := service.NewAdminService(e.store, e.ledger, e.publisher, "")
		_, err := nobody.EmergencyWithdrawRewardPool(ctx, "", usdc, "0xTREASURY")
		assert.ErrorIs(t, err, errorvalues.ErrNotAuthorized)
	})
	t.Run("transfer failure keeps pool", func(t *testing.T) {
		other := newEnv()
		s := other.service()
		p := missedPlan(t, other, s)
		other.clock.Advance(10 * day)
		_, err := s.MarkFailed(ctx, owner, p.ID)
		require.NoError(t, err)
		failing := service.NewAdminService(other.store, &failingCreditLedger{other.ledger}, other.publisher, admin)
		_, err = failing.EmergencyWithdrawRewardPool(ctx, admin, usdc, "0xTREASURY")
		assert.ErrorIs(t, err, errorvalues.ErrTransferDenied)
		pool, _ := s.RewardPoolBalance(ctx, usdc)
		assert.Equal(t, int64(100), pool.Balance)
	})
}

func TestApprove(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	s := service.NewAllowanceService(e.ledger)
	assert.NoError(t, s.Approve(ctx, owner, usdc, 0))
	assert.ErrorIs(t, e.ledger.Debit(ctx, owner, usdc, 1), errorvalues.ErrInsufficientAllowance)

	err := s.Approve(ctx, owner, "0xWETH", 10)
	assert.ErrorIs(t, err, errorvalues.ErrInvalidParameter)
	err = s.Approve(ctx, owner, usdc, -5)
	assert.ErrorIs(t, err, errorvalues.ErrInvalidParameter)
}

func TestLoadLevels(t *testing.T) {
	c, err := service.LoadLevels("")
	require.NoError(t, err)
	hard, ok := c.Find("HARD")
	assert.True(t, ok)
	assert.Equal(t, int64(31), hard.MinDays)
	assert.Equal(t, int64(20), hard.PenaltyPercent)

	_, err = service.ParseLevels([]byte("- name: Broken\n  min_days: 10\n  max_days: 5\n  min_daily_amount: 1\n  max_daily_amount: 2\n"))
	assert.Error(t, err)
	_, err = service.ParseLevels([]byte("- name: A\n  min_days: 1\n  max_days: 5\n  min_daily_amount: 1\n  max_daily_amount: 2\n- name: a\n  min_days: 1\n  max_days: 5\n  min_daily_amount: 1\n  max_daily_amount: 2\n"))
	assert.Error(t, err)
	_, err = service.LoadLevels("/does/not/exist.yaml")
	assert.Error(t, err)
}
