package gateway_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errorvalues "github.com/limbo/stakesave/internal/error_values"
	"github.com/limbo/stakesave/internal/gateway"
)

const (
	custody = "custody"
	user    = "0xA11CE"
	usdc    = "0xUSDC"
)

func TestAssetSet(t *testing.T) {
	set := gateway.NewAssetSet("0xUSDC", " 0xDai ", "")
	assert.True(t, set.Supports("0xusdc"))
	assert.True(t, set.Supports("0xDAI"))
	assert.False(t, set.Supports("0xWETH"))
	assert.False(t, set.Supports(""))

	all := gateway.NewAssetSet()
	assert.True(t, all.Supports("0xWETH"))
	assert.False(t, all.Supports(""))

	canonical, ok := set.Canonical("0XUSDC")
	assert.True(t, ok)
	assert.Equal(t, "0xUSDC", canonical)
	canonical, ok = set.Canonical("0xdai")
	assert.True(t, ok)
	assert.Equal(t, "0xDai", canonical)
	_, ok = set.Canonical("0xWETH")
	assert.False(t, ok)
	canonical, ok = all.Canonical("0xWeth")
	assert.True(t, ok)
	assert.Equal(t, "0xWeth", canonical)
}

func TestMemoryLedgerAssetSpelling(t *testing.T) {
	ctx := context.Background()
	ledger := gateway.NewMemoryLedger(custody, gateway.NewAssetSet(usdc))
	ledger.Fund(user, usdc, 500)
	require.NoError(t, ledger.Approve(ctx, user, "0xusdc", 500))
	require.NoError(t, ledger.Debit(ctx, user, "0xusdc", 200))
	assert.Equal(t, int64(300), ledger.Balance(user, usdc))
	assert.Equal(t, int64(200), ledger.Balance(custody, "0xUsdc"))
	require.NoError(t, ledger.Credit(ctx, user, "0XUSDC", 50))
	assert.Equal(t, int64(350), ledger.Balance(user, usdc))
}

func TestMemoryLedger(t *testing.T) {
	ctx := context.Background()
	ledger := gateway.NewMemoryLedger(custody, gateway.NewAssetSet(usdc))
	ledger.Fund(user, usdc, 100)
	t.Run("debit requires allowance", func(t *testing.T) {
		err := ledger.Debit(ctx, user, usdc, 50)
		assert.ErrorIs(t, err, errorvalues.ErrInsufficientAllowance)
		assert.Equal(t, int64(100), ledger.Balance(user, usdc))
	})
	t.Run("debit requires balance", func(t *testing.T) {
		assert.NoError(t, ledger.Approve(ctx, user, usdc, 1000))
		err := ledger.Debit(ctx, user, usdc, 101)
		assert.ErrorIs(t, err, errorvalues.ErrInsufficientFunds)
	})
	t.Run("debit moves funds to custody", func(t *testing.T) {
		assert.NoError(t, ledger.Debit(ctx, user, usdc, 60))
		assert.Equal(t, int64(40), ledger.Balance(user, usdc))
		assert.Equal(t, int64(60), ledger.Balance(custody, usdc))
	})
	t.Run("credit moves funds from custody", func(t *testing.T) {
		assert.NoError(t, ledger.Credit(ctx, user, usdc, 10))
		assert.Equal(t, int64(50), ledger.Balance(user, usdc))
		assert.Equal(t, int64(50), ledger.Balance(custody, usdc))
	})
	t.Run("unsupported asset", func(t *testing.T) {
		assert.ErrorIs(t, ledger.Debit(ctx, user, "0xWETH", 1), errorvalues.ErrAssetUnsupported)
		assert.ErrorIs(t, ledger.Credit(ctx, user, "0xWETH", 1), errorvalues.ErrAssetUnsupported)
		assert.ErrorIs(t, ledger.Approve(ctx, user, "0xWETH", 1), errorvalues.ErrAssetUnsupported)
	})
	t.Run("negative allowance", func(t *testing.T) {
		assert.ErrorIs(t, ledger.Approve(ctx, user, usdc, -1), errorvalues.ErrInvalidParameter)
	})
}
