package gateway

import (
	"context"
	"sync"

	errorvalues "github.com/limbo/stakesave/internal/error_values"
)

type accountKey struct {
	identity string
	asset    string
}

type account struct {
	balance   int64
	allowance int64
}

type MemoryLedger struct {
	mu       sync.Mutex
	custody  string
	assets   AssetSet
	accounts map[accountKey]*account
}

func NewMemoryLedger(custody string, assets AssetSet) *MemoryLedger {
	return &MemoryLedger{
		custody:  custody,
		assets:   assets,
		accounts: make(map[accountKey]*account),
	}
}

func (ml *MemoryLedger) Canonical(asset string) (string, bool) {
	return ml.assets.Canonical(asset)
}

func (ml *MemoryLedger) Debit(ctx context.Context, identity, asset string, amount int64) error {
	asset, ok := ml.assets.Canonical(asset)
	if !ok {
		return errorvalues.ErrAssetUnsupported
	}
	if amount <= 0 {
		return nil
	}
	ml.mu.Lock()
	defer ml.mu.Unlock()
	acc := ml.account(identity, asset)
	if acc.balance < amount {
		return errorvalues.ErrInsufficientFunds
	}
	if acc.allowance < amount {
		return errorvalues.ErrInsufficientAllowance
	}
	acc.balance -= amount
	acc.allowance -= amount
	ml.account(ml.custody, asset).balance += amount
	return nil
}

func (ml *MemoryLedger) Credit(ctx context.Context, identity, asset string, amount int64) error {
	asset, ok := ml.assets.Canonical(asset)
	if !ok {
		return errorvalues.ErrAssetUnsupported
	}
	if amount <= 0 {
		return nil
	}
	ml.mu.Lock()
	defer ml.mu.Unlock()
	ml.account(identity, asset).balance += amount
	ml.account(ml.custody, asset).balance -= amount
	return nil
}

func (ml *MemoryLedger) Approve(ctx context.Context, identity, asset string, amount int64) error {
	asset, ok := ml.assets.Canonical(asset)
	if !ok {
		return errorvalues.ErrAssetUnsupported
	}
	if amount < 0 {
		return errorvalues.ErrInvalidParameter
	}
	ml.mu.Lock()
	defer ml.mu.Unlock()
	ml.account(identity, asset).allowance = amount
	return nil
}

// Fund mints amount into identity's balance
func (ml *MemoryLedger) Fund(identity, asset string, amount int64) {
	asset = ml.keyAsset(asset)
	ml.mu.Lock()
	defer ml.mu.Unlock()
	ml.account(identity, asset).balance += amount
}

func (ml *MemoryLedger) Balance(identity, asset string) int64 {
	asset = ml.keyAsset(asset)
	ml.mu.Lock()
	defer ml.mu.Unlock()
	return ml.account(identity, asset).balance
}

func (ml *MemoryLedger) keyAsset(asset string) string {
	if canonical, ok := ml.assets.Canonical(asset); ok {
		return canonical
	}
	return asset
}

func (ml *MemoryLedger) account(identity, asset string) *account {
	key := accountKey{identity: identity, asset: asset}
	acc, ok := ml.accounts[key]
	if !ok {
		acc = &account{}
		ml.accounts[key] = acc
	}
	return acc
}
