package repository

import (
	"context"
	"math"
	"sync"

	errorvalues "github.com/limbo/stakesave/internal/error_values"
	"github.com/limbo/stakesave/pkg/entity"
)

// MemoryStore keeps plans and pools in process memory. Mutations of one plan are serialized,
// different plans proceed independently.
type MemoryStore struct {
	insertMu sync.Mutex
	poolMu   sync.Mutex

	mu      sync.RWMutex
	counter int64
	plans   map[int64]*entity.Plan
	locks   map[int64]*sync.Mutex
	pools   map[string]*entity.RewardPool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		plans: make(map[int64]*entity.Plan),
		locks: make(map[int64]*sync.Mutex),
		pools: make(map[string]*entity.RewardPool),
	}
}

func (ms *MemoryStore) Insert(ctx context.Context, plan *entity.Plan, beforeCommit func(ctx context.Context, id int64) error) (int64, error) {
	ms.insertMu.Lock()
	defer ms.insertMu.Unlock()

	ms.mu.RLock()
	id := ms.counter + 1
	ms.mu.RUnlock()
	if beforeCommit != nil {
		if err := beforeCommit(ctx, id); err != nil {
			return 0, err
		}
	}
	stored := *plan
	stored.ID = id
	ms.mu.Lock()
	ms.counter = id
	ms.plans[id] = &stored
	ms.locks[id] = &sync.Mutex{}
	ms.mu.Unlock()
	return id, nil
}

func (ms *MemoryStore) GetByID(ctx context.Context, id int64) (*entity.Plan, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	p, ok := ms.plans[id]
	if !ok {
		return nil, errorvalues.ErrPlanNotFound
	}
	cp := *p
	return &cp, nil
}

func (ms *MemoryStore) GetByOwner(ctx context.Context, owner string, limit, offset int) ([]*entity.Plan, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	plans := make([]*entity.Plan, 0)
	skipped := 0
	for id := int64(1); id <= ms.counter && len(plans) < limit; id++ {
		p := ms.plans[id]
		if p == nil || p.Owner != owner {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		cp := *p
		plans = append(plans, &cp)
	}
	return plans, nil
}

func (ms *MemoryStore) Count(ctx context.Context) (int64, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return ms.counter, nil
}

func (ms *MemoryStore) Update(ctx context.Context, id int64, mutate PlanMutator) (*entity.Plan, error) {
	ms.mu.RLock()
	lock, ok := ms.locks[id]
	ms.mu.RUnlock()
	if !ok {
		return nil, errorvalues.ErrPlanNotFound
	}
	lock.Lock()
	defer lock.Unlock()

	ms.mu.RLock()
	plan := *ms.plans[id]
	ms.mu.RUnlock()

	change, err := mutate(ctx, &plan, memoryPoolReader{ms})
	if err != nil {
		return nil, err
	}
	if change == nil {
		change = &Change{}
	}
	touchesPool := change.PoolCredit != 0 || change.PoolDebit != 0
	if touchesPool {
		// held until the pool is written, like the pool row lock in postgres
		ms.poolMu.Lock()
		defer ms.poolMu.Unlock()
		balance, _ := memoryPoolReader{ms}.Balance(ctx, plan.Asset)
		if change.PoolDebit > balance+change.PoolCredit {
			return nil, errorvalues.ErrInsufficientPool
		}
	}
	if change.BeforeCommit != nil {
		if err := change.BeforeCommit(ctx); err != nil {
			return nil, err
		}
	}
	ms.mu.Lock()
	if touchesPool {
		pool := ms.poolLocked(plan.Asset)
		pool.Balance += change.PoolCredit - change.PoolDebit
		pool.TotalCredited += change.PoolCredit
		pool.TotalDebited += change.PoolDebit
	}
	ms.plans[id] = &plan
	ms.mu.Unlock()
	cp := plan
	return &cp, nil
}

func (ms *MemoryStore) Get(ctx context.Context, asset string) (*entity.RewardPool, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	p, ok := ms.pools[asset]
	if !ok {
		return &entity.RewardPool{Asset: asset}, nil
	}
	cp := *p
	return &cp, nil
}

func (ms *MemoryStore) Drain(ctx context.Context, asset string, transfer func(ctx context.Context, amount int64) error) (int64, error) {
	ms.poolMu.Lock()
	defer ms.poolMu.Unlock()
	amount, _ := memoryPoolReader{ms}.Balance(ctx, asset)
	if amount == 0 {
		return 0, nil
	}
	if transfer != nil {
		if err := transfer(ctx, amount); err != nil {
			return 0, err
		}
	}
	ms.mu.Lock()
	pool := ms.poolLocked(asset)
	pool.Balance = 0
	pool.TotalDebited += amount
	ms.mu.Unlock()
	return amount, nil
}

func (ms *MemoryStore) poolLocked(asset string) *entity.RewardPool {
	p, ok := ms.pools[asset]
	if !ok {
		p = &entity.RewardPool{Asset: asset}
		ms.pools[asset] = p
	}
	return p
}

type memoryPoolReader struct {
	ms *MemoryStore
}

func (r memoryPoolReader) Balance(ctx context.Context, asset string) (int64, error) {
	r.ms.mu.RLock()
	defer r.ms.mu.RUnlock()
	if p, ok := r.ms.pools[asset]; ok {
		return p.Balance, nil
	}
	return 0, nil
}

func (r memoryPoolReader) PendingSaved(ctx context.Context, asset string) (int64, error) {
	r.ms.mu.RLock()
	defer r.ms.mu.RUnlock()
	var saved int64
	for _, p := range r.ms.plans {
		if p.Asset == asset && p.IsCompleted && !p.IsWithdrawn {
			if p.SavedAmount() > math.MaxInt64-saved {
				return math.MaxInt64, nil
			}
			saved += p.SavedAmount()
		}
	}
	return saved, nil
}
