package service_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/limbo/stakesave/internal/gateway"
	"github.com/limbo/stakesave/internal/repository"
	"github.com/limbo/stakesave/pkg/entity"
)

type mockState int

const (
	stateSuccess mockState = iota
	stateDBError
	stateCommitError
	statePublishError
)

const (
	owner    = "0xA11CE"
	stranger = "0xB0B"
	admin    = "0xAD01"
	custody  = "custody"
	usdc     = "0xUSDC"
	funds    = int64(1_000_000)
	day      = 24 * time.Hour
)

var startTime = time.Unix(1_700_000_000, 0)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type publisherMock struct {
	mu     sync.Mutex
	state  mockState
	events []entity.PlanEvent
}

func (pm *publisherMock) Publish(ctx context.Context, event *entity.PlanEvent) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if pm.state == statePublishError {
		return errors.New("broker unavailable")
	}
	pm.events = append(pm.events, *event)
	return nil
}

func (pm *publisherMock) types() []entity.EventType {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	out := make([]entity.EventType, 0, len(pm.events))
	for _, e := range pm.events {
		out = append(out, e.Type)
	}
	return out
}

func (pm *publisherMock) last() entity.PlanEvent {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.events[len(pm.events)-1]
}

// plansRepoMock wraps a memory store and breaks it on demand
type plansRepoMock struct {
	*repository.MemoryStore
	state mockState
}

func (prm *plansRepoMock) Insert(ctx context.Context, plan *entity.Plan, beforeCommit func(ctx context.Context, id int64) error) (int64, error) {
	switch prm.state {
	case stateDBError:
		return 0, errors.New("db error")
	case stateCommitError:
		if err := beforeCommit(ctx, 1); err != nil {
			return 0, err
		}
		return 0, errors.New("commit failed")
	default:
		return prm.MemoryStore.Insert(ctx, plan, beforeCommit)
	}
}

func (prm *plansRepoMock) Update(ctx context.Context, id int64, mutate repository.PlanMutator) (*entity.Plan, error) {
	switch prm.state {
	case stateDBError:
		return nil, errors.New("db error")
	case stateCommitError:
		plan, err := prm.MemoryStore.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		change, err := mutate(ctx, plan, nil)
		if err != nil {
			return nil, err
		}
		if change != nil && change.BeforeCommit != nil {
			if err := change.BeforeCommit(ctx); err != nil {
				return nil, err
			}
		}
		return nil, errors.New("commit failed")
	default:
		return prm.MemoryStore.Update(ctx, id, mutate)
	}
}

type env struct {
	store     *repository.MemoryStore
	repo      *plansRepoMock
	ledger    *gateway.MemoryLedger
	publisher *publisherMock
	clock     *clock
}

func newEnv() *env {
	store := repository.NewMemoryStore()
	ledger := gateway.NewMemoryLedger(custody, gateway.NewAssetSet(usdc))
	for _, id := range []string{owner, stranger} {
		ledger.Fund(id, usdc, funds)
		ledger.Approve(context.Background(), id, usdc, funds)
	}
	return &env{
		store:     store,
		repo:      &plansRepoMock{MemoryStore: store},
		ledger:    ledger,
		publisher: &publisherMock{},
		clock:     &clock{now: startTime},
	}
}
