package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/limbo/stakesave/pkg/entity"
)

// PoolReader gives a mutation read access to the reward pool of the plan's asset
type PoolReader interface {
	// Current pool balance, 0 when the asset never received penalties
	Balance(ctx context.Context, asset string) (int64, error)
	// Sum of saved amounts of completed plans that are not withdrawn yet
	PendingSaved(ctx context.Context, asset string) (int64, error)
}

// Change is what a plan mutation does beyond the plan row itself
type Change struct {
	PoolCredit int64
	PoolDebit  int64
	// Runs after every write and right before commit. Its error rolls the mutation back
	BeforeCommit func(ctx context.Context) error
}

// PlanMutator changes the locked plan in place. Returning an error aborts the whole update
type PlanMutator func(ctx context.Context, plan *entity.Plan, pool PoolReader) (*Change, error)

type PlansRepositoryI interface {
	// Assigns the next sequential id (starting at 1) and stores the plan.
	// beforeCommit may be nil, otherwise it runs in the same transaction
	Insert(ctx context.Context, plan *entity.Plan, beforeCommit func(ctx context.Context, id int64) error) (int64, error)
	// Searches plan with given id
	GetByID(ctx context.Context, id int64) (*entity.Plan, error)
	// Lists plans owned by identity. Requires pagination params provided
	GetByOwner(ctx context.Context, owner string, limit, offset int) ([]*entity.Plan, error)
	// Returns the value of the plan counter
	Count(ctx context.Context) (int64, error)
	// Locks the plan, applies mutate and persists plan and pool changes atomically
	Update(ctx context.Context, id int64, mutate PlanMutator) (*entity.Plan, error)
}

type RewardPoolRepositoryI interface {
	// Returns pool of the asset. Unknown assets give an empty pool
	Get(ctx context.Context, asset string) (*entity.RewardPool, error)
	// Zeroes the pool. transfer gets the drained amount and runs before commit
	Drain(ctx context.Context, asset string, transfer func(ctx context.Context, amount int64) error) (int64, error)
}

type DBConfig interface {
	ConnString() string
}

type PgConnection interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PGCfg struct {
	Address  string
	Username string
	Password string
	DB       string
}

func (pgcfg *PGCfg) ConnString() string {
	return fmt.Sprintf("postgresql://%s:%s@%s/%s", pgcfg.Username, pgcfg.Password, pgcfg.Address, pgcfg.DB)
}
