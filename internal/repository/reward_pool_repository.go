package repository

import (
	"context"
	"errors"
	"log"

	"github.com/jackc/pgx/v5"
	errorvalues "github.com/limbo/stakesave/internal/error_values"
	"github.com/limbo/stakesave/pkg/entity"
)

type RewardPoolRepository struct {
	conn PgConnection
}

func NewRewardPoolRepo(cfg DBConfig) *RewardPoolRepository {
	return &RewardPoolRepository{
		conn: NewPool(cfg),
	}
}

func NewRewardPoolRepoWithConn(conn PgConnection) *RewardPoolRepository {
	err := conn.Ping(context.Background())
	if err != nil {
		log.Fatal("error while pinging connection for rewardPoolRepo: " + err.Error())
	}
	return &RewardPoolRepository{
		conn: conn,
	}
}

func (rp *RewardPoolRepository) Get(ctx context.Context, asset string) (*entity.RewardPool, error) {
	pool := entity.RewardPool{Asset: asset}
	row := rp.conn.QueryRow(ctx, `SELECT balance, total_credited, total_debited FROM reward_pools WHERE asset = $1;`, asset)
	if err := row.Scan(&pool.Balance, &pool.TotalCredited, &pool.TotalDebited); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &pool, nil
		}
		return nil, errors.New("getting reward pool error: " + err.Error())
	}
	return &pool, nil
}

func (rp *RewardPoolRepository) Drain(ctx context.Context, asset string, transfer func(ctx context.Context, amount int64) error) (int64, error) {
	var amount int64
	err := withTx(ctx, rp.conn, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `SELECT balance FROM reward_pools WHERE asset = $1 FOR UPDATE;`, asset).Scan(&amount)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				amount = 0
				return nil
			}
			return errors.New("locking reward pool error: " + err.Error())
		}
		if amount == 0 {
			return nil
		}
		_, err = tx.Exec(ctx,
			`UPDATE reward_pools SET balance = 0, total_debited = total_debited + $2, updated_at = NOW() WHERE asset = $1;`,
			asset, amount,
		)
		if err != nil {
			return errors.New("draining reward pool error: " + err.Error())
		}
		if transfer != nil {
			return transfer(ctx, amount)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return amount, nil
}

func creditPool(ctx context.Context, tx pgx.Tx, asset string, amount int64) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO reward_pools (asset, balance, total_credited) VALUES ($1, $2, $2) `+
			`ON CONFLICT (asset) DO UPDATE SET balance = reward_pools.balance + $2, total_credited = reward_pools.total_credited + $2, updated_at = NOW();`,
		asset, amount,
	)
	if err != nil {
		return errors.New("crediting reward pool error: " + err.Error())
	}
	return nil
}

func debitPool(ctx context.Context, tx pgx.Tx, asset string, amount int64) error {
	ct, err := tx.Exec(ctx,
		`UPDATE reward_pools SET balance = balance - $2, total_debited = total_debited + $2, updated_at = NOW() WHERE asset = $1 AND balance >= $2;`,
		asset, amount,
	)
	if err != nil {
		return errors.New("debiting reward pool error: " + err.Error())
	}
	if ct.RowsAffected() == 0 {
		return errorvalues.ErrInsufficientPool
	}
	return nil
}
