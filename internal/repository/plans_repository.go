package repository

import (
	"context"
	"errors"
	"log"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	errorvalues "github.com/limbo/stakesave/internal/error_values"
	"github.com/limbo/stakesave/pkg/cleanup"
	"github.com/limbo/stakesave/pkg/entity"
)

const planColumns = `id, owner, asset, daily_amount, total_days, penalty_stake, penalty_percent, current_day, missed_days, ` +
	`start_time, last_paid_at, first_miss_time, last_penalty_day, has_used_grace_period, ` +
	`is_active, is_completed, is_failed, is_withdrawn, withdrawn_amount`

type PlansRepository struct {
	conn PgConnection
}

// NewPool opens a pgxpool and registers its closing as a cleanup job
func NewPool(cfg DBConfig) *pgxpool.Pool {
	pool, err := pgxpool.New(context.Background(), cfg.ConnString())
	if err != nil {
		log.Fatal("creating pgxpool error: " + err.Error())
	}
	err = pool.Ping(context.Background())
	if err != nil {
		log.Fatal("error while pinging pgxpool: " + err.Error())
	}
	cleanup.Register(&cleanup.Job{
		Name: "closing pgxpool",
		F: func() error {
			pool.Close()
			return nil
		},
	})
	return pool
}

func NewPlansRepo(cfg DBConfig) *PlansRepository {
	return &PlansRepository{
		conn: NewPool(cfg),
	}
}

func NewPlansRepoWithConn(conn PgConnection) *PlansRepository {
	err := conn.Ping(context.Background())
	if err != nil {
		log.Fatal("error while pinging connection for plansRepo: " + err.Error())
	}
	return &PlansRepository{
		conn: conn,
	}
}

func (pr *PlansRepository) Insert(ctx context.Context, plan *entity.Plan, beforeCommit func(ctx context.Context, id int64) error) (int64, error) {
	if plan == nil {
		return 0, errors.New("plan is nil")
	}
	var id int64
	err := withTx(ctx, pr.conn, func(tx pgx.Tx) error {
		// counter row lock keeps ids gapless when a creation is rolled back
		err := tx.QueryRow(ctx, `UPDATE plan_counter SET value = value + 1 WHERE id = 1 RETURNING value;`).Scan(&id)
		if err != nil {
			return errors.New("assigning plan id error: " + err.Error())
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO plans (id, owner, asset, daily_amount, total_days, penalty_stake, penalty_percent) VALUES ($1, $2, $3, $4, $5, $6, $7);`,
			id,
			plan.Owner,
			plan.Asset,
			plan.DailyAmount,
			plan.TotalDays,
			plan.PenaltyStake,
			plan.PenaltyPercent,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) {
				switch pgErr.Code {
				// Check violation
				case "23514":
					return errorvalues.ErrInvalidParameter
				}
			}
			return errors.New("creating plan db error: " + err.Error())
		}
		if beforeCommit != nil {
			return beforeCommit(ctx, id)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (pr *PlansRepository) GetByID(ctx context.Context, id int64) (*entity.Plan, error) {
	plan, err := scanPlan(pr.conn.QueryRow(ctx, `SELECT `+planColumns+` FROM plans WHERE id = $1;`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errorvalues.ErrPlanNotFound
		}
		return nil, errors.New("getting plan by id error: " + err.Error())
	}
	return plan, nil
}

func (pr *PlansRepository) GetByOwner(ctx context.Context, owner string, limit, offset int) ([]*entity.Plan, error) {
	plans := make([]*entity.Plan, 0)
	rows, err := pr.conn.Query(ctx, `SELECT `+planColumns+` FROM plans WHERE owner = $1 ORDER BY id LIMIT $2 OFFSET $3;`, owner, limit, offset)
	if err != nil {
		return nil, errors.New("getting plans by owner error: " + err.Error())
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, errors.New("unmarshalling plan error: " + err.Error())
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New("unexpected error after scanning: " + err.Error())
	}
	return plans, nil
}

func (pr *PlansRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := pr.conn.QueryRow(ctx, `SELECT value FROM plan_counter WHERE id = 1;`).Scan(&count); err != nil {
		return 0, errors.New("error counting plans: " + err.Error())
	}
	return count, nil
}

func (pr *PlansRepository) Update(ctx context.Context, id int64, mutate PlanMutator) (*entity.Plan, error) {
	var updated *entity.Plan
	err := withTx(ctx, pr.conn, func(tx pgx.Tx) error {
		plan, err := scanPlan(tx.QueryRow(ctx, `SELECT `+planColumns+` FROM plans WHERE id = $1 FOR UPDATE;`, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errorvalues.ErrPlanNotFound
			}
			return errors.New("locking plan error: " + err.Error())
		}
		before := *plan
		change, err := mutate(ctx, plan, &txPoolReader{tx: tx})
		if err != nil {
			return err
		}
		updated = plan
		if *plan != before {
			if err := writePlan(ctx, tx, plan); err != nil {
				return err
			}
		}
		if change == nil {
			return nil
		}
		if change.PoolCredit > 0 {
			if err := creditPool(ctx, tx, plan.Asset, change.PoolCredit); err != nil {
				return err
			}
		}
		if change.PoolDebit > 0 {
			if err := debitPool(ctx, tx, plan.Asset, change.PoolDebit); err != nil {
				return err
			}
		}
		if change.BeforeCommit != nil {
			return change.BeforeCommit(ctx)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func writePlan(ctx context.Context, tx pgx.Tx, plan *entity.Plan) error {
	ct, err := tx.Exec(ctx,
		`UPDATE plans SET penalty_stake = $2, current_day = $3, missed_days = $4, start_time = $5, last_paid_at = $6, `+
			`first_miss_time = $7, last_penalty_day = $8, has_used_grace_period = $9, is_active = $10, is_completed = $11, `+
			`is_failed = $12, is_withdrawn = $13, withdrawn_amount = $14, updated_at = NOW() WHERE id = $1;`,
		plan.ID,
		plan.PenaltyStake,
		plan.CurrentDay,
		plan.MissedDays,
		plan.StartTime,
		plan.LastPaidAt,
		plan.FirstMissTime,
		plan.LastPenaltyDay,
		plan.HasUsedGracePeriod,
		plan.IsActive,
		plan.IsCompleted,
		plan.IsFailed,
		plan.IsWithdrawn,
		plan.WithdrawnAmount,
	)
	if err != nil {
		return errors.New("error updating plan: " + err.Error())
	}
	if ct.RowsAffected() == 0 {
		return errorvalues.ErrPlanNotFound
	}
	return nil
}

func scanPlan(row pgx.Row) (*entity.Plan, error) {
	var p entity.Plan
	err := row.Scan(
		&p.ID,
		&p.Owner,
		&p.Asset,
		&p.DailyAmount,
		&p.TotalDays,
		&p.PenaltyStake,
		&p.PenaltyPercent,
		&p.CurrentDay,
		&p.MissedDays,
		&p.StartTime,
		&p.LastPaidAt,
		&p.FirstMissTime,
		&p.LastPenaltyDay,
		&p.HasUsedGracePeriod,
		&p.IsActive,
		&p.IsCompleted,
		&p.IsFailed,
		&p.IsWithdrawn,
		&p.WithdrawnAmount,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

type txPoolReader struct {
	tx pgx.Tx
}

func (r *txPoolReader) Balance(ctx context.Context, asset string) (int64, error) {
	var balance int64
	// row lock keeps a concurrent drain out until this mutation commits
	err := r.tx.QueryRow(ctx, `SELECT balance FROM reward_pools WHERE asset = $1 FOR UPDATE;`, asset).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, errors.New("reading pool balance error: " + err.Error())
	}
	return balance, nil
}

func (r *txPoolReader) PendingSaved(ctx context.Context, asset string) (int64, error) {
	var saved int64
	err := r.tx.QueryRow(ctx,
		`SELECT LEAST(COALESCE(SUM(daily_amount::NUMERIC * total_days), 0), 9223372036854775807)::BIGINT `+
			`FROM plans WHERE asset = $1 AND is_completed AND NOT is_withdrawn;`,
		asset,
	).Scan(&saved)
	if err != nil {
		return 0, errors.New("summing pending savings error: " + err.Error())
	}
	return saved, nil
}

// withTx commits when fn succeeds and rolls back otherwise. fn errors are returned untouched
func withTx(ctx context.Context, conn PgConnection, fn func(tx pgx.Tx) error) error {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return errors.New("beginning transaction error: " + err.Error())
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			slog.Warn("rollback error", slog.String("error", rbErr.Error()))
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.New("committing transaction error: " + err.Error())
	}
	return nil
}
