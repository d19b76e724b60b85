package gateway

import (
	"context"
	"errors"
	"log"
	"log/slog"

	"github.com/jackc/pgx/v5"
	errorvalues "github.com/limbo/stakesave/internal/error_values"
	"github.com/limbo/stakesave/internal/repository"
)

// PostgresLedger keeps account balances and allowances in the accounts table.
// Funds taken from users are held by the custody identity.
type PostgresLedger struct {
	conn    repository.PgConnection
	custody string
	assets  AssetSet
}

func NewPostgresLedger(cfg repository.DBConfig, custody string, assets AssetSet) *PostgresLedger {
	return NewPostgresLedgerWithConn(repository.NewPool(cfg), custody, assets)
}

func NewPostgresLedgerWithConn(conn repository.PgConnection, custody string, assets AssetSet) *PostgresLedger {
	if custody == "" {
		log.Fatal("custody identity is empty")
	}
	err := conn.Ping(context.Background())
	if err != nil {
		log.Fatal("error while pinging connection for ledger: " + err.Error())
	}
	return &PostgresLedger{
		conn:    conn,
		custody: custody,
		assets:  assets,
	}
}

func (pl *PostgresLedger) Canonical(asset string) (string, bool) {
	return pl.assets.Canonical(asset)
}

// Debit moves amount from identity to custody. Requires both balance and allowance
func (pl *PostgresLedger) Debit(ctx context.Context, identity, asset string, amount int64) error {
	asset, ok := pl.assets.Canonical(asset)
	if !ok {
		return errorvalues.ErrAssetUnsupported
	}
	if amount <= 0 {
		return nil
	}
	return pl.inTx(ctx, func(tx pgx.Tx) error {
		ct, err := tx.Exec(ctx,
			`UPDATE accounts SET balance = balance - $3, allowance = allowance - $3, updated_at = NOW() `+
				`WHERE identity = $1 AND asset = $2 AND balance >= $3 AND allowance >= $3;`,
			identity, asset, amount,
		)
		if err != nil {
			return errors.New("debiting account error: " + err.Error())
		}
		if ct.RowsAffected() == 0 {
			return debitDenialCause(ctx, tx, identity, asset, amount)
		}
		return addBalance(ctx, tx, pl.custody, asset, amount)
	})
}

// Credit moves amount from custody to identity
func (pl *PostgresLedger) Credit(ctx context.Context, identity, asset string, amount int64) error {
	asset, ok := pl.assets.Canonical(asset)
	if !ok {
		return errorvalues.ErrAssetUnsupported
	}
	if amount <= 0 {
		return nil
	}
	return pl.inTx(ctx, func(tx pgx.Tx) error {
		if err := addBalance(ctx, tx, identity, asset, amount); err != nil {
			return err
		}
		return addBalance(ctx, tx, pl.custody, asset, -amount)
	})
}

// Approve sets how much custody may take from identity
func (pl *PostgresLedger) Approve(ctx context.Context, identity, asset string, amount int64) error {
	asset, ok := pl.assets.Canonical(asset)
	if !ok {
		return errorvalues.ErrAssetUnsupported
	}
	if amount < 0 {
		return errorvalues.ErrInvalidParameter
	}
	_, err := pl.conn.Exec(ctx,
		`INSERT INTO accounts (identity, asset, allowance) VALUES ($1, $2, $3) `+
			`ON CONFLICT (identity, asset) DO UPDATE SET allowance = $3, updated_at = NOW();`,
		identity, asset, amount,
	)
	if err != nil {
		return errors.New("approving allowance error: " + err.Error())
	}
	return nil
}

func (pl *PostgresLedger) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := pl.conn.Begin(ctx)
	if err != nil {
		return errors.New("beginning ledger transaction error: " + err.Error())
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			slog.Warn("ledger rollback error", slog.String("error", rbErr.Error()))
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.New("committing ledger transaction error: " + err.Error())
	}
	return nil
}

func addBalance(ctx context.Context, tx pgx.Tx, identity, asset string, delta int64) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO accounts (identity, asset, balance) VALUES ($1, $2, $3) `+
			`ON CONFLICT (identity, asset) DO UPDATE SET balance = accounts.balance + $3, updated_at = NOW();`,
		identity, asset, delta,
	)
	if err != nil {
		return errors.New("updating account balance error: " + err.Error())
	}
	return nil
}

func debitDenialCause(ctx context.Context, tx pgx.Tx, identity, asset string, amount int64) error {
	var balance, allowance int64
	err := tx.QueryRow(ctx, `SELECT balance, allowance FROM accounts WHERE identity = $1 AND asset = $2;`, identity, asset).
		Scan(&balance, &allowance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errorvalues.ErrInsufficientFunds
		}
		return errors.New("reading account error: " + err.Error())
	}
	if balance < amount {
		return errorvalues.ErrInsufficientFunds
	}
	return errorvalues.ErrInsufficientAllowance
}
