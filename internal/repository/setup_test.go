package repository_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/pressly/goose"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/limbo/stakesave/pkg/entity"
)

type testPGConfig struct {
	connStr string
}

func (c *testPGConfig) ConnString() string {
	return c.connStr
}

var planCols = []string{
	"id", "owner", "asset", "daily_amount", "total_days", "penalty_stake", "penalty_percent", "current_day", "missed_days",
	"start_time", "last_paid_at", "first_miss_time", "last_penalty_day", "has_used_grace_period",
	"is_active", "is_completed", "is_failed", "is_withdrawn", "withdrawn_amount",
}

// planWriteArgs matches the fourteen columns written on plan update
func planWriteArgs() []any {
	args := make([]any, 14)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func planRows(plans ...entity.Plan) *pgxmock.Rows {
	rows := pgxmock.NewRows(planCols)
	for _, p := range plans {
		rows.AddRow(p.ID, p.Owner, p.Asset, p.DailyAmount, p.TotalDays, p.PenaltyStake, p.PenaltyPercent, p.CurrentDay, p.MissedDays,
			p.StartTime, p.LastPaidAt, p.FirstMissTime, p.LastPenaltyDay, p.HasUsedGracePeriod,
			p.IsActive, p.IsCompleted, p.IsFailed, p.IsWithdrawn, p.WithdrawnAmount)
	}
	return rows
}

func setupTestDB(t *testing.T) *testPGConfig {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	container, err := postgres.Run(context.Background(), "postgres:17",
		postgres.WithUsername("test_user"),
		postgres.WithDatabase("stakesave"),
		postgres.WithPassword("test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatal("error running test container: " + err.Error())
	}
	t.Cleanup(func() {
		container.Terminate(context.Background())
	})
	connStr, err := container.ConnectionString(context.Background(), "sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}
	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	err = goose.Up(conn, "../../migrations")
	if err != nil {
		t.Fatal(err)
	}
	return &testPGConfig{
		connStr: connStr,
	}
}
