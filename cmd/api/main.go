// @title StakeSave API
// @description Daily savings streaks backed by a penalty stake
// @BasePath /api/v1
// @schemes http
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/limbo/stakesave/internal/api"
	"github.com/limbo/stakesave/internal/events"
	"github.com/limbo/stakesave/internal/gateway"
	"github.com/limbo/stakesave/internal/repository"
	"github.com/limbo/stakesave/internal/service"
	"github.com/limbo/stakesave/internal/streak"
	"github.com/limbo/stakesave/pkg/cleanup"
	"github.com/limbo/stakesave/pkg/config"
	jwtservice "github.com/limbo/stakesave/pkg/jwt_service"
)

func init() {
	service.InitValidator()
}

type storage struct {
	plans   repository.PlansRepositoryI
	pools   repository.RewardPoolRepositoryI
	ledger  service.TransferGatewayI
	allowed service.AllowanceGatewayI
}

func main() {
	cfg := config.New()
	setUpLogger(cfg.LogLevel)
	defer cleanup.CleanUp()

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is empty")
	}
	assets := gateway.NewAssetSet(cfg.SupportedAssets...)
	st := newStorage(cfg, assets)
	publisher := newPublisher(cfg)

	levels, err := service.LoadLevels(cfg.LevelsFile)
	if err != nil {
		log.Fatal(err.Error())
	}
	plansService := service.NewPlansService(st.plans, st.pools, st.ledger, publisher,
		service.WithPolicy(streak.NewPolicy(cfg.GracePeriod, cfg.RewardBPS)),
		service.WithLevels(levels),
		service.WithAdmin(cfg.AdminIdentity),
	)
	serv := api.New(&api.ServicesList{
		PlansService:     plansService,
		AdminService:     service.NewAdminService(st.pools, st.ledger, publisher, cfg.AdminIdentity),
		AllowanceService: service.NewAllowanceService(st.allowed),
		JwtService:       jwtservice.NewWithTTL(cfg.JWTSecret, cfg.TokenTTL),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err = serv.Run(ctx, cfg.APIAddress)
	if err != nil {
		slog.Error("server error", slog.String("error", err.Error()))
	}
}

func setUpLogger(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
}

func newStorage(cfg *config.Config, assets gateway.AssetSet) storage {
	switch strings.ToLower(cfg.StorageDriver) {
	case "memory":
		slog.Warn("using in-memory storage, state is lost on restart")
		store := repository.NewMemoryStore()
		ledger := gateway.NewMemoryLedger(cfg.CustodyIdentity, assets)
		for _, identity := range cfg.DevFundedIdentities {
			for _, asset := range cfg.SupportedAssets {
				ledger.Fund(identity, asset, cfg.DevFundAmount)
			}
		}
		return storage{plans: store, pools: store, ledger: ledger, allowed: ledger}
	case "postgres":
		dbCfg := &repository.PGCfg{
			Address:  cfg.PostgresAddress,
			Username: cfg.PostgresUser,
			Password: cfg.PostgresPassword,
			DB:       cfg.PostgresDB,
		}
		pool := repository.NewPool(dbCfg)
		ledger := gateway.NewPostgresLedgerWithConn(pool, cfg.CustodyIdentity, assets)
		return storage{
			plans:   repository.NewPlansRepoWithConn(pool),
			pools:   repository.NewRewardPoolRepoWithConn(pool),
			ledger:  ledger,
			allowed: ledger,
		}
	default:
		log.Fatal("unknown storage driver: " + cfg.StorageDriver)
	}
	return storage{}
}

func newPublisher(cfg *config.Config) service.PublisherI {
	if len(cfg.KafkaBrokers) == 0 {
		slog.Info("no kafka brokers configured, plan events go to the log")
		return events.NewLogPublisher(slog.Default())
	}
	publisher := events.NewKafkaPublisher(events.KafkaConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaTopic,
	})
	cleanup.Register(&cleanup.Job{
		Name: "closing kafka writer",
		F:    publisher.Close,
	})
	return publisher
}
