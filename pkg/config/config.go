package config

import (
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	once     sync.Once
	instance *Config
)

const envFile = "./configs/.env"

type Config struct {
	APIAddress string `env:"API_ADDRESS" envDefault:":8080"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`

	// "postgres" or "memory"
	StorageDriver    string `env:"STORAGE_DRIVER" envDefault:"postgres"`
	PostgresAddress  string `env:"POSTGRES_DB_ADDRESS" envDefault:"localhost:5432"`
	PostgresUser     string `env:"POSTGRES_USER"`
	PostgresPassword string `env:"POSTGRES_PASSWORD"`
	PostgresDB       string `env:"POSTGRES_DB" envDefault:"stakesave"`

	JWTSecret       string   `env:"JWT_SECRET"`
	AdminIdentity   string   `env:"ADMIN_IDENTITY"`
	CustodyIdentity string   `env:"CUSTODY_IDENTITY" envDefault:"custody"`
	SupportedAssets []string `env:"SUPPORTED_ASSETS" envSeparator:","`

	RewardBPS   int64         `env:"REWARD_BPS" envDefault:"2000"`
	GracePeriod time.Duration `env:"GRACE_PERIOD" envDefault:"48h"`
	LevelsFile  string        `env:"LEVELS_FILE"`

	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"stakesave.plans"`

	// Memory driver only: identities credited with DevFundAmount of every supported asset at startup
	DevFundedIdentities []string      `env:"DEV_FUNDED_IDENTITIES" envSeparator:","`
	DevFundAmount       int64         `env:"DEV_FUND_AMOUNT" envDefault:"1000000"`
	TokenTTL            time.Duration `env:"TOKEN_TTL" envDefault:"1h"`
}

// New loads ./configs/.env (if present) once and parses the environment into Config
func New() *Config {
	once.Do(func() {
		err := godotenv.Load(envFile)
		if err != nil && !os.IsNotExist(err) {
			slog.Warn("loading envs error", slog.String("error", err.Error()))
		}
		cfg, err := Parse()
		if err != nil {
			slog.Error("parsing envs error", slog.String("error", err.Error()))
			os.Exit(1)
		}
		instance = cfg
	})
	return instance
}

// Parse reads Config from the current process environment
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) GetString(key string) string {
	return os.Getenv(key)
}
