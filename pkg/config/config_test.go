package config_test

import (
	"testing"
	"time"

	"github.com/limbo/stakesave/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := config.Parse()
		require.NoError(t, err)
		assert.Equal(t, "postgres", cfg.StorageDriver)
		assert.Equal(t, int64(2000), cfg.RewardBPS)
		assert.Equal(t, 48*time.Hour, cfg.GracePeriod)
		assert.Equal(t, "custody", cfg.CustodyIdentity)
	})
	t.Run("overrides", func(t *testing.T) {
		t.Setenv("STORAGE_DRIVER", "memory")
		t.Setenv("SUPPORTED_ASSETS", "cusd,celo")
		t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
		t.Setenv("GRACE_PERIOD", "24h")
		cfg, err := config.Parse()
		require.NoError(t, err)
		assert.Equal(t, "memory", cfg.StorageDriver)
		assert.Equal(t, []string{"cusd", "celo"}, cfg.SupportedAssets)
		assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
		assert.Equal(t, 24*time.Hour, cfg.GracePeriod)
	})
	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("GRACE_PERIOD", "two days")
		_, err := config.Parse()
		assert.Error(t, err)
	})
	t.Run("get string", func(t *testing.T) {
		t.Setenv("SOME_KEY", "value")
		cfg, err := config.Parse()
		require.NoError(t, err)
		assert.Equal(t, "value", cfg.GetString("SOME_KEY"))
	})
}
