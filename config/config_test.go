package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestLoad_Defaults(t *testing.T) {
	resetViper(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, "./data/settlement.db", cfg.DatabasePath)
	assert.Equal(t, "0 3 1 * *", cfg.SettlementSchedule)
	assert.Equal(t, "0 * * * *", cfg.ExpirySweepSchedule)
	assert.Equal(t, 30, cfg.PendingExpiryDays)
	assert.True(t, cfg.SchedulerEnabled)
	assert.False(t, cfg.SeedScenarios)
}

func TestLoad_EnvOverrides(t *testing.T) {
	resetViper(t)
	t.Setenv("SERVER_PORT", "9191")
	t.Setenv("DATABASE_PATH", ":memory:")
	t.Setenv("SETTLEMENT_SCHEDULE", "30 2 1 * *")
	t.Setenv("PENDING_EXPIRY_DAYS", "7")
	t.Setenv("SCHEDULER_ENABLED", "false")
	t.Setenv("SEED_SCENARIOS", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.ServerPort)
	assert.Equal(t, ":memory:", cfg.DatabasePath)
	assert.Equal(t, "30 2 1 * *", cfg.SettlementSchedule)
	assert.Equal(t, 7, cfg.PendingExpiryDays)
	assert.False(t, cfg.SchedulerEnabled)
	assert.True(t, cfg.SeedScenarios)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	t.Run("port out of range", func(t *testing.T) {
		resetViper(t)
		t.Setenv("SERVER_PORT", "70000")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("negative expiry", func(t *testing.T) {
		resetViper(t)
		t.Setenv("PENDING_EXPIRY_DAYS", "-1")

		_, err := Load()
		assert.Error(t, err)
	})
}

func TestLoad_ZeroExpiryDisablesSweep(t *testing.T) {
	resetViper(t)
	t.Setenv("PENDING_EXPIRY_DAYS", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.PendingExpiryDays)
}
