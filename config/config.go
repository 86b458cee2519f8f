/*
Package config loads service configuration from environment variables.

PURPOSE:
  Centralizes every tunable of the settlement service: HTTP listen port,
  database location, the cron schedules for the monthly settlement run and
  the pending-remittance expiry sweep, and the expiry horizon itself.

USAGE:
  cfg, err := config.Load()
  if err != nil {
      log.Fatal(err)
  }
  store, err := sqlite.New(cfg.DatabasePath)

  All values have working defaults so the service starts with no
  environment at all (in-process SQLite file, port 8080).
*/
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds all configuration for the settlement service.
type Config struct {
	// ServerPort is the HTTP listen port.
	ServerPort int `mapstructure:"SERVER_PORT"`

	// DatabasePath is the SQLite database file. ":memory:" for ephemeral runs.
	DatabasePath string `mapstructure:"DATABASE_PATH"`

	// SettlementSchedule is the cron expression for the automatic monthly
	// settlement run over the previous calendar month.
	SettlementSchedule string `mapstructure:"SETTLEMENT_SCHEDULE"`

	// ExpirySweepSchedule is the cron expression for the sweep that cancels
	// remittances stuck in PENDING past the expiry horizon.
	ExpirySweepSchedule string `mapstructure:"EXPIRY_SWEEP_SCHEDULE"`

	// PendingExpiryDays is how long a remittance may stay PENDING before the
	// sweep cancels it and releases its claims. Zero disables the sweep.
	PendingExpiryDays int `mapstructure:"PENDING_EXPIRY_DAYS"`

	// SchedulerEnabled turns the cron scheduler on or off entirely.
	SchedulerEnabled bool `mapstructure:"SCHEDULER_ENABLED"`

	// SeedScenarios loads the demo dataset on startup when the store is empty.
	SeedScenarios bool `mapstructure:"SEED_SCENARIOS"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	viper.SetDefault("SERVER_PORT", 8080)
	viper.SetDefault("DATABASE_PATH", "./data/settlement.db")
	viper.SetDefault("SETTLEMENT_SCHEDULE", "0 3 1 * *")  // At 03:00 on day-of-month 1.
	viper.SetDefault("EXPIRY_SWEEP_SCHEDULE", "0 * * * *") // Hourly.
	viper.SetDefault("PENDING_EXPIRY_DAYS", 30)
	viper.SetDefault("SCHEDULER_ENABLED", true)
	viper.SetDefault("SEED_SCENARIOS", false)
	viper.AutomaticEnv()

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("DATABASE_PATH")
	_ = viper.BindEnv("SETTLEMENT_SCHEDULE")
	_ = viper.BindEnv("EXPIRY_SWEEP_SCHEDULE")
	_ = viper.BindEnv("PENDING_EXPIRY_DAYS")
	_ = viper.BindEnv("SCHEDULER_ENABLED")
	_ = viper.BindEnv("SEED_SCENARIOS")

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if config.ServerPort <= 0 || config.ServerPort > 65535 {
		return nil, fmt.Errorf("SERVER_PORT out of range: %d", config.ServerPort)
	}
	if config.PendingExpiryDays < 0 {
		return nil, fmt.Errorf("PENDING_EXPIRY_DAYS must not be negative: %d", config.PendingExpiryDays)
	}

	return &config, nil
}
