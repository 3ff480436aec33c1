package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Port                   int      `mapstructure:"port"`
	DatabasePath           string   `mapstructure:"database_path"`
	RulesPath              string   `mapstructure:"rules_path"`
	LogLevel               string   `mapstructure:"log_level"`
	AllowedOrigins         []string `mapstructure:"allowed_origins"`
	RequestTimeoutSec      int      `mapstructure:"request_timeout_sec"`      // HTTP read/write; 0 = use server default
	ShutdownTimeoutSec     int      `mapstructure:"shutdown_timeout_sec"`     // Graceful shutdown wait
	SignatureCacheSize     int      `mapstructure:"signature_cache_size"`     // LRU entries for hot signature reads
	RecurrenceThreshold    int      `mapstructure:"recurrence_threshold"`     // Occurrence count above which a signature escalates
	ImmediateAlertCritical bool     `mapstructure:"immediate_alert_critical"` // Escalate critical anomalies on sight
	DispatchDrainSec       int      `mapstructure:"dispatch_drain_sec"`       // Max wait for queued alerts on shutdown
	SummaryTopN            int      `mapstructure:"summary_top_n"`            // Top recurring signatures in the summary view
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/streamwatch/")
	viper.AddConfigPath("$HOME/.streamwatch")
	viper.AddConfigPath(".")

	// Defaults
	viper.SetDefault("port", 8080)
	viper.SetDefault("database_path", "./streamwatch.db")
	viper.SetDefault("rules_path", "./rules.yaml")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("allowed_origins", []string{"*"})
	viper.SetDefault("request_timeout_sec", 30)
	viper.SetDefault("shutdown_timeout_sec", 15)
	viper.SetDefault("signature_cache_size", 512)
	viper.SetDefault("recurrence_threshold", 10)
	viper.SetDefault("immediate_alert_critical", true)
	viper.SetDefault("dispatch_drain_sec", 5)
	viper.SetDefault("summary_top_n", 10)

	// Environment variables
	viper.SetEnvPrefix("STREAMWATCH")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; using defaults and env vars
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
