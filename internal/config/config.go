// Package config loads the service configuration from YAML with
// environment variable expansion.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the service.
type Config struct {
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Database  DatabaseConfig  `yaml:"database"`
	Server    ServerConfig    `yaml:"server"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`
}

// UpstreamConfig holds GraphQL indexer settings.
type UpstreamConfig struct {
	GraphQLEndpoint string        `yaml:"graphql_endpoint"`
	Timeout         time.Duration `yaml:"timeout"`
}

// DatabaseConfig holds the Postgres connection. When UseMemory is set the
// service runs on in-memory stores and never touches Postgres.
type DatabaseConfig struct {
	DSN       string `yaml:"dsn"`
	UseMemory bool   `yaml:"use_memory"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	ListenAddr   string   `yaml:"listen_addr"`
	APIKeys      []string `yaml:"api_keys"`
	AdminAPIKeys []string `yaml:"admin_api_keys"`
}

// SchedulerConfig holds the cron expressions for the periodic sweeps.
type SchedulerConfig struct {
	Enabled       bool   `yaml:"enabled"`
	FetchSchedule string `yaml:"fetch_schedule"`
	OHLCSchedule  string `yaml:"ohlc_schedule"`
}

// IngestionConfig holds upstream paging and sweep settings.
type IngestionConfig struct {
	PageSize     int `yaml:"page_size"`
	SweepWorkers int `yaml:"sweep_workers"`
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Upstream.Timeout == 0 {
		c.Upstream.Timeout = 30 * time.Second
	}
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
	if c.Scheduler.FetchSchedule == "" {
		c.Scheduler.FetchSchedule = "@every 1m"
	}
	if c.Scheduler.OHLCSchedule == "" {
		c.Scheduler.OHLCSchedule = "@every 1m"
	}
	if c.Ingestion.PageSize == 0 {
		c.Ingestion.PageSize = 1000
	}
	if c.Ingestion.SweepWorkers == 0 {
		c.Ingestion.SweepWorkers = 4
	}
	if c.Metrics.ListenAddr == "" {
		c.Metrics.ListenAddr = ":9090"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks required fields after defaults are applied.
func (c *Config) Validate() error {
	if c.Upstream.GraphQLEndpoint == "" {
		return fmt.Errorf("upstream.graphql_endpoint is required")
	}
	if !c.Database.UseMemory && c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required unless database.use_memory is set")
	}
	if c.Ingestion.PageSize < 1 {
		return fmt.Errorf("ingestion.page_size must be positive")
	}
	if c.Ingestion.SweepWorkers < 1 {
		return fmt.Errorf("ingestion.sweep_workers must be positive")
	}
	return nil
}
