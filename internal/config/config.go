package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	API struct {
		Port      int     `yaml:"port"`
		AdminKey  string  `yaml:"admin_key"`
		RateLimit float64 `yaml:"rate_limit"`
		RateBurst int     `yaml:"rate_burst"`
	} `yaml:"api"`

	Studio struct {
		Timezone       string `yaml:"timezone"`
		MaxAdvanceDays int    `yaml:"max_advance_days"`
	} `yaml:"studio"`

	Reset struct {
		CheckIntervalMinutes int `yaml:"check_interval_minutes"`
	} `yaml:"reset"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/studiobook.db"
	}
	if cfg.API.Port == 0 {
		cfg.API.Port = 8080
	}
	if cfg.Studio.Timezone == "" {
		cfg.Studio.Timezone = "UTC"
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Location resolves the studio timezone; an unknown name falls back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Studio.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) MaxAdvance() time.Duration {
	if c.Studio.MaxAdvanceDays <= 0 {
		return 0 // no limit
	}
	return time.Duration(c.Studio.MaxAdvanceDays) * 24 * time.Hour
}

func (c *Config) ResetCheckInterval() time.Duration {
	if c.Reset.CheckIntervalMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.Reset.CheckIntervalMinutes) * time.Minute
}

func (c *Config) BackupInterval() time.Duration {
	if c.Backup.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Backup.IntervalHours) * time.Hour
}
