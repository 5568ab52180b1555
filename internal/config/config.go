package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	StoreAPI struct {
		BaseURL         string  `yaml:"base_url"`
		APIKey          string  `yaml:"api_key"`
		CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
		RateLimitRPS    float64 `yaml:"rate_limit_rps"`
		RateLimitBurst  int     `yaml:"rate_limit_burst"`
	} `yaml:"store_api"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Drafts struct {
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"drafts"`

	Sessions struct {
		TimeoutMinutes int `yaml:"timeout_minutes"`
	} `yaml:"sessions"`

	DayView struct {
		StartHour   int `yaml:"start_hour"`
		EndHour     int `yaml:"end_hour"`
		StepMinutes int `yaml:"step_minutes"`
	} `yaml:"day_view"`

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

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8090
	}

	if cfg.Drafts.Path == "" {
		cfg.Drafts.Path = "data/medsched.db"
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Drafts.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) CacheTTL() time.Duration {
	if c.StoreAPI.CacheTTLSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.StoreAPI.CacheTTLSeconds) * time.Second
}

func (c *Config) SessionTimeout() time.Duration {
	if c.Sessions.TimeoutMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.Sessions.TimeoutMinutes) * time.Minute
}

func (c *Config) DraftRetention() time.Duration {
	if c.Drafts.RetentionDays <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(c.Drafts.RetentionDays) * 24 * time.Hour
}
