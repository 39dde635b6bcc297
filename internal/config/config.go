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

	GaragesConfigPath string `yaml:"garages_config_path"`

	Redis struct {
		Address           string `yaml:"address"`
		Password          string `yaml:"password"`
		DB                int    `yaml:"db"`
		SessionTTLMinutes int    `yaml:"session_ttl_minutes"`
	} `yaml:"redis"`

	Server struct {
		Port                  int     `yaml:"port"`
		APIKey                string  `yaml:"api_key"`
		RequestTimeoutSeconds int     `yaml:"request_timeout_seconds"`
		RateLimitPerSecond    float64 `yaml:"rate_limit_per_second"`
		RateLimitBurst        int     `yaml:"rate_limit_burst"`
	} `yaml:"server"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		StoragePath   string `yaml:"storage_path"`
		IntervalHours int    `yaml:"interval_hours"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Audit struct {
		Enabled       bool   `yaml:"enabled"`
		ExportDir     string `yaml:"export_dir"`
		ExportOnStart bool   `yaml:"export_on_start"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"audit"`

	Sheets struct {
		Enabled         bool   `yaml:"enabled"`
		CredentialsFile string `yaml:"credentials_file"`
		SpreadsheetID   string `yaml:"spreadsheet_id"`
	} `yaml:"sheets"`
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
		cfg.Database.Path = "data/parkhub.db"
	}
	if cfg.GaragesConfigPath == "" {
		cfg.GaragesConfigPath = "configs/garages.yaml"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// RequestTimeout is the per-request deadline for admin mutations.
func (c *Config) RequestTimeout() time.Duration {
	if c.Server.RequestTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// SessionTTL is how long a selected-garage session survives in redis.
func (c *Config) SessionTTL() time.Duration {
	if c.Redis.SessionTTLMinutes <= 0 {
		return 12 * time.Hour
	}
	return time.Duration(c.Redis.SessionTTLMinutes) * time.Minute
}

// RateLimit returns the admin API request rate and burst.
func (c *Config) RateLimit() (float64, int) {
	rps := c.Server.RateLimitPerSecond
	if rps <= 0 {
		rps = 50
	}
	burst := c.Server.RateLimitBurst
	if burst <= 0 {
		burst = 100
	}
	return rps, burst
}
