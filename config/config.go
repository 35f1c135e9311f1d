package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Device     DeviceConfig     `yaml:"device"`
	Feeder     FeederConfig     `yaml:"feeder"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration. The DSN
// selects the driver: "postgres://..." opens Postgres, anything else is
// treated as a SQLite path.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// DeviceConfig selects and configures the feeding hardware.
type DeviceConfig struct {
	Simulate     bool    `yaml:"simulate"`
	LEDPin       int     `yaml:"led_pin"`
	MotorPins    [4]int  `yaml:"motor_pins"`
	StepDelayMS  int     `yaml:"step_delay_ms"`
	PulseSeconds float64 `yaml:"pulse_seconds"`
}

// FeederConfig holds feeding behavior knobs.
type FeederConfig struct {
	ReverseAngle float64 `yaml:"reverse_angle"`
	Timezone     string  `yaml:"timezone"`
}

// PushConfig holds the VAPID keys for web push notifications. Leaving the
// keys empty disables push entirely.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// LogConfig controls the zerolog output.
type LogConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// StepDelay returns the per-step motor delay as a duration.
func (d DeviceConfig) StepDelay() time.Duration {
	return time.Duration(d.StepDelayMS) * time.Millisecond
}

// CacheTTL returns the response cache TTL as a duration.
func (s ServerConfig) CacheTTL() time.Duration {
	return time.Duration(s.CacheTTLSeconds) * time.Second
}

// Load reads the configuration from the given path and applies defaults.
// SIMULATE=1 in the environment forces the simulated device regardless of
// the file, which keeps development off-Pi a one-variable affair.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 5
	}

	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "fish_feeder.db"
	}

	if cfg.Device.LEDPin <= 0 {
		cfg.Device.LEDPin = 23
	}
	if cfg.Device.MotorPins == [4]int{} {
		cfg.Device.MotorPins = [4]int{14, 15, 18, 4}
	}
	if cfg.Device.StepDelayMS <= 0 {
		cfg.Device.StepDelayMS = 5
	}
	if cfg.Device.PulseSeconds <= 0 {
		cfg.Device.PulseSeconds = 2.5
	}
	if v, ok := os.LookupEnv("SIMULATE"); ok {
		if simulate, err := strconv.ParseBool(v); err == nil {
			cfg.Device.Simulate = simulate
		}
	}

	if cfg.Feeder.ReverseAngle <= 0 {
		cfg.Feeder.ReverseAngle = 30
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}
	if cfg.WorkerPool.Size <= 0 {
		cfg.WorkerPool.Size = 1
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	return &cfg, nil
}
