package infra

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"auction_go/internal/domain"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Counter backends for auction ids.
const (
	CounterBackendStore = "store"
	CounterBackendRedis = "redis"
)

// Config holds every application setting.
// After LoadConfig reads the file, AUCTION_* environment variables override it.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Server struct {
		Addr            string        `yaml:"addr"`
		CORSOrigins     []string      `yaml:"cors_origins"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Storage struct {
		Driver       string        `yaml:"driver"`
		DSN          string        `yaml:"dsn"`
		OpTimeout    time.Duration `yaml:"op_timeout"`
		MaxOpenConns int           `yaml:"max_open_conns"`
	} `yaml:"storage"`

	Ledger struct {
		PersistencePolicy string `yaml:"persistence_policy"`
		StartPolicy       string `yaml:"start_policy"`
		CounterBackend    string `yaml:"counter_backend"`
	} `yaml:"ledger"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		LiveKey  string `yaml:"live_key"`
		Channel  string `yaml:"channel"`
	} `yaml:"redis"`

	Logging struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logging"`
}

// DefaultConfig returns the settings used for anything the file leaves out.
func DefaultConfig() *Config {
	var cfg Config
	cfg.App.Name = "auction_go"
	cfg.Server.Addr = ":8000"
	cfg.Server.CORSOrigins = []string{"*"}
	cfg.Server.ShutdownTimeout = 10 * time.Second
	cfg.Storage.Driver = "sqlite"
	cfg.Storage.OpTimeout = 3 * time.Second
	cfg.Storage.MaxOpenConns = 10
	cfg.Ledger.PersistencePolicy = string(domain.PersistEveryBid)
	cfg.Ledger.StartPolicy = string(domain.RejectWhileActive)
	cfg.Ledger.CounterBackend = CounterBackendStore
	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.LiveKey = "auction:live"
	cfg.Redis.Channel = "auction:updates"
	cfg.Logging.Level = "info"
	cfg.Logging.File = "logs/app.log"
	cfg.Logging.MaxSizeMB = 10
	cfg.Logging.MaxBackups = 3
	cfg.Logging.MaxAgeDays = 28
	cfg.Logging.Compress = true
	return &cfg
}

// LoadConfig reads .env (if present) and the YAML file at path, then applies
// environment overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to load .env", slog.Any("error", err))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &domain.ConfigError{Field: "yaml", Err: err}
	}

	if err := overrideWithEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return &domain.ConfigError{Field: "server.addr", Err: errors.New("must not be empty")}
	}

	switch c.Storage.Driver {
	case "sqlite", "postgres":
	default:
		return &domain.ConfigError{Field: "storage.driver", Err: fmt.Errorf("unknown driver %q", c.Storage.Driver)}
	}
	if c.Storage.Driver == "postgres" && c.Storage.DSN == "" {
		return &domain.ConfigError{Field: "storage.dsn", Err: errors.New("required for postgres")}
	}
	if c.Storage.OpTimeout <= 0 {
		return &domain.ConfigError{Field: "storage.op_timeout", Err: errors.New("must be positive")}
	}

	if _, err := domain.ParsePersistencePolicy(c.Ledger.PersistencePolicy); err != nil {
		return &domain.ConfigError{Field: "ledger.persistence_policy", Err: err}
	}
	if _, err := domain.ParseStartPolicy(c.Ledger.StartPolicy); err != nil {
		return &domain.ConfigError{Field: "ledger.start_policy", Err: err}
	}

	switch c.Ledger.CounterBackend {
	case CounterBackendStore:
	case CounterBackendRedis:
		if !c.Redis.Enabled {
			return &domain.ConfigError{Field: "ledger.counter_backend", Err: errors.New("redis backend requires redis.enabled")}
		}
	default:
		return &domain.ConfigError{Field: "ledger.counter_backend", Err: fmt.Errorf("unknown backend %q", c.Ledger.CounterBackend)}
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return &domain.ConfigError{Field: "redis.addr", Err: errors.New("required when redis is enabled")}
	}

	return nil
}

// overrideWithEnv replaces settings whose environment variable is set.
func overrideWithEnv(cfg *Config) error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString("AUCTION_SERVER_ADDR", &cfg.Server.Addr)
	setString("AUCTION_STORAGE_DRIVER", &cfg.Storage.Driver)
	setString("AUCTION_STORAGE_DSN", &cfg.Storage.DSN)
	setString("AUCTION_PERSISTENCE_POLICY", &cfg.Ledger.PersistencePolicy)
	setString("AUCTION_START_POLICY", &cfg.Ledger.StartPolicy)
	setString("AUCTION_COUNTER_BACKEND", &cfg.Ledger.CounterBackend)
	setString("AUCTION_REDIS_ADDR", &cfg.Redis.Addr)
	setString("AUCTION_REDIS_PASSWORD", &cfg.Redis.Password)
	setString("AUCTION_LOG_LEVEL", &cfg.Logging.Level)
	setString("AUCTION_LOG_FILE", &cfg.Logging.File)

	if v := os.Getenv("AUCTION_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("AUCTION_STORAGE_OP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return &domain.ConfigError{Field: "AUCTION_STORAGE_OP_TIMEOUT", Err: err}
		}
		cfg.Storage.OpTimeout = d
	}
	if v := os.Getenv("AUCTION_REDIS_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return &domain.ConfigError{Field: "AUCTION_REDIS_ENABLED", Err: err}
		}
		cfg.Redis.Enabled = b
	}
	return nil
}
