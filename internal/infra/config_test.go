package infra

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"auction_go/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, "app:\n  name: test\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.App.Name != "test" {
		t.Errorf("expected name test, got %s", cfg.App.Name)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.OpTimeout != 3*time.Second {
		t.Errorf("storage defaults not applied: %+v", cfg.Storage)
	}
	if cfg.Ledger.PersistencePolicy != string(domain.PersistEveryBid) || cfg.Ledger.StartPolicy != string(domain.RejectWhileActive) {
		t.Errorf("ledger defaults not applied: %+v", cfg.Ledger)
	}
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9000"
storage:
  driver: sqlite
  dsn: /tmp/x.db
  op_timeout: 500ms
ledger:
  persistence_policy: persist_on_end_only
  start_policy: force_close
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("expected :9000, got %s", cfg.Server.Addr)
	}
	if cfg.Storage.OpTimeout != 500*time.Millisecond {
		t.Errorf("expected 500ms, got %v", cfg.Storage.OpTimeout)
	}
	if cfg.Ledger.StartPolicy != string(domain.ForceClose) {
		t.Errorf("expected force_close, got %s", cfg.Ledger.StartPolicy)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	path := writeConfig(t, "server:\n  addr: \":9000\"\n")
	t.Setenv("AUCTION_SERVER_ADDR", ":7000")
	t.Setenv("AUCTION_STORAGE_OP_TIMEOUT", "2s")
	t.Setenv("AUCTION_CORS_ORIGINS", "http://a,http://b")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Server.Addr != ":7000" {
		t.Errorf("env override not applied: %s", cfg.Server.Addr)
	}
	if cfg.Storage.OpTimeout != 2*time.Second {
		t.Errorf("expected 2s, got %v", cfg.Storage.OpTimeout)
	}
	if len(cfg.Server.CORSOrigins) != 2 {
		t.Errorf("expected 2 origins, got %v", cfg.Server.CORSOrigins)
	}
}

func TestLoadConfig_Missing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, domain.ErrConfigNotFound) {
		t.Errorf("expected ErrConfigNotFound, got %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
		{"bad driver", func(c *Config) { c.Storage.Driver = "mongo" }, "storage.driver"},
		{"postgres without dsn", func(c *Config) { c.Storage.Driver = "postgres" }, "storage.dsn"},
		{"zero timeout", func(c *Config) { c.Storage.OpTimeout = 0 }, "storage.op_timeout"},
		{"bad policy", func(c *Config) { c.Ledger.PersistencePolicy = "sometimes" }, "ledger.persistence_policy"},
		{"bad start policy", func(c *Config) { c.Ledger.StartPolicy = "queue" }, "ledger.start_policy"},
		{"redis counter disabled", func(c *Config) { c.Ledger.CounterBackend = CounterBackendRedis }, "ledger.counter_backend"},
		{"redis without addr", func(c *Config) { c.Redis.Enabled = true; c.Redis.Addr = "" }, "redis.addr"},
	}

	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			var cerr *domain.ConfigError
			if err := cfg.Validate(); !errors.As(err, &cerr) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
			if cerr.Field != tt.field {
				t.Errorf("expected field %s, got %s", tt.field, cerr.Field)
			}
			if domain.IsRetriable(cerr) {
				t.Error("config errors must not be retriable")
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
