package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rickgao/escrow-market/internal/market"
)

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: marketd-test
market:
  custodian_id: py/test
  base_price: { min: 10, max: 500 }
storage:
  backend: postgres
database:
  postgres:
    host: localhost
    port: 5432
    name: market
    user: testuser
    password: testpass
genesis:
  balances:
    - { account: alice, amount: 1000 }
  tokens:
    - { owner: bob, class_id: 1, token_id: 2 }
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "marketd-test" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "marketd-test")
	}
	if cfg.Market.CustodianID != "py/test" {
		t.Errorf("Market.CustodianID = %q, want %q", cfg.Market.CustodianID, "py/test")
	}
	if cfg.Market.BasePrice != (market.Range{Min: 10, Max: 500}) {
		t.Errorf("Market.BasePrice = %+v, want {10 500}", cfg.Market.BasePrice)
	}
	if cfg.Database.Postgres.Host != "localhost" {
		t.Errorf("Database.Postgres.Host = %q, want %q", cfg.Database.Postgres.Host, "localhost")
	}
	if len(cfg.Genesis.Balances) != 1 || cfg.Genesis.Balances[0].Amount != 1000 {
		t.Errorf("Genesis.Balances = %+v", cfg.Genesis.Balances)
	}
	if len(cfg.Genesis.Tokens) != 1 || cfg.Genesis.Tokens[0].TokenID != 2 {
		t.Errorf("Genesis.Tokens = %+v", cfg.Genesis.Tokens)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "secret123")

	yaml := `
instance:
  id: marketd-test
database:
  postgres:
    host: localhost
    name: market
    user: testuser
    password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Postgres.Password != "secret123" {
		t.Errorf("Database.Postgres.Password = %q, want %q", cfg.Database.Postgres.Password, "secret123")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
instance:
  id: marketd-test
market:
  rent_price: { min: 5, max: 50 }
auth:
  public_key_path: /etc/marketd/issuer.pub
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Storage.Backend != BackendMemory {
		t.Errorf("Storage.Backend = %q, want default %q", cfg.Storage.Backend, BackendMemory)
	}
	if cfg.Market.CustodianID != market.DefaultCustodianID {
		t.Errorf("Market.CustodianID = %q, want default %q", cfg.Market.CustodianID, market.DefaultCustodianID)
	}
	if cfg.Market.BidDuration != market.DefaultLimits().BidDuration {
		t.Errorf("Market.BidDuration = %+v, want default", cfg.Market.BidDuration)
	}
	if cfg.Market.RentPrice != (market.Range{Min: 5, Max: 50}) {
		t.Errorf("Market.RentPrice = %+v, want configured {5 50}", cfg.Market.RentPrice)
	}
	if cfg.Server.Addr != DefaultServerAddr {
		t.Errorf("Server.Addr = %q, want default %q", cfg.Server.Addr, DefaultServerAddr)
	}
	if cfg.Feed.PingInterval != DefaultPingInterval {
		t.Errorf("Feed.PingInterval = %v, want default %v", cfg.Feed.PingInterval, DefaultPingInterval)
	}
	if cfg.Database.Postgres.Port != DefaultDBPort {
		t.Errorf("Database.Postgres.Port = %d, want default %d", cfg.Database.Postgres.Port, DefaultDBPort)
	}
	if cfg.Poller.Interval != DefaultPollInterval {
		t.Errorf("Poller.Interval = %v, want default %v", cfg.Poller.Interval, DefaultPollInterval)
	}
	if !cfg.Metrics.IsEnabled() {
		t.Error("Metrics.IsEnabled() = false, want default true")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaulted config = %v", err)
	}
}

func TestMetricsDisabled(t *testing.T) {
	path := writeTempFile(t, "metrics:\n  enabled: false\n")
	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}
	if cfg.Metrics.IsEnabled() {
		t.Error("Metrics.IsEnabled() = true, want false")
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Config{
			Instance: InstanceConfig{ID: "test"},
			Auth:     AuthConfig{PublicKeyPath: "issuer.pub"},
		}
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing instance id",
			mutate:  func(c *Config) { c.Instance.ID = "" },
			wantErr: "instance.id is required",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Log.Level = "verbose" },
			wantErr: "log.level must be one of",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: "log.format must be text or json",
		},
		{
			name:    "inverted range",
			mutate:  func(c *Config) { c.Market.Collateral = market.Range{Min: 9, Max: 1} },
			wantErr: "market.collateral: min 9 exceeds max 1",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Storage.Backend = "sqlite" },
			wantErr: "storage.backend must be memory or postgres",
		},
		{
			name:    "postgres without host",
			mutate:  func(c *Config) { c.Storage.Backend = BackendPostgres },
			wantErr: "database.postgres.host is required",
		},
		{
			name: "min_conns exceeds max_conns",
			mutate: func(c *Config) {
				c.Storage.Backend = BackendPostgres
				c.Database.Postgres = DBConfig{
					Host: "localhost", Name: "db", User: "user", Password: "pass",
					MaxConns: 2, MinConns: 5,
				}
			},
			wantErr: "database.postgres.min_conns (5) cannot exceed max_conns (2)",
		},
		{
			name: "writer backlog below batch",
			mutate: func(c *Config) {
				c.Storage.Backend = BackendPostgres
				c.Database.Postgres = DBConfig{
					Host: "localhost", Name: "db", User: "user", Password: "pass",
					MaxConns: 4,
				}
				c.Writer.MaxPending = 10
			},
			wantErr: "writer.max_pending (10) cannot be less than batch_size (500)",
		},
		{
			name:    "missing public key",
			mutate:  func(c *Config) { c.Auth.PublicKeyPath = "" },
			wantErr: "auth.public_key_path is required",
		},
		{
			name:    "max buffer below buffer",
			mutate:  func(c *Config) { c.Feed.MaxBufferSize = 1 },
			wantErr: "feed.max_buffer_size (1) cannot be less than buffer_size",
		},
		{
			name:    "relative metrics path",
			mutate:  func(c *Config) { c.Metrics.Path = "metrics" },
			wantErr: "metrics.path must start with /",
		},
		{
			name:    "genesis balance without account",
			mutate:  func(c *Config) { c.Genesis.Balances = []GenesisBalance{{Amount: 5}} },
			wantErr: "genesis.balances[0].account is required",
		},
		{
			name:    "genesis token without owner",
			mutate:  func(c *Config) { c.Genesis.Tokens = []GenesisToken{{ClassID: 1}} },
			wantErr: "genesis.tokens[0].owner is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %q, want error containing %q", err.Error(), tt.wantErr)
			}
		})
	}

	cfg := valid()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on valid config = %v", err)
	}
}

func TestMarketConfig_Engine(t *testing.T) {
	m := MarketConfig{CustodianID: "py/x", Limits: market.DefaultLimits()}
	got := m.Engine()
	if got.CustodianID != "py/x" || got.Limits != market.DefaultLimits() {
		t.Errorf("Engine() = %+v", got)
	}
}

func TestLoadAndValidate_Errors(t *testing.T) {
	if _, err := LoadAndValidate(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := writeTempFile(t, "instance: [unterminated")
	if _, err := LoadAndValidate(path); err == nil {
		t.Error("expected error for invalid yaml")
	}

	path = writeTempFile(t, "instance:\n  id: x\n")
	if _, err := LoadAndValidate(path); err == nil || !strings.Contains(err.Error(), "validate config") {
		t.Errorf("LoadAndValidate error = %v, want validation failure", err)
	}
}

func TestDurationsParse(t *testing.T) {
	path := writeTempFile(t, "server:\n  read_timeout: 3s\nwriter:\n  flush_interval: 250ms\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.ReadTimeout != 3*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 3s", cfg.Server.ReadTimeout)
	}
	if cfg.Writer.FlushInterval != 250*time.Millisecond {
		t.Errorf("Writer.FlushInterval = %v, want 250ms", cfg.Writer.FlushInterval)
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
