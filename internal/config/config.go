package config

import (
	"time"

	"github.com/rickgao/escrow-market/internal/market"
)

// Config is the root configuration for a marketd instance.
type Config struct {
	Instance InstanceConfig `yaml:"instance"`
	Log      LogConfig      `yaml:"log"`
	Market   MarketConfig   `yaml:"market"`
	Storage  StorageConfig  `yaml:"storage"`
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Feed     FeedConfig     `yaml:"feed"`
	Writer   WriterConfig   `yaml:"writer"`
	Poller   PollerConfig   `yaml:"poller"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Genesis  GenesisConfig  `yaml:"genesis"`
}

// InstanceConfig identifies this daemon.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// MarketConfig holds engine settings.
type MarketConfig struct {
	CustodianID   string `yaml:"custodian_id"`
	market.Limits `yaml:",inline"`
}

// Engine returns the engine configuration.
func (m MarketConfig) Engine() market.Config {
	return market.Config{CustodianID: m.CustodianID, Limits: m.Limits}
}

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// StorageConfig selects where listings, balances and tokens live.
type StorageConfig struct {
	Backend string `yaml:"backend"`
}

// DatabaseConfig holds the PostgreSQL connection used by the postgres backend.
type DatabaseConfig struct {
	Postgres DBConfig `yaml:"postgres"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// AuthConfig holds bearer token settings.
type AuthConfig struct {
	Issuer         string        `yaml:"issuer"`
	PublicKeyPath  string        `yaml:"public_key_path"`  // Verifies caller tokens
	PrivateKeyPath string        `yaml:"private_key_path"` // Signs tokens (marketctl only)
	TokenTTL       time.Duration `yaml:"token_ttl"`
}

// FeedConfig holds event stream settings.
type FeedConfig struct {
	BufferSize    int           `yaml:"buffer_size"`     // Initial per-subscriber buffer
	MaxBufferSize int           `yaml:"max_buffer_size"` // Oldest events dropped beyond this
	PingInterval  time.Duration `yaml:"ping_interval"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
}

// WriterConfig holds event journal batch settings.
type WriterConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
	MaxPending    int           `yaml:"max_pending"` // Oldest unwritten rows dropped beyond this
}

// PollerConfig holds listing census settings.
type PollerConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// IsEnabled reports whether /metrics is served. Defaults to true.
func (m MetricsConfig) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// GenesisConfig seeds balances and tokens at startup.
type GenesisConfig struct {
	Balances []GenesisBalance `yaml:"balances"`
	Tokens   []GenesisToken   `yaml:"tokens"`
}

// GenesisBalance credits an account. Account is a UUID or a name that is
// derived into one.
type GenesisBalance struct {
	Account string `yaml:"account"`
	Amount  uint64 `yaml:"amount"`
}

// GenesisToken places an asset with an owner.
type GenesisToken struct {
	Owner   string `yaml:"owner"`
	ClassID uint64 `yaml:"class_id"`
	TokenID uint64 `yaml:"token_id"`
}
