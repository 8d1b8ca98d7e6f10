package config

import (
	"time"

	"github.com/rickgao/escrow-market/internal/market"
)

// Default values for optional configuration fields.
const (
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
	DefaultBackend           = BackendMemory
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 10
	DefaultMinConns          = 2
	DefaultServerAddr        = ":8080"
	DefaultReadTimeout       = 10 * time.Second
	DefaultWriteTimeout      = 10 * time.Second
	DefaultShutdownTimeout   = 15 * time.Second
	DefaultIssuer            = "escrow-market"
	DefaultTokenTTL          = 24 * time.Hour
	DefaultFeedBufferSize    = 256
	DefaultFeedMaxBufferSize = 4096
	DefaultPingInterval      = 15 * time.Second
	DefaultFeedWriteTimeout  = 10 * time.Second
	DefaultBatchSize         = 500
	DefaultFlushInterval     = 1 * time.Second
	DefaultBufferSize        = 10000
	DefaultMaxPending        = 50000
	DefaultPollInterval      = 30 * time.Second
	DefaultMetricsPath       = "/metrics"
)

func (c *Config) applyDefaults() {
	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}

	// Market defaults
	if c.Market.CustodianID == "" {
		c.Market.CustodianID = market.DefaultCustodianID
	}
	defaults := market.DefaultLimits()
	applyRangeDefault(&c.Market.BasePrice, defaults.BasePrice)
	applyRangeDefault(&c.Market.BidDuration, defaults.BidDuration)
	applyRangeDefault(&c.Market.RentPrice, defaults.RentPrice)
	applyRangeDefault(&c.Market.RentDuration, defaults.RentDuration)
	applyRangeDefault(&c.Market.Collateral, defaults.Collateral)

	// Storage defaults
	if c.Storage.Backend == "" {
		c.Storage.Backend = DefaultBackend
	}
	applyDBDefaults(&c.Database.Postgres)

	// Server defaults
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = DefaultReadTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Auth defaults
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = DefaultIssuer
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = DefaultTokenTTL
	}

	// Feed defaults
	if c.Feed.BufferSize == 0 {
		c.Feed.BufferSize = DefaultFeedBufferSize
	}
	if c.Feed.MaxBufferSize == 0 {
		c.Feed.MaxBufferSize = DefaultFeedMaxBufferSize
	}
	if c.Feed.PingInterval == 0 {
		c.Feed.PingInterval = DefaultPingInterval
	}
	if c.Feed.WriteTimeout == 0 {
		c.Feed.WriteTimeout = DefaultFeedWriteTimeout
	}

	// Writer defaults
	if c.Writer.BatchSize == 0 {
		c.Writer.BatchSize = DefaultBatchSize
	}
	if c.Writer.FlushInterval == 0 {
		c.Writer.FlushInterval = DefaultFlushInterval
	}
	if c.Writer.BufferSize == 0 {
		c.Writer.BufferSize = DefaultBufferSize
	}
	if c.Writer.MaxPending == 0 {
		c.Writer.MaxPending = DefaultMaxPending
	}

	// Poller defaults
	if c.Poller.Interval == 0 {
		c.Poller.Interval = DefaultPollInterval
	}

	// Metrics defaults
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

// applyRangeDefault fills a range that was omitted entirely.
func applyRangeDefault(r *market.Range, def market.Range) {
	if r.Min == 0 && r.Max == 0 {
		*r = def
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
