package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	if c.Market.CustodianID == "" {
		return errors.New("market.custodian_id is required")
	}
	if err := c.Market.Limits.Validate(); err != nil {
		return fmt.Errorf("market.%w", err)
	}

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendPostgres:
		if err := c.Database.Postgres.validate("database.postgres"); err != nil {
			return err
		}
		if c.Writer.BatchSize < 1 {
			return errors.New("writer.batch_size must be >= 1")
		}
		if c.Writer.BufferSize < 1 {
			return errors.New("writer.buffer_size must be >= 1")
		}
		if c.Writer.MaxPending < c.Writer.BatchSize {
			return fmt.Errorf("writer.max_pending (%d) cannot be less than batch_size (%d)", c.Writer.MaxPending, c.Writer.BatchSize)
		}
	default:
		return fmt.Errorf("storage.backend must be %s or %s, got %q", BackendMemory, BackendPostgres, c.Storage.Backend)
	}

	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if c.Auth.PublicKeyPath == "" {
		return errors.New("auth.public_key_path is required")
	}

	if c.Feed.BufferSize < 1 {
		return errors.New("feed.buffer_size must be >= 1")
	}
	if c.Feed.MaxBufferSize < c.Feed.BufferSize {
		return fmt.Errorf("feed.max_buffer_size (%d) cannot be less than buffer_size (%d)", c.Feed.MaxBufferSize, c.Feed.BufferSize)
	}

	if c.Poller.Interval <= 0 {
		return errors.New("poller.interval must be > 0")
	}

	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /, got %q", c.Metrics.Path)
	}

	for i, b := range c.Genesis.Balances {
		if b.Account == "" {
			return fmt.Errorf("genesis.balances[%d].account is required", i)
		}
	}
	for i, tok := range c.Genesis.Tokens {
		if tok.Owner == "" {
			return fmt.Errorf("genesis.tokens[%d].owner is required", i)
		}
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
