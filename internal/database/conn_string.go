package database

import (
	"net"
	"net/url"
	"strconv"

	"github.com/rickgao/escrow-market/internal/config"
)

// BuildConnString renders cfg as a postgres:// URL. User and password are
// escaped as userinfo, so any byte survives pgx parsing unchanged.
func BuildConnString(cfg config.DBConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = config.DefaultDBSSLMode
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Name,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	return u.String()
}
