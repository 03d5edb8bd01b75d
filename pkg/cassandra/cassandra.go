// Package cassandra opens gocql sessions for the services that keep chat
// history in a wide-column store.
package cassandra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gocql/gocql"
)

// Config is the "cassandra" section of a service config.
type Config struct {
	Hosts           []string      `mapstructure:"hosts"`
	Keyspace        string        `mapstructure:"keyspace"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	Consistency     string        `mapstructure:"consistency"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	Timeout         time.Duration `mapstructure:"timeout"`
	NumConns        int           `mapstructure:"num_conns"`
	MaxPreparedStmt int           `mapstructure:"max_prepared_stmt"`
}

var consistencies = map[string]gocql.Consistency{
	"ANY":          gocql.Any,
	"ONE":          gocql.One,
	"TWO":          gocql.Two,
	"THREE":        gocql.Three,
	"QUORUM":       gocql.Quorum,
	"ALL":          gocql.All,
	"LOCAL_QUORUM": gocql.LocalQuorum,
	"EACH_QUORUM":  gocql.EachQuorum,
	"LOCAL_ONE":    gocql.LocalOne,
}

// ParseConsistency maps a level name to gocql. Unknown names mean
// LOCAL_QUORUM.
func ParseConsistency(s string) gocql.Consistency {
	if c, ok := consistencies[strings.ToUpper(strings.TrimSpace(s))]; ok {
		return c
	}
	return gocql.LocalQuorum
}

// NewSession connects to the cluster described by cfg.
func NewSession(cfg Config) (*gocql.Session, error) {
	if len(cfg.Hosts) == 0 {
		return nil, fmt.Errorf("cassandra: no hosts configured")
	}

	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Keyspace = cfg.Keyspace
	cluster.Consistency = ParseConsistency(cfg.Consistency)
	if cfg.ConnectTimeout > 0 {
		cluster.ConnectTimeout = cfg.ConnectTimeout
	}
	if cfg.Timeout > 0 {
		cluster.Timeout = cfg.Timeout
	}
	if cfg.NumConns > 0 {
		cluster.NumConns = cfg.NumConns
	}
	if cfg.MaxPreparedStmt > 0 {
		cluster.MaxPreparedStmts = cfg.MaxPreparedStmt
	}
	if cfg.Username != "" && cfg.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		NumRetries: 3,
		Min:        100 * time.Millisecond,
		Max:        2 * time.Second,
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create cassandra session: %w", err)
	}
	return session, nil
}

// Ping runs a trivial query against the system keyspace.
func Ping(ctx context.Context, session *gocql.Session) error {
	var release string
	if err := session.Query(`SELECT release_version FROM system.local`).WithContext(ctx).Scan(&release); err != nil {
		return fmt.Errorf("cassandra ping: %w", err)
	}
	return nil
}
