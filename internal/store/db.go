// Package store holds the narrow, typed persistence adapters the match
// and session layers depend on: one struct per table, one transaction per
// call, sentinel returns (-1 for ids / nil / false / 0) on failure
// rather than propagated errors, with the real error logged at the
// adapter boundary. This mirrors the repository shape the bot's PvP and
// single-player chess services used, generalized from two tables to
// three and from an upsert-profile model to the rating/session model
// this server needs.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/quietfen/chessd/internal/obslog"
)

// DB wraps the shared connection pool every table adapter reads through.
type DB struct {
	conn *sqlx.DB
}

// Open connects to Postgres via connString, verifies connectivity, and
// tunes pool limits the way the bot's repository constructor did.
func Open(connString string) (*DB, error) {
	if strings.TrimSpace(connString) == "" {
		return nil, fmt.Errorf("store: connection string is required")
	}

	conn, err := sqlx.Connect("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	conn.SetMaxOpenConns(16)
	conn.SetMaxIdleConns(8)
	conn.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	return &DB{conn: conn}, nil
}

func (d *DB) Close() error {
	if d == nil || d.conn == nil {
		return nil
	}
	return d.conn.Close()
}

func logFailure(op string, err error, fields ...zap.Field) {
	all := append([]zap.Field{zap.String("op", op), zap.Error(err)}, fields...)
	obslog.L().Warn("store operation failed", all...)
}
