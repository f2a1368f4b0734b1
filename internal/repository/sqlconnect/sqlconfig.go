package sqlconnect

import (
	"context"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // "pgx" driver
	"github.com/jmoiron/sqlx"
)

const DriverName = "pgx"

// Pool bounds the database/sql connection pool.
type Pool struct {
	MaxOpen     int
	MaxIdle     int
	IdleTimeout time.Duration
	MaxLifetime time.Duration
	PingTimeout time.Duration
}

var DefaultPool = Pool{
	MaxOpen:     10,
	MaxIdle:     10,
	IdleTimeout: 5 * time.Minute,
	MaxLifetime: 30 * time.Minute,
	PingTimeout: 3 * time.Second,
}

func (p Pool) apply(db *sqlx.DB) {
	db.SetMaxOpenConns(p.MaxOpen)
	db.SetMaxIdleConns(min(p.MaxIdle, p.MaxOpen))
	db.SetConnMaxIdleTime(p.IdleTimeout)
	db.SetConnMaxLifetime(p.MaxLifetime)
}

// ConnectDB opens Postgres with DefaultPool and returns only once the
// server has answered a ping.
func ConnectDB(ctx context.Context, dsn string) (*sqlx.DB, error) {
	return Open(ctx, dsn, DefaultPool)
}

func Open(ctx context.Context, dsn string, p Pool) (*sqlx.DB, error) {
	if dsn == "" {
		return nil, errors.New("DATABASE_URL not set")
	}
	db, err := sqlx.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	p.apply(db)

	pctx, cancel := context.WithTimeout(ctx, p.PingTimeout)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}
