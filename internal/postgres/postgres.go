package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/platformhq/licensing/internal/config"
	"github.com/platformhq/licensing/internal/logger"
)

const connMaxLifetime = 30 * time.Minute

// Querier is the subset of sqlx operations the repositories use. Both
// *sqlx.DB and *sqlx.Tx satisfy it, so repository code is unaware of
// whether it runs inside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// DB owns the connection pool and routes queries to the transaction
// bound to the context, when there is one.
type DB struct {
	*sqlx.DB
	logger *logger.Logger
}

// NewDB opens the connection pool and verifies connectivity
func NewDB(cfg *config.Configuration, log *logger.Logger) (*DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Postgres.GetDSN())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	return &DB{DB: db, logger: log}, nil
}

// GetQuerier returns the context's transaction when present, otherwise
// the pool. Either way queries go through the tracing wrapper.
func (db *DB) GetQuerier(ctx context.Context) Querier {
	if tx, ok := GetTx(ctx); ok {
		return &tracedQuerier{next: tx.Tx, logger: db.logger, txID: tx.ID}
	}
	return &tracedQuerier{next: db.DB, logger: db.logger}
}

// NamedExecContext routes a named statement through the context's
// transaction when there is one.
func (db *DB) NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error) {
	start := time.Now()
	var (
		result sql.Result
		err    error
		txID   string
	)
	if tx, ok := GetTx(ctx); ok {
		txID = tx.ID
		result, err = tx.Tx.NamedExecContext(ctx, query, arg)
	} else {
		result, err = db.DB.NamedExecContext(ctx, query, arg)
	}
	(&tracedQuerier{logger: db.logger, txID: txID}).trace(query, []interface{}{arg}, start, err)
	return result, err
}

// Close releases the connection pool
func (db *DB) Close() {
	if err := db.DB.Close(); err != nil {
		db.logger.Errorw("failed to close database", "error", err)
	}
}
