package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/platformhq/licensing/internal/logger"
)

// tracedQuerier logs every statement with its duration. Statements run
// inside a transaction carry the transaction ID.
type tracedQuerier struct {
	next   Querier
	logger *logger.Logger
	txID   string
}

func (t *tracedQuerier) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	start := time.Now()
	result, err := t.next.ExecContext(ctx, query, args...)
	t.trace(query, args, start, err)
	return result, err
}

func (t *tracedQuerier) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	start := time.Now()
	err := t.next.GetContext(ctx, dest, query, args...)
	t.trace(query, args, start, err)
	return err
}

func (t *tracedQuerier) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	start := time.Now()
	err := t.next.SelectContext(ctx, dest, query, args...)
	t.trace(query, args, start, err)
	return err
}

func (t *tracedQuerier) trace(query string, args []interface{}, start time.Time, err error) {
	fields := []interface{}{
		"duration_ms", time.Since(start).Milliseconds(),
		"query", query,
		"args", args,
	}
	if t.txID != "" {
		fields = append(fields, "tx_id", t.txID)
	}
	if err != nil && err != sql.ErrNoRows {
		t.logger.Errorw("query failed", append(fields, "error", err)...)
		return
	}
	t.logger.Debugw("query completed", fields...)
}
