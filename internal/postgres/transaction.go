package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/platformhq/licensing/internal/types"
)

type txContextKey struct{}

// Tx is a transaction carried through the context. The ID appears in
// query traces so statements of one transaction can be correlated.
type Tx struct {
	Tx *sqlx.Tx
	ID string
}

// GetTx returns the transaction bound to the context, if any
func GetTx(ctx context.Context) (*Tx, bool) {
	tx, ok := ctx.Value(txContextKey{}).(*Tx)
	return tx, ok
}

// WithTx runs fn inside a transaction. A transaction already bound to
// the context is joined rather than nested, so the outermost caller
// decides the commit. Panics roll back and propagate.
func (db *DB) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := GetTx(ctx); ok {
		return fn(ctx)
	}

	sqlTx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	tx := &Tx{Tx: sqlTx, ID: types.GenerateUUID()}
	txCtx := context.WithValue(ctx, txContextKey{}, tx)

	db.logger.Debugw("transaction started", "tx_id", tx.ID)

	defer func() {
		if r := recover(); r != nil {
			db.logger.Errorw("panic inside transaction", "tx_id", tx.ID, "panic", r)
			_ = sqlTx.Rollback()
			panic(r)
		}
	}()

	if err := fn(txCtx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback after %w: %v", err, rbErr)
		}
		db.logger.Debugw("transaction rolled back", "tx_id", tx.ID, "error", err)
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	db.logger.Debugw("transaction committed", "tx_id", tx.ID)
	return nil
}
