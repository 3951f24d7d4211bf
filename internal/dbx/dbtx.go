// Package dbx carries the small database plumbing the relational
// repositories share: DBTX, the query subset satisfied by both *sql.DB and
// *sql.Tx, and WithTx, which frames a function in a transaction.
package dbx

import (
	"context"
	"database/sql"
	"fmt"
)

// DBTX is the query surface a repository depends on. Methods accept it
// instead of *sql.DB so the same repository runs standalone or inside a
// transaction opened by WithTx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx runs fn inside a transaction: commit on a nil return, rollback on
// error or panic, with the panic rethrown. Writes that must land together,
// like the disclosure claim or refresh token rotation, go through here.
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if err = tx.Commit(); err != nil {
			err = fmt.Errorf("commit tx: %w", err)
		}
	}()

	return fn(ctx, tx)
}
