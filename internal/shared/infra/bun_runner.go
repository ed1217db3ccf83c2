package infra

import (
	"context"
	"database/sql"

	"github.com/uptrace/bun"
)

type txKey struct{}

var txContextKey = &txKey{}

func InjectTx(ctx context.Context, db bun.IDB) context.Context {
	return context.WithValue(ctx, txContextKey, db)
}

// ExtractTx returns the transaction carried by ctx, or fallback.
func ExtractTx(ctx context.Context, fallback bun.IDB) bun.IDB {
	if db, ok := ctx.Value(txContextKey).(bun.IDB); ok {
		return db
	}
	return fallback
}

type BunTransactionRunner struct {
	db   *bun.DB
	opts *sql.TxOptions
}

func NewBunTransactionRunner(db *bun.DB, opts *sql.TxOptions) *BunTransactionRunner {
	return &BunTransactionRunner{db: db, opts: opts}
}

func (r *BunTransactionRunner) Exec(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txContextKey).(bun.IDB); ok {
		return fn(ctx)
	}
	return r.db.RunInTx(ctx, r.opts, func(ctx context.Context, tx bun.Tx) error {
		return fn(InjectTx(ctx, tx))
	})
}
