package tx

import (
	"context"
	"database/sql"
)

type ctxKey struct{}

type activeKey struct{}

var (
	txKey     = ctxKey{}
	activeTag = activeKey{}
)

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(MarkActive(ctx), txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

// MarkActive tags ctx as running inside a transaction. Non-SQL transaction
// implementations use it so nested RunInTx calls can be refused.
func MarkActive(ctx context.Context) context.Context {
	return context.WithValue(ctx, activeTag, true)
}

// Active reports whether ctx is already inside a transaction.
func Active(ctx context.Context) bool {
	active, _ := ctx.Value(activeTag).(bool)
	return active
}
