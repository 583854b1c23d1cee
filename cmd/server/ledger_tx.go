package main

import (
	"context"
	"time"

	ledgerservice "aidtrace/internal/ledger/service"
	ledgerstore "aidtrace/internal/ledger/store"
	dErrors "aidtrace/pkg/domain-errors"
)

const defaultLedgerTxTimeout = 5 * time.Second

// ledgerRunner is implemented by both ledger store backends.
type ledgerRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, ledger ledgerstore.Ledger) error) error
}

// ledgerTx adapts a store backend to the service's transaction boundary.
type ledgerTx struct {
	runner  ledgerRunner
	timeout time.Duration
}

func newLedgerTx(runner ledgerRunner, timeout time.Duration) *ledgerTx {
	return &ledgerTx{runner: runner, timeout: timeout}
}

func (t *ledgerTx) RunInTx(ctx context.Context, fn func(ctx context.Context, store ledgerservice.Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultLedgerTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	return t.runner.RunInTx(ctx, func(ctx context.Context, ledger ledgerstore.Ledger) error {
		return fn(ctx, ledger)
	})
}
