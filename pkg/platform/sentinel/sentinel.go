// Package sentinel names the storage facts the ledger services translate into
// coded domain errors. Stores wrap these with %w and never return domain codes.
package sentinel

import "errors"

var (
	// ErrNotFound: no asset, scan, milestone or role row for the key.
	ErrNotFound = errors.New("not found")
	// ErrConflict: an asset with the same id already exists.
	ErrConflict = errors.New("conflict")
	// ErrReentrant: RunInTx was called on a context already inside a ledger
	// transaction, e.g. from a recipient callback during a payout.
	ErrReentrant = errors.New("reentrant transaction")
	// ErrUnavailable: the backing database or broker could not be reached.
	ErrUnavailable = errors.New("unavailable")
)
