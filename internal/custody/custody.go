// Package custody moves value into and out of the ledger's escrow.
//
// The ledger calls Deposit when a donor funds an asset and Transfer when it
// pays a milestone, a manual release or a refund. Both are always the last
// step of a ledger transaction; Transfer failures abort that transaction.
package custody

import (
	"errors"

	"aidtrace/pkg/domain"
)

var (
	// ErrUnsolicited rejects value sent to the ledger outside an asset registration.
	ErrUnsolicited = errors.New("unsolicited transfer rejected")
	// ErrRejected means the recipient refused the transfer.
	ErrRejected = errors.New("recipient rejected transfer")
	// ErrInsufficient means escrow holds less than the requested amount.
	ErrInsufficient = errors.New("insufficient escrow balance")
	// ErrInvalidAmount rejects zero-value movements.
	ErrInvalidAmount = errors.New("amount must be positive")
)

// Account is one identity's custody history.
type Account struct {
	Identity  domain.Identity `json:"identity"`
	Deposited uint64          `json:"deposited"`
	PaidOut   uint64          `json:"paid_out"`
}
