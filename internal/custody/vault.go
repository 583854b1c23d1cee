package custody

import (
	"context"
	"fmt"
	"math"
	"sync"

	"aidtrace/pkg/domain"
)

// RecipientHook runs before value reaches a recipient. Returning an error
// rejects the transfer. Hooks see the caller's context, so a hook that tries
// to call back into the ledger observes the open transaction.
type RecipientHook func(ctx context.Context, to domain.Identity, amount uint64) error

// Vault is the in-memory custodian.
type Vault struct {
	mu        sync.Mutex
	escrow    uint64
	accounts  map[domain.Identity]*Account
	rejecting map[domain.Identity]bool
	hooks     map[domain.Identity]RecipientHook
}

func NewVault() *Vault {
	return &Vault{
		accounts:  make(map[domain.Identity]*Account),
		rejecting: make(map[domain.Identity]bool),
		hooks:     make(map[domain.Identity]RecipientHook),
	}
}

// Deposit moves amount from an external account into escrow.
func (v *Vault) Deposit(_ context.Context, from domain.Identity, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.escrow > math.MaxUint64-amount {
		return fmt.Errorf("deposit %d from %s: escrow overflow", amount, from)
	}
	v.escrow += amount
	v.account(from).Deposited += amount
	return nil
}

// Transfer pays amount out of escrow to to.
func (v *Vault) Transfer(ctx context.Context, to domain.Identity, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}

	v.mu.Lock()
	if v.escrow < amount {
		v.mu.Unlock()
		return fmt.Errorf("transfer %d to %s: %w", amount, to, ErrInsufficient)
	}
	rejecting := v.rejecting[to]
	hook := v.hooks[to]
	v.mu.Unlock()

	if rejecting {
		return fmt.Errorf("transfer %d to %s: %w", amount, to, ErrRejected)
	}
	if hook != nil {
		if err := hook(ctx, to, amount); err != nil {
			return fmt.Errorf("transfer %d to %s: %w: %w", amount, to, ErrRejected, err)
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.escrow < amount {
		return fmt.Errorf("transfer %d to %s: %w", amount, to, ErrInsufficient)
	}
	v.escrow -= amount
	v.account(to).PaidOut += amount
	return nil
}

// Receive is the entry point for value sent without an asset registration.
// It always fails.
func (v *Vault) Receive(_ context.Context, from domain.Identity, amount uint64) error {
	return fmt.Errorf("%d from %s: %w", amount, from, ErrUnsolicited)
}

// SetRejecting makes transfers to identity fail, as a recipient that refuses value would.
func (v *Vault) SetRejecting(identity domain.Identity, rejecting bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if rejecting {
		v.rejecting[identity] = true
		return
	}
	delete(v.rejecting, identity)
}

// OnReceive installs hook for transfers to identity; nil removes it.
func (v *Vault) OnReceive(identity domain.Identity, hook RecipientHook) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if hook == nil {
		delete(v.hooks, identity)
		return
	}
	v.hooks[identity] = hook
}

func (v *Vault) EscrowBalance(context.Context) (uint64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.escrow, nil
}

func (v *Vault) Account(_ context.Context, identity domain.Identity) (Account, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if a, ok := v.accounts[identity]; ok {
		return *a, nil
	}
	return Account{Identity: identity}, nil
}

func (v *Vault) account(identity domain.Identity) *Account {
	a, ok := v.accounts[identity]
	if !ok {
		a = &Account{Identity: identity}
		v.accounts[identity] = a
	}
	return a
}
