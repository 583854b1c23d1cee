package custody

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"aidtrace/internal/platform/postgres"
	"aidtrace/pkg/domain"
	txcontext "aidtrace/pkg/platform/tx"
)

// escrowAccount names the ledger's own row. '#' is not a valid identity
// character so it cannot collide with a participant.
const escrowAccount = "#escrow"

// PostgresVault keeps custody balances in custody_accounts. It joins the
// ledger transaction carried by ctx so a failed payout rolls back with it.
type PostgresVault struct {
	db *sql.DB
}

func NewPostgresVault(db *sql.DB) *PostgresVault {
	return &PostgresVault{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (v *PostgresVault) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return v.db
}

func (v *PostgresVault) Deposit(ctx context.Context, from domain.Identity, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	exec := v.execer(ctx)
	amt := postgres.FormatAmount(amount)
	if _, err := exec.ExecContext(ctx, `
		INSERT INTO custody_accounts (account, deposited, balance)
		VALUES ($1, 0, $2::numeric)
		ON CONFLICT (account) DO UPDATE SET balance = custody_accounts.balance + EXCLUDED.balance
	`, escrowAccount, amt); err != nil {
		return fmt.Errorf("credit escrow: %w", err)
	}
	if _, err := exec.ExecContext(ctx, `
		INSERT INTO custody_accounts (account, deposited)
		VALUES ($1, $2::numeric)
		ON CONFLICT (account) DO UPDATE SET deposited = custody_accounts.deposited + EXCLUDED.deposited
	`, from.String(), amt); err != nil {
		return fmt.Errorf("record deposit from %s: %w", from, err)
	}
	return nil
}

func (v *PostgresVault) Transfer(ctx context.Context, to domain.Identity, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	exec := v.execer(ctx)

	var rejecting bool
	err := exec.QueryRowContext(ctx,
		`SELECT rejecting FROM custody_accounts WHERE account = $1`, to.String(),
	).Scan(&rejecting)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("load account %s: %w", to, err)
	}
	if rejecting {
		return fmt.Errorf("transfer %d to %s: %w", amount, to, ErrRejected)
	}

	amt := postgres.FormatAmount(amount)
	res, err := exec.ExecContext(ctx, `
		UPDATE custody_accounts SET balance = balance - $2::numeric
		WHERE account = $1 AND balance >= $2::numeric
	`, escrowAccount, amt)
	if err != nil {
		return fmt.Errorf("debit escrow: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("debit escrow: %w", err)
	} else if n == 0 {
		return fmt.Errorf("transfer %d to %s: %w", amount, to, ErrInsufficient)
	}

	if _, err := exec.ExecContext(ctx, `
		INSERT INTO custody_accounts (account, paid_out)
		VALUES ($1, $2::numeric)
		ON CONFLICT (account) DO UPDATE SET paid_out = custody_accounts.paid_out + EXCLUDED.paid_out
	`, to.String(), amt); err != nil {
		return fmt.Errorf("record payout to %s: %w", to, err)
	}
	return nil
}

func (v *PostgresVault) Receive(_ context.Context, from domain.Identity, amount uint64) error {
	return fmt.Errorf("%d from %s: %w", amount, from, ErrUnsolicited)
}

// SetRejecting flags identity as refusing incoming value.
func (v *PostgresVault) SetRejecting(ctx context.Context, identity domain.Identity, rejecting bool) error {
	if _, err := v.execer(ctx).ExecContext(ctx, `
		INSERT INTO custody_accounts (account, rejecting) VALUES ($1, $2)
		ON CONFLICT (account) DO UPDATE SET rejecting = EXCLUDED.rejecting
	`, identity.String(), rejecting); err != nil {
		return fmt.Errorf("set rejecting for %s: %w", identity, err)
	}
	return nil
}

func (v *PostgresVault) EscrowBalance(ctx context.Context) (uint64, error) {
	var balance string
	err := v.execer(ctx).QueryRowContext(ctx,
		`SELECT balance::text FROM custody_accounts WHERE account = $1`, escrowAccount,
	).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load escrow balance: %w", err)
	}
	return postgres.ParseAmount(balance)
}

func (v *PostgresVault) Account(ctx context.Context, identity domain.Identity) (Account, error) {
	var deposited, paidOut string
	err := v.execer(ctx).QueryRowContext(ctx,
		`SELECT deposited::text, paid_out::text FROM custody_accounts WHERE account = $1`, identity.String(),
	).Scan(&deposited, &paidOut)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{Identity: identity}, nil
	}
	if err != nil {
		return Account{}, fmt.Errorf("load account %s: %w", identity, err)
	}
	acct := Account{Identity: identity}
	if acct.Deposited, err = postgres.ParseAmount(deposited); err != nil {
		return Account{}, err
	}
	if acct.PaidOut, err = postgres.ParseAmount(paidOut); err != nil {
		return Account{}, err
	}
	return acct, nil
}
