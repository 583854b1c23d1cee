//go:build integration

package custody

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	txcontext "aidtrace/pkg/platform/tx"
	"aidtrace/pkg/testutil/containers"
)

type PostgresVaultSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	vault *PostgresVault
}

func TestPostgresVaultSuite(t *testing.T) {
	suite.Run(t, new(PostgresVaultSuite))
}

func (s *PostgresVaultSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.vault = NewPostgresVault(s.pg.DB)
}

func (s *PostgresVaultSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(context.Background(), "custody_accounts"))
}

func (s *PostgresVaultSuite) TestDepositTransfer() {
	ctx := context.Background()
	s.Require().NoError(s.vault.Deposit(ctx, donor, 1000))
	s.Require().NoError(s.vault.Transfer(ctx, ngo, 400))

	bal, err := s.vault.EscrowBalance(ctx)
	s.Require().NoError(err)
	s.Equal(uint64(600), bal)

	acct, err := s.vault.Account(ctx, ngo)
	s.Require().NoError(err)
	s.Equal(uint64(400), acct.PaidOut)
}

func (s *PostgresVaultSuite) TestOverdrawRejected() {
	ctx := context.Background()
	s.Require().NoError(s.vault.Deposit(ctx, donor, 5))
	s.ErrorIs(s.vault.Transfer(ctx, ngo, 6), ErrInsufficient)
}

func (s *PostgresVaultSuite) TestRejectingRecipient() {
	ctx := context.Background()
	s.Require().NoError(s.vault.Deposit(ctx, donor, 5))
	s.Require().NoError(s.vault.SetRejecting(ctx, ngo, true))
	s.ErrorIs(s.vault.Transfer(ctx, ngo, 1), ErrRejected)
}

func (s *PostgresVaultSuite) TestRollsBackWithLedgerTransaction() {
	ctx := context.Background()
	tx, err := s.pg.DB.BeginTx(ctx, nil)
	s.Require().NoError(err)
	s.Require().NoError(s.vault.Deposit(txcontext.WithTx(ctx, tx), donor, 50))
	s.Require().NoError(tx.Rollback())

	bal, err := s.vault.EscrowBalance(ctx)
	s.Require().NoError(err)
	s.Zero(bal)
}
