//go:build integration

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"aidtrace/internal/access/models"
	"aidtrace/pkg/domain"
	"aidtrace/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.store = NewPostgres(s.pg.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(context.Background(), "capabilities"))
}

func (s *PostgresStoreSuite) TestGrantAndRevoke() {
	ctx := context.Background()
	id := domain.Identity("auditor-1")

	added, err := s.store.AddRole(ctx, id, models.RoleAuditor)
	s.Require().NoError(err)
	s.True(added)

	added, err = s.store.AddRole(ctx, id, models.RoleAuditor)
	s.Require().NoError(err)
	s.False(added)

	added, err = s.store.AddRole(ctx, id, models.RoleScanner)
	s.Require().NoError(err)
	s.True(added)

	roles, err := s.store.Roles(ctx, id)
	s.Require().NoError(err)
	s.ElementsMatch([]models.Role{models.RoleAuditor, models.RoleScanner}, roles)

	removed, err := s.store.RemoveRole(ctx, id, models.RoleAuditor)
	s.Require().NoError(err)
	s.True(removed)

	removed, err = s.store.RemoveRole(ctx, id, models.RoleAuditor)
	s.Require().NoError(err)
	s.False(removed)
}

func (s *PostgresStoreSuite) TestUnknownIdentityHasNoRoles() {
	roles, err := s.store.Roles(context.Background(), "nobody")
	s.Require().NoError(err)
	s.Empty(roles)
}
