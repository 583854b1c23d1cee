package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"aidtrace/internal/access/models"
	"aidtrace/pkg/domain"
	txcontext "aidtrace/pkg/platform/tx"
)

// PostgresStore keeps each identity's roles as a TEXT[] row in capabilities.
// Reads and writes join the ledger transaction carried by ctx.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Roles(ctx context.Context, identity domain.Identity) ([]models.Role, error) {
	var raw []string
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT roles FROM capabilities WHERE identity = $1`, identity.String(),
	).Scan(pq.Array(&raw))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load roles for %s: %w", identity, err)
	}
	roles := make([]models.Role, len(raw))
	for i, r := range raw {
		roles[i] = models.Role(r)
	}
	return roles, nil
}

func (s *PostgresStore) AddRole(ctx context.Context, identity domain.Identity, role models.Role) (bool, error) {
	res, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO capabilities (identity, roles) VALUES ($1, ARRAY[$2::text])
		ON CONFLICT (identity) DO UPDATE
			SET roles = array_append(capabilities.roles, $2::text), updated_at = now()
			WHERE NOT ($2::text = ANY (capabilities.roles))
	`, identity.String(), role.String())
	if err != nil {
		return false, fmt.Errorf("add role %s to %s: %w", role, identity, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add role %s to %s: %w", role, identity, err)
	}
	return n > 0, nil
}

func (s *PostgresStore) RemoveRole(ctx context.Context, identity domain.Identity, role models.Role) (bool, error) {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE capabilities SET roles = array_remove(roles, $2::text), updated_at = now()
		WHERE identity = $1 AND $2::text = ANY (roles)
	`, identity.String(), role.String())
	if err != nil {
		return false, fmt.Errorf("remove role %s from %s: %w", role, identity, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove role %s from %s: %w", role, identity, err)
	}
	return n > 0, nil
}
