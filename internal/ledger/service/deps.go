package service

import (
	"context"

	accessmodels "aidtrace/internal/access/models"
	"aidtrace/internal/events"
	"aidtrace/pkg/domain"
)

// Custodian moves value into and out of escrow.
type Custodian interface {
	Deposit(ctx context.Context, from domain.Identity, amount uint64) error
	Transfer(ctx context.Context, to domain.Identity, amount uint64) error
}

// RoleChecker answers capability questions.
type RoleChecker interface {
	HasRole(ctx context.Context, identity domain.Identity, role accessmodels.Role) (bool, error)
}

// EventPublisher delivers committed events to live subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, evts ...events.Event)
}
