// Package store persists the custody ledger: assets, milestones, scan logs,
// totals, settings and the event outbox.
//
// Both backends expose the same Ledger method set and a RunInTx that hands fn
// a transaction-bound Ledger. Lookups that miss return sentinel.ErrNotFound;
// inserting an existing asset returns sentinel.ErrConflict; opening a
// transaction on a context that already carries one returns
// sentinel.ErrReentrant.
package store

import (
	"context"

	"aidtrace/internal/events"
	"aidtrace/internal/ledger/models"
	"aidtrace/pkg/domain"
)

// Ledger is the storage surface of the custody ledger.
type Ledger interface {
	CreateAsset(ctx context.Context, asset *models.Asset) error
	FindAsset(ctx context.Context, id domain.AssetID) (*models.Asset, error)
	UpdateAsset(ctx context.Context, asset *models.Asset) error
	ListAssetsByDonor(ctx context.Context, donor domain.Identity) ([]*models.Asset, error)

	SaveMilestones(ctx context.Context, id domain.AssetID, milestones []models.Milestone) error
	ListMilestones(ctx context.Context, id domain.AssetID) ([]models.Milestone, error)
	UpdateMilestone(ctx context.Context, id domain.AssetID, milestone models.Milestone) error

	AppendScan(ctx context.Context, entry models.ScanLogEntry) error
	ListScans(ctx context.Context, id domain.AssetID) ([]models.ScanLogEntry, error)
	LastScan(ctx context.Context, id domain.AssetID) (models.ScanLogEntry, error)

	LoadStats(ctx context.Context) (models.PlatformStats, error)
	SaveStats(ctx context.Context, stats models.PlatformStats) error
	LoadParticipant(ctx context.Context, identity domain.Identity) (models.Participant, error)
	SaveParticipant(ctx context.Context, p models.Participant) error

	// MinScans returns 0 when no value has been stored.
	MinScans(ctx context.Context) (uint64, error)
	SetMinScans(ctx context.Context, v uint64) error

	AppendEvents(ctx context.Context, evts []events.Event) error
}

const settingMinScans = "min_scans"
