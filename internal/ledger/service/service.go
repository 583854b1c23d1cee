// Package service is the custody ledger: asset registration, chain-of-custody
// scans, milestone releases, refunds and auditor overrides.
//
// Every write runs in one StoreTx transaction. Value leaves or enters escrow
// through the Custodian as the final step of that transaction, after all
// ledger state (including milestone release marks) has been written, so a
// recipient that calls back into the ledger sees committed-looking state and
// is refused as a nested transaction.
package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"aidtrace/internal/events"
	"aidtrace/internal/ledger/metrics"
	"aidtrace/internal/ledger/models"
	"aidtrace/pkg/domain"
)

// Store is the ledger persistence surface. See internal/ledger/store for the
// error contract.
type Store interface {
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

	MinScans(ctx context.Context) (uint64, error)
	SetMinScans(ctx context.Context, v uint64) error

	AppendEvents(ctx context.Context, evts []events.Event) error
}

// StoreTx runs fn atomically. fn receives a context marked as inside the
// transaction; opening another transaction on it must fail.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, store Store) error) error
}

// Config holds the ledger parameters.
type Config struct {
	// MinScans applies until an admin stores a value.
	MinScans   uint64
	RefundLock time.Duration
	Schedule   models.Schedule
	TxTimeout  time.Duration
}

const (
	DefaultMinScans   = 2
	DefaultRefundLock = 30 * 24 * time.Hour
	defaultTxTimeout  = 5 * time.Second
)

type Service struct {
	tx        StoreTx
	store     Store
	custodian Custodian
	roles     RoleChecker
	publisher EventPublisher
	cfg       Config
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithPublisher(p EventPublisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// New wires the ledger. store serves reads outside transactions; tx serves writes.
func New(tx StoreTx, store Store, custodian Custodian, roles RoleChecker, cfg Config, opts ...Option) *Service {
	if cfg.MinScans == 0 {
		cfg.MinScans = DefaultMinScans
	}
	if cfg.RefundLock == 0 {
		cfg.RefundLock = DefaultRefundLock
	}
	if len(cfg.Schedule) == 0 {
		cfg.Schedule = models.DefaultSchedule()
	}
	if cfg.TxTimeout == 0 {
		cfg.TxTimeout = defaultTxTimeout
	}
	s := &Service{
		tx:        tx,
		store:     store,
		custodian: custodian,
		roles:     roles,
		cfg:       cfg,
		logger:    slog.Default(),
		tracer:    otel.Tracer("aidtrace/ledger"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
