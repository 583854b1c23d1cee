package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/lib/pq"

	"aidtrace/internal/events"
	"aidtrace/internal/events/outbox"
	"aidtrace/internal/ledger/models"
	"aidtrace/internal/platform/postgres"
	"aidtrace/pkg/domain"
	"aidtrace/pkg/platform/sentinel"
	txcontext "aidtrace/pkg/platform/tx"
)

// Postgres is the durable ledger. Every query runs on the transaction carried
// by ctx when there is one, so the same value serves as the tx-bound Ledger.
type Postgres struct {
	db     *sql.DB
	outbox *outbox.Store
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, outbox: outbox.New(db)}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// maxTxAttempts bounds how often a transaction aborted by a serialization
// conflict is replayed from the start.
const maxTxAttempts = 5

// RunInTx runs fn inside a SERIALIZABLE transaction. A serialization abort
// rolls everything back, so fn is replayed on a fresh transaction up to
// maxTxAttempts times; the last abort surfaces as sentinel.ErrUnavailable.
func (s *Postgres) RunInTx(ctx context.Context, fn func(ctx context.Context, ledger Ledger) error) error {
	if txcontext.Active(ctx) {
		return sentinel.ErrReentrant
	}
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = s.runOnce(ctx, fn)
		if err == nil || !postgres.IsSerializationFailure(err) {
			return err
		}
		if attempt == maxTxAttempts {
			break
		}
		timer := time.NewTimer(time.Duration(attempt) * 5 * time.Millisecond)
		select {
		case <-ctx.Done():
			timer.Stop()
			return serializationAware(err)
		case <-timer.C:
		}
	}
	return serializationAware(err)
}

func (s *Postgres) runOnce(ctx context.Context, fn func(ctx context.Context, ledger Ledger) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx), s); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}
	return nil
}

func serializationAware(err error) error {
	if postgres.IsSerializationFailure(err) {
		return fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
	}
	return err
}

const assetColumns = `id, description, donor, assigned_ngo, allocated::text, released::text,
	scans_count::text, stage, geo_tag, is_flagged, flag_reason, is_refunded, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner) (*models.Asset, error) {
	var (
		a                             models.Asset
		id, donor, ngo                string
		allocated, released, scansRaw string
		stage                         int16
	)
	if err := row.Scan(&id, &a.Description, &donor, &ngo, &allocated, &released, &scansRaw,
		&stage, &a.CurrentGeoTag, &a.IsFlagged, &a.FlagReason, &a.IsRefunded, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if a.AllocatedFunds, err = postgres.ParseAmount(allocated); err != nil {
		return nil, err
	}
	if a.ReleasedFunds, err = postgres.ParseAmount(released); err != nil {
		return nil, err
	}
	if a.ScansCount, err = postgres.ParseAmount(scansRaw); err != nil {
		return nil, err
	}
	a.ID = domain.AssetID(id)
	a.Donor = domain.Identity(donor)
	a.AssignedNGO = domain.Identity(ngo)
	a.CurrentStage = models.Stage(stage)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return &a, nil
}

func (s *Postgres) CreateAsset(ctx context.Context, a *models.Asset) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO assets (id, description, donor, assigned_ngo, allocated, released, scans_count,
			stage, geo_tag, is_flagged, flag_reason, is_refunded, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8, $9, $10, $11, $12, $13, $14)
	`, a.ID.String(), a.Description, a.Donor.String(), a.AssignedNGO.String(),
		postgres.FormatAmount(a.AllocatedFunds), postgres.FormatAmount(a.ReleasedFunds), postgres.FormatAmount(a.ScansCount),
		int16(a.CurrentStage), a.CurrentGeoTag, a.IsFlagged, a.FlagReason, a.IsRefunded, a.CreatedAt, a.UpdatedAt)
	if postgres.IsUniqueViolation(err) {
		return fmt.Errorf("asset %s: %w", a.ID, sentinel.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert asset %s: %w", a.ID, err)
	}
	return nil
}

func (s *Postgres) FindAsset(ctx context.Context, id domain.AssetID) (*models.Asset, error) {
	a, err := scanAsset(s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+assetColumns+` FROM assets WHERE id = $1`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("asset %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load asset %s: %w", id, err)
	}
	return a, nil
}

func (s *Postgres) UpdateAsset(ctx context.Context, a *models.Asset) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE assets SET allocated = $2::numeric, released = $3::numeric, scans_count = $4::numeric,
			stage = $5, geo_tag = $6, is_flagged = $7, flag_reason = $8, is_refunded = $9, updated_at = $10
		WHERE id = $1
	`, a.ID.String(), postgres.FormatAmount(a.AllocatedFunds), postgres.FormatAmount(a.ReleasedFunds),
		postgres.FormatAmount(a.ScansCount), int16(a.CurrentStage), a.CurrentGeoTag,
		a.IsFlagged, a.FlagReason, a.IsRefunded, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update asset %s: %w", a.ID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("update asset %s: %w", a.ID, err)
	} else if n == 0 {
		return fmt.Errorf("asset %s: %w", a.ID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *Postgres) ListAssetsByDonor(ctx context.Context, donor domain.Identity) ([]*models.Asset, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT `+assetColumns+` FROM assets WHERE donor = $1 ORDER BY created_at, id`, donor.String())
	if err != nil {
		return nil, fmt.Errorf("list assets of %s: %w", donor, err)
	}
	defer rows.Close()
	var out []*models.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Postgres) SaveMilestones(ctx context.Context, id domain.AssetID, milestones []models.Milestone) error {
	exec := s.execer(ctx)
	if _, err := exec.ExecContext(ctx, `DELETE FROM milestones WHERE asset_id = $1`, id.String()); err != nil {
		return fmt.Errorf("clear milestones of %s: %w", id, err)
	}
	for _, m := range milestones {
		if _, err := exec.ExecContext(ctx, `
			INSERT INTO milestones (asset_id, position, stage, percent, is_released, released_amount, released_at)
			VALUES ($1, $2, $3, $4, $5, $6::numeric, $7)
		`, id.String(), m.Position, int16(m.Stage), int16(m.Percent), m.IsReleased,
			postgres.FormatAmount(m.ReleasedAmount), m.ReleasedAt); err != nil {
			return fmt.Errorf("insert milestone %d of %s: %w", m.Position, id, err)
		}
	}
	return nil
}

func (s *Postgres) ListMilestones(ctx context.Context, id domain.AssetID) ([]models.Milestone, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT position, stage, percent, is_released, released_amount::text, released_at
		FROM milestones WHERE asset_id = $1 ORDER BY position
	`, id.String())
	if err != nil {
		return nil, fmt.Errorf("list milestones of %s: %w", id, err)
	}
	defer rows.Close()
	var out []models.Milestone
	for rows.Next() {
		var (
			m              models.Milestone
			stage, percent int16
			amount         string
			releasedAt     sql.NullTime
		)
		if err := rows.Scan(&m.Position, &stage, &percent, &m.IsReleased, &amount, &releasedAt); err != nil {
			return nil, fmt.Errorf("scan milestone: %w", err)
		}
		if m.ReleasedAmount, err = postgres.ParseAmount(amount); err != nil {
			return nil, err
		}
		m.Stage = models.Stage(stage)
		m.Percent = uint8(percent)
		if releasedAt.Valid {
			at := releasedAt.Time.UTC()
			m.ReleasedAt = &at
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Postgres) UpdateMilestone(ctx context.Context, id domain.AssetID, m models.Milestone) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE milestones SET is_released = $3, released_amount = $4::numeric, released_at = $5
		WHERE asset_id = $1 AND position = $2
	`, id.String(), m.Position, m.IsReleased, postgres.FormatAmount(m.ReleasedAmount), m.ReleasedAt)
	if err != nil {
		return fmt.Errorf("update milestone %d of %s: %w", m.Position, id, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("update milestone %d of %s: %w", m.Position, id, err)
	} else if n == 0 {
		return fmt.Errorf("asset %s milestone %d: %w", id, m.Position, sentinel.ErrNotFound)
	}
	return nil
}

func (s *Postgres) AppendScan(ctx context.Context, e models.ScanLogEntry) error {
	var proof []byte
	if !e.ContentHash.IsZero() {
		proof = e.ContentHash[:]
	}
	anomalies := e.Anomalies
	if anomalies == nil {
		anomalies = []string{}
	}
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO scan_log (asset_id, sequence, scanned_at, actor, geo_tag, stage, content_hash,
			anomaly, anomalies, note, device, prev_hash, hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, e.AssetID.String(), int64(e.Sequence), e.Timestamp, e.Actor.String(), e.GeoTag, int16(e.Stage),
		proof, e.Anomaly, pq.Array(anomalies), e.Note, e.Device, e.PrevHash[:], e.Hash[:])
	if postgres.IsUniqueViolation(err) {
		return fmt.Errorf("asset %s scan %d: %w", e.AssetID, e.Sequence, sentinel.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("append scan %d of %s: %w", e.Sequence, e.AssetID, err)
	}
	return nil
}

const scanColumns = `asset_id, sequence, scanned_at, actor, geo_tag, stage, content_hash,
	anomaly, anomalies, note, device, prev_hash, hash`

func scanEntry(row rowScanner) (models.ScanLogEntry, error) {
	var (
		e                 models.ScanLogEntry
		asset, actor      string
		seq               int64
		stage             int16
		proof, prev, hash []byte
		anomalies         []string
	)
	if err := row.Scan(&asset, &seq, &e.Timestamp, &actor, &e.GeoTag, &stage, &proof,
		&e.Anomaly, pq.Array(&anomalies), &e.Note, &e.Device, &prev, &hash); err != nil {
		return models.ScanLogEntry{}, err
	}
	e.AssetID = domain.AssetID(asset)
	e.Sequence = uint64(seq)
	e.Timestamp = e.Timestamp.UTC()
	e.Actor = domain.Identity(actor)
	e.Stage = models.Stage(stage)
	copy(e.ContentHash[:], proof)
	copy(e.PrevHash[:], prev)
	copy(e.Hash[:], hash)
	if len(anomalies) > 0 {
		e.Anomalies = anomalies
	}
	return e, nil
}

func (s *Postgres) ListScans(ctx context.Context, id domain.AssetID) ([]models.ScanLogEntry, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT `+scanColumns+` FROM scan_log WHERE asset_id = $1 ORDER BY sequence`, id.String())
	if err != nil {
		return nil, fmt.Errorf("list scans of %s: %w", id, err)
	}
	defer rows.Close()
	var out []models.ScanLogEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan log entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Postgres) LastScan(ctx context.Context, id domain.AssetID) (models.ScanLogEntry, error) {
	e, err := scanEntry(s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+scanColumns+` FROM scan_log WHERE asset_id = $1 ORDER BY sequence DESC LIMIT 1`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return models.ScanLogEntry{}, fmt.Errorf("scan log of %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return models.ScanLogEntry{}, fmt.Errorf("load last scan of %s: %w", id, err)
	}
	return e, nil
}

func (s *Postgres) LoadStats(ctx context.Context) (models.PlatformStats, error) {
	var assets, allocated, released, refunded string
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT total_assets::text, total_allocated::text, total_released::text, total_refunded::text
		FROM platform_stats WHERE id = 1
	`).Scan(&assets, &allocated, &released, &refunded)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PlatformStats{}, nil
	}
	if err != nil {
		return models.PlatformStats{}, fmt.Errorf("load platform stats: %w", err)
	}
	var st models.PlatformStats
	for _, f := range []struct {
		raw string
		dst *uint64
	}{
		{assets, &st.TotalAssets},
		{allocated, &st.TotalAllocated},
		{released, &st.TotalReleased},
		{refunded, &st.TotalRefunded},
	} {
		if *f.dst, err = postgres.ParseAmount(f.raw); err != nil {
			return models.PlatformStats{}, err
		}
	}
	return st, nil
}

func (s *Postgres) SaveStats(ctx context.Context, st models.PlatformStats) error {
	if _, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO platform_stats (id, total_assets, total_allocated, total_released, total_refunded)
		VALUES (1, $1::numeric, $2::numeric, $3::numeric, $4::numeric)
		ON CONFLICT (id) DO UPDATE SET
			total_assets = EXCLUDED.total_assets,
			total_allocated = EXCLUDED.total_allocated,
			total_released = EXCLUDED.total_released,
			total_refunded = EXCLUDED.total_refunded
	`, postgres.FormatAmount(st.TotalAssets), postgres.FormatAmount(st.TotalAllocated),
		postgres.FormatAmount(st.TotalReleased), postgres.FormatAmount(st.TotalRefunded)); err != nil {
		return fmt.Errorf("save platform stats: %w", err)
	}
	return nil
}

func (s *Postgres) LoadParticipant(ctx context.Context, identity domain.Identity) (models.Participant, error) {
	var donated, refunded, received string
	var funded int64
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT donated::text, refunded::text, received::text, assets_funded
		FROM participants WHERE identity = $1
	`, identity.String()).Scan(&donated, &refunded, &received, &funded)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Participant{Identity: identity}, nil
	}
	if err != nil {
		return models.Participant{}, fmt.Errorf("load participant %s: %w", identity, err)
	}
	p := models.Participant{Identity: identity, AssetsFunded: uint64(funded)}
	if p.Donated, err = postgres.ParseAmount(donated); err != nil {
		return models.Participant{}, err
	}
	if p.Refunded, err = postgres.ParseAmount(refunded); err != nil {
		return models.Participant{}, err
	}
	if p.Received, err = postgres.ParseAmount(received); err != nil {
		return models.Participant{}, err
	}
	return p, nil
}

func (s *Postgres) SaveParticipant(ctx context.Context, p models.Participant) error {
	if _, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO participants (identity, donated, refunded, received, assets_funded)
		VALUES ($1, $2::numeric, $3::numeric, $4::numeric, $5)
		ON CONFLICT (identity) DO UPDATE SET
			donated = EXCLUDED.donated,
			refunded = EXCLUDED.refunded,
			received = EXCLUDED.received,
			assets_funded = EXCLUDED.assets_funded
	`, p.Identity.String(), postgres.FormatAmount(p.Donated), postgres.FormatAmount(p.Refunded),
		postgres.FormatAmount(p.Received), int64(p.AssetsFunded)); err != nil {
		return fmt.Errorf("save participant %s: %w", p.Identity, err)
	}
	return nil
}

func (s *Postgres) MinScans(ctx context.Context) (uint64, error) {
	var raw string
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = $1`, settingMinScans).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load min scans: %w", err)
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse min scans %q: %w", raw, err)
	}
	return v, nil
}

func (s *Postgres) SetMinScans(ctx context.Context, v uint64) error {
	if _, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, settingMinScans, strconv.FormatUint(v, 10)); err != nil {
		return fmt.Errorf("save min scans: %w", err)
	}
	return nil
}

// AppendEvents writes to the outbox inside the caller's transaction.
func (s *Postgres) AppendEvents(ctx context.Context, evts []events.Event) error {
	return s.outbox.Append(ctx, evts)
}

var (
	_ Ledger = (*Postgres)(nil)
	_ Ledger = (*memoryTx)(nil)
	_ Ledger = (*Memory)(nil)
)
