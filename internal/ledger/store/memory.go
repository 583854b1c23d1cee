package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"aidtrace/internal/events"
	"aidtrace/internal/ledger/models"
	"aidtrace/pkg/domain"
	"aidtrace/pkg/platform/sentinel"
	txcontext "aidtrace/pkg/platform/tx"
)

// Memory is the in-process ledger. Writers serialize on one mutex; every
// mutation made inside RunInTx records an undo step, and a failing fn replays
// them in reverse so no partial state survives.
type Memory struct {
	mu           sync.RWMutex
	assets       map[domain.AssetID]*models.Asset
	donorAssets  map[domain.Identity][]domain.AssetID
	milestones   map[domain.AssetID][]models.Milestone
	scans        map[domain.AssetID][]models.ScanLogEntry
	participants map[domain.Identity]models.Participant
	stats        models.PlatformStats
	minScans     uint64
	outbox       []events.Event
}

func NewMemory() *Memory {
	return &Memory{
		assets:       make(map[domain.AssetID]*models.Asset),
		donorAssets:  make(map[domain.Identity][]domain.AssetID),
		milestones:   make(map[domain.AssetID][]models.Milestone),
		scans:        make(map[domain.AssetID][]models.ScanLogEntry),
		participants: make(map[domain.Identity]models.Participant),
	}
}

// RunInTx runs fn with exclusive access to the ledger.
func (m *Memory) RunInTx(ctx context.Context, fn func(ctx context.Context, ledger Ledger) error) (err error) {
	if txcontext.Active(ctx) {
		return sentinel.ErrReentrant
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{m: m}
	defer func() {
		if p := recover(); p != nil {
			tx.rollback()
			panic(p)
		}
		if err != nil {
			tx.rollback()
		}
	}()
	return fn(txcontext.MarkActive(ctx), tx)
}

// Outbox returns the events committed so far, oldest first.
func (m *Memory) Outbox() []events.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.outbox)
}

func (m *Memory) read(ctx context.Context, fn func(tx *memoryTx) error) error {
	if txcontext.Active(ctx) {
		return sentinel.ErrReentrant
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(&memoryTx{m: m})
}

func (m *Memory) write(ctx context.Context, fn func(tx *memoryTx) error) error {
	return m.RunInTx(ctx, func(_ context.Context, l Ledger) error {
		return fn(l.(*memoryTx))
	})
}

func (m *Memory) CreateAsset(ctx context.Context, asset *models.Asset) error {
	return m.write(ctx, func(tx *memoryTx) error { return tx.CreateAsset(ctx, asset) })
}

func (m *Memory) FindAsset(ctx context.Context, id domain.AssetID) (asset *models.Asset, err error) {
	err = m.read(ctx, func(tx *memoryTx) error {
		asset, err = tx.FindAsset(ctx, id)
		return err
	})
	return asset, err
}

func (m *Memory) UpdateAsset(ctx context.Context, asset *models.Asset) error {
	return m.write(ctx, func(tx *memoryTx) error { return tx.UpdateAsset(ctx, asset) })
}

func (m *Memory) ListAssetsByDonor(ctx context.Context, donor domain.Identity) (assets []*models.Asset, err error) {
	err = m.read(ctx, func(tx *memoryTx) error {
		assets, err = tx.ListAssetsByDonor(ctx, donor)
		return err
	})
	return assets, err
}

func (m *Memory) SaveMilestones(ctx context.Context, id domain.AssetID, milestones []models.Milestone) error {
	return m.write(ctx, func(tx *memoryTx) error { return tx.SaveMilestones(ctx, id, milestones) })
}

func (m *Memory) ListMilestones(ctx context.Context, id domain.AssetID) (ms []models.Milestone, err error) {
	err = m.read(ctx, func(tx *memoryTx) error {
		ms, err = tx.ListMilestones(ctx, id)
		return err
	})
	return ms, err
}

func (m *Memory) UpdateMilestone(ctx context.Context, id domain.AssetID, milestone models.Milestone) error {
	return m.write(ctx, func(tx *memoryTx) error { return tx.UpdateMilestone(ctx, id, milestone) })
}

func (m *Memory) AppendScan(ctx context.Context, entry models.ScanLogEntry) error {
	return m.write(ctx, func(tx *memoryTx) error { return tx.AppendScan(ctx, entry) })
}

func (m *Memory) ListScans(ctx context.Context, id domain.AssetID) (entries []models.ScanLogEntry, err error) {
	err = m.read(ctx, func(tx *memoryTx) error {
		entries, err = tx.ListScans(ctx, id)
		return err
	})
	return entries, err
}

func (m *Memory) LastScan(ctx context.Context, id domain.AssetID) (entry models.ScanLogEntry, err error) {
	err = m.read(ctx, func(tx *memoryTx) error {
		entry, err = tx.LastScan(ctx, id)
		return err
	})
	return entry, err
}

func (m *Memory) LoadStats(ctx context.Context) (stats models.PlatformStats, err error) {
	err = m.read(ctx, func(tx *memoryTx) error {
		stats, err = tx.LoadStats(ctx)
		return err
	})
	return stats, err
}

func (m *Memory) SaveStats(ctx context.Context, stats models.PlatformStats) error {
	return m.write(ctx, func(tx *memoryTx) error { return tx.SaveStats(ctx, stats) })
}

func (m *Memory) LoadParticipant(ctx context.Context, identity domain.Identity) (p models.Participant, err error) {
	err = m.read(ctx, func(tx *memoryTx) error {
		p, err = tx.LoadParticipant(ctx, identity)
		return err
	})
	return p, err
}

func (m *Memory) SaveParticipant(ctx context.Context, p models.Participant) error {
	return m.write(ctx, func(tx *memoryTx) error { return tx.SaveParticipant(ctx, p) })
}

func (m *Memory) MinScans(ctx context.Context) (v uint64, err error) {
	err = m.read(ctx, func(tx *memoryTx) error {
		v, err = tx.MinScans(ctx)
		return err
	})
	return v, err
}

func (m *Memory) SetMinScans(ctx context.Context, v uint64) error {
	return m.write(ctx, func(tx *memoryTx) error { return tx.SetMinScans(ctx, v) })
}

func (m *Memory) AppendEvents(ctx context.Context, evts []events.Event) error {
	return m.write(ctx, func(tx *memoryTx) error { return tx.AppendEvents(ctx, evts) })
}

// memoryTx operates on Memory's maps with the lock already held.
type memoryTx struct {
	m    *Memory
	undo []func()
}

func (t *memoryTx) onRollback(fn func()) {
	t.undo = append(t.undo, fn)
}

func (t *memoryTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *memoryTx) CreateAsset(_ context.Context, asset *models.Asset) error {
	if _, ok := t.m.assets[asset.ID]; ok {
		return fmt.Errorf("asset %s: %w", asset.ID, sentinel.ErrConflict)
	}
	t.m.assets[asset.ID] = asset.Clone()
	prev := t.m.donorAssets[asset.Donor]
	t.m.donorAssets[asset.Donor] = append(slices.Clone(prev), asset.ID)
	t.onRollback(func() {
		delete(t.m.assets, asset.ID)
		if len(prev) == 0 {
			delete(t.m.donorAssets, asset.Donor)
		} else {
			t.m.donorAssets[asset.Donor] = prev
		}
	})
	return nil
}

func (t *memoryTx) FindAsset(_ context.Context, id domain.AssetID) (*models.Asset, error) {
	a, ok := t.m.assets[id]
	if !ok {
		return nil, fmt.Errorf("asset %s: %w", id, sentinel.ErrNotFound)
	}
	return a.Clone(), nil
}

func (t *memoryTx) UpdateAsset(_ context.Context, asset *models.Asset) error {
	prev, ok := t.m.assets[asset.ID]
	if !ok {
		return fmt.Errorf("asset %s: %w", asset.ID, sentinel.ErrNotFound)
	}
	t.m.assets[asset.ID] = asset.Clone()
	t.onRollback(func() { t.m.assets[asset.ID] = prev })
	return nil
}

func (t *memoryTx) ListAssetsByDonor(_ context.Context, donor domain.Identity) ([]*models.Asset, error) {
	ids := t.m.donorAssets[donor]
	out := make([]*models.Asset, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.m.assets[id].Clone())
	}
	return out, nil
}

func (t *memoryTx) SaveMilestones(_ context.Context, id domain.AssetID, milestones []models.Milestone) error {
	prev, had := t.m.milestones[id]
	t.m.milestones[id] = slices.Clone(milestones)
	t.onRollback(func() {
		if had {
			t.m.milestones[id] = prev
		} else {
			delete(t.m.milestones, id)
		}
	})
	return nil
}

func (t *memoryTx) ListMilestones(_ context.Context, id domain.AssetID) ([]models.Milestone, error) {
	return slices.Clone(t.m.milestones[id]), nil
}

func (t *memoryTx) UpdateMilestone(_ context.Context, id domain.AssetID, milestone models.Milestone) error {
	ms := t.m.milestones[id]
	if milestone.Position < 0 || milestone.Position >= len(ms) {
		return fmt.Errorf("asset %s milestone %d: %w", id, milestone.Position, sentinel.ErrNotFound)
	}
	updated := slices.Clone(ms)
	updated[milestone.Position] = milestone
	t.m.milestones[id] = updated
	t.onRollback(func() { t.m.milestones[id] = ms })
	return nil
}

func (t *memoryTx) AppendScan(_ context.Context, entry models.ScanLogEntry) error {
	log := t.m.scans[entry.AssetID]
	if entry.Sequence != uint64(len(log)) {
		return fmt.Errorf("asset %s scan %d: %w", entry.AssetID, entry.Sequence, sentinel.ErrConflict)
	}
	t.m.scans[entry.AssetID] = append(log, entry)
	t.onRollback(func() {
		if len(log) == 0 {
			delete(t.m.scans, entry.AssetID)
		} else {
			t.m.scans[entry.AssetID] = log
		}
	})
	return nil
}

func (t *memoryTx) ListScans(_ context.Context, id domain.AssetID) ([]models.ScanLogEntry, error) {
	return slices.Clone(t.m.scans[id]), nil
}

func (t *memoryTx) LastScan(_ context.Context, id domain.AssetID) (models.ScanLogEntry, error) {
	log := t.m.scans[id]
	if len(log) == 0 {
		return models.ScanLogEntry{}, fmt.Errorf("scan log of %s: %w", id, sentinel.ErrNotFound)
	}
	return log[len(log)-1], nil
}

func (t *memoryTx) LoadStats(context.Context) (models.PlatformStats, error) {
	return t.m.stats, nil
}

func (t *memoryTx) SaveStats(_ context.Context, stats models.PlatformStats) error {
	prev := t.m.stats
	t.m.stats = stats
	t.onRollback(func() { t.m.stats = prev })
	return nil
}

func (t *memoryTx) LoadParticipant(_ context.Context, identity domain.Identity) (models.Participant, error) {
	if p, ok := t.m.participants[identity]; ok {
		return p, nil
	}
	return models.Participant{Identity: identity}, nil
}

func (t *memoryTx) SaveParticipant(_ context.Context, p models.Participant) error {
	prev, had := t.m.participants[p.Identity]
	t.m.participants[p.Identity] = p
	t.onRollback(func() {
		if had {
			t.m.participants[p.Identity] = prev
		} else {
			delete(t.m.participants, p.Identity)
		}
	})
	return nil
}

func (t *memoryTx) MinScans(context.Context) (uint64, error) {
	return t.m.minScans, nil
}

func (t *memoryTx) SetMinScans(_ context.Context, v uint64) error {
	prev := t.m.minScans
	t.m.minScans = v
	t.onRollback(func() { t.m.minScans = prev })
	return nil
}

func (t *memoryTx) AppendEvents(_ context.Context, evts []events.Event) error {
	prev := t.m.outbox
	t.m.outbox = append(slices.Clip(prev), evts...)
	t.onRollback(func() { t.m.outbox = prev })
	return nil
}
