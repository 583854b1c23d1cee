package service

import (
	"context"
	"time"

	"aidtrace/internal/events"
	"aidtrace/internal/ledger/models"
	"aidtrace/pkg/domain"
)

// releaseMilestones pays every milestone the asset's stage now satisfies, in
// schedule order. Each release is recorded on the milestone, the asset, the
// NGO's totals and the platform totals before returning; the caller settles
// the summed payout with one transfer at the end of the transaction.
//
// A milestone whose clamped amount is zero stays unreleased.
func (s *Service) releaseMilestones(ctx context.Context, store Store, asset *models.Asset, actor domain.Identity, now time.Time, fx *effects) ([]models.Milestone, uint64, error) {
	if asset.IsRefunded {
		return nil, 0, nil
	}
	minScans, err := s.minScans(ctx, store)
	if err != nil {
		return nil, 0, err
	}
	if asset.ScansCount < minScans {
		return nil, 0, nil
	}
	milestones, err := store.ListMilestones(ctx, asset.ID)
	if err != nil {
		return nil, 0, err
	}

	var (
		released []models.Milestone
		total    uint64
	)
	for _, m := range milestones {
		if m.IsReleased || !m.Reached(asset.CurrentStage) {
			continue
		}
		amount := asset.MilestonePayout(m.Percent)
		if amount == 0 {
			s.logger.WarnContext(ctx, "milestone payout clamped to zero",
				"asset_id", asset.ID,
				"position", m.Position,
				"stage", m.Stage,
			)
			continue
		}
		m.ApplyRelease(amount, now)
		if err := store.UpdateMilestone(ctx, asset.ID, m); err != nil {
			return nil, 0, err
		}
		asset.ApplyRelease(amount, now)
		total += amount
		released = append(released, m)

		fx.emit(
			events.New(ctx, events.MilestoneHit, asset.ID, actor, events.MilestoneData{
				Position: m.Position,
				Stage:    m.Stage.String(),
				Percent:  m.Percent,
				Amount:   amount,
			}),
			events.New(ctx, events.FundsReleased, asset.ID, actor, events.ReleaseData{
				Recipient: asset.AssignedNGO,
				Amount:    amount,
			}),
		)
	}
	if total == 0 {
		return nil, 0, nil
	}

	if err := s.recordRelease(ctx, store, asset.AssignedNGO, total); err != nil {
		return nil, 0, err
	}
	return released, total, nil
}

// recordRelease credits recipient's received total and the platform released total.
func (s *Service) recordRelease(ctx context.Context, store Store, recipient domain.Identity, amount uint64) error {
	p, err := store.LoadParticipant(ctx, recipient)
	if err != nil {
		return err
	}
	if err := p.RecordReceived(amount); err != nil {
		return err
	}
	if err := store.SaveParticipant(ctx, p); err != nil {
		return err
	}
	stats, err := store.LoadStats(ctx)
	if err != nil {
		return err
	}
	if err := stats.RecordReleased(amount); err != nil {
		return err
	}
	return store.SaveStats(ctx, stats)
}

// minScans is the stored threshold, or the configured default when none is stored.
func (s *Service) minScans(ctx context.Context, store Store) (uint64, error) {
	v, err := store.MinScans(ctx)
	if err != nil {
		return 0, err
	}
	if v == 0 {
		return s.cfg.MinScans, nil
	}
	return v, nil
}
