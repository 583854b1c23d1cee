package service

import (
	"context"

	"aidtrace/internal/ledger/models"
	"aidtrace/pkg/domain"
)

func (s *Service) GetAsset(ctx context.Context, id domain.AssetID) (*models.Asset, error) {
	var asset *models.Asset
	err := s.read(ctx, "get_asset", id, func(ctx context.Context) (err error) {
		asset, err = s.store.FindAsset(ctx, id)
		return err
	})
	return asset, err
}

// GetProgress reports stage and funds completion as whole percentages.
func (s *Service) GetProgress(ctx context.Context, id domain.AssetID) (models.Progress, error) {
	var progress models.Progress
	err := s.read(ctx, "get_progress", id, func(ctx context.Context) error {
		asset, err := s.store.FindAsset(ctx, id)
		if err != nil {
			return err
		}
		progress, err = asset.Progress()
		return err
	})
	return progress, err
}

// GetScanHistory returns the asset's chain of custody, oldest first.
func (s *Service) GetScanHistory(ctx context.Context, id domain.AssetID) ([]models.ScanLogEntry, error) {
	var entries []models.ScanLogEntry
	err := s.read(ctx, "get_scan_history", id, func(ctx context.Context) error {
		if _, err := s.store.FindAsset(ctx, id); err != nil {
			return err
		}
		var err error
		entries, err = s.store.ListScans(ctx, id)
		return err
	})
	return entries, err
}

// VerifyScanHistory recomputes the asset's scan hash chain.
func (s *Service) VerifyScanHistory(ctx context.Context, id domain.AssetID) (models.ChainReport, error) {
	entries, err := s.GetScanHistory(ctx, id)
	if err != nil {
		return models.ChainReport{}, err
	}
	report := models.VerifyChain(id, entries)
	if !report.Valid {
		s.logger.ErrorContext(ctx, "scan history hash chain broken",
			"asset_id", id,
			"broken_at", *report.BrokenAt,
		)
	}
	return report, nil
}

func (s *Service) GetMilestones(ctx context.Context, id domain.AssetID) ([]models.Milestone, error) {
	var milestones []models.Milestone
	err := s.read(ctx, "get_milestones", id, func(ctx context.Context) error {
		if _, err := s.store.FindAsset(ctx, id); err != nil {
			return err
		}
		var err error
		milestones, err = s.store.ListMilestones(ctx, id)
		return err
	})
	return milestones, err
}

// GetDonorAssets lists the assets donor funded, oldest first.
func (s *Service) GetDonorAssets(ctx context.Context, donor domain.Identity) ([]*models.Asset, error) {
	var assets []*models.Asset
	err := s.read(ctx, "get_donor_assets", "", func(ctx context.Context) (err error) {
		assets, err = s.store.ListAssetsByDonor(ctx, donor)
		return err
	})
	return assets, err
}

// PlatformStats is the get_platform_stats reply.
type PlatformStats struct {
	TotalAssets    uint64 `json:"total_assets"`
	TotalAllocated uint64 `json:"total_allocated"`
	TotalReleased  uint64 `json:"total_released"`
	TotalRefunded  uint64 `json:"total_refunded"`
	TotalInTransit uint64 `json:"total_in_transit"`
	TotalEscrowed  uint64 `json:"total_escrowed"`
}

func (s *Service) GetPlatformStats(ctx context.Context) (PlatformStats, error) {
	var out PlatformStats
	err := s.read(ctx, "get_platform_stats", "", func(ctx context.Context) error {
		st, err := s.store.LoadStats(ctx)
		if err != nil {
			return err
		}
		out = PlatformStats{
			TotalAssets:    st.TotalAssets,
			TotalAllocated: st.TotalAllocated,
			TotalReleased:  st.TotalReleased,
			TotalRefunded:  st.TotalRefunded,
			TotalInTransit: st.InTransit(),
			TotalEscrowed:  st.Escrowed(),
		}
		return nil
	})
	return out, err
}

// GetParticipant returns identity's running totals; unknown identities get zeros.
func (s *Service) GetParticipant(ctx context.Context, identity domain.Identity) (models.Participant, error) {
	var p models.Participant
	err := s.read(ctx, "get_participant", "", func(ctx context.Context) (err error) {
		p, err = s.store.LoadParticipant(ctx, identity)
		return err
	})
	return p, err
}

// MinScans is the threshold currently in force.
func (s *Service) MinScans(ctx context.Context) (uint64, error) {
	var v uint64
	err := s.read(ctx, "min_scans", "", func(ctx context.Context) (err error) {
		v, err = s.minScans(ctx, s.store)
		return err
	})
	return v, err
}
