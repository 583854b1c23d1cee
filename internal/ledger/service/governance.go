package service

import (
	"context"
	"strings"

	accessmodels "aidtrace/internal/access/models"
	"aidtrace/internal/events"
	"aidtrace/internal/ledger/models"
	"aidtrace/pkg/domain"
	dErrors "aidtrace/pkg/domain-errors"
	"aidtrace/pkg/requestcontext"
)

// FlagAsset places an auditor hold on the asset. Scans fail until it is cleared.
func (s *Service) FlagAsset(ctx context.Context, caller domain.Identity, id domain.AssetID, reason string) (*models.Asset, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "flagged by auditor"
	}
	return s.setFlag(ctx, caller, id, true, reason)
}

// UnflagAsset clears a hold, whether an auditor or the anomaly detector set it.
func (s *Service) UnflagAsset(ctx context.Context, caller domain.Identity, id domain.AssetID) (*models.Asset, error) {
	return s.setFlag(ctx, caller, id, false, "")
}

func (s *Service) setFlag(ctx context.Context, caller domain.Identity, id domain.AssetID, flagged bool, reason string) (*models.Asset, error) {
	op := "unflag_asset"
	if flagged {
		op = "flag_asset"
	}
	now := clock(ctx)
	var out *models.Asset
	err := s.write(ctx, op, id, func(ctx context.Context, store Store, fx *effects) error {
		if err := s.requireRole(ctx, caller, accessmodels.RoleAuditor, op); err != nil {
			return err
		}
		asset, err := store.FindAsset(ctx, id)
		if err != nil {
			return err
		}
		if flagged {
			asset.ApplyFlag(reason, now)
			fx.emit(events.New(ctx, events.AssetFlagged, id, caller, events.FlagData{Reason: reason}))
		} else {
			asset.ApplyUnflag(now)
			fx.emit(events.New(ctx, events.AssetUnflagged, id, caller, nil))
		}
		if err := store.UpdateAsset(ctx, asset); err != nil {
			return err
		}
		out = asset
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "asset flag changed",
		"asset_id", id,
		"auditor", caller,
		"flagged", flagged,
		"reason", reason,
		"request_id", requestcontext.RequestID(ctx),
	)
	return out, nil
}

// ManualRelease pays amount from the asset's escrow to recipient outside the
// milestone schedule.
func (s *Service) ManualRelease(ctx context.Context, caller domain.Identity, id domain.AssetID, recipient domain.Identity, amount uint64) (*models.Asset, error) {
	if recipient.IsNil() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "manual_release: asset %s: recipient is required", id)
	}
	now := clock(ctx)
	var out *models.Asset
	err := s.write(ctx, "manual_release", id, func(ctx context.Context, store Store, fx *effects) error {
		if err := s.requireRole(ctx, caller, accessmodels.RoleAuditor, "manual_release"); err != nil {
			return err
		}
		asset, err := store.FindAsset(ctx, id)
		if err != nil {
			return err
		}
		if err := asset.CanManualRelease(amount); err != nil {
			return err
		}
		asset.ApplyRelease(amount, now)
		if err := store.UpdateAsset(ctx, asset); err != nil {
			return err
		}
		if err := s.recordRelease(ctx, store, recipient, amount); err != nil {
			return err
		}
		fx.emit(events.New(ctx, events.FundsReleased, id, caller, events.ReleaseData{
			Recipient: recipient,
			Amount:    amount,
			Manual:    true,
		}))
		fx.payout = &movement{party: recipient, amount: amount}
		out = asset
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.AddReleased("manual", amount)
	s.logger.InfoContext(ctx, "manual release",
		"asset_id", id,
		"auditor", caller,
		"recipient", recipient,
		"amount", amount,
		"request_id", requestcontext.RequestID(ctx),
	)
	return out, nil
}

// UpdateMinScans sets how many scans an asset needs before milestones pay out.
func (s *Service) UpdateMinScans(ctx context.Context, caller domain.Identity, value uint64) error {
	if value == 0 {
		return dErrors.New(dErrors.CodeInvalidAmount, "update_min_scans: value must be positive")
	}
	return s.write(ctx, "update_min_scans", "", func(ctx context.Context, store Store, fx *effects) error {
		if err := s.requireRole(ctx, caller, accessmodels.RoleAdmin, "update_min_scans"); err != nil {
			return err
		}
		prev, err := s.minScans(ctx, store)
		if err != nil {
			return err
		}
		if err := store.SetMinScans(ctx, value); err != nil {
			return err
		}
		fx.emit(events.New(ctx, events.MinScansUpdated, "", caller, events.MinScansData{Previous: prev, Current: value}))
		return nil
	})
}
