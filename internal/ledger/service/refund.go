package service

import (
	"context"

	"aidtrace/internal/events"
	"aidtrace/internal/ledger/models"
	"aidtrace/pkg/domain"
	"aidtrace/pkg/requestcontext"
)

// RequestRefund returns an asset's remaining escrow to its donor. Allowed when
// the asset is flagged, or when the refund lock has passed and the asset has
// not reached Beneficiary. Refunds are terminal.
func (s *Service) RequestRefund(ctx context.Context, caller domain.Identity, id domain.AssetID) (*models.Asset, uint64, error) {
	now := clock(ctx)
	var (
		refunded *models.Asset
		amount   uint64
	)
	err := s.write(ctx, "request_refund", id, func(ctx context.Context, store Store, fx *effects) error {
		asset, err := store.FindAsset(ctx, id)
		if err != nil {
			return err
		}
		amount, err = asset.CanRefund(caller, now, s.cfg.RefundLock)
		if err != nil {
			return err
		}
		asset.ApplyRefund(now)
		if err := store.UpdateAsset(ctx, asset); err != nil {
			return err
		}

		donor, err := store.LoadParticipant(ctx, asset.Donor)
		if err != nil {
			return err
		}
		if err := donor.RecordRefund(amount); err != nil {
			return err
		}
		if err := store.SaveParticipant(ctx, donor); err != nil {
			return err
		}
		stats, err := store.LoadStats(ctx)
		if err != nil {
			return err
		}
		if err := stats.RecordRefunded(amount); err != nil {
			return err
		}
		if err := store.SaveStats(ctx, stats); err != nil {
			return err
		}

		fx.emit(events.New(ctx, events.Refunded, id, caller, events.RefundData{Donor: asset.Donor, Amount: amount}))
		fx.payout = &movement{party: asset.Donor, amount: amount}
		refunded = asset
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	s.metrics.AddRefunded(amount)
	s.logger.InfoContext(ctx, "asset refunded",
		"asset_id", id,
		"donor", caller,
		"amount", amount,
		"request_id", requestcontext.RequestID(ctx),
	)
	return refunded, amount, nil
}
