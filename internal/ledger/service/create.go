package service

import (
	"context"
	"errors"

	accessmodels "aidtrace/internal/access/models"
	"aidtrace/internal/events"
	"aidtrace/internal/ledger/models"
	"aidtrace/pkg/domain"
	dErrors "aidtrace/pkg/domain-errors"
	"aidtrace/pkg/platform/sentinel"
	"aidtrace/pkg/requestcontext"
)

// CreateAssetRequest registers and funds a shipment. Milestones overrides the
// configured schedule when non-empty.
type CreateAssetRequest struct {
	ID            domain.AssetID
	Description   string
	AssignedNGO   domain.Identity
	GeoTag        string
	FundingAmount uint64
	Milestones    []models.MilestoneRule
}

// CreateAsset registers an asset funded by caller. The funding moves into
// escrow as the last step; any failure leaves no trace.
func (s *Service) CreateAsset(ctx context.Context, caller domain.Identity, req CreateAssetRequest) (*models.Asset, error) {
	if caller.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "create_asset: donor identity is required")
	}
	schedule := s.cfg.Schedule
	if len(req.Milestones) > 0 {
		custom, err := models.NewSchedule(req.Milestones)
		if err != nil {
			return nil, err
		}
		schedule = custom
	}

	now := clock(ctx)
	asset, err := models.NewAsset(req.ID, req.Description, caller, req.AssignedNGO, req.GeoTag, req.FundingAmount, now)
	if err != nil {
		return nil, err
	}

	err = s.write(ctx, "create_asset", req.ID, func(ctx context.Context, store Store, fx *effects) error {
		if _, err := store.FindAsset(ctx, req.ID); err == nil {
			return dErrors.Newf(dErrors.CodeDuplicateAsset, "create_asset: asset %s already exists", req.ID)
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return err
		}
		isNGO, err := s.roles.HasRole(ctx, req.AssignedNGO, accessmodels.RoleNGO)
		if err != nil {
			return err
		}
		if !isNGO {
			return dErrors.Newf(dErrors.CodeUnregisteredNGO, "create_asset: %s is not a registered NGO", req.AssignedNGO)
		}

		if err := store.CreateAsset(ctx, asset); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.Wrap(err, dErrors.CodeDuplicateAsset, "create_asset: asset "+req.ID.String()+" already exists")
			}
			return err
		}
		milestones := schedule.Instantiate()
		if err := store.SaveMilestones(ctx, asset.ID, milestones); err != nil {
			return err
		}

		entry, err := models.NewScanEntry(asset.ID, 0, now, caller, asset.CurrentGeoTag, asset.CurrentStage,
			domain.ContentHash{}, nil, models.NoteCreated, requestcontext.Device(ctx), models.ChainHash{})
		if err != nil {
			return err
		}
		if err := store.AppendScan(ctx, entry); err != nil {
			return err
		}

		donor, err := store.LoadParticipant(ctx, caller)
		if err != nil {
			return err
		}
		if err := donor.RecordDonation(req.FundingAmount); err != nil {
			return err
		}
		if err := store.SaveParticipant(ctx, donor); err != nil {
			return err
		}
		stats, err := store.LoadStats(ctx)
		if err != nil {
			return err
		}
		if err := stats.RecordCreated(req.FundingAmount); err != nil {
			return err
		}
		if err := store.SaveStats(ctx, stats); err != nil {
			return err
		}

		fx.emit(
			events.New(ctx, events.AssetCreated, asset.ID, caller, events.AssetCreatedData{
				Donor:       caller,
				AssignedNGO: asset.AssignedNGO,
				Funding:     asset.AllocatedFunds,
				Milestones:  len(milestones),
			}),
			scanLoggedEvent(ctx, entry),
		)
		fx.deposit = &movement{party: caller, amount: req.FundingAmount}
		return nil
	})
	if err != nil {
		return nil, s.duplicateAfterConflict(ctx, req.ID, err)
	}

	s.metrics.IncAssetsCreated()
	s.logger.InfoContext(ctx, "asset created",
		"asset_id", asset.ID,
		"donor", caller,
		"assigned_ngo", asset.AssignedNGO,
		"funding", asset.AllocatedFunds,
		"request_id", requestcontext.RequestID(ctx),
	)
	return asset, nil
}

// duplicateAfterConflict reports DuplicateAsset when a create lost a
// serialization conflict to a concurrent create of the same id.
func (s *Service) duplicateAfterConflict(ctx context.Context, id domain.AssetID, err error) error {
	if dErrors.CodeOf(err) != dErrors.CodeInternal || !errors.Is(err, sentinel.ErrUnavailable) {
		return err
	}
	if _, findErr := s.store.FindAsset(ctx, id); findErr != nil {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeDuplicateAsset, "create_asset: asset "+id.String()+" already exists")
}

func scanLoggedEvent(ctx context.Context, e models.ScanLogEntry) events.Event {
	return events.New(ctx, events.ScanLogged, e.AssetID, e.Actor, events.ScanLoggedData{
		Sequence: e.Sequence,
		Stage:    e.Stage.String(),
		GeoTag:   e.GeoTag,
		Anomaly:  e.Anomaly,
		Reasons:  e.Anomalies,
		Hash:     e.Hash.String(),
	})
}
