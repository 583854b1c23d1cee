package service

import (
	"context"
	"strings"

	accessmodels "aidtrace/internal/access/models"
	"aidtrace/internal/events"
	"aidtrace/internal/ledger/anomaly"
	"aidtrace/internal/ledger/models"
	"aidtrace/pkg/domain"
	dErrors "aidtrace/pkg/domain-errors"
	"aidtrace/pkg/requestcontext"
)

// ScanRequest is one custody hand-off reported by a scanner.
type ScanRequest struct {
	GeoTag      string
	Stage       models.Stage
	ContentHash domain.ContentHash
	Note        string
}

// ScanResult reports what a scan changed.
type ScanResult struct {
	Asset     *models.Asset       `json:"asset"`
	Entry     models.ScanLogEntry `json:"entry"`
	Anomalies []string            `json:"anomalies,omitempty"`
	Released  []models.Milestone  `json:"released_milestones,omitempty"`
	Payout    uint64              `json:"payout"`
}

// LogScan appends a custody scan, flags the asset when the scan is anomalous,
// and releases every milestone the new stage satisfies.
func (s *Service) LogScan(ctx context.Context, caller domain.Identity, id domain.AssetID, req ScanRequest) (*ScanResult, error) {
	if !req.Stage.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "log_scan: asset %s: invalid stage %d", id, req.Stage)
	}
	now := clock(ctx)
	var result ScanResult

	err := s.write(ctx, "log_scan", id, func(ctx context.Context, store Store, fx *effects) error {
		if err := s.requireRole(ctx, caller, accessmodels.RoleScanner, "log_scan"); err != nil {
			return err
		}
		asset, err := store.FindAsset(ctx, id)
		if err != nil {
			return err
		}
		if err := asset.CanScan(); err != nil {
			return err
		}
		last, err := store.LastScan(ctx, id)
		if err != nil {
			return err
		}

		report := anomaly.Evaluate(
			anomaly.Current{Stage: asset.CurrentStage, GeoTag: asset.CurrentGeoTag},
			anomaly.Proposed{Stage: req.Stage, GeoTag: req.GeoTag, ContentHash: req.ContentHash},
		)
		reasons := report.Reasons()
		asset.ApplyScan(req.Stage, req.GeoTag, now)
		if report.Anomalous() {
			asset.ApplyFlag(strings.Join(reasons, ","), now)
		}

		entry, err := models.NewScanEntry(id, last.Sequence+1, now, caller, req.GeoTag, req.Stage,
			req.ContentHash, reasons, req.Note, requestcontext.Device(ctx), last.Hash)
		if err != nil {
			return err
		}
		if err := store.AppendScan(ctx, entry); err != nil {
			return err
		}
		if report.Anomalous() {
			fx.emit(events.New(ctx, events.AssetFlagged, id, caller, events.FlagData{
				Reason:    asset.FlagReason,
				Reasons:   reasons,
				Automatic: true,
			}))
		}
		fx.emit(scanLoggedEvent(ctx, entry))

		released, payout, err := s.releaseMilestones(ctx, store, asset, caller, now, fx)
		if err != nil {
			return err
		}
		if err := store.UpdateAsset(ctx, asset); err != nil {
			return err
		}
		if payout > 0 {
			fx.payout = &movement{party: asset.AssignedNGO, amount: payout}
		}

		result = ScanResult{Asset: asset, Entry: entry, Anomalies: reasons, Released: released, Payout: payout}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncScansLogged()
	for _, r := range result.Anomalies {
		s.metrics.IncAnomaly(r)
	}
	if len(result.Anomalies) > 0 {
		s.logger.WarnContext(ctx, "scan anomaly flagged asset",
			"asset_id", id,
			"scanner", caller,
			"reasons", result.Anomalies,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	if result.Payout > 0 {
		s.metrics.IncMilestonesPaid(len(result.Released))
		s.metrics.AddReleased("milestone", result.Payout)
	}
	return &result, nil
}
