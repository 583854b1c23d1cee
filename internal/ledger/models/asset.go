package models

import (
	"time"

	"aidtrace/pkg/domain"
	dErrors "aidtrace/pkg/domain-errors"
)

// Asset is the escrow and custody record of one tracked shipment.
//
// Invariants:
//   - ReleasedFunds <= AllocatedFunds at all times
//   - AllocatedFunds - ReleasedFunds is the value still held in escrow
//   - ScansCount starts at 1 (creation is the first scan)
//   - IsRefunded is terminal; a refunded asset has AllocatedFunds == ReleasedFunds
//   - IsFlagged blocks scans until an auditor clears it
type Asset struct {
	ID             domain.AssetID  `json:"id"`
	Description    string          `json:"description"`
	Donor          domain.Identity `json:"donor"`
	AssignedNGO    domain.Identity `json:"assigned_ngo"`
	AllocatedFunds uint64          `json:"allocated_funds"`
	ReleasedFunds  uint64          `json:"released_funds"`
	ScansCount     uint64          `json:"scans_count"`
	CurrentStage   Stage           `json:"current_stage"`
	CurrentGeoTag  string          `json:"current_geo_tag"`
	IsFlagged      bool            `json:"is_flagged"`
	FlagReason     string          `json:"flag_reason,omitempty"`
	IsRefunded     bool            `json:"is_refunded"`
	CreatedAt      time.Time       `json:"creation_time"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// NewAsset builds a freshly funded asset at Warehouse.
func NewAsset(id domain.AssetID, description string, donor, ngo domain.Identity, geoTag string, funding uint64, now time.Time) (*Asset, error) {
	if id.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "asset id is required")
	}
	if ngo.IsNil() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "asset %s: assigned ngo is required", id)
	}
	if funding == 0 {
		return nil, dErrors.Newf(dErrors.CodeZeroFunding, "asset %s: funding amount must be positive", id)
	}
	return &Asset{
		ID:             id,
		Description:    description,
		Donor:          donor,
		AssignedNGO:    ngo,
		AllocatedFunds: funding,
		ScansCount:     1,
		CurrentStage:   StageWarehouse,
		CurrentGeoTag:  geoTag,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Escrow is the value still held for this asset.
func (a *Asset) Escrow() uint64 {
	return a.AllocatedFunds - a.ReleasedFunds
}

// Progress is the (stage, funds) completion pair reported by get_progress.
type Progress struct {
	StagePercent uint64 `json:"stage_percentage"`
	FundsPercent uint64 `json:"funds_released_percentage"`
}

// Progress fails with InvalidState when nothing is allocated (only reachable
// after a refund of an asset that never paid out).
func (a *Asset) Progress() (Progress, error) {
	if a.AllocatedFunds == 0 {
		return Progress{}, dErrors.Newf(dErrors.CodeInvalidState, "asset %s has no allocated funds", a.ID)
	}
	if a.ReleasedFunds > a.AllocatedFunds {
		return Progress{}, dErrors.Newf(dErrors.CodeInvalidState, "asset %s released more than allocated", a.ID)
	}
	return Progress{
		StagePercent: a.CurrentStage.Percent(),
		FundsPercent: Ratio(a.ReleasedFunds, a.AllocatedFunds),
	}, nil
}

// CanScan checks that the asset accepts a new custody scan.
func (a *Asset) CanScan() error {
	if a.IsFlagged {
		return dErrors.Newf(dErrors.CodeAssetFlagged, "asset %s is flagged: %s", a.ID, a.FlagReason)
	}
	return nil
}

// ApplyScan records a scan's reported stage and location. Call CanScan first.
func (a *Asset) ApplyScan(stage Stage, geoTag string, now time.Time) {
	a.ScansCount++
	a.CurrentStage = stage
	a.CurrentGeoTag = geoTag
	a.UpdatedAt = now
}

func (a *Asset) ApplyFlag(reason string, now time.Time) {
	a.IsFlagged = true
	a.FlagReason = reason
	a.UpdatedAt = now
}

func (a *Asset) ApplyUnflag(now time.Time) {
	a.IsFlagged = false
	a.FlagReason = ""
	a.UpdatedAt = now
}

// MilestonePayout is floor(allocated*pct/100) clamped to the remaining escrow.
// Refunded assets have no headroom and always yield zero.
func (a *Asset) MilestonePayout(pct uint8) uint64 {
	if a.IsRefunded {
		return 0
	}
	return min(PercentOf(a.AllocatedFunds, pct), a.Escrow())
}

// ApplyRelease moves amount from escrow to released. Callers guarantee amount <= Escrow().
func (a *Asset) ApplyRelease(amount uint64, now time.Time) {
	a.ReleasedFunds += amount
	a.UpdatedAt = now
}

// CanManualRelease validates an auditor override payout.
func (a *Asset) CanManualRelease(amount uint64) error {
	if a.IsRefunded {
		return dErrors.Newf(dErrors.CodeAlreadyRefunded, "asset %s is refunded", a.ID)
	}
	if amount == 0 {
		return dErrors.Newf(dErrors.CodeInvalidAmount, "asset %s: release amount must be positive", a.ID)
	}
	if amount > a.Escrow() {
		return dErrors.Newf(dErrors.CodeInsufficientEscrow, "asset %s: release of %d exceeds escrow of %d", a.ID, amount, a.Escrow())
	}
	return nil
}

// CanRefund validates a donor refund request and returns the refundable amount.
// Eligible when flagged, or when the lock period has passed and the asset has
// not reached Beneficiary.
func (a *Asset) CanRefund(caller domain.Identity, now time.Time, lock time.Duration) (uint64, error) {
	if caller != a.Donor {
		return 0, dErrors.Newf(dErrors.CodeUnauthorized, "asset %s: only the donor may request a refund", a.ID)
	}
	if a.IsRefunded {
		return 0, dErrors.Newf(dErrors.CodeAlreadyRefunded, "asset %s is already refunded", a.ID)
	}
	lockExpired := now.After(a.CreatedAt.Add(lock))
	if !a.IsFlagged && !(lockExpired && a.CurrentStage < StageBeneficiary) {
		return 0, dErrors.Newf(dErrors.CodeNotEligible, "asset %s is not eligible for refund", a.ID)
	}
	amount := a.Escrow()
	if amount == 0 {
		return 0, dErrors.Newf(dErrors.CodeNothingToRefund, "asset %s has no escrow left to refund", a.ID)
	}
	return amount, nil
}

// ApplyRefund freezes the asset: allocated drops to released and the refund is terminal.
func (a *Asset) ApplyRefund(now time.Time) {
	a.AllocatedFunds = a.ReleasedFunds
	a.IsRefunded = true
	a.UpdatedAt = now
}

// Clone returns a copy safe to hand outside a store.
func (a *Asset) Clone() *Asset {
	c := *a
	return &c
}
