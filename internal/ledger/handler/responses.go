package handler

import (
	"aidtrace/internal/ledger/models"
	"aidtrace/pkg/domain"
)

type RefundResponse struct {
	Asset  *models.Asset `json:"asset"`
	Amount uint64        `json:"refunded_amount"`
}

type MinScansResponse struct {
	Value uint64 `json:"value"`
}

type ScanHistoryResponse struct {
	AssetID domain.AssetID        `json:"asset_id"`
	Entries []models.ScanLogEntry `json:"entries"`
}

type MilestonesResponse struct {
	AssetID    domain.AssetID     `json:"asset_id"`
	Milestones []models.Milestone `json:"milestones"`
}

type DonorAssetsResponse struct {
	Donor  domain.Identity `json:"donor"`
	Assets []*models.Asset `json:"assets"`
}
