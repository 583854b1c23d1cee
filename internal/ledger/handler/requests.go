package handler

import (
	"strings"

	"aidtrace/internal/ledger/models"
	"aidtrace/pkg/domain"
	dErrors "aidtrace/pkg/domain-errors"
)

const (
	maxDescriptionLen = 1024
	maxGeoTagLen      = 256
	maxNoteLen        = 512
	maxReasonLen      = 512
)

// CreateAssetRequest is the body of POST /v1/assets.
type CreateAssetRequest struct {
	ID            string                 `json:"id"`
	Tag           string                 `json:"tag"`
	Description   string                 `json:"description"`
	AssignedNGO   string                 `json:"assigned_ngo"`
	GeoTag        string                 `json:"geo_tag"`
	FundingAmount uint64                 `json:"funding_amount"`
	Milestones    []models.MilestoneRule `json:"milestones,omitempty"`

	parsedID  domain.AssetID
	parsedNGO domain.Identity
}

// Validate parses identifiers. Either id or tag names the asset; a tag is
// hashed into its asset id.
func (r *CreateAssetRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Description) > maxDescriptionLen {
		return dErrors.Newf(dErrors.CodeInvalidInput, "description must be at most %d characters", maxDescriptionLen)
	}
	r.GeoTag = strings.TrimSpace(r.GeoTag)
	if len(r.GeoTag) > maxGeoTagLen {
		return dErrors.Newf(dErrors.CodeInvalidInput, "geo_tag must be at most %d characters", maxGeoTagLen)
	}

	r.ID = strings.TrimSpace(r.ID)
	switch {
	case r.ID != "" && r.Tag != "":
		return dErrors.New(dErrors.CodeInvalidInput, "give either id or tag, not both")
	case r.Tag != "":
		r.parsedID = domain.AssetIDFromTag(r.Tag)
	default:
		id, err := domain.ParseAssetID(r.ID)
		if err != nil {
			return err
		}
		r.parsedID = id
	}

	ngo, err := domain.ParseIdentity(strings.TrimSpace(r.AssignedNGO))
	if err != nil {
		return err
	}
	r.parsedNGO = ngo
	return nil
}

// LogScanRequest is the body of POST /v1/assets/{id}/scans.
type LogScanRequest struct {
	GeoTag      string             `json:"geo_tag"`
	Stage       *models.Stage      `json:"stage"`
	ContentHash domain.ContentHash `json:"content_hash"`
	Note        string             `json:"note"`
}

func (r *LogScanRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Stage == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "stage is required")
	}
	r.GeoTag = strings.TrimSpace(r.GeoTag)
	if len(r.GeoTag) > maxGeoTagLen {
		return dErrors.Newf(dErrors.CodeInvalidInput, "geo_tag must be at most %d characters", maxGeoTagLen)
	}
	if len(r.Note) > maxNoteLen {
		return dErrors.Newf(dErrors.CodeInvalidInput, "note must be at most %d characters", maxNoteLen)
	}
	return nil
}

// FlagRequest is the optional body of POST /v1/assets/{id}/flag.
type FlagRequest struct {
	Reason string `json:"reason"`
}

func (r *FlagRequest) Validate() error {
	if r == nil {
		return nil
	}
	if len(r.Reason) > maxReasonLen {
		return dErrors.Newf(dErrors.CodeInvalidInput, "reason must be at most %d characters", maxReasonLen)
	}
	return nil
}

// ManualReleaseRequest is the body of POST /v1/assets/{id}/release.
type ManualReleaseRequest struct {
	Recipient string `json:"recipient"`
	Amount    uint64 `json:"amount"`

	parsedRecipient domain.Identity
}

func (r *ManualReleaseRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	recipient, err := domain.ParseIdentity(strings.TrimSpace(r.Recipient))
	if err != nil {
		return err
	}
	r.parsedRecipient = recipient
	if r.Amount == 0 {
		return dErrors.New(dErrors.CodeInvalidAmount, "amount must be positive")
	}
	return nil
}

// MinScansRequest is the body of PUT /v1/settings/min-scans.
type MinScansRequest struct {
	Value uint64 `json:"value"`
}

func (r *MinScansRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Value == 0 {
		return dErrors.New(dErrors.CodeInvalidAmount, "value must be positive")
	}
	return nil
}

// TransferRequest is the body of POST /v1/transfers.
type TransferRequest struct {
	Amount uint64 `json:"amount"`
}

func (r *TransferRequest) Validate() error {
	return nil
}
