// Package events defines the structured notifications every ledger write
// emits, and the sinks that deliver them after commit.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"aidtrace/pkg/domain"
	"aidtrace/pkg/requestcontext"
)

// Type names what changed.
type Type string

const (
	AssetCreated    Type = "asset_created"
	ScanLogged      Type = "scan_logged"
	AssetFlagged    Type = "asset_flagged"
	AssetUnflagged  Type = "asset_unflagged"
	MilestoneHit    Type = "milestone_reached"
	FundsReleased   Type = "funds_released"
	Refunded        Type = "refunded"
	RoleGranted     Type = "role_granted"
	RoleRevoked     Type = "role_revoked"
	MinScansUpdated Type = "min_scans_updated"
)

// Category groups event types for routing and metrics labels.
type Category string

const (
	CategoryCustody    Category = "custody"
	CategoryFunds      Category = "funds"
	CategoryGovernance Category = "governance"
)

// eventCategories is the single source of truth for Type → Category.
var eventCategories = map[Type]Category{
	AssetCreated:    CategoryCustody,
	ScanLogged:      CategoryCustody,
	AssetFlagged:    CategoryGovernance,
	AssetUnflagged:  CategoryGovernance,
	MilestoneHit:    CategoryFunds,
	FundsReleased:   CategoryFunds,
	Refunded:        CategoryFunds,
	RoleGranted:     CategoryGovernance,
	RoleRevoked:     CategoryGovernance,
	MinScansUpdated: CategoryGovernance,
}

// Category returns the routing category; unknown types are governance.
func (t Type) Category() Category {
	if c, ok := eventCategories[t]; ok {
		return c
	}
	return CategoryGovernance
}

// Event is one notification. Data holds the typed payload for Type.
type Event struct {
	ID         uuid.UUID       `json:"id"`
	Type       Type            `json:"type"`
	AssetID    domain.AssetID  `json:"asset_id,omitempty"`
	Actor      domain.Identity `json:"actor"`
	OccurredAt time.Time       `json:"occurred_at"`
	RequestID  string          `json:"request_id,omitempty"`
	Data       any             `json:"data,omitempty"`
}

// New stamps an event with a fresh ID, the request time and request ID.
func New(ctx context.Context, t Type, asset domain.AssetID, actor domain.Identity, data any) Event {
	return Event{
		ID:         uuid.New(),
		Type:       t,
		AssetID:    asset,
		Actor:      actor,
		OccurredAt: requestcontext.Now(ctx).UTC(),
		RequestID:  requestcontext.RequestID(ctx),
		Data:       data,
	}
}

// Aggregate is the key events are ordered by downstream (asset, or identity
// for role changes, or "platform").
func (e Event) Aggregate() string {
	if !e.AssetID.IsNil() {
		return e.AssetID.String()
	}
	if rc, ok := e.Data.(RoleChange); ok {
		return rc.Identity.String()
	}
	return "platform"
}

// Payloads.

type AssetCreatedData struct {
	Donor       domain.Identity `json:"donor"`
	AssignedNGO domain.Identity `json:"assigned_ngo"`
	Funding     uint64          `json:"funding"`
	Milestones  int             `json:"milestones"`
}

type ScanLoggedData struct {
	Sequence uint64   `json:"sequence"`
	Stage    string   `json:"stage"`
	GeoTag   string   `json:"geo_tag"`
	Anomaly  bool     `json:"anomaly"`
	Reasons  []string `json:"reasons,omitempty"`
	Hash     string   `json:"hash"`
}

type FlagData struct {
	Reason  string   `json:"reason"`
	Reasons []string `json:"reasons,omitempty"`
	// Automatic is true when the anomaly detector raised the flag.
	Automatic bool `json:"automatic"`
}

type MilestoneData struct {
	Position int    `json:"position"`
	Stage    string `json:"stage"`
	Percent  uint8  `json:"percent"`
	Amount   uint64 `json:"amount"`
}

type ReleaseData struct {
	Recipient domain.Identity `json:"recipient"`
	Amount    uint64          `json:"amount"`
	Manual    bool            `json:"manual"`
}

type RefundData struct {
	Donor  domain.Identity `json:"donor"`
	Amount uint64          `json:"amount"`
}

type RoleChange struct {
	Role     string          `json:"role"`
	Identity domain.Identity `json:"identity"`
}

type MinScansData struct {
	Previous uint64 `json:"previous"`
	Current  uint64 `json:"current"`
}
