package models

import (
	"time"

	"aidtrace/pkg/domain"
)

// ScanLogEntry is one immutable link of an asset's chain of custody.
type ScanLogEntry struct {
	AssetID     domain.AssetID     `json:"asset_id"`
	Sequence    uint64             `json:"sequence"`
	Timestamp   time.Time          `json:"timestamp"`
	Actor       domain.Identity    `json:"actor"`
	GeoTag      string             `json:"geo_tag"`
	Stage       Stage              `json:"stage"`
	ContentHash domain.ContentHash `json:"content_hash"`
	Anomaly     bool               `json:"anomaly"`
	Anomalies   []string           `json:"anomalies,omitempty"`
	Note        string             `json:"note"`
	Device      string             `json:"device,omitempty"`
	PrevHash    ChainHash          `json:"prev_hash"`
	Hash        ChainHash          `json:"hash"`
}

// NoteCreated is the note of the initial entry written at asset creation.
const NoteCreated = "created"
