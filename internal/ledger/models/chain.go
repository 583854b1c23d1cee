package models

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/zeebo/blake3"

	"aidtrace/pkg/codec"
	"aidtrace/pkg/domain"
)

// ChainHash links scan log entries: each entry's hash covers its content and
// the previous entry's hash. The first entry links to the zero hash.
type ChainHash [32]byte

func (h ChainHash) IsZero() bool { return h == ChainHash{} }

func (h ChainHash) String() string { return hex.EncodeToString(h[:]) }

func (h ChainHash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *ChainHash) UnmarshalText(text []byte) error {
	if len(text) != hex.EncodedLen(len(h)) {
		return fmt.Errorf("chain hash must be %d hex characters", hex.EncodedLen(len(h)))
	}
	_, err := hex.Decode(h[:], text)
	return err
}

// scanLogKey is the BLAKE3 keyed-hash domain for scan log links.
var scanLogKey = [32]byte{
	'a', 'i', 'd', 't', 'r', 'a', 'c', 'e', '.', 's', 'c', 'a', 'n', 'l', 'o', 'g',
}

// chainLink is the canonical content hashed for an entry. Field tags are short
// and fixed; changing them invalidates every stored chain.
type chainLink struct {
	AssetID     string   `cbor:"a"`
	Sequence    uint64   `cbor:"n"`
	Timestamp   int64    `cbor:"t"`
	Actor       string   `cbor:"u"`
	GeoTag      string   `cbor:"g"`
	Stage       uint8    `cbor:"s"`
	ContentHash []byte   `cbor:"c"`
	Anomaly     bool     `cbor:"x"`
	Anomalies   []string `cbor:"r"`
	Note        string   `cbor:"m"`
	Device      string   `cbor:"d"`
	Prev        []byte   `cbor:"p"`
}

// ComputeHash returns the chain hash of e given its PrevHash.
func (e *ScanLogEntry) ComputeHash() (ChainHash, error) {
	anomalies := e.Anomalies
	if anomalies == nil {
		anomalies = []string{}
	}
	body, err := codec.Marshal(chainLink{
		AssetID:     e.AssetID.String(),
		Sequence:    e.Sequence,
		Timestamp:   e.Timestamp.UTC().UnixNano(),
		Actor:       e.Actor.String(),
		GeoTag:      e.GeoTag,
		Stage:       uint8(e.Stage),
		ContentHash: e.ContentHash[:],
		Anomaly:     e.Anomaly,
		Anomalies:   anomalies,
		Note:        e.Note,
		Device:      e.Device,
		Prev:        e.PrevHash[:],
	})
	if err != nil {
		return ChainHash{}, fmt.Errorf("encode scan link: %w", err)
	}
	h, err := blake3.NewKeyed(scanLogKey[:])
	if err != nil {
		return ChainHash{}, fmt.Errorf("init scan link hash: %w", err)
	}
	_, _ = h.Write(body)
	var out ChainHash
	copy(out[:], h.Sum(nil))
	return out, nil
}

// Seal links e after prev and fills in its hash.
func (e *ScanLogEntry) Seal(prev ChainHash) error {
	e.PrevHash = prev
	h, err := e.ComputeHash()
	if err != nil {
		return err
	}
	e.Hash = h
	return nil
}

// NewScanEntry builds and seals the next entry of a chain whose head is prev.
// Timestamps are truncated to microseconds so they survive a Postgres round trip.
func NewScanEntry(asset domain.AssetID, seq uint64, at time.Time, actor domain.Identity, geoTag string, stage Stage, proof domain.ContentHash, anomalies []string, note, device string, prev ChainHash) (ScanLogEntry, error) {
	e := ScanLogEntry{
		AssetID:     asset,
		Sequence:    seq,
		Timestamp:   at.UTC().Truncate(time.Microsecond),
		Actor:       actor,
		GeoTag:      geoTag,
		Stage:       stage,
		ContentHash: proof,
		Anomaly:     len(anomalies) > 0,
		Anomalies:   anomalies,
		Note:        note,
		Device:      device,
	}
	if err := e.Seal(prev); err != nil {
		return ScanLogEntry{}, err
	}
	return e, nil
}

// ChainReport is the outcome of verifying an asset's scan log.
type ChainReport struct {
	AssetID  domain.AssetID `json:"asset_id"`
	Entries  int            `json:"entries"`
	Valid    bool           `json:"valid"`
	BrokenAt *uint64        `json:"broken_at,omitempty"`
	Head     ChainHash      `json:"head"`
}

// VerifyChain recomputes every link and reports the first entry whose
// sequence, back-link or hash does not match.
func VerifyChain(asset domain.AssetID, entries []ScanLogEntry) ChainReport {
	report := ChainReport{AssetID: asset, Entries: len(entries), Valid: true}
	var prev ChainHash
	for i := range entries {
		e := entries[i]
		h, err := e.ComputeHash()
		if e.Sequence != uint64(i) || e.PrevHash != prev || err != nil || h != e.Hash {
			seq := uint64(i)
			report.Valid = false
			report.BrokenAt = &seq
			return report
		}
		prev = e.Hash
	}
	report.Head = prev
	return report
}
