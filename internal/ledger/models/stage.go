package models

import (
	"strings"

	dErrors "aidtrace/pkg/domain-errors"
)

// Stage is an ordered checkpoint on a shipment's physical path.
type Stage uint8

const (
	StageWarehouse Stage = iota
	StageTransport
	StageHub
	StageLocalTransport
	StageBeneficiary
)

// LastStage is the final checkpoint; progress percentages are relative to it.
const LastStage = StageBeneficiary

var stageNames = [...]string{
	StageWarehouse:      "warehouse",
	StageTransport:      "transport",
	StageHub:            "hub",
	StageLocalTransport: "local_transport",
	StageBeneficiary:    "beneficiary",
}

func (s Stage) IsValid() bool {
	return s <= LastStage
}

func (s Stage) String() string {
	if !s.IsValid() {
		return "unknown"
	}
	return stageNames[s]
}

// Percent is stage*100/LastStage, truncated.
func (s Stage) Percent() uint64 {
	return uint64(s) * 100 / uint64(LastStage)
}

// RequiresProof reports whether a scan claiming this stage must carry a content hash.
func (s Stage) RequiresProof() bool {
	return s == StageHub || s == StageBeneficiary
}

// ParseStage accepts the snake_case name ("local_transport"), its CamelCase or
// dashed spellings, case-insensitively.
func ParseStage(v string) (Stage, error) {
	norm := strings.ToLower(strings.TrimSpace(v))
	norm = strings.NewReplacer("-", "", "_", "", " ", "").Replace(norm)
	for i, name := range stageNames {
		if strings.ReplaceAll(name, "_", "") == norm {
			return Stage(i), nil
		}
	}
	return 0, dErrors.Newf(dErrors.CodeInvalidInput, "unknown stage %q", v)
}

func (s Stage) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid stage %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *Stage) UnmarshalText(text []byte) error {
	parsed, err := ParseStage(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
