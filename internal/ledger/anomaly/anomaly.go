// Package anomaly evaluates a proposed custody scan against an asset's current
// state. It is a pure function: no I/O, no clock.
package anomaly

import (
	"aidtrace/internal/ledger/models"
	"aidtrace/pkg/domain"
)

// Condition names one anomaly rule.
type Condition string

const (
	// Regression: the scan claims an earlier stage than the asset is at.
	Regression Condition = "regression"
	// StaleLocation: the stage changed but the reported location did not.
	StaleLocation Condition = "stale_location"
	// MissingProof: a Hub or Beneficiary scan came without a content hash.
	MissingProof Condition = "missing_proof"
)

// Current is the asset state a scan is compared against.
type Current struct {
	Stage  models.Stage
	GeoTag string
}

// Proposed is the scan being logged.
type Proposed struct {
	Stage       models.Stage
	GeoTag      string
	ContentHash domain.ContentHash
}

// Report lists every condition the scan triggered, in rule order.
type Report struct {
	Conditions []Condition
}

// Anomalous reports whether any condition triggered.
func (r Report) Anomalous() bool {
	return len(r.Conditions) > 0
}

// Reasons renders the triggered conditions as strings for logs and events.
func (r Report) Reasons() []string {
	if len(r.Conditions) == 0 {
		return nil
	}
	out := make([]string, len(r.Conditions))
	for i, c := range r.Conditions {
		out[i] = string(c)
	}
	return out
}

// Evaluate checks all three rules without short-circuiting.
func Evaluate(current Current, proposed Proposed) Report {
	var r Report
	if proposed.Stage < current.Stage {
		r.Conditions = append(r.Conditions, Regression)
	}
	if proposed.GeoTag == current.GeoTag && proposed.Stage != current.Stage {
		r.Conditions = append(r.Conditions, StaleLocation)
	}
	if proposed.Stage.RequiresProof() && proposed.ContentHash.IsZero() {
		r.Conditions = append(r.Conditions, MissingProof)
	}
	return r
}
