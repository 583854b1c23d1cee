package ledger

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Identity(name string) string
	AssetTag(alias string) string
	RememberAsset(alias, id string)
	Asset(alias string) (string, error)
	Request(method, path string, body any) error
	Status() int
	Field(path string) (any, error)
	Body() string
}

// proof is a fixed delivery-proof hash for beneficiary scans.
var proof = "0x" + strings.Repeat("ab", 32)

// RegisterSteps registers custody ledger steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &ledgerSteps{tc: tc}

	ctx.Step(`^I create asset "([^"]*)" for NGO "([^"]*)" funded with (\d+)$`, steps.createAsset)
	ctx.Step(`^I log a "([^"]*)" scan of asset "([^"]*)" at "([^"]*)"$`, steps.logScan)
	ctx.Step(`^I log a "([^"]*)" scan of asset "([^"]*)" at "([^"]*)" with delivery proof$`, steps.logScanWithProof)
	ctx.Step(`^I flag asset "([^"]*)" because "([^"]*)"$`, steps.flagAsset)
	ctx.Step(`^I unflag asset "([^"]*)"$`, steps.unflagAsset)
	ctx.Step(`^I request a refund of asset "([^"]*)"$`, steps.requestRefund)
	ctx.Step(`^I fetch asset "([^"]*)"$`, steps.fetchAsset)
	ctx.Step(`^I fetch the progress of asset "([^"]*)"$`, steps.fetchProgress)
	ctx.Step(`^I verify the scan history of asset "([^"]*)"$`, steps.verifyHistory)
	ctx.Step(`^I send (\d+) directly to the ledger$`, steps.directTransfer)
}

type ledgerSteps struct {
	tc TestContext
}

func (s *ledgerSteps) createAsset(ctx context.Context, alias, ngo string, amount uint64) error {
	err := s.tc.Request(http.MethodPost, "/v1/assets", map[string]any{
		"tag":            s.tc.AssetTag(alias),
		"description":    "relief kit " + alias,
		"assigned_ngo":   s.tc.Identity(ngo),
		"geo_tag":        "warehouse-1",
		"funding_amount": amount,
	})
	if err != nil {
		return err
	}
	if s.tc.Status() != http.StatusCreated {
		return nil
	}
	id, err := s.tc.Field("id")
	if err != nil {
		return err
	}
	s.tc.RememberAsset(alias, fmt.Sprint(id))
	return nil
}

func (s *ledgerSteps) logScan(ctx context.Context, stage, alias, geo string) error {
	return s.scan(alias, map[string]any{"stage": stage, "geo_tag": geo})
}

func (s *ledgerSteps) logScanWithProof(ctx context.Context, stage, alias, geo string) error {
	return s.scan(alias, map[string]any{"stage": stage, "geo_tag": geo, "content_hash": proof})
}

func (s *ledgerSteps) scan(alias string, body map[string]any) error {
	return s.onAsset(alias, http.MethodPost, "/scans", body)
}

func (s *ledgerSteps) flagAsset(ctx context.Context, alias, reason string) error {
	return s.onAsset(alias, http.MethodPost, "/flag", map[string]string{"reason": reason})
}

func (s *ledgerSteps) unflagAsset(ctx context.Context, alias string) error {
	return s.onAsset(alias, http.MethodDelete, "/flag", nil)
}

func (s *ledgerSteps) requestRefund(ctx context.Context, alias string) error {
	return s.onAsset(alias, http.MethodPost, "/refund", nil)
}

func (s *ledgerSteps) fetchAsset(ctx context.Context, alias string) error {
	return s.onAsset(alias, http.MethodGet, "", nil)
}

func (s *ledgerSteps) fetchProgress(ctx context.Context, alias string) error {
	return s.onAsset(alias, http.MethodGet, "/progress", nil)
}

func (s *ledgerSteps) verifyHistory(ctx context.Context, alias string) error {
	return s.onAsset(alias, http.MethodGet, "/scans/verify", nil)
}

func (s *ledgerSteps) directTransfer(ctx context.Context, amount uint64) error {
	return s.tc.Request(http.MethodPost, "/v1/transfers", map[string]uint64{"amount": amount})
}

func (s *ledgerSteps) onAsset(alias, method, suffix string, body any) error {
	id, err := s.tc.Asset(alias)
	if err != nil {
		return err
	}
	return s.tc.Request(method, "/v1/assets/"+id+suffix, body)
}
