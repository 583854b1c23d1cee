package e2e

import (
	"github.com/cucumber/godog"

	"aidtrace/e2e/steps/access"
	"aidtrace/e2e/steps/common"
	"aidtrace/e2e/steps/ledger"
)

// RegisterSteps wires every step package into the scenario. Each package
// declares the slice of TestContext it needs.
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	access.RegisterSteps(ctx, tc)
	ledger.RegisterSteps(ctx, tc)
}
