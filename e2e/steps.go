package e2e

import (
	"github.com/cucumber/godog"

	"leitstand/e2e/steps/common"
	"leitstand/e2e/steps/ingest"
	"leitstand/e2e/steps/ratelimit"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Register common steps (background, generic requests, assertions)
	common.RegisterSteps(ctx, tc)

	// Register ingest-specific steps
	ingest.RegisterSteps(ctx, tc)

	// Register rate limit steps
	ratelimit.RegisterSteps(ctx, tc)
}
