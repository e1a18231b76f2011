package e2e

import (
	"github.com/cucumber/godog"

	"dgtt/e2e/steps/common"
	"dgtt/e2e/steps/workflow"
)

// RegisterSteps registers every step package against one scenario client.
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	workflow.RegisterSteps(ctx, tc)
}
