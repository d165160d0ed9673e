package ingest

import (
	"fmt"
	"net/url"
	"time"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body []byte) error
}

// RegisterSteps registers ingest step definitions.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &ingestSteps{tc: tc}

	ctx.Step(`^a unique domain under "([^"]*)"$`, steps.uniqueDomain)
	ctx.Step(`^I ingest '([^']*)'$`, steps.ingestCurrent)
	ctx.Step(`^I ingest '([^']*)' for domain "([^"]*)"$`, steps.ingestFor)
}

type ingestSteps struct {
	tc     TestContext
	domain string
}

// uniqueDomain keeps repeated runs from sharing a JSONL file.
func (s *ingestSteps) uniqueDomain(parent string) error {
	s.domain = fmt.Sprintf("e2e-%d.%s", time.Now().UnixNano(), parent)
	return nil
}

func (s *ingestSteps) ingestCurrent(body string) error {
	if s.domain == "" {
		return fmt.Errorf("no domain selected")
	}
	return s.ingestFor(body, s.domain)
}

func (s *ingestSteps) ingestFor(body, domain string) error {
	return s.tc.POST("/ingest/"+url.PathEscape(domain), []byte(body))
}
