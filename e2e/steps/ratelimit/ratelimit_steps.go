package ratelimit

import (
	"fmt"
	"net/http"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body []byte) error
	GetStatuses() []int
}

// RegisterSteps registers rate-limiting step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &ratelimitSteps{tc: tc}

	ctx.Step(`^I send (\d+) ingest requests for domain "([^"]*)"$`, steps.sendNIngestRequests)
	ctx.Step(`^at least one response should be rate limited$`, steps.atLeastOneRateLimited)
}

type ratelimitSteps struct {
	tc TestContext
}

func (s *ratelimitSteps) sendNIngestRequests(n int, domain string) error {
	for i := 0; i < n; i++ {
		if err := s.tc.POST("/ingest/"+domain, []byte(`{"seq":`+fmt.Sprint(i)+`}`)); err != nil {
			return err
		}
	}
	return nil
}

func (s *ratelimitSteps) atLeastOneRateLimited() error {
	for _, code := range s.tc.GetStatuses() {
		if code == http.StatusTooManyRequests {
			return nil
		}
	}
	return fmt.Errorf("no request was rate limited: %v", s.tc.GetStatuses())
}
