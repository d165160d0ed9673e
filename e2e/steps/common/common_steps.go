package common

import (
	"fmt"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	UseToken(enabled bool)
	GET(path string) error
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	GetLastResponseHeader(key string) string
	GetResponseField(field string) (any, error)
}

// RegisterSteps registers background, request and assertion steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^I am authenticated$`, steps.authenticated)
	ctx.Step(`^I am not authenticated$`, steps.notAuthenticated)
	ctx.Step(`^I GET "([^"]*)"$`, steps.get)
	ctx.Step(`^the response status should be (\d+)$`, steps.statusShouldBe)
	ctx.Step(`^the response body should be "([^"]*)"$`, steps.bodyShouldBe)
	ctx.Step(`^the response field "([^"]*)" should equal "([^"]*)"$`, steps.fieldShouldEqual)
	ctx.Step(`^the response should have header "([^"]*)"$`, steps.shouldHaveHeader)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) authenticated() error {
	s.tc.UseToken(true)
	return nil
}

func (s *commonSteps) notAuthenticated() error {
	s.tc.UseToken(false)
	return nil
}

func (s *commonSteps) get(path string) error {
	return s.tc.GET(path)
}

func (s *commonSteps) statusShouldBe(want int) error {
	if got := s.tc.GetLastResponseStatus(); got != want {
		return fmt.Errorf("expected status %d, got %d: %s", want, got, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *commonSteps) bodyShouldBe(want string) error {
	if got := strings.TrimSpace(string(s.tc.GetLastResponseBody())); got != want {
		return fmt.Errorf("expected body %q, got %q", want, got)
	}
	return nil
}

func (s *commonSteps) fieldShouldEqual(field, want string) error {
	v, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(v); got != want {
		return fmt.Errorf("expected %s=%q, got %q", field, want, got)
	}
	return nil
}

func (s *commonSteps) shouldHaveHeader(key string) error {
	if s.tc.GetLastResponseHeader(key) == "" {
		return fmt.Errorf("expected header %s to be set", key)
	}
	return nil
}
