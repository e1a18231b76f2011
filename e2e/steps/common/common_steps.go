package common

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cucumber/godog"
)

// TestContext is the slice of the scenario client these steps use.
type TestContext interface {
	SetRole(role string)
	Do(ctx context.Context, method, path, body string) error
	Status() int
	Body() []byte
	Field(path string) (string, error)
	Remember(name, value string)
}

// RegisterSteps registers request and assertion steps shared by every feature.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	s := &commonSteps{tc: tc}

	ctx.Step(`^I act as a "([^"]*)" agent$`, s.actAs)
	ctx.Step(`^I POST "([^"]*)"$`, s.postEmpty)
	ctx.Step(`^I POST "([^"]*)" with:$`, s.postWith)
	ctx.Step(`^I GET "([^"]*)"$`, s.get)

	ctx.Step(`^the response status should be (\d+)$`, s.statusShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, s.fieldShouldBe)
	ctx.Step(`^I remember the response field "([^"]*)" as "([^"]*)"$`, s.remember)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) actAs(_ context.Context, role string) error {
	s.tc.SetRole(role)
	return nil
}

func (s *commonSteps) postEmpty(ctx context.Context, path string) error {
	return s.tc.Do(ctx, http.MethodPost, path, "")
}

func (s *commonSteps) postWith(ctx context.Context, path string, body *godog.DocString) error {
	return s.tc.Do(ctx, http.MethodPost, path, body.Content)
}

func (s *commonSteps) get(ctx context.Context, path string) error {
	return s.tc.Do(ctx, http.MethodGet, path, "")
}

func (s *commonSteps) statusShouldBe(_ context.Context, want int) error {
	if got := s.tc.Status(); got != want {
		return fmt.Errorf("expected status %d, got %d: %s", want, got, s.tc.Body())
	}
	return nil
}

func (s *commonSteps) fieldShouldBe(_ context.Context, field, want string) error {
	got, err := s.tc.Field(field)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("expected %s = %q, got %q", field, want, got)
	}
	return nil
}

func (s *commonSteps) remember(_ context.Context, field, name string) error {
	v, err := s.tc.Field(field)
	if err != nil {
		return err
	}
	s.tc.Remember(name, v)
	return nil
}
