package access

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Identity(name string) string
	Request(method, path string, body any) error
	RequestAs(name, method, path string, body any) error
	Status() int
	Body() string
}

// RegisterSteps registers role administration steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &accessSteps{tc: tc}

	ctx.Step(`^"([^"]*)" holds the "([^"]*)" role$`, steps.holdsRole)
	ctx.Step(`^I grant the "([^"]*)" role to "([^"]*)"$`, steps.grantRole)
	ctx.Step(`^I revoke the "([^"]*)" role from "([^"]*)"$`, steps.revokeRole)
	ctx.Step(`^I list the roles of "([^"]*)"$`, steps.listRoles)
}

type accessSteps struct {
	tc TestContext
}

// holdsRole grants through the bootstrap administrator.
func (s *accessSteps) holdsRole(ctx context.Context, name, role string) error {
	err := s.tc.RequestAs("root", http.MethodPost, "/v1/roles/"+role+"/members",
		map[string]string{"identity": s.tc.Identity(name)})
	if err != nil {
		return err
	}
	if s.tc.Status() != http.StatusNoContent {
		return fmt.Errorf("granting %s to %s: status %d: %s", role, name, s.tc.Status(), s.tc.Body())
	}
	return nil
}

func (s *accessSteps) grantRole(ctx context.Context, role, name string) error {
	return s.tc.Request(http.MethodPost, "/v1/roles/"+role+"/members",
		map[string]string{"identity": s.tc.Identity(name)})
}

func (s *accessSteps) revokeRole(ctx context.Context, role, name string) error {
	return s.tc.Request(http.MethodDelete, "/v1/roles/"+role+"/members/"+s.tc.Identity(name), nil)
}

func (s *accessSteps) listRoles(ctx context.Context, name string) error {
	return s.tc.Request(http.MethodGet, "/v1/identities/"+s.tc.Identity(name)+"/roles", nil)
}
