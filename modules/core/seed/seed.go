// Package seed creates the demo organization used by local development runs.
package seed

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/iota-uz/testbench/modules/core/domain/aggregates/user"
	"github.com/iota-uz/testbench/modules/core/domain/entities/organization"
	"github.com/iota-uz/testbench/modules/core/services"
	"github.com/iota-uz/testbench/pkg/application"
	"github.com/iota-uz/testbench/pkg/serrors"
)

const DemoOrganization = "Demo"

type DemoUser struct {
	Email       string
	DisplayName string
	Roles       []string
}

var DemoUsers = []DemoUser{
	{Email: "admin@demo.local", DisplayName: "Demo Admin", Roles: []string{"ADMIN"}},
	{Email: "qa@demo.local", DisplayName: "Demo QA", Roles: []string{"QA"}},
	{Email: "tester@demo.local", DisplayName: "Demo Tester", Roles: []string{"TESTER"}},
}

// Demo makes sure the demo organization and its users exist. Running it again
// leaves existing rows untouched.
func Demo(ctx context.Context, app application.Application) (organization.Organization, []user.User, error) {
	orgService := app.Service(services.OrganizationService{}).(*services.OrganizationService)
	userService := app.Service(services.UserService{}).(*services.UserService)
	logger := app.Logger()

	org, err := orgService.Resolve(ctx, DemoOrganization)
	if serrors.Is(err, serrors.KindNotFound) {
		logger.Infof("Creating organization %s", DemoOrganization)
		org, err = orgService.Create(ctx, DemoOrganization)
	}
	if err != nil {
		return organization.Organization{}, nil, errors.Wrap(err, "seed organization")
	}

	out := make([]user.User, 0, len(DemoUsers))
	for _, du := range DemoUsers {
		u, err := userService.GetByEmail(ctx, du.Email)
		if err == nil {
			out = append(out, u)
			continue
		}
		if !serrors.Is(err, serrors.KindNotFound) {
			return organization.Organization{}, nil, errors.Wrapf(err, "seed user %s", du.Email)
		}
		u, err = userService.Create(ctx, org.ID, &user.CreateDTO{
			Email:       du.Email,
			DisplayName: du.DisplayName,
			Roles:       append([]string(nil), du.Roles...),
		})
		if err != nil {
			return organization.Organization{}, nil, errors.Wrapf(err, "seed user %s", du.Email)
		}
		logger.Infof("Created user %s", du.Email)
		out = append(out, u)
	}
	return org, out, nil
}
