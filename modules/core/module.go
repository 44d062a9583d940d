package core

import (
	"github.com/iota-uz/testbench/modules/core/authzutil"
	"github.com/iota-uz/testbench/modules/core/domain/aggregates/user"
	"github.com/iota-uz/testbench/modules/core/domain/entities/organization"
	"github.com/iota-uz/testbench/modules/core/infrastructure/persistence"
	"github.com/iota-uz/testbench/modules/core/permissions"
	"github.com/iota-uz/testbench/modules/core/presentation/controllers"
	"github.com/iota-uz/testbench/modules/core/services"
	"github.com/iota-uz/testbench/pkg/application"
	"github.com/iota-uz/testbench/pkg/configuration"
	"github.com/iota-uz/testbench/pkg/middleware"
)

func NewModule() application.Module {
	return &Module{}
}

type Module struct {
}

// UserRepository returns the user store shared by every module of app.
func UserRepository(app application.Application) user.Repository {
	return application.Resolve(app, func() user.Repository {
		if db := app.Memory(); db != nil {
			return persistence.NewMemoryUserRepository(db)
		}
		return persistence.NewUserRepository()
	})
}

func OrganizationRepository(app application.Application) organization.Repository {
	return application.Resolve(app, func() organization.Repository {
		if db := app.Memory(); db != nil {
			return persistence.NewMemoryOrganizationRepository(db)
		}
		return persistence.NewOrganizationRepository()
	})
}

func (m *Module) Register(app application.Application) error {
	cfg := configuration.Use()
	tokens, err := authzutil.NewCSRFTokens(cfg.Auth.CSRFSecret, cfg.Auth.CSRFTokenTTL)
	if err != nil {
		return err
	}

	orgs := OrganizationRepository(app)
	userService := services.NewUserService(
		UserRepository(app),
		orgs,
		app.Transactor(),
		permissions.Use(),
		app.EventPublisher(),
	)
	app.RegisterServices(
		userService,
		services.NewOrganizationService(orgs, app.Transactor()),
		tokens,
	)

	app.RegisterMiddleware(
		middleware.ProvidePrincipal(userService),
		middleware.RequireCSRF(tokens),
	)
	app.RegisterControllers(
		controllers.NewHealthController(app),
		controllers.NewAccountController(app),
		controllers.NewUsersController(app),
	)
	return nil
}

func (m *Module) Name() string {
	return "core"
}
