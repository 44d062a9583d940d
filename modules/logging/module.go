package logging

import (
	"github.com/iota-uz/testbench/modules/logging/domain/entities/activitylog"
	"github.com/iota-uz/testbench/modules/logging/handlers"
	"github.com/iota-uz/testbench/modules/logging/infrastructure/persistence"
	"github.com/iota-uz/testbench/modules/logging/presentation/controllers"
	"github.com/iota-uz/testbench/modules/logging/services"
	"github.com/iota-uz/testbench/pkg/application"
)

func NewModule() application.Module {
	return &Module{}
}

type Module struct {
}

func (m *Module) Register(app application.Application) error {
	var repo activitylog.Repository = persistence.NewActivityLogRepository()
	if db := app.Memory(); db != nil {
		repo = persistence.NewMemoryActivityLogRepository(db)
	}
	app.RegisterServices(
		services.NewActivityService(repo, app.Transactor()),
	)
	app.RegisterControllers(
		controllers.NewActivityController(app),
	)
	handlers.RegisterActivityEventHandlers(app)
	return nil
}

func (m *Module) Name() string {
	return "logging"
}
