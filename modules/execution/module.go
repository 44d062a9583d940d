package execution

import (
	"github.com/iota-uz/testbench/modules/catalog"
	catalogservices "github.com/iota-uz/testbench/modules/catalog/services"
	"github.com/iota-uz/testbench/modules/core"
	"github.com/iota-uz/testbench/modules/core/permissions"
	"github.com/iota-uz/testbench/modules/execution/domain/execution"
	"github.com/iota-uz/testbench/modules/execution/infrastructure/persistence"
	"github.com/iota-uz/testbench/modules/execution/presentation/controllers"
	"github.com/iota-uz/testbench/modules/execution/services"
	"github.com/iota-uz/testbench/pkg/application"
)

func NewModule() application.Module {
	return &Module{}
}

type Module struct {
}

func ExecutionRepository(app application.Application) execution.Repository {
	return application.Resolve(app, func() execution.Repository {
		if db := app.Memory(); db != nil {
			return persistence.NewMemoryExecutionRepository(db, catalog.HierarchyRepository(app))
		}
		return persistence.NewExecutionRepository()
	})
}

// Reconciler is handed to the catalog module, which registers before this one.
func Reconciler(app application.Application) catalogservices.ExecutionReconciler {
	return application.Resolve(app, func() *services.Reconciler {
		return services.NewReconciler(
			ExecutionRepository(app),
			catalog.HierarchyRepository(app),
			catalog.AssignmentRepository(app),
			core.UserRepository(app),
			permissions.Use(),
		)
	})
}

func (m *Module) Register(app application.Application) error {
	executionService := services.NewExecutionService(
		ExecutionRepository(app),
		core.UserRepository(app),
		catalog.AccessResolver(app),
		app.Transactor(),
		app.EventPublisher(),
	)
	app.RegisterServices(
		executionService,
		services.NewNavigator(executionService),
	)
	app.RegisterControllers(
		controllers.NewExecutionsController(app),
		controllers.NewWorkbenchController(app),
	)
	return nil
}

func (m *Module) Name() string {
	return "execution"
}
