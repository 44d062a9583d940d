package catalog

import (
	"errors"

	"github.com/iota-uz/testbench/modules/catalog/domain/assignment"
	"github.com/iota-uz/testbench/modules/catalog/domain/hierarchy"
	"github.com/iota-uz/testbench/modules/catalog/infrastructure/persistence"
	"github.com/iota-uz/testbench/modules/catalog/presentation/controllers"
	"github.com/iota-uz/testbench/modules/catalog/services"
	"github.com/iota-uz/testbench/modules/core"
	"github.com/iota-uz/testbench/modules/core/permissions"
	"github.com/iota-uz/testbench/pkg/application"
)

var errNoReconciler = errors.New("catalog module needs an execution reconciler")

type ModuleOptions struct {
	// Reconciler builds the execution reconciler every catalog and assignment
	// mutation runs through.
	Reconciler func(app application.Application) services.ExecutionReconciler
}

func NewModule(opts *ModuleOptions) application.Module {
	if opts == nil {
		opts = &ModuleOptions{}
	}
	return &Module{options: opts}
}

type Module struct {
	options *ModuleOptions
}

func HierarchyRepository(app application.Application) hierarchy.Repository {
	return application.Resolve(app, func() hierarchy.Repository {
		if db := app.Memory(); db != nil {
			return persistence.NewMemoryHierarchyRepository(db)
		}
		return persistence.NewHierarchyRepository()
	})
}

func AssignmentRepository(app application.Application) assignment.Repository {
	return application.Resolve(app, func() assignment.Repository {
		if db := app.Memory(); db != nil {
			return persistence.NewMemoryAssignmentRepository(db)
		}
		return persistence.NewAssignmentRepository()
	})
}

// AccessResolver returns the resolver shared by the catalog and execution modules.
func AccessResolver(app application.Application) *services.AccessResolver {
	return application.Resolve(app, func() *services.AccessResolver {
		return services.NewAccessResolver(HierarchyRepository(app), AssignmentRepository(app), permissions.Use())
	})
}

func (m *Module) Register(app application.Application) error {
	if m.options.Reconciler == nil {
		return errNoReconciler
	}
	reconciler := m.options.Reconciler(app)
	resolver := AccessResolver(app)

	catalogService := services.NewCatalogService(
		HierarchyRepository(app),
		resolver,
		reconciler,
		app.Transactor(),
		app.EventPublisher(),
	)
	app.RegisterServices(
		resolver,
		catalogService,
		services.NewImportService(catalogService),
		services.NewAssignmentService(
			AssignmentRepository(app),
			HierarchyRepository(app),
			core.UserRepository(app),
			resolver,
			reconciler,
			app.Transactor(),
			app.EventPublisher(),
		),
	)
	app.RegisterControllers(
		controllers.NewProjectsController(app),
		controllers.NewModulesController(app),
		controllers.NewTestCasesController(app),
		controllers.NewAssignmentsController(app),
	)
	return nil
}

func (m *Module) Name() string {
	return "catalog"
}
