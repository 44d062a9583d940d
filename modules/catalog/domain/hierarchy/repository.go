package hierarchy

import (
	"context"

	"github.com/google/uuid"
)

// Repository is scoped to the organization carried by ctx. Entities of any other
// organization behave exactly like missing ones.
type Repository interface {
	CreateProject(ctx context.Context, p Project) (Project, error)
	GetProject(ctx context.Context, id uuid.UUID) (Project, error)
	FindProjectByName(ctx context.Context, name string) (Project, error)
	ListProjects(ctx context.Context) ([]Project, error)

	CreateModule(ctx context.Context, m Module) (Module, error)
	GetModule(ctx context.Context, id uuid.UUID) (Module, error)
	FindModuleByName(ctx context.Context, projectID uuid.UUID, name string) (Module, error)
	ListModules(ctx context.Context) ([]Module, error)
	ListModulesByProject(ctx context.Context, projectID uuid.UUID) ([]Module, error)
	// LockModule holds the module row until the surrounding unit of work ends. Writes
	// that change which (user, case) pairs a module implies take it first, so a new case
	// and a new assignment of the same module never miss each other.
	LockModule(ctx context.Context, id uuid.UUID) error

	CreateSubmodule(ctx context.Context, s Submodule) (Submodule, error)
	GetSubmodule(ctx context.Context, id uuid.UUID) (Submodule, error)
	FindSubmoduleByName(ctx context.Context, moduleID uuid.UUID, name string) (Submodule, error)
	ListSubmodules(ctx context.Context, moduleID uuid.UUID) ([]Submodule, error)

	// CreateTestCase assigns the case id, step ids and creation order.
	CreateTestCase(ctx context.Context, tc TestCase) (TestCase, error)
	GetTestCase(ctx context.Context, id uuid.UUID) (TestCase, error)
	FindTestCaseByTitle(ctx context.Context, submoduleID uuid.UUID, title string) (TestCase, error)
	ListTestCasesByModule(ctx context.Context, moduleID uuid.UUID) ([]TestCase, error)
	ListTestCasesBySubmodule(ctx context.Context, submoduleID uuid.UUID) ([]TestCase, error)
	DeleteTestCase(ctx context.Context, id uuid.UUID) error
}
