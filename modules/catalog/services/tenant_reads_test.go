package services_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/testbench/modules/catalog/domain/assignment"
	"github.com/iota-uz/testbench/modules/catalog/domain/hierarchy"
	"github.com/iota-uz/testbench/modules/catalog/services"
	"github.com/iota-uz/testbench/modules/core/permissions"
	"github.com/iota-uz/testbench/pkg/eventbus"
	"github.com/iota-uz/testbench/pkg/memdb"
)

// unitOfWorkCheck remembers every repository read issued outside a unit of work.
type unitOfWorkCheck struct {
	db      *memdb.DB
	outside []string
}

func (c *unitOfWorkCheck) read(ctx context.Context, name string) {
	if !c.db.InTx(ctx) {
		c.outside = append(c.outside, name)
	}
}

type checkedHierarchy struct {
	hierarchy.Repository
	check *unitOfWorkCheck
}

func (h checkedHierarchy) GetProject(ctx context.Context, id uuid.UUID) (hierarchy.Project, error) {
	h.check.read(ctx, "GetProject")
	return h.Repository.GetProject(ctx, id)
}

func (h checkedHierarchy) ListProjects(ctx context.Context) ([]hierarchy.Project, error) {
	h.check.read(ctx, "ListProjects")
	return h.Repository.ListProjects(ctx)
}

func (h checkedHierarchy) GetModule(ctx context.Context, id uuid.UUID) (hierarchy.Module, error) {
	h.check.read(ctx, "GetModule")
	return h.Repository.GetModule(ctx, id)
}

func (h checkedHierarchy) ListModules(ctx context.Context) ([]hierarchy.Module, error) {
	h.check.read(ctx, "ListModules")
	return h.Repository.ListModules(ctx)
}

func (h checkedHierarchy) ListModulesByProject(ctx context.Context, projectID uuid.UUID) ([]hierarchy.Module, error) {
	h.check.read(ctx, "ListModulesByProject")
	return h.Repository.ListModulesByProject(ctx, projectID)
}

func (h checkedHierarchy) ListSubmodules(ctx context.Context, moduleID uuid.UUID) ([]hierarchy.Submodule, error) {
	h.check.read(ctx, "ListSubmodules")
	return h.Repository.ListSubmodules(ctx, moduleID)
}

func (h checkedHierarchy) GetTestCase(ctx context.Context, id uuid.UUID) (hierarchy.TestCase, error) {
	h.check.read(ctx, "GetTestCase")
	return h.Repository.GetTestCase(ctx, id)
}

func (h checkedHierarchy) ListTestCasesByModule(ctx context.Context, moduleID uuid.UUID) ([]hierarchy.TestCase, error) {
	h.check.read(ctx, "ListTestCasesByModule")
	return h.Repository.ListTestCasesByModule(ctx, moduleID)
}

type checkedAssignments struct {
	assignment.Repository
	check *unitOfWorkCheck
}

func (a checkedAssignments) ListProjectAssignments(ctx context.Context, userID uuid.UUID) ([]assignment.ProjectAssignment, error) {
	a.check.read(ctx, "ListProjectAssignments")
	return a.Repository.ListProjectAssignments(ctx, userID)
}

func (a checkedAssignments) ListModuleAssignments(ctx context.Context, userID uuid.UUID) ([]assignment.ModuleAssignment, error) {
	a.check.read(ctx, "ListModuleAssignments")
	return a.Repository.ListModuleAssignments(ctx, userID)
}

func TestCatalogReads_RunInTenantUnitOfWork(t *testing.T) {
	f := setup(t)
	p := f.project(t, "Shop")
	m := f.module(t, p, "Billing")
	sub := f.submodule(t, m, "Invoices")
	tc, err := f.catalog.CreateTestCase(as(f.admin), &hierarchy.TestCaseCreateDTO{SubmoduleID: sub.ID.String(), Title: "Issue invoice"})
	require.NoError(t, err)
	f.assignModule(t, f.tester, m)

	caps, err := permissions.NewTable()
	require.NoError(t, err)
	check := &unitOfWorkCheck{db: f.db}
	h := checkedHierarchy{Repository: f.hierarchy, check: check}
	assignments := checkedAssignments{Repository: f.assignments, check: check}
	resolver := services.NewAccessResolver(h, assignments, caps)
	bus := eventbus.NewEventPublisher(logrus.New())
	catalog := services.NewCatalogService(h, resolver, f.reconciler, f.db, bus)
	assign := services.NewAssignmentService(assignments, h, f.users, resolver, f.reconciler, f.db, bus)

	for _, ctx := range []context.Context{as(f.admin), as(f.tester)} {
		_, err = catalog.ListProjects(ctx)
		require.NoError(t, err)
		_, err = catalog.GetProject(ctx, p.ID)
		require.NoError(t, err)
		_, err = catalog.ListModules(ctx)
		require.NoError(t, err)
		_, err = catalog.GetModule(ctx, m.ID)
		require.NoError(t, err)
		_, err = catalog.GetTestCase(ctx, tc.ID)
		require.NoError(t, err)
	}
	_, err = assign.ListAssignments(as(f.admin), f.tester.ID())
	require.NoError(t, err)

	require.Empty(t, check.outside)
}
