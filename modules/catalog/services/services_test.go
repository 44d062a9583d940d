package services_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/iota-uz/testbench/modules/catalog/domain/assignment"
	"github.com/iota-uz/testbench/modules/catalog/domain/hierarchy"
	"github.com/iota-uz/testbench/modules/catalog/infrastructure/persistence"
	"github.com/iota-uz/testbench/modules/catalog/services"
	"github.com/iota-uz/testbench/modules/core/domain/aggregates/user"
	corepersistence "github.com/iota-uz/testbench/modules/core/infrastructure/persistence"
	"github.com/iota-uz/testbench/modules/core/permissions"
	"github.com/iota-uz/testbench/pkg/composables"
	"github.com/iota-uz/testbench/pkg/eventbus"
	"github.com/iota-uz/testbench/pkg/memdb"
	"github.com/iota-uz/testbench/pkg/serrors"
)

// recorder stands in for the execution reconciler and remembers what it was told.
type recorder struct {
	mu         sync.Mutex
	created    []uuid.UUID
	deleted    []uuid.UUID
	assigned   []uuid.UUID
	unassigned []uuid.UUID
	failWith   error
}

func (r *recorder) OnTestCaseCreated(ctx context.Context, tc hierarchy.TestCase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	r.created = append(r.created, tc.ID)
	return nil
}

func (r *recorder) OnTestCaseDeleted(ctx context.Context, tc hierarchy.TestCase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, tc.ID)
	return nil
}

func (r *recorder) OnModuleAssigned(ctx context.Context, u user.User, m hierarchy.Module) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assigned = append(r.assigned, m.ID)
	return nil
}

func (r *recorder) OnModuleUnassigned(ctx context.Context, u user.User, m hierarchy.Module) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unassigned = append(r.unassigned, m.ID)
	return nil
}

type fixture struct {
	db          *memdb.DB
	users       *corepersistence.MemoryUserRepository
	hierarchy   *persistence.MemoryHierarchyRepository
	assignments *persistence.MemoryAssignmentRepository
	reconciler  *recorder
	resolver    *services.AccessResolver
	catalog     *services.CatalogService
	importer    *services.ImportService
	assign      *services.AssignmentService

	orgID  uuid.UUID
	admin  user.User
	qa     user.User
	tester user.User
}

func setup(t *testing.T) *fixture {
	t.Helper()
	caps, err := permissions.NewTable()
	require.NoError(t, err)
	f := &fixture{db: memdb.New(), orgID: uuid.New(), reconciler: &recorder{}}
	bus := eventbus.NewEventPublisher(logrus.New())
	f.users = corepersistence.NewMemoryUserRepository(f.db)
	f.hierarchy = persistence.NewMemoryHierarchyRepository(f.db)
	f.assignments = persistence.NewMemoryAssignmentRepository(f.db)
	f.resolver = services.NewAccessResolver(f.hierarchy, f.assignments, caps)
	f.catalog = services.NewCatalogService(f.hierarchy, f.resolver, f.reconciler, f.db, bus)
	f.importer = services.NewImportService(f.catalog)
	f.assign = services.NewAssignmentService(f.assignments, f.hierarchy, f.users, f.resolver, f.reconciler, f.db, bus)

	f.admin = f.user(t, f.orgID, "admin@acme.test", user.RoleAdmin)
	f.qa = f.user(t, f.orgID, "qa@acme.test", user.RoleQA)
	f.tester = f.user(t, f.orgID, "tester@acme.test", user.RoleTester)
	return f
}

func (f *fixture) user(t *testing.T, orgID uuid.UUID, email string, roles ...user.Role) user.User {
	t.Helper()
	u, err := f.users.Create(context.Background(), user.New(orgID, email, email, roles...))
	require.NoError(t, err)
	return u
}

func as(u user.User) context.Context {
	return composables.WithUser(context.Background(), u)
}

func (f *fixture) project(t *testing.T, name string) hierarchy.Project {
	t.Helper()
	p, err := f.catalog.CreateProject(as(f.admin), &hierarchy.ProjectCreateDTO{Name: name})
	require.NoError(t, err)
	return p
}

func (f *fixture) module(t *testing.T, p hierarchy.Project, name string) hierarchy.Module {
	t.Helper()
	m, err := f.catalog.CreateModule(as(f.admin), &hierarchy.ModuleCreateDTO{ProjectID: p.ID.String(), Name: name})
	require.NoError(t, err)
	return m
}

func (f *fixture) submodule(t *testing.T, m hierarchy.Module, name string) hierarchy.Submodule {
	t.Helper()
	s, err := f.catalog.CreateSubmodule(as(f.admin), &hierarchy.SubmoduleCreateDTO{ModuleID: m.ID.String(), Name: name})
	require.NoError(t, err)
	return s
}

func (f *fixture) assignModule(t *testing.T, u user.User, m hierarchy.Module) {
	t.Helper()
	_, err := f.assign.AssignModule(as(f.admin), &assignment.ModuleAssignDTO{UserID: u.ID().String(), ModuleID: m.ID.String()})
	require.NoError(t, err)
}

func requireKind(t *testing.T, err error, kind serrors.Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, serrors.KindOf(err), "unexpected error %v", err)
}

func TestCatalog_CapabilityChecks(t *testing.T) {
	f := setup(t)
	p := f.project(t, "Shop")
	m := f.module(t, p, "Billing")

	_, err := f.catalog.CreateProject(as(f.qa), &hierarchy.ProjectCreateDTO{Name: "Other"})
	require.ErrorIs(t, err, services.ErrNotAccessible)

	_, err = f.catalog.CreateModule(as(f.tester), &hierarchy.ModuleCreateDTO{ProjectID: p.ID.String(), Name: "Cart"})
	require.ErrorIs(t, err, services.ErrNotAccessible)

	_, err = f.catalog.CreateSubmodule(as(f.tester), &hierarchy.SubmoduleCreateDTO{ModuleID: m.ID.String(), Name: "Refunds"})
	require.ErrorIs(t, err, services.ErrNotAccessible)

	_, err = f.catalog.CreateProject(context.Background(), &hierarchy.ProjectCreateDTO{Name: "Anon"})
	requireKind(t, err, serrors.KindUnauthenticated)
}

func TestCatalog_AuthorsNeedAVisibleModule(t *testing.T) {
	f := setup(t)
	p := f.project(t, "Shop")
	m := f.module(t, p, "Billing")

	_, err := f.catalog.CreateSubmodule(as(f.qa), &hierarchy.SubmoduleCreateDTO{ModuleID: m.ID.String(), Name: "Invoices"})
	require.ErrorIs(t, err, services.ErrNotAccessible)

	f.assignModule(t, f.qa, m)
	sub, err := f.catalog.CreateSubmodule(as(f.qa), &hierarchy.SubmoduleCreateDTO{ModuleID: m.ID.String(), Name: "Invoices"})
	require.NoError(t, err)

	tc, err := f.catalog.CreateTestCase(as(f.qa), &hierarchy.TestCaseCreateDTO{
		SubmoduleID: sub.ID.String(),
		Title:       "Issue invoice",
		Steps:       []hierarchy.TestStepDTO{{Action: "open"}, {Action: "issue"}},
	})
	require.NoError(t, err)
	require.Equal(t, m.ID, tc.ModuleID)
	require.Equal(t, p.ID, tc.ProjectID)
	require.Len(t, tc.Steps, 2)
	require.Equal(t, []uuid.UUID{tc.ID}, f.reconciler.created)
}

func TestCatalog_ValidationAndDuplicates(t *testing.T) {
	f := setup(t)
	p := f.project(t, "Shop")

	_, err := f.catalog.CreateProject(as(f.admin), &hierarchy.ProjectCreateDTO{Name: "  "})
	requireKind(t, err, serrors.KindValidation)

	_, err = f.catalog.CreateProject(as(f.admin), &hierarchy.ProjectCreateDTO{Name: "Shop"})
	requireKind(t, err, serrors.KindConflict)

	f.module(t, p, "Billing")
	_, err = f.catalog.CreateModule(as(f.admin), &hierarchy.ModuleCreateDTO{ProjectID: p.ID.String(), Name: "Billing"})
	requireKind(t, err, serrors.KindConflict)

	_, err = f.catalog.CreateModule(as(f.admin), &hierarchy.ModuleCreateDTO{ProjectID: uuid.NewString(), Name: "Ghost"})
	requireKind(t, err, serrors.KindNotFound)

	_, err = f.catalog.CreateModule(as(f.admin), &hierarchy.ModuleCreateDTO{ProjectID: "not-a-uuid", Name: "Ghost"})
	requireKind(t, err, serrors.KindValidation)
}

func TestCatalog_ReconcilerFailureRollsBackTestCase(t *testing.T) {
	f := setup(t)
	m := f.module(t, f.project(t, "Shop"), "Billing")
	sub := f.submodule(t, m, "Invoices")

	f.reconciler.failWith = errors.New("provisioning failed")
	_, err := f.catalog.CreateTestCase(as(f.admin), &hierarchy.TestCaseCreateDTO{SubmoduleID: sub.ID.String(), Title: "Issue"})
	require.Error(t, err)

	detail, err := f.catalog.GetModule(as(f.admin), m.ID)
	require.NoError(t, err)
	require.Empty(t, detail.TestCases)
}

func TestCatalog_DeleteTestCaseNotifiesReconciler(t *testing.T) {
	f := setup(t)
	m := f.module(t, f.project(t, "Shop"), "Billing")
	sub := f.submodule(t, m, "Invoices")
	tc, err := f.catalog.CreateTestCase(as(f.admin), &hierarchy.TestCaseCreateDTO{SubmoduleID: sub.ID.String(), Title: "Issue"})
	require.NoError(t, err)

	require.ErrorIs(t, f.catalog.DeleteTestCase(as(f.tester), tc.ID), services.ErrNotAccessible)
	require.NoError(t, f.catalog.DeleteTestCase(as(f.admin), tc.ID))
	require.Equal(t, []uuid.UUID{tc.ID}, f.reconciler.deleted)

	_, err = f.catalog.GetTestCase(as(f.admin), tc.ID)
	requireKind(t, err, serrors.KindNotFound)
}

func TestResolver_ProjectAssignmentShowsProjectButNoModules(t *testing.T) {
	f := setup(t)
	shop := f.project(t, "Shop")
	billing := f.module(t, shop, "Billing")
	f.module(t, f.project(t, "Admin"), "Reports")

	_, err := f.assign.AssignProject(as(f.admin), &assignment.ProjectAssignDTO{UserID: f.tester.ID().String(), ProjectID: shop.ID.String()})
	require.NoError(t, err)
	require.Empty(t, f.reconciler.assigned)

	projects, err := f.catalog.ListProjects(as(f.tester))
	require.NoError(t, err)
	require.Len(t, projects, 1)
	require.Equal(t, shop.ID, projects[0].ID)

	modules, err := f.catalog.ListModules(as(f.tester))
	require.NoError(t, err)
	require.Empty(t, modules)

	_, err = f.catalog.GetModule(as(f.tester), billing.ID)
	require.ErrorIs(t, err, services.ErrNotAccessible)

	f.assignModule(t, f.tester, billing)
	detail, err := f.catalog.GetProject(as(f.tester), shop.ID)
	require.NoError(t, err)
	require.Len(t, detail.Modules, 1)
	require.Equal(t, billing.ID, detail.Modules[0].ID)
}

func TestResolver_AdminSeesOnlyOwnOrganization(t *testing.T) {
	f := setup(t)
	shop := f.project(t, "Shop")

	otherOrg := uuid.New()
	otherAdmin := f.user(t, otherOrg, "admin@other.test", user.RoleAdmin)
	foreign, err := f.catalog.CreateProject(as(otherAdmin), &hierarchy.ProjectCreateDTO{Name: "Foreign"})
	require.NoError(t, err)

	projects, err := f.catalog.ListProjects(as(f.admin))
	require.NoError(t, err)
	require.Len(t, projects, 1)
	require.Equal(t, shop.ID, projects[0].ID)

	_, err = f.catalog.GetProject(as(f.admin), foreign.ID)
	requireKind(t, err, serrors.KindNotFound)
}

func TestAssignments_Rules(t *testing.T) {
	f := setup(t)
	m := f.module(t, f.project(t, "Shop"), "Billing")
	dto := func(u user.User) *assignment.ModuleAssignDTO {
		return &assignment.ModuleAssignDTO{UserID: u.ID().String(), ModuleID: m.ID.String()}
	}

	_, err := f.assign.AssignModule(as(f.qa), dto(f.tester))
	require.ErrorIs(t, err, services.ErrNotAccessible)

	stranger := f.user(t, uuid.New(), "stranger@other.test", user.RoleTester)
	_, err = f.assign.AssignModule(as(f.admin), dto(stranger))
	requireKind(t, err, serrors.KindNotFound)

	f.assignModule(t, f.tester, m)
	_, err = f.assign.AssignModule(as(f.admin), dto(f.tester))
	requireKind(t, err, serrors.KindConflict)
	require.Len(t, f.reconciler.assigned, 1)

	got, err := f.assign.ListAssignments(as(f.tester), uuid.Nil)
	require.NoError(t, err)
	require.Len(t, got.Modules, 1)
	require.Equal(t, m.ProjectID, got.Modules[0].ProjectID)

	_, err = f.assign.ListAssignments(as(f.tester), f.qa.ID())
	require.ErrorIs(t, err, services.ErrNotAccessible)

	require.NoError(t, f.assign.UnassignModule(as(f.admin), f.tester.ID(), m.ID))
	require.Equal(t, []uuid.UUID{m.ID}, f.reconciler.unassigned)
	requireKind(t, f.assign.UnassignModule(as(f.admin), f.tester.ID(), m.ID), serrors.KindNotFound)
}

func workbook(t *testing.T, rows ...[]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	header := make([]any, len(services.ImportColumns))
	for i, c := range services.ImportColumns {
		header[i] = c
	}
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &header))
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf := &bytes.Buffer{}
	_, err := f.WriteTo(buf)
	require.NoError(t, err)
	return buf
}

func TestImport_GroupsRowsAndSkipsExistingCases(t *testing.T) {
	f := setup(t)
	sheet := func() *bytes.Buffer {
		return workbook(t,
			[]any{"Shop", "Billing", "Invoices", "Issue invoice", "happy path", 1, "open form", "form shown"},
			[]any{"", "", "", "", "", 2, "submit", "invoice issued"},
			[]any{"", "", "", "Void invoice", "", "", "void", "voided"},
			[]any{"", "Cart", "Items", "Add item", "", "", "add", "added"},
		)
	}

	report, err := f.importer.Import(as(f.admin), sheet())
	require.NoError(t, err)
	require.Equal(t, 1, report.ProjectsCreated)
	require.Equal(t, 2, report.ModulesCreated)
	require.Equal(t, 2, report.SubmodulesCreated)
	require.Equal(t, 3, report.TestCasesCreated)
	require.Len(t, report.TestCaseIDs, 3)
	require.Len(t, f.reconciler.created, 3)

	tc, err := f.catalog.GetTestCase(as(f.admin), report.TestCaseIDs[0])
	require.NoError(t, err)
	require.Equal(t, "Issue invoice", tc.Title)
	require.Len(t, tc.Steps, 2)
	require.Equal(t, "submit", tc.Steps[1].Action)

	again, err := f.importer.Import(as(f.admin), sheet())
	require.NoError(t, err)
	require.Zero(t, again.TestCasesCreated)
	require.Equal(t, 3, again.TestCasesSkipped)
	require.Len(t, f.reconciler.created, 3)
}

func TestImport_RejectsBadInput(t *testing.T) {
	f := setup(t)

	_, err := f.importer.Import(as(f.qa), workbook(t, []any{"Shop", "Billing", "Invoices", "Issue"}))
	require.ErrorIs(t, err, services.ErrNotAccessible)

	_, err = f.importer.Import(as(f.admin), bytes.NewBufferString("not a workbook"))
	requireKind(t, err, serrors.KindValidation)

	_, err = f.importer.Import(as(f.admin), workbook(t,
		[]any{"Shop", "Billing", "Invoices", "Issue", "", "x", "open", ""},
	))
	requireKind(t, err, serrors.KindValidation)

	_, err = f.importer.Import(as(f.admin), workbook(t))
	requireKind(t, err, serrors.KindValidation)

	projects, err := f.catalog.ListProjects(as(f.admin))
	require.NoError(t, err)
	require.Empty(t, projects)
}
