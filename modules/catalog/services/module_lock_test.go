package services_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/testbench/modules/catalog/domain/assignment"
	"github.com/iota-uz/testbench/modules/catalog/domain/hierarchy"
	"github.com/iota-uz/testbench/modules/catalog/infrastructure/persistence"
	"github.com/iota-uz/testbench/modules/catalog/services"
	"github.com/iota-uz/testbench/modules/core/domain/aggregates/user"
	corepersistence "github.com/iota-uz/testbench/modules/core/infrastructure/persistence"
	"github.com/iota-uz/testbench/modules/core/permissions"
	"github.com/iota-uz/testbench/pkg/eventbus"
	"github.com/iota-uz/testbench/pkg/memdb"
	"github.com/iota-uz/testbench/pkg/serrors"
)

// callLog records repository and reconciler calls in the order they happen.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) take() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.calls
	l.calls = nil
	return out
}

type lockingHierarchy struct {
	hierarchy.Repository
	db  *memdb.DB
	log *callLog
}

func (h *lockingHierarchy) LockModule(ctx context.Context, id uuid.UUID) error {
	if !h.db.InTx(ctx) {
		h.log.add("lock outside unit of work")
	} else {
		h.log.add("lock")
	}
	return h.Repository.LockModule(ctx, id)
}

func (h *lockingHierarchy) CreateTestCase(ctx context.Context, tc hierarchy.TestCase) (hierarchy.TestCase, error) {
	h.log.add("insert case")
	return h.Repository.CreateTestCase(ctx, tc)
}

type loggingReconciler struct {
	log *callLog
}

func (r *loggingReconciler) OnTestCaseCreated(context.Context, hierarchy.TestCase) error {
	r.log.add("reconcile created")
	return nil
}

func (r *loggingReconciler) OnTestCaseDeleted(context.Context, hierarchy.TestCase) error {
	r.log.add("reconcile deleted")
	return nil
}

func (r *loggingReconciler) OnModuleAssigned(context.Context, user.User, hierarchy.Module) error {
	r.log.add("reconcile assigned")
	return nil
}

func (r *loggingReconciler) OnModuleUnassigned(context.Context, user.User, hierarchy.Module) error {
	r.log.add("reconcile unassigned")
	return nil
}

func TestModuleRowIsLockedBeforeReconciling(t *testing.T) {
	caps, err := permissions.NewTable()
	require.NoError(t, err)
	db := memdb.New()
	log := &callLog{}
	h := &lockingHierarchy{Repository: persistence.NewMemoryHierarchyRepository(db), db: db, log: log}
	users := corepersistence.NewMemoryUserRepository(db)
	assignments := persistence.NewMemoryAssignmentRepository(db)
	resolver := services.NewAccessResolver(h, assignments, caps)
	rec := &loggingReconciler{log: log}
	bus := eventbus.NewEventPublisher(logrus.New())
	catalog := services.NewCatalogService(h, resolver, rec, db, bus)
	importer := services.NewImportService(catalog)
	assign := services.NewAssignmentService(assignments, h, users, resolver, rec, db, bus)

	orgID := uuid.New()
	admin, err := users.Create(context.Background(), user.New(orgID, "admin@acme.test", "Admin", user.RoleAdmin))
	require.NoError(t, err)
	tester, err := users.Create(context.Background(), user.New(orgID, "tester@acme.test", "Tess", user.RoleTester))
	require.NoError(t, err)

	p, err := catalog.CreateProject(as(admin), &hierarchy.ProjectCreateDTO{Name: "Shop"})
	require.NoError(t, err)
	m, err := catalog.CreateModule(as(admin), &hierarchy.ModuleCreateDTO{ProjectID: p.ID.String(), Name: "Billing"})
	require.NoError(t, err)
	sub, err := catalog.CreateSubmodule(as(admin), &hierarchy.SubmoduleCreateDTO{ModuleID: m.ID.String(), Name: "Invoices"})
	require.NoError(t, err)
	log.take()

	tc, err := catalog.CreateTestCase(as(admin), &hierarchy.TestCaseCreateDTO{SubmoduleID: sub.ID.String(), Title: "Issue invoice"})
	require.NoError(t, err)
	require.Equal(t, []string{"lock", "insert case", "reconcile created"}, log.take())

	_, err = assign.AssignModule(as(admin), &assignment.ModuleAssignDTO{UserID: tester.ID().String(), ModuleID: m.ID.String()})
	require.NoError(t, err)
	require.Equal(t, []string{"lock", "reconcile assigned"}, log.take())

	require.NoError(t, assign.UnassignModule(as(admin), tester.ID(), m.ID))
	require.Equal(t, []string{"lock", "reconcile unassigned"}, log.take())

	_, err = importer.Import(as(admin), workbook(t,
		[]any{"Shop", "Billing", "Invoices", "Void invoice", "", 1, "void", "voided"},
	))
	require.NoError(t, err)
	require.Equal(t, []string{"lock", "insert case", "reconcile created"}, log.take())

	require.NoError(t, catalog.DeleteTestCase(as(admin), tc.ID))
	require.Equal(t, []string{"lock", "reconcile deleted"}, log.take())
}

func TestAssignModule_UnknownModuleFailsAtLock(t *testing.T) {
	f := setup(t)
	_, err := f.assign.AssignModule(as(f.admin), &assignment.ModuleAssignDTO{
		UserID:   f.tester.ID().String(),
		ModuleID: uuid.NewString(),
	})
	requireKind(t, err, serrors.KindNotFound)
	require.Empty(t, f.reconciler.assigned)
}
