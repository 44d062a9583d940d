package persistence

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/testbench/modules/catalog/domain/hierarchy"
	"github.com/iota-uz/testbench/pkg/composables"
	"github.com/iota-uz/testbench/pkg/memdb"
)

// nameKey indexes a name within its parent (organization, project, module or submodule).
type nameKey struct {
	scope uuid.UUID
	name  string
}

type MemoryHierarchyRepository struct {
	db *memdb.DB

	projects       *memdb.Table[uuid.UUID, hierarchy.Project]
	projectNames   *memdb.Table[nameKey, uuid.UUID]
	modules        *memdb.Table[uuid.UUID, hierarchy.Module]
	moduleNames    *memdb.Table[nameKey, uuid.UUID]
	submodules     *memdb.Table[uuid.UUID, hierarchy.Submodule]
	submoduleNames *memdb.Table[nameKey, uuid.UUID]
	cases          *memdb.Table[uuid.UUID, hierarchy.TestCase]
	caseTitles     *memdb.Table[nameKey, uuid.UUID]
}

func NewMemoryHierarchyRepository(db *memdb.DB) *MemoryHierarchyRepository {
	return &MemoryHierarchyRepository{
		db:             db,
		projects:       memdb.NewTable[uuid.UUID, hierarchy.Project](db),
		projectNames:   memdb.NewTable[nameKey, uuid.UUID](db),
		modules:        memdb.NewTable[uuid.UUID, hierarchy.Module](db),
		moduleNames:    memdb.NewTable[nameKey, uuid.UUID](db),
		submodules:     memdb.NewTable[uuid.UUID, hierarchy.Submodule](db),
		submoduleNames: memdb.NewTable[nameKey, uuid.UUID](db),
		cases:          memdb.NewTable[uuid.UUID, hierarchy.TestCase](db),
		caseTitles:     memdb.NewTable[nameKey, uuid.UUID](db),
	}
}

func insertName(t *memdb.Table[nameKey, uuid.UUID], scope uuid.UUID, name string, id uuid.UUID) error {
	if err := t.Insert(nameKey{scope: scope, name: name}, id); err != nil {
		if errors.Is(err, memdb.ErrDuplicateKey) {
			return hierarchy.ErrDuplicateName
		}
		return err
	}
	return nil
}

func (r *MemoryHierarchyRepository) CreateProject(ctx context.Context, p hierarchy.Project) (hierarchy.Project, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return hierarchy.Project{}, err
	}
	p.ID = uuid.New()
	p.OrganizationID = tenantID
	if err := insertName(r.projectNames, tenantID, p.Name, p.ID); err != nil {
		return hierarchy.Project{}, err
	}
	p.CreatedAt = time.Now()
	r.projects.Put(p.ID, p)
	return p, nil
}

func (r *MemoryHierarchyRepository) GetProject(ctx context.Context, id uuid.UUID) (hierarchy.Project, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return hierarchy.Project{}, err
	}
	p, ok := r.projects.Get(id)
	if !ok || p.OrganizationID != tenantID {
		return hierarchy.Project{}, hierarchy.ErrProjectNotFound
	}
	return p, nil
}

func (r *MemoryHierarchyRepository) FindProjectByName(ctx context.Context, name string) (hierarchy.Project, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return hierarchy.Project{}, err
	}
	id, ok := r.projectNames.Get(nameKey{scope: tenantID, name: name})
	if !ok {
		return hierarchy.Project{}, hierarchy.ErrProjectNotFound
	}
	return r.GetProject(ctx, id)
}

func (r *MemoryHierarchyRepository) ListProjects(ctx context.Context) ([]hierarchy.Project, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	out := r.projects.Select(func(p hierarchy.Project) bool { return p.OrganizationID == tenantID })
	slices.SortFunc(out, func(a, b hierarchy.Project) int {
		return cmp.Or(strings.Compare(a.Name, b.Name), strings.Compare(a.ID.String(), b.ID.String()))
	})
	return out, nil
}

func (r *MemoryHierarchyRepository) CreateModule(ctx context.Context, m hierarchy.Module) (hierarchy.Module, error) {
	project, err := r.GetProject(ctx, m.ProjectID)
	if err != nil {
		return hierarchy.Module{}, err
	}
	m.ID = uuid.New()
	m.OrganizationID = project.OrganizationID
	if err := insertName(r.moduleNames, project.ID, m.Name, m.ID); err != nil {
		return hierarchy.Module{}, err
	}
	m.CreatedAt = time.Now()
	r.modules.Put(m.ID, m)
	return m, nil
}

func (r *MemoryHierarchyRepository) GetModule(ctx context.Context, id uuid.UUID) (hierarchy.Module, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return hierarchy.Module{}, err
	}
	m, ok := r.modules.Get(id)
	if !ok || m.OrganizationID != tenantID {
		return hierarchy.Module{}, hierarchy.ErrModuleNotFound
	}
	return m, nil
}

// LockModule only checks the module exists: memdb already runs one unit of work at a time.
func (r *MemoryHierarchyRepository) LockModule(ctx context.Context, id uuid.UUID) error {
	_, err := r.GetModule(ctx, id)
	return err
}

func (r *MemoryHierarchyRepository) FindModuleByName(ctx context.Context, projectID uuid.UUID, name string) (hierarchy.Module, error) {
	id, ok := r.moduleNames.Get(nameKey{scope: projectID, name: name})
	if !ok {
		return hierarchy.Module{}, hierarchy.ErrModuleNotFound
	}
	return r.GetModule(ctx, id)
}

func (r *MemoryHierarchyRepository) ListModules(ctx context.Context) ([]hierarchy.Module, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	return sortModules(r.modules.Select(func(m hierarchy.Module) bool { return m.OrganizationID == tenantID })), nil
}

func (r *MemoryHierarchyRepository) ListModulesByProject(ctx context.Context, projectID uuid.UUID) ([]hierarchy.Module, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	return sortModules(r.modules.Select(func(m hierarchy.Module) bool {
		return m.OrganizationID == tenantID && m.ProjectID == projectID
	})), nil
}

func sortModules(mods []hierarchy.Module) []hierarchy.Module {
	slices.SortFunc(mods, func(a, b hierarchy.Module) int {
		return cmp.Or(strings.Compare(a.Name, b.Name), strings.Compare(a.ID.String(), b.ID.String()))
	})
	return mods
}

func (r *MemoryHierarchyRepository) CreateSubmodule(ctx context.Context, s hierarchy.Submodule) (hierarchy.Submodule, error) {
	module, err := r.GetModule(ctx, s.ModuleID)
	if err != nil {
		return hierarchy.Submodule{}, err
	}
	s.ID = uuid.New()
	s.OrganizationID = module.OrganizationID
	if err := insertName(r.submoduleNames, module.ID, s.Name, s.ID); err != nil {
		return hierarchy.Submodule{}, err
	}
	s.CreatedAt = time.Now()
	r.submodules.Put(s.ID, s)
	return s, nil
}

func (r *MemoryHierarchyRepository) GetSubmodule(ctx context.Context, id uuid.UUID) (hierarchy.Submodule, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return hierarchy.Submodule{}, err
	}
	s, ok := r.submodules.Get(id)
	if !ok || s.OrganizationID != tenantID {
		return hierarchy.Submodule{}, hierarchy.ErrSubmoduleNotFound
	}
	return s, nil
}

func (r *MemoryHierarchyRepository) FindSubmoduleByName(ctx context.Context, moduleID uuid.UUID, name string) (hierarchy.Submodule, error) {
	id, ok := r.submoduleNames.Get(nameKey{scope: moduleID, name: name})
	if !ok {
		return hierarchy.Submodule{}, hierarchy.ErrSubmoduleNotFound
	}
	return r.GetSubmodule(ctx, id)
}

func (r *MemoryHierarchyRepository) ListSubmodules(ctx context.Context, moduleID uuid.UUID) ([]hierarchy.Submodule, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	out := r.submodules.Select(func(s hierarchy.Submodule) bool {
		return s.OrganizationID == tenantID && s.ModuleID == moduleID
	})
	slices.SortFunc(out, func(a, b hierarchy.Submodule) int {
		return cmp.Or(strings.Compare(a.Name, b.Name), strings.Compare(a.ID.String(), b.ID.String()))
	})
	return out, nil
}

func (r *MemoryHierarchyRepository) CreateTestCase(ctx context.Context, tc hierarchy.TestCase) (hierarchy.TestCase, error) {
	sub, err := r.GetSubmodule(ctx, tc.SubmoduleID)
	if err != nil {
		return hierarchy.TestCase{}, err
	}
	module, err := r.GetModule(ctx, sub.ModuleID)
	if err != nil {
		return hierarchy.TestCase{}, err
	}

	tc = tc.Clone()
	tc.ID = uuid.New()
	tc.OrganizationID = sub.OrganizationID
	tc.ProjectID = module.ProjectID
	tc.ModuleID = module.ID
	if err := insertName(r.caseTitles, sub.ID, tc.Title, tc.ID); err != nil {
		return hierarchy.TestCase{}, err
	}
	for i := range tc.Steps {
		tc.Steps[i].ID = uuid.New()
	}
	hierarchy.SortSteps(tc.Steps)
	tc.CreationOrder = r.db.NextSeq()
	tc.CreatedAt = time.Now()
	r.cases.Put(tc.ID, tc)
	return tc.Clone(), nil
}

func (r *MemoryHierarchyRepository) GetTestCase(ctx context.Context, id uuid.UUID) (hierarchy.TestCase, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return hierarchy.TestCase{}, err
	}
	tc, ok := r.cases.Get(id)
	if !ok || tc.OrganizationID != tenantID {
		return hierarchy.TestCase{}, hierarchy.ErrTestCaseNotFound
	}
	return tc.Clone(), nil
}

func (r *MemoryHierarchyRepository) FindTestCaseByTitle(ctx context.Context, submoduleID uuid.UUID, title string) (hierarchy.TestCase, error) {
	id, ok := r.caseTitles.Get(nameKey{scope: submoduleID, name: title})
	if !ok {
		return hierarchy.TestCase{}, hierarchy.ErrTestCaseNotFound
	}
	return r.GetTestCase(ctx, id)
}

func (r *MemoryHierarchyRepository) ListTestCasesByModule(ctx context.Context, moduleID uuid.UUID) ([]hierarchy.TestCase, error) {
	return r.listCases(ctx, func(tc hierarchy.TestCase) bool { return tc.ModuleID == moduleID })
}

func (r *MemoryHierarchyRepository) ListTestCasesBySubmodule(ctx context.Context, submoduleID uuid.UUID) ([]hierarchy.TestCase, error) {
	return r.listCases(ctx, func(tc hierarchy.TestCase) bool { return tc.SubmoduleID == submoduleID })
}

func (r *MemoryHierarchyRepository) listCases(ctx context.Context, keep func(hierarchy.TestCase) bool) ([]hierarchy.TestCase, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	out := r.cases.Select(func(tc hierarchy.TestCase) bool { return tc.OrganizationID == tenantID && keep(tc) })
	slices.SortFunc(out, func(a, b hierarchy.TestCase) int { return cmp.Compare(a.CreationOrder, b.CreationOrder) })
	for i := range out {
		out[i] = out[i].Clone()
	}
	return out, nil
}

func (r *MemoryHierarchyRepository) DeleteTestCase(ctx context.Context, id uuid.UUID) error {
	tc, err := r.GetTestCase(ctx, id)
	if err != nil {
		return err
	}
	r.caseTitles.Delete(nameKey{scope: tc.SubmoduleID, name: tc.Title})
	r.cases.Delete(id)
	return nil
}
