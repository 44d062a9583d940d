package services

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/iota-uz/testbench/modules/catalog/domain/assignment"
	"github.com/iota-uz/testbench/modules/catalog/domain/hierarchy"
	"github.com/iota-uz/testbench/modules/core/domain/aggregates/user"
	"github.com/iota-uz/testbench/modules/core/permissions"
	"github.com/iota-uz/testbench/pkg/composables"
)

// OwnedResource is anything with a single owning user inside one organization.
type OwnedResource interface {
	Owner() uuid.UUID
	Organization() uuid.UUID
}

// Visibility is the set of projects and modules a user may see. It is computed per
// call from current assignments and never cached.
type Visibility struct {
	All      bool
	Projects map[uuid.UUID]struct{}
	Modules  map[uuid.UUID]struct{}
}

func (v Visibility) Project(id uuid.UUID) bool {
	if v.All {
		return true
	}
	_, ok := v.Projects[id]
	return ok
}

func (v Visibility) Module(m hierarchy.Module) bool {
	if v.All {
		return true
	}
	_, ok := v.Modules[m.ID]
	return ok && v.Project(m.ProjectID)
}

// ModuleID is Module for callers that only hold the id; a module assignment implies
// its project is visible.
func (v Visibility) ModuleID(id uuid.UUID) bool {
	if v.All {
		return true
	}
	_, ok := v.Modules[id]
	return ok
}

// AccessResolver decides what a principal may see. Every method scopes its reads to
// the principal's organization, so foreign entities surface as not found.
type AccessResolver struct {
	hierarchy   hierarchy.Repository
	assignments assignment.Repository
	caps        *permissions.Table
}

func NewAccessResolver(h hierarchy.Repository, a assignment.Repository, caps *permissions.Table) *AccessResolver {
	return &AccessResolver{hierarchy: h, assignments: a, caps: caps}
}

func (r *AccessResolver) Capabilities() *permissions.Table {
	return r.caps
}

func scoped(ctx context.Context, u user.User) context.Context {
	return composables.WithTenantID(ctx, u.OrganizationID())
}

func (r *AccessResolver) Visibility(ctx context.Context, u user.User) (Visibility, error) {
	if r.caps.Can(u, permissions.SeeAllInOrg) {
		return Visibility{All: true}, nil
	}
	ctx = scoped(ctx, u)
	projects, err := r.assignments.ListProjectAssignments(ctx, u.ID())
	if err != nil {
		return Visibility{}, err
	}
	modules, err := r.assignments.ListModuleAssignments(ctx, u.ID())
	if err != nil {
		return Visibility{}, err
	}
	v := Visibility{
		Projects: make(map[uuid.UUID]struct{}, len(projects)+len(modules)),
		Modules:  make(map[uuid.UUID]struct{}, len(modules)),
	}
	for _, a := range projects {
		v.Projects[a.ProjectID] = struct{}{}
	}
	for _, a := range modules {
		v.Modules[a.ModuleID] = struct{}{}
		v.Projects[a.ProjectID] = struct{}{}
	}
	return v, nil
}

func (r *AccessResolver) VisibleProjects(ctx context.Context, u user.User) ([]hierarchy.Project, error) {
	v, err := r.Visibility(ctx, u)
	if err != nil {
		return nil, err
	}
	all, err := r.hierarchy.ListProjects(scoped(ctx, u))
	if err != nil {
		return nil, err
	}
	out := make([]hierarchy.Project, 0, len(all))
	for _, p := range all {
		if v.Project(p.ID) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *AccessResolver) VisibleModules(ctx context.Context, u user.User) ([]hierarchy.Module, error) {
	v, err := r.Visibility(ctx, u)
	if err != nil {
		return nil, err
	}
	all, err := r.hierarchy.ListModules(scoped(ctx, u))
	if err != nil {
		return nil, err
	}
	return filterModules(all, v), nil
}

// VisibleProjectModules lists the visible modules of one visible project.
func (r *AccessResolver) VisibleProjectModules(ctx context.Context, u user.User, projectID uuid.UUID) ([]hierarchy.Module, error) {
	v, err := r.Visibility(ctx, u)
	if err != nil {
		return nil, err
	}
	mods, err := r.hierarchy.ListModulesByProject(scoped(ctx, u), projectID)
	if err != nil {
		return nil, err
	}
	return filterModules(mods, v), nil
}

func filterModules(mods []hierarchy.Module, v Visibility) []hierarchy.Module {
	out := make([]hierarchy.Module, 0, len(mods))
	for _, m := range mods {
		if v.Module(m) {
			out = append(out, m)
		}
	}
	return out
}

func (r *AccessResolver) GetProject(ctx context.Context, u user.User, id uuid.UUID) (hierarchy.Project, error) {
	p, err := r.hierarchy.GetProject(scoped(ctx, u), id)
	if err != nil {
		if errors.Is(err, hierarchy.ErrProjectNotFound) {
			return hierarchy.Project{}, errProjectNotFound
		}
		return hierarchy.Project{}, err
	}
	v, err := r.Visibility(ctx, u)
	if err != nil {
		return hierarchy.Project{}, err
	}
	if !v.Project(p.ID) {
		return hierarchy.Project{}, ErrNotAccessible
	}
	return p, nil
}

func (r *AccessResolver) GetModule(ctx context.Context, u user.User, id uuid.UUID) (hierarchy.Module, error) {
	m, err := r.hierarchy.GetModule(scoped(ctx, u), id)
	if err != nil {
		if errors.Is(err, hierarchy.ErrModuleNotFound) {
			return hierarchy.Module{}, errModuleNotFound
		}
		return hierarchy.Module{}, err
	}
	v, err := r.Visibility(ctx, u)
	if err != nil {
		return hierarchy.Module{}, err
	}
	if !v.Module(m) {
		return hierarchy.Module{}, ErrNotAccessible
	}
	return m, nil
}

// GetSubmodule is guarded by the visibility of the parent module.
func (r *AccessResolver) GetSubmodule(ctx context.Context, u user.User, id uuid.UUID) (hierarchy.Submodule, hierarchy.Module, error) {
	s, err := r.hierarchy.GetSubmodule(scoped(ctx, u), id)
	if err != nil {
		if errors.Is(err, hierarchy.ErrSubmoduleNotFound) {
			return hierarchy.Submodule{}, hierarchy.Module{}, errSubmoduleNotFound
		}
		return hierarchy.Submodule{}, hierarchy.Module{}, err
	}
	m, err := r.GetModule(ctx, u, s.ModuleID)
	if err != nil {
		return hierarchy.Submodule{}, hierarchy.Module{}, err
	}
	return s, m, nil
}

// CanAccessTestCase reports whether the case's module is visible to u. A case that
// does not exist in u's organization is a not-found error.
func (r *AccessResolver) CanAccessTestCase(ctx context.Context, u user.User, caseID uuid.UUID) (bool, error) {
	_, err := r.GetTestCase(ctx, u, caseID)
	if errors.Is(err, ErrNotAccessible) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *AccessResolver) GetTestCase(ctx context.Context, u user.User, caseID uuid.UUID) (hierarchy.TestCase, error) {
	tc, err := r.hierarchy.GetTestCase(scoped(ctx, u), caseID)
	if err != nil {
		if errors.Is(err, hierarchy.ErrTestCaseNotFound) {
			return hierarchy.TestCase{}, errTestCaseNotFound
		}
		return hierarchy.TestCase{}, err
	}
	v, err := r.Visibility(ctx, u)
	if err != nil {
		return hierarchy.TestCase{}, err
	}
	if !v.ModuleID(tc.ModuleID) || !v.Project(tc.ProjectID) {
		return hierarchy.TestCase{}, ErrNotAccessible
	}
	return tc, nil
}

// CanAccessExecution allows the owner, and admins of the owner's organization.
func (r *AccessResolver) CanAccessExecution(u user.User, res OwnedResource) bool {
	if res.Organization() != u.OrganizationID() {
		return false
	}
	if res.Owner() == u.ID() {
		return true
	}
	return r.caps.Can(u, permissions.SeeAllInOrg)
}
