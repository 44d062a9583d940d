package services

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/iota-uz/testbench/modules/catalog/domain/hierarchy"
	"github.com/iota-uz/testbench/modules/core/domain/aggregates/user"
	"github.com/iota-uz/testbench/modules/core/permissions"
	"github.com/iota-uz/testbench/pkg/composables"
	"github.com/iota-uz/testbench/pkg/eventbus"
	"github.com/iota-uz/testbench/pkg/repo"
	"github.com/iota-uz/testbench/pkg/serrors"
)

type ProjectDetail struct {
	hierarchy.Project
	Modules []hierarchy.Module `json:"modules"`
}

type ModuleDetail struct {
	hierarchy.Module
	Submodules []hierarchy.Submodule `json:"submodules"`
	TestCases  []hierarchy.TestCase  `json:"test_cases"`
}

type CatalogService struct {
	hierarchy  hierarchy.Repository
	resolver   *AccessResolver
	reconciler ExecutionReconciler
	tx         repo.Transactor
	publisher  eventbus.EventBus
}

func NewCatalogService(
	h hierarchy.Repository,
	resolver *AccessResolver,
	reconciler ExecutionReconciler,
	tx repo.Transactor,
	publisher eventbus.EventBus,
) *CatalogService {
	return &CatalogService{
		hierarchy:  h,
		resolver:   resolver,
		reconciler: reconciler,
		tx:         tx,
		publisher:  publisher,
	}
}

func (s *CatalogService) require(u user.User, c permissions.Capability) error {
	if !s.resolver.Capabilities().Can(u, c) {
		return ErrNotAccessible
	}
	return nil
}

func mapHierarchyError(err error) error {
	switch {
	case errors.Is(err, hierarchy.ErrDuplicateName):
		return errDuplicateName
	case errors.Is(err, hierarchy.ErrProjectNotFound):
		return errProjectNotFound
	case errors.Is(err, hierarchy.ErrModuleNotFound):
		return errModuleNotFound
	case errors.Is(err, hierarchy.ErrSubmoduleNotFound):
		return errSubmoduleNotFound
	case errors.Is(err, hierarchy.ErrTestCaseNotFound):
		return errTestCaseNotFound
	}
	return err
}

// ListProjects returns the projects the caller can see. Reads run in a tenant unit of
// work like writes do, so row level security is bound to the caller's organization.
func (s *CatalogService) ListProjects(ctx context.Context) ([]hierarchy.Project, error) {
	u, ctx, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	return repo.InTenantTxResult(ctx, s.tx, func(txCtx context.Context) ([]hierarchy.Project, error) {
		return s.resolver.VisibleProjects(txCtx, u)
	})
}

func (s *CatalogService) GetProject(ctx context.Context, id uuid.UUID) (ProjectDetail, error) {
	u, ctx, err := principal(ctx)
	if err != nil {
		return ProjectDetail{}, err
	}
	return repo.InTenantTxResult(ctx, s.tx, func(txCtx context.Context) (ProjectDetail, error) {
		p, err := s.resolver.GetProject(txCtx, u, id)
		if err != nil {
			return ProjectDetail{}, err
		}
		mods, err := s.resolver.VisibleProjectModules(txCtx, u, id)
		if err != nil {
			return ProjectDetail{}, err
		}
		return ProjectDetail{Project: p, Modules: mods}, nil
	})
}

func (s *CatalogService) CreateProject(ctx context.Context, dto *hierarchy.ProjectCreateDTO) (hierarchy.Project, error) {
	u, ctx, err := principal(ctx)
	if err != nil {
		return hierarchy.Project{}, err
	}
	if err := s.require(u, permissions.ManageHierarchy); err != nil {
		return hierarchy.Project{}, err
	}
	if fields, ok := dto.Ok(); !ok {
		return hierarchy.Project{}, serrors.ValidationFields("INVALID_PROJECT", fields)
	}
	p, err := repo.InTenantTxResult(ctx, s.tx, func(txCtx context.Context) (hierarchy.Project, error) {
		return s.hierarchy.CreateProject(txCtx, dto.ToEntity(u.OrganizationID()))
	})
	if err != nil {
		return hierarchy.Project{}, mapHierarchyError(err)
	}
	composables.UseLogger(ctx).WithField("project_id", p.ID).Info("project created")
	return p, nil
}

func (s *CatalogService) ListModules(ctx context.Context) ([]hierarchy.Module, error) {
	u, ctx, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	return repo.InTenantTxResult(ctx, s.tx, func(txCtx context.Context) ([]hierarchy.Module, error) {
		return s.resolver.VisibleModules(txCtx, u)
	})
}

func (s *CatalogService) GetModule(ctx context.Context, id uuid.UUID) (ModuleDetail, error) {
	u, ctx, err := principal(ctx)
	if err != nil {
		return ModuleDetail{}, err
	}
	return repo.InTenantTxResult(ctx, s.tx, func(txCtx context.Context) (ModuleDetail, error) {
		m, err := s.resolver.GetModule(txCtx, u, id)
		if err != nil {
			return ModuleDetail{}, err
		}
		subs, err := s.hierarchy.ListSubmodules(txCtx, id)
		if err != nil {
			return ModuleDetail{}, err
		}
		cases, err := s.hierarchy.ListTestCasesByModule(txCtx, id)
		if err != nil {
			return ModuleDetail{}, err
		}
		return ModuleDetail{Module: m, Submodules: subs, TestCases: cases}, nil
	})
}

func (s *CatalogService) CreateModule(ctx context.Context, dto *hierarchy.ModuleCreateDTO) (hierarchy.Module, error) {
	u, ctx, err := principal(ctx)
	if err != nil {
		return hierarchy.Module{}, err
	}
	if err := s.require(u, permissions.ManageHierarchy); err != nil {
		return hierarchy.Module{}, err
	}
	if fields, ok := dto.Ok(); !ok {
		return hierarchy.Module{}, serrors.ValidationFields("INVALID_MODULE", fields)
	}
	m, err := repo.InTenantTxResult(ctx, s.tx, func(txCtx context.Context) (hierarchy.Module, error) {
		project, err := s.hierarchy.GetProject(txCtx, uuid.MustParse(dto.ProjectID))
		if err != nil {
			return hierarchy.Module{}, err
		}
		return s.hierarchy.CreateModule(txCtx, dto.ToEntity(project))
	})
	if err != nil {
		return hierarchy.Module{}, mapHierarchyError(err)
	}
	return m, nil
}

func (s *CatalogService) CreateSubmodule(ctx context.Context, dto *hierarchy.SubmoduleCreateDTO) (hierarchy.Submodule, error) {
	u, ctx, err := principal(ctx)
	if err != nil {
		return hierarchy.Submodule{}, err
	}
	if err := s.require(u, permissions.AuthorTestCases); err != nil {
		return hierarchy.Submodule{}, err
	}
	if fields, ok := dto.Ok(); !ok {
		return hierarchy.Submodule{}, serrors.ValidationFields("INVALID_SUBMODULE", fields)
	}
	sub, err := repo.InTenantTxResult(ctx, s.tx, func(txCtx context.Context) (hierarchy.Submodule, error) {
		m, err := s.resolver.GetModule(txCtx, u, uuid.MustParse(dto.ModuleID))
		if err != nil {
			return hierarchy.Submodule{}, err
		}
		return s.hierarchy.CreateSubmodule(txCtx, dto.ToEntity(m))
	})
	if err != nil {
		return hierarchy.Submodule{}, mapHierarchyError(err)
	}
	return sub, nil
}

func (s *CatalogService) GetTestCase(ctx context.Context, id uuid.UUID) (hierarchy.TestCase, error) {
	u, ctx, err := principal(ctx)
	if err != nil {
		return hierarchy.TestCase{}, err
	}
	return repo.InTenantTxResult(ctx, s.tx, func(txCtx context.Context) (hierarchy.TestCase, error) {
		return s.resolver.GetTestCase(txCtx, u, id)
	})
}

// CreateTestCase stores the case and provisions executions for every assignee of
// its module in the same unit of work.
func (s *CatalogService) CreateTestCase(ctx context.Context, dto *hierarchy.TestCaseCreateDTO) (hierarchy.TestCase, error) {
	u, ctx, err := principal(ctx)
	if err != nil {
		return hierarchy.TestCase{}, err
	}
	if err := s.require(u, permissions.AuthorTestCases); err != nil {
		return hierarchy.TestCase{}, err
	}
	if fields, ok := dto.Ok(); !ok {
		return hierarchy.TestCase{}, serrors.ValidationFields("INVALID_TEST_CASE", fields)
	}

	tc, err := repo.InTenantTxResult(ctx, s.tx, func(txCtx context.Context) (hierarchy.TestCase, error) {
		sub, m, err := s.resolver.GetSubmodule(txCtx, u, uuid.MustParse(dto.SubmoduleID))
		if err != nil {
			return hierarchy.TestCase{}, err
		}
		return s.addTestCase(txCtx, dto.ToEntity(sub, m))
	})
	if err != nil {
		return hierarchy.TestCase{}, mapHierarchyError(err)
	}
	s.publisher.Publish(hierarchy.NewTestCaseCreatedEvent(u.ID(), tc))
	return tc, nil
}

// addTestCase must run inside a unit of work.
func (s *CatalogService) addTestCase(txCtx context.Context, tc hierarchy.TestCase) (hierarchy.TestCase, error) {
	if err := s.hierarchy.LockModule(txCtx, tc.ModuleID); err != nil {
		return hierarchy.TestCase{}, err
	}
	created, err := s.hierarchy.CreateTestCase(txCtx, tc)
	if err != nil {
		return hierarchy.TestCase{}, err
	}
	if err := s.reconciler.OnTestCaseCreated(txCtx, created); err != nil {
		return hierarchy.TestCase{}, err
	}
	return created, nil
}

// DeleteTestCase removes the case together with every execution derived from it.
func (s *CatalogService) DeleteTestCase(ctx context.Context, id uuid.UUID) error {
	u, ctx, err := principal(ctx)
	if err != nil {
		return err
	}
	if err := s.require(u, permissions.AuthorTestCases); err != nil {
		return err
	}
	var deleted hierarchy.TestCase
	err = s.tx.InTenantTx(ctx, func(txCtx context.Context) error {
		tc, err := s.resolver.GetTestCase(txCtx, u, id)
		if err != nil {
			return err
		}
		if err := s.hierarchy.LockModule(txCtx, tc.ModuleID); err != nil {
			return err
		}
		if err := s.reconciler.OnTestCaseDeleted(txCtx, tc); err != nil {
			return err
		}
		deleted = tc
		return s.hierarchy.DeleteTestCase(txCtx, id)
	})
	if err != nil {
		return mapHierarchyError(err)
	}
	s.publisher.Publish(hierarchy.NewTestCaseDeletedEvent(u.ID(), deleted))
	return nil
}
