package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/testbench/modules/catalog/domain/hierarchy"
	"github.com/iota-uz/testbench/modules/execution/domain/execution"
	"github.com/iota-uz/testbench/pkg/composables"
	"github.com/iota-uz/testbench/pkg/memdb"
)

type pairKey struct {
	userID uuid.UUID
	caseID uuid.UUID
}

// MemoryExecutionRepository keeps the (user, test case) pair unique through an index
// table, the same way the unique constraint does in Postgres.
type MemoryExecutionRepository struct {
	executions *memdb.Table[uuid.UUID, execution.Execution]
	pairs      *memdb.Table[pairKey, uuid.UUID]
	hierarchy  hierarchy.Repository
}

func NewMemoryExecutionRepository(db *memdb.DB, h hierarchy.Repository) *MemoryExecutionRepository {
	return &MemoryExecutionRepository{
		executions: memdb.NewTable[uuid.UUID, execution.Execution](db),
		pairs:      memdb.NewTable[pairKey, uuid.UUID](db),
		hierarchy:  h,
	}
}

func (r *MemoryExecutionRepository) Create(ctx context.Context, e execution.Execution) (execution.Execution, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return execution.Execution{}, err
	}
	e = e.Clone()
	e.ID = uuid.New()
	e.OrganizationID = tenantID
	if err := r.pairs.Insert(pairKey{userID: e.UserID, caseID: e.TestCaseID}, e.ID); err != nil {
		if errors.Is(err, memdb.ErrDuplicateKey) {
			return execution.Execution{}, execution.ErrExecutionExists
		}
		return execution.Execution{}, err
	}
	now := time.Now()
	e.CreatedAt = now
	e.UpdatedAt = now
	for i := range e.Steps {
		e.Steps[i].UpdatedAt = now
	}
	r.executions.Put(e.ID, e)
	return e.Clone(), nil
}

func (r *MemoryExecutionRepository) GetByID(ctx context.Context, id uuid.UUID) (execution.Execution, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return execution.Execution{}, err
	}
	e, ok := r.executions.Get(id)
	if !ok || e.OrganizationID != tenantID {
		return execution.Execution{}, execution.ErrExecutionNotFound
	}
	return e.Clone(), nil
}

func (r *MemoryExecutionRepository) GetByUserAndCase(ctx context.Context, userID, caseID uuid.UUID) (execution.Execution, error) {
	id, ok := r.pairs.Get(pairKey{userID: userID, caseID: caseID})
	if !ok {
		return execution.Execution{}, execution.ErrExecutionNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *MemoryExecutionRepository) Update(ctx context.Context, e execution.Execution) (execution.Execution, error) {
	current, err := r.GetByID(ctx, e.ID)
	if err != nil {
		return execution.Execution{}, err
	}
	e = e.Clone()
	e.OrganizationID = current.OrganizationID
	e.UserID = current.UserID
	e.TestCaseID = current.TestCaseID
	e.CreatedAt = current.CreatedAt
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now()
	}
	r.executions.Put(e.ID, e)
	return e.Clone(), nil
}

func (r *MemoryExecutionRepository) ListByUserAndModule(ctx context.Context, userID, moduleID uuid.UUID) ([]execution.Execution, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	out := r.executions.Select(func(e execution.Execution) bool {
		return e.OrganizationID == tenantID && e.UserID == userID && e.ModuleID == moduleID
	})
	for i := range out {
		out[i] = out[i].Clone()
	}
	return out, nil
}

func (r *MemoryExecutionRepository) DeleteByTestCase(ctx context.Context, caseID uuid.UUID) (int, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return 0, err
	}
	r.pairs.DeleteWhere(func(id uuid.UUID) bool {
		e, ok := r.executions.Get(id)
		return ok && e.OrganizationID == tenantID && e.TestCaseID == caseID
	})
	return r.executions.DeleteWhere(func(e execution.Execution) bool {
		return e.OrganizationID == tenantID && e.TestCaseID == caseID
	}), nil
}

func (r *MemoryExecutionRepository) ListWorkItems(ctx context.Context, userID uuid.UUID) ([]execution.WorkItem, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	rows := r.executions.Select(func(e execution.Execution) bool {
		return e.OrganizationID == tenantID && e.UserID == userID && !e.Retired
	})

	var (
		projects   = map[uuid.UUID]hierarchy.Project{}
		modules    = map[uuid.UUID]hierarchy.Module{}
		submodules = map[uuid.UUID]hierarchy.Submodule{}
	)
	items := make([]execution.WorkItem, 0, len(rows))
	for _, e := range rows {
		tc, err := r.hierarchy.GetTestCase(ctx, e.TestCaseID)
		if errors.Is(err, hierarchy.ErrTestCaseNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		m, ok := modules[e.ModuleID]
		if !ok {
			if m, err = r.hierarchy.GetModule(ctx, e.ModuleID); err != nil {
				return nil, err
			}
			modules[m.ID] = m
		}
		s, ok := submodules[e.SubmoduleID]
		if !ok {
			if s, err = r.hierarchy.GetSubmodule(ctx, e.SubmoduleID); err != nil {
				return nil, err
			}
			submodules[s.ID] = s
		}
		p, ok := projects[e.ProjectID]
		if !ok {
			if p, err = r.hierarchy.GetProject(ctx, e.ProjectID); err != nil {
				return nil, err
			}
			projects[p.ID] = p
		}
		items = append(items, execution.WorkItem{
			Execution:     e.Clone(),
			ProjectName:   p.Name,
			ModuleName:    m.Name,
			SubmoduleName: s.Name,
			TestCaseTitle: tc.Title,
			CreationOrder: tc.CreationOrder,
		})
	}
	execution.SortWorkItems(items)
	return items, nil
}
