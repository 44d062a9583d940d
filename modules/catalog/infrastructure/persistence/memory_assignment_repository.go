package persistence

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/testbench/modules/catalog/domain/assignment"
	"github.com/iota-uz/testbench/pkg/composables"
	"github.com/iota-uz/testbench/pkg/memdb"
)

type pairKey struct {
	user   uuid.UUID
	target uuid.UUID
}

type MemoryAssignmentRepository struct {
	projects *memdb.Table[pairKey, assignment.ProjectAssignment]
	modules  *memdb.Table[pairKey, assignment.ModuleAssignment]
}

func NewMemoryAssignmentRepository(db *memdb.DB) *MemoryAssignmentRepository {
	return &MemoryAssignmentRepository{
		projects: memdb.NewTable[pairKey, assignment.ProjectAssignment](db),
		modules:  memdb.NewTable[pairKey, assignment.ModuleAssignment](db),
	}
}

func (r *MemoryAssignmentRepository) AssignProject(ctx context.Context, a assignment.ProjectAssignment) (assignment.ProjectAssignment, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return assignment.ProjectAssignment{}, err
	}
	a.OrganizationID = tenantID
	a.CreatedAt = time.Now()
	if err := r.projects.Insert(pairKey{a.UserID, a.ProjectID}, a); err != nil {
		if errors.Is(err, memdb.ErrDuplicateKey) {
			return assignment.ProjectAssignment{}, assignment.ErrAlreadyAssigned
		}
		return assignment.ProjectAssignment{}, err
	}
	return a, nil
}

func (r *MemoryAssignmentRepository) UnassignProject(ctx context.Context, userID, projectID uuid.UUID) error {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}
	key := pairKey{userID, projectID}
	if a, ok := r.projects.Get(key); !ok || a.OrganizationID != tenantID {
		return assignment.ErrNotAssigned
	}
	r.projects.Delete(key)
	return nil
}

func (r *MemoryAssignmentRepository) ListProjectAssignments(ctx context.Context, userID uuid.UUID) ([]assignment.ProjectAssignment, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	out := r.projects.Select(func(a assignment.ProjectAssignment) bool {
		return a.OrganizationID == tenantID && a.UserID == userID
	})
	slices.SortFunc(out, func(a, b assignment.ProjectAssignment) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (r *MemoryAssignmentRepository) AssignModule(ctx context.Context, a assignment.ModuleAssignment) (assignment.ModuleAssignment, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return assignment.ModuleAssignment{}, err
	}
	a.OrganizationID = tenantID
	a.CreatedAt = time.Now()
	if err := r.modules.Insert(pairKey{a.UserID, a.ModuleID}, a); err != nil {
		if errors.Is(err, memdb.ErrDuplicateKey) {
			return assignment.ModuleAssignment{}, assignment.ErrAlreadyAssigned
		}
		return assignment.ModuleAssignment{}, err
	}
	return a, nil
}

func (r *MemoryAssignmentRepository) UnassignModule(ctx context.Context, userID, moduleID uuid.UUID) error {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}
	key := pairKey{userID, moduleID}
	if a, ok := r.modules.Get(key); !ok || a.OrganizationID != tenantID {
		return assignment.ErrNotAssigned
	}
	r.modules.Delete(key)
	return nil
}

func (r *MemoryAssignmentRepository) ListModuleAssignments(ctx context.Context, userID uuid.UUID) ([]assignment.ModuleAssignment, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	out := r.modules.Select(func(a assignment.ModuleAssignment) bool {
		return a.OrganizationID == tenantID && a.UserID == userID
	})
	slices.SortFunc(out, func(a, b assignment.ModuleAssignment) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (r *MemoryAssignmentRepository) ListModuleAssignees(ctx context.Context, moduleID uuid.UUID) ([]uuid.UUID, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	rows := r.modules.Select(func(a assignment.ModuleAssignment) bool {
		return a.OrganizationID == tenantID && a.ModuleID == moduleID
	})
	ids := make([]uuid.UUID, len(rows))
	for i, a := range rows {
		ids[i] = a.UserID
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return cmp.Compare(a.String(), b.String()) })
	return ids, nil
}

func (r *MemoryAssignmentRepository) IsModuleAssigned(ctx context.Context, userID, moduleID uuid.UUID) (bool, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return false, err
	}
	a, ok := r.modules.Get(pairKey{userID, moduleID})
	return ok && a.OrganizationID == tenantID, nil
}
