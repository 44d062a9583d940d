package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/testbench/modules/catalog/domain/assignment"
	"github.com/iota-uz/testbench/modules/catalog/domain/hierarchy"
	"github.com/iota-uz/testbench/modules/core/domain/aggregates/user"
	"github.com/iota-uz/testbench/modules/core/permissions"
	"github.com/iota-uz/testbench/pkg/composables"
	"github.com/iota-uz/testbench/pkg/eventbus"
	"github.com/iota-uz/testbench/pkg/repo"
	"github.com/iota-uz/testbench/pkg/serrors"
)

type Assignments struct {
	UserID   uuid.UUID                      `json:"user_id"`
	Projects []assignment.ProjectAssignment `json:"projects"`
	Modules  []assignment.ModuleAssignment  `json:"modules"`
}

type AssignmentService struct {
	assignments assignment.Repository
	hierarchy   hierarchy.Repository
	users       user.Repository
	resolver    *AccessResolver
	reconciler  ExecutionReconciler
	tx          repo.Transactor
	publisher   eventbus.EventBus
}

func NewAssignmentService(
	assignments assignment.Repository,
	h hierarchy.Repository,
	users user.Repository,
	resolver *AccessResolver,
	reconciler ExecutionReconciler,
	tx repo.Transactor,
	publisher eventbus.EventBus,
) *AssignmentService {
	return &AssignmentService{
		assignments: assignments,
		hierarchy:   h,
		users:       users,
		resolver:    resolver,
		reconciler:  reconciler,
		tx:          tx,
		publisher:   publisher,
	}
}

func (s *AssignmentService) manager(ctx context.Context) (user.User, context.Context, error) {
	u, ctx, err := principal(ctx)
	if err != nil {
		return user.User{}, ctx, err
	}
	if !s.resolver.Capabilities().Can(u, permissions.ManageAssignments) {
		return user.User{}, ctx, ErrNotAccessible
	}
	return u, ctx, nil
}

// member loads a user of the ctx organization; anyone else is not found.
func (s *AssignmentService) member(ctx context.Context, id uuid.UUID) (user.User, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return user.User{}, err
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return user.User{}, errUserNotFound
		}
		return user.User{}, err
	}
	if u.OrganizationID() != tenantID {
		return user.User{}, errUserNotFound
	}
	return u, nil
}

func (s *AssignmentService) module(ctx context.Context, id uuid.UUID) (hierarchy.Module, error) {
	m, err := s.hierarchy.GetModule(ctx, id)
	if errors.Is(err, hierarchy.ErrModuleNotFound) {
		return hierarchy.Module{}, errModuleNotFound
	}
	return m, err
}

// lockedModule loads the module and holds its row lock for the rest of the unit of work.
func (s *AssignmentService) lockedModule(txCtx context.Context, id uuid.UUID) (hierarchy.Module, error) {
	if err := s.hierarchy.LockModule(txCtx, id); err != nil {
		if errors.Is(err, hierarchy.ErrModuleNotFound) {
			return hierarchy.Module{}, errModuleNotFound
		}
		return hierarchy.Module{}, err
	}
	return s.module(txCtx, id)
}

// AssignModule adds the assignment and provisions the user's executions for every
// case of the module, restoring retired ones.
func (s *AssignmentService) AssignModule(ctx context.Context, dto *assignment.ModuleAssignDTO) (assignment.ModuleAssignment, error) {
	actor, ctx, err := s.manager(ctx)
	if err != nil {
		return assignment.ModuleAssignment{}, err
	}
	if fields, ok := dto.Ok(); !ok {
		return assignment.ModuleAssignment{}, serrors.ValidationFields("INVALID_ASSIGNMENT", fields)
	}
	userID, moduleID := dto.IDs()

	created, err := repo.InTenantTxResult(ctx, s.tx, func(txCtx context.Context) (assignment.ModuleAssignment, error) {
		target, err := s.member(txCtx, userID)
		if err != nil {
			return assignment.ModuleAssignment{}, err
		}
		m, err := s.lockedModule(txCtx, moduleID)
		if err != nil {
			return assignment.ModuleAssignment{}, err
		}
		a, err := s.assignments.AssignModule(txCtx, assignment.ModuleAssignment{
			UserID:    target.ID(),
			ModuleID:  m.ID,
			ProjectID: m.ProjectID,
		})
		if err != nil {
			if errors.Is(err, assignment.ErrAlreadyAssigned) {
				return assignment.ModuleAssignment{}, errAlreadyAssigned
			}
			return assignment.ModuleAssignment{}, err
		}
		if err := s.reconciler.OnModuleAssigned(txCtx, target, m); err != nil {
			return assignment.ModuleAssignment{}, err
		}
		return a, nil
	})
	if err != nil {
		return assignment.ModuleAssignment{}, err
	}

	s.publisher.Publish(&assignment.ModuleAssignmentEvent{
		OrganizationID: actor.OrganizationID(),
		ActorID:        actor.ID(),
		UserID:         userID,
		ModuleID:       moduleID,
		Assigned:       true,
		OccurredAt:     time.Now(),
	})
	return created, nil
}

// UnassignModule removes the assignment and retires the user's executions under the module.
func (s *AssignmentService) UnassignModule(ctx context.Context, userID, moduleID uuid.UUID) error {
	actor, ctx, err := s.manager(ctx)
	if err != nil {
		return err
	}
	err = s.tx.InTenantTx(ctx, func(txCtx context.Context) error {
		target, err := s.member(txCtx, userID)
		if err != nil {
			return err
		}
		m, err := s.lockedModule(txCtx, moduleID)
		if err != nil {
			return err
		}
		if err := s.assignments.UnassignModule(txCtx, userID, moduleID); err != nil {
			if errors.Is(err, assignment.ErrNotAssigned) {
				return errNotAssigned
			}
			return err
		}
		return s.reconciler.OnModuleUnassigned(txCtx, target, m)
	})
	if err != nil {
		return err
	}

	s.publisher.Publish(&assignment.ModuleAssignmentEvent{
		OrganizationID: actor.OrganizationID(),
		ActorID:        actor.ID(),
		UserID:         userID,
		ModuleID:       moduleID,
		Assigned:       false,
		OccurredAt:     time.Now(),
	})
	return nil
}

// AssignProject grants project visibility only; it provisions nothing.
func (s *AssignmentService) AssignProject(ctx context.Context, dto *assignment.ProjectAssignDTO) (assignment.ProjectAssignment, error) {
	actor, ctx, err := s.manager(ctx)
	if err != nil {
		return assignment.ProjectAssignment{}, err
	}
	if fields, ok := dto.Ok(); !ok {
		return assignment.ProjectAssignment{}, serrors.ValidationFields("INVALID_ASSIGNMENT", fields)
	}
	userID, projectID := dto.IDs()

	created, err := repo.InTenantTxResult(ctx, s.tx, func(txCtx context.Context) (assignment.ProjectAssignment, error) {
		if _, err := s.member(txCtx, userID); err != nil {
			return assignment.ProjectAssignment{}, err
		}
		if _, err := s.hierarchy.GetProject(txCtx, projectID); err != nil {
			if errors.Is(err, hierarchy.ErrProjectNotFound) {
				return assignment.ProjectAssignment{}, errProjectNotFound
			}
			return assignment.ProjectAssignment{}, err
		}
		a, err := s.assignments.AssignProject(txCtx, assignment.ProjectAssignment{UserID: userID, ProjectID: projectID})
		if errors.Is(err, assignment.ErrAlreadyAssigned) {
			return assignment.ProjectAssignment{}, errAlreadyAssigned
		}
		return a, err
	})
	if err != nil {
		return assignment.ProjectAssignment{}, err
	}

	s.publisher.Publish(&assignment.ProjectAssignmentEvent{
		OrganizationID: actor.OrganizationID(),
		ActorID:        actor.ID(),
		UserID:         userID,
		ProjectID:      projectID,
		Assigned:       true,
		OccurredAt:     time.Now(),
	})
	return created, nil
}

func (s *AssignmentService) UnassignProject(ctx context.Context, userID, projectID uuid.UUID) error {
	actor, ctx, err := s.manager(ctx)
	if err != nil {
		return err
	}
	err = s.tx.InTenantTx(ctx, func(txCtx context.Context) error {
		if _, err := s.member(txCtx, userID); err != nil {
			return err
		}
		err := s.assignments.UnassignProject(txCtx, userID, projectID)
		if errors.Is(err, assignment.ErrNotAssigned) {
			return errNotAssigned
		}
		return err
	})
	if err != nil {
		return err
	}

	s.publisher.Publish(&assignment.ProjectAssignmentEvent{
		OrganizationID: actor.OrganizationID(),
		ActorID:        actor.ID(),
		UserID:         userID,
		ProjectID:      projectID,
		Assigned:       false,
		OccurredAt:     time.Now(),
	})
	return nil
}

// ListAssignments returns userID's assignments. Users may read their own; reading
// anyone else's needs manage_assignments.
func (s *AssignmentService) ListAssignments(ctx context.Context, userID uuid.UUID) (Assignments, error) {
	u, ctx, err := principal(ctx)
	if err != nil {
		return Assignments{}, err
	}
	if userID == uuid.Nil {
		userID = u.ID()
	}
	if userID != u.ID() && !s.resolver.Capabilities().Can(u, permissions.ManageAssignments) {
		return Assignments{}, ErrNotAccessible
	}
	return repo.InTenantTxResult(ctx, s.tx, func(txCtx context.Context) (Assignments, error) {
		if _, err := s.member(txCtx, userID); err != nil {
			return Assignments{}, err
		}
		projects, err := s.assignments.ListProjectAssignments(txCtx, userID)
		if err != nil {
			return Assignments{}, err
		}
		modules, err := s.assignments.ListModuleAssignments(txCtx, userID)
		if err != nil {
			return Assignments{}, err
		}
		return Assignments{UserID: userID, Projects: projects, Modules: modules}, nil
	})
}
