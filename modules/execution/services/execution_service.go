package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	catalogservices "github.com/iota-uz/testbench/modules/catalog/services"
	"github.com/iota-uz/testbench/modules/core/domain/aggregates/user"
	"github.com/iota-uz/testbench/modules/core/permissions"
	"github.com/iota-uz/testbench/modules/execution/domain/execution"
	"github.com/iota-uz/testbench/pkg/composables"
	"github.com/iota-uz/testbench/pkg/eventbus"
	"github.com/iota-uz/testbench/pkg/repo"
	"github.com/iota-uz/testbench/pkg/serrors"
)

type ExecutionService struct {
	executions execution.Repository
	users      user.Repository
	resolver   *catalogservices.AccessResolver
	tx         repo.Transactor
	publisher  eventbus.EventBus
}

func NewExecutionService(
	executions execution.Repository,
	users user.Repository,
	resolver *catalogservices.AccessResolver,
	tx repo.Transactor,
	publisher eventbus.EventBus,
) *ExecutionService {
	return &ExecutionService{
		executions: executions,
		users:      users,
		resolver:   resolver,
		tx:         tx,
		publisher:  publisher,
	}
}

// workItems lists the non-retired executions of target that lie in modules target
// can currently see.
func (s *ExecutionService) workItems(ctx context.Context, target user.User) ([]execution.WorkItem, error) {
	items, err := s.executions.ListWorkItems(ctx, target.ID())
	if err != nil {
		return nil, err
	}
	v, err := s.resolver.Visibility(ctx, target)
	if err != nil {
		return nil, err
	}
	out := items[:0]
	for _, it := range items {
		if v.ModuleID(it.ModuleID) {
			out = append(out, it)
		}
	}
	return out, nil
}

// target resolves whose executions a listing shows: the caller by default, anyone in
// the caller's organization for users that see the whole organization.
func (s *ExecutionService) target(ctx context.Context, caller user.User, userID uuid.UUID) (user.User, error) {
	if userID == uuid.Nil || userID == caller.ID() {
		return caller, nil
	}
	if !s.resolver.Capabilities().Can(caller, permissions.SeeAllInOrg) {
		return user.User{}, catalogservices.ErrNotAccessible
	}
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, user.ErrUserNotFound) || (err == nil && u.OrganizationID() != caller.OrganizationID()) {
		return user.User{}, errUserNotFound
	}
	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

// List returns the visible executions of userID, or of the caller when userID is nil.
func (s *ExecutionService) List(ctx context.Context, userID uuid.UUID) ([]execution.WorkItem, error) {
	caller, ctx, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	return repo.InTenantTxResult(ctx, s.tx, func(txCtx context.Context) ([]execution.WorkItem, error) {
		target, err := s.target(txCtx, caller, userID)
		if err != nil {
			return nil, err
		}
		return s.workItems(txCtx, target)
	})
}

// load returns the execution if caller may see it. A retired execution is no longer
// accessible to its owner.
func (s *ExecutionService) load(ctx context.Context, caller user.User, id uuid.UUID) (execution.Execution, error) {
	e, err := s.executions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, execution.ErrExecutionNotFound) {
			return execution.Execution{}, errExecutionNotFound
		}
		return execution.Execution{}, err
	}
	if !s.resolver.CanAccessExecution(caller, e) {
		return execution.Execution{}, catalogservices.ErrNotAccessible
	}
	if e.Retired && !s.resolver.Capabilities().Can(caller, permissions.SeeAllInOrg) {
		return execution.Execution{}, catalogservices.ErrNotAccessible
	}
	return e, nil
}

func (s *ExecutionService) Get(ctx context.Context, id uuid.UUID) (execution.Execution, error) {
	caller, ctx, err := principal(ctx)
	if err != nil {
		return execution.Execution{}, err
	}
	return repo.InTenantTxResult(ctx, s.tx, func(txCtx context.Context) (execution.Execution, error) {
		return s.load(txCtx, caller, id)
	})
}

func (s *ExecutionService) owned(ctx context.Context, caller user.User, id uuid.UUID) (execution.Execution, error) {
	e, err := s.load(ctx, caller, id)
	if err != nil {
		return execution.Execution{}, err
	}
	if e.UserID != caller.ID() {
		return execution.Execution{}, errNotExecutionOwner
	}
	if e.Retired {
		return execution.Execution{}, catalogservices.ErrNotAccessible
	}
	return e, nil
}

// UpdateStep records the outcome of one step. The overall result never changes here.
func (s *ExecutionService) UpdateStep(ctx context.Context, id, stepID uuid.UUID, dto *execution.StepUpdateDTO) (execution.Execution, error) {
	caller, ctx, err := principal(ctx)
	if err != nil {
		return execution.Execution{}, err
	}
	if fields, ok := dto.Ok(); !ok {
		return execution.Execution{}, serrors.ValidationFields(codeInvalidStepUpdate, fields)
	}
	result, err := execution.ParseStepResult(dto.Result)
	if err != nil {
		return execution.Execution{}, serrors.ValidationFields(codeInvalidStepUpdate, map[string]string{"result": err.Error()})
	}

	return repo.InTenantTxResult(ctx, s.tx, func(txCtx context.Context) (execution.Execution, error) {
		e, err := s.owned(txCtx, caller, id)
		if err != nil {
			return execution.Execution{}, err
		}
		updated, err := e.WithStepResult(stepID, result, dto.ActualResult, time.Now())
		if errors.Is(err, execution.ErrStepNotFound) {
			return execution.Execution{}, errStepNotFound
		}
		if err != nil {
			return execution.Execution{}, err
		}
		return s.executions.Update(txCtx, updated)
	})
}

// Complete sets the overall result. Only PASSED, FAILED, BLOCKED and PARTIALLY_PASSED
// are accepted; anything else fails validation before the execution is loaded.
func (s *ExecutionService) Complete(ctx context.Context, id uuid.UUID, dto *execution.CompleteDTO) (execution.Execution, error) {
	caller, ctx, err := principal(ctx)
	if err != nil {
		return execution.Execution{}, err
	}
	if fields, ok := dto.Ok(); !ok {
		return execution.Execution{}, serrors.ValidationFields(codeInvalidCompletion, fields)
	}
	result, err := execution.ParseSubmittedResult(dto.Result)
	if err != nil {
		return execution.Execution{}, serrors.ValidationFields(codeInvalidCompletion, map[string]string{"result": err.Error()})
	}

	var previous execution.Result
	completed, err := repo.InTenantTxResult(ctx, s.tx, func(txCtx context.Context) (execution.Execution, error) {
		e, err := s.owned(txCtx, caller, id)
		if err != nil {
			return execution.Execution{}, err
		}
		previous = e.Overall
		done, err := e.Complete(result, dto.Notes, time.Now())
		if err != nil {
			return execution.Execution{}, err
		}
		return s.executions.Update(txCtx, done)
	})
	if err != nil {
		return execution.Execution{}, err
	}

	executionCompletions.WithLabelValues(string(result)).Inc()
	composables.UseLogger(ctx).WithFields(logrus.Fields{
		"execution_id": completed.ID,
		"result":       result,
		"previous":     previous,
	}).Info("execution completed")
	s.publisher.Publish(execution.NewCompletedEvent(caller.ID(), completed, previous))
	return completed, nil
}
