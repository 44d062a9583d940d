package services

import (
	"context"

	"github.com/google/uuid"

	catalogservices "github.com/iota-uz/testbench/modules/catalog/services"
	"github.com/iota-uz/testbench/modules/core/domain/aggregates/user"
	"github.com/iota-uz/testbench/modules/execution/domain/execution"
	"github.com/iota-uz/testbench/pkg/repo"
)

type ExecutionRef struct {
	ID            uuid.UUID        `json:"id"`
	TestCaseID    uuid.UUID        `json:"test_case_id"`
	TestCaseTitle string           `json:"test_case_title"`
	ProjectName   string           `json:"project_name"`
	ModuleID      uuid.UUID        `json:"module_id"`
	ModuleName    string           `json:"module_name"`
	SubmoduleName string           `json:"submodule_name"`
	Overall       execution.Result `json:"overall_result"`
	Position      int              `json:"position"`
	Total         int              `json:"total"`
}

// NavigationResult is one workbench move. Completed is set when there is nothing
// after the current execution and carries a summary over every visible execution;
// AtBeginning is the same for moving backwards.
type NavigationResult struct {
	Execution        *ExecutionRef      `json:"execution"`
	ModuleTransition bool               `json:"module_transition"`
	Completed        bool               `json:"completed"`
	AtBeginning      bool               `json:"at_beginning"`
	Summary          *execution.Summary `json:"summary,omitempty"`
}

// Navigator walks the caller's executions in workbench order. The order and the
// summary are recomputed from the store on every call.
type Navigator struct {
	executions *ExecutionService
}

func NewNavigator(executions *ExecutionService) *Navigator {
	return &Navigator{executions: executions}
}

func ref(items []execution.WorkItem, i int) *ExecutionRef {
	it := items[i]
	return &ExecutionRef{
		ID:            it.ID,
		TestCaseID:    it.TestCaseID,
		TestCaseTitle: it.TestCaseTitle,
		ProjectName:   it.ProjectName,
		ModuleID:      it.ModuleID,
		ModuleName:    it.ModuleName,
		SubmoduleName: it.SubmoduleName,
		Overall:       it.Overall,
		Position:      i + 1,
		Total:         len(items),
	}
}

// position finds current in items. An id that is not in the walk is reported the
// way Get would report it.
func (n *Navigator) position(ctx context.Context, caller user.User, items []execution.WorkItem, current uuid.UUID) (int, error) {
	for i, it := range items {
		if it.ID == current {
			return i, nil
		}
	}
	e, err := n.executions.load(ctx, caller, current)
	if err != nil {
		return 0, err
	}
	if e.UserID != caller.ID() || e.Retired {
		return 0, catalogservices.ErrNotAccessible
	}
	return 0, errExecutionNotFound
}

// walk runs fn over the caller's ordered work items inside one tenant unit of work.
func (n *Navigator) walk(ctx context.Context, fn func(ctx context.Context, caller user.User, items []execution.WorkItem) (NavigationResult, error)) (NavigationResult, error) {
	caller, ctx, err := principal(ctx)
	if err != nil {
		return NavigationResult{}, err
	}
	return repo.InTenantTxResult(ctx, n.executions.tx, func(txCtx context.Context) (NavigationResult, error) {
		items, err := n.executions.workItems(txCtx, caller)
		if err != nil {
			return NavigationResult{}, err
		}
		return fn(txCtx, caller, items)
	})
}

// Next moves forward from current, or to the first execution when current is uuid.Nil.
func (n *Navigator) Next(ctx context.Context, current uuid.UUID) (NavigationResult, error) {
	return n.walk(ctx, func(ctx context.Context, caller user.User, items []execution.WorkItem) (NavigationResult, error) {
		next := 0
		if current != uuid.Nil {
			i, err := n.position(ctx, caller, items, current)
			if err != nil {
				return NavigationResult{}, err
			}
			next = i + 1
		}
		if next >= len(items) {
			summary := execution.Summarize(items)
			return NavigationResult{Completed: true, Summary: &summary}, nil
		}
		return NavigationResult{
			Execution:        ref(items, next),
			ModuleTransition: next > 0 && items[next].ModuleID != items[next-1].ModuleID,
		}, nil
	})
}

// Previous moves backward from current, or to the last execution when current is uuid.Nil.
func (n *Navigator) Previous(ctx context.Context, current uuid.UUID) (NavigationResult, error) {
	return n.walk(ctx, func(ctx context.Context, caller user.User, items []execution.WorkItem) (NavigationResult, error) {
		prev := len(items) - 1
		if current != uuid.Nil {
			i, err := n.position(ctx, caller, items, current)
			if err != nil {
				return NavigationResult{}, err
			}
			prev = i - 1
		}
		if prev < 0 {
			return NavigationResult{AtBeginning: true}, nil
		}
		return NavigationResult{
			Execution:        ref(items, prev),
			ModuleTransition: prev < len(items)-1 && current != uuid.Nil && items[prev].ModuleID != items[prev+1].ModuleID,
		}, nil
	})
}
