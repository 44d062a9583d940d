package services

import (
	"context"

	"github.com/iota-uz/testbench/modules/catalog/domain/hierarchy"
	"github.com/iota-uz/testbench/modules/core/domain/aggregates/user"
)

// ExecutionReconciler keeps per-user executions in step with catalog and assignment
// mutations. Every method runs inside the caller's unit of work; an error rolls the
// triggering mutation back.
type ExecutionReconciler interface {
	OnTestCaseCreated(ctx context.Context, tc hierarchy.TestCase) error
	OnTestCaseDeleted(ctx context.Context, tc hierarchy.TestCase) error
	OnModuleAssigned(ctx context.Context, u user.User, m hierarchy.Module) error
	OnModuleUnassigned(ctx context.Context, u user.User, m hierarchy.Module) error
}
