package execution

import (
	"context"

	"github.com/google/uuid"
)

// Repository is scoped to the organization carried by ctx. (UserID, TestCaseID) is
// unique: Create returns ErrExecutionExists when the pair is taken.
type Repository interface {
	Create(ctx context.Context, e Execution) (Execution, error)
	GetByID(ctx context.Context, id uuid.UUID) (Execution, error)
	GetByUserAndCase(ctx context.Context, userID, caseID uuid.UUID) (Execution, error)
	// Update replaces the mutable fields and every step result of e.
	Update(ctx context.Context, e Execution) (Execution, error)
	// ListByUserAndModule includes retired executions.
	ListByUserAndModule(ctx context.Context, userID, moduleID uuid.UUID) ([]Execution, error)
	DeleteByTestCase(ctx context.Context, caseID uuid.UUID) (int, error)
	// ListWorkItems returns the user's non-retired executions in workbench order.
	ListWorkItems(ctx context.Context, userID uuid.UUID) ([]WorkItem, error)
}
