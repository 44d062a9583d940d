package activitylog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	ActionTestCaseCreated   = "test_case.created"
	ActionTestCaseDeleted   = "test_case.deleted"
	ActionModuleAssigned    = "module.assigned"
	ActionModuleUnassigned  = "module.unassigned"
	ActionProjectAssigned   = "project.assigned"
	ActionProjectUnassigned = "project.unassigned"
	ActionExecutionComplete = "execution.completed"
	ActionUserCreated       = "user.created"
)

// ActivityLog is one recorded domain event. ActorID is nil for operator actions
// that have no authenticated user behind them.
type ActivityLog struct {
	ID             int64           `json:"id"`
	OrganizationID uuid.UUID       `json:"organization_id"`
	ActorID        *uuid.UUID      `json:"actor_id,omitempty"`
	Action         string          `json:"action"`
	SubjectID      uuid.UUID       `json:"subject_id"`
	Details        json.RawMessage `json:"details,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

type FindParams struct {
	ActorID   *uuid.UUID
	SubjectID *uuid.UUID
	Action    string
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

type Repository interface {
	List(ctx context.Context, params *FindParams) ([]*ActivityLog, error)
	Count(ctx context.Context, params *FindParams) (int64, error)
	Create(ctx context.Context, log *ActivityLog) error
}
