package assignment

import (
	"time"

	"github.com/google/uuid"
)

// ModuleAssignmentEvent is published after a module assignment was added
// (Assigned) or removed and the user's executions were reconciled.
type ModuleAssignmentEvent struct {
	OrganizationID uuid.UUID
	ActorID        uuid.UUID
	UserID         uuid.UUID
	ModuleID       uuid.UUID
	Assigned       bool
	OccurredAt     time.Time
}

type ProjectAssignmentEvent struct {
	OrganizationID uuid.UUID
	ActorID        uuid.UUID
	UserID         uuid.UUID
	ProjectID      uuid.UUID
	Assigned       bool
	OccurredAt     time.Time
}
