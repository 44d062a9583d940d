// Package assignment holds the two user relations that drive visibility and
// execution provisioning: user to project and user to module.
package assignment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAlreadyAssigned = errors.New("already assigned")
	ErrNotAssigned     = errors.New("not assigned")
)

type ProjectAssignment struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	UserID         uuid.UUID `json:"user_id"`
	ProjectID      uuid.UUID `json:"project_id"`
	CreatedAt      time.Time `json:"created_at"`
}

type ModuleAssignment struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	UserID         uuid.UUID `json:"user_id"`
	ModuleID       uuid.UUID `json:"module_id"`
	ProjectID      uuid.UUID `json:"project_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// Repository is scoped to the organization carried by ctx. Pairs are unique.
type Repository interface {
	AssignProject(ctx context.Context, a ProjectAssignment) (ProjectAssignment, error)
	UnassignProject(ctx context.Context, userID, projectID uuid.UUID) error
	ListProjectAssignments(ctx context.Context, userID uuid.UUID) ([]ProjectAssignment, error)

	AssignModule(ctx context.Context, a ModuleAssignment) (ModuleAssignment, error)
	UnassignModule(ctx context.Context, userID, moduleID uuid.UUID) error
	ListModuleAssignments(ctx context.Context, userID uuid.UUID) ([]ModuleAssignment, error)
	// ListModuleAssignees returns the ids of every user assigned to moduleID.
	ListModuleAssignees(ctx context.Context, moduleID uuid.UUID) ([]uuid.UUID, error)
	IsModuleAssigned(ctx context.Context, userID, moduleID uuid.UUID) (bool, error)
}
