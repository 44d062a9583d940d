// Package hierarchy holds the test catalog tree: Project > Module > Submodule >
// TestCase > TestStep. Entities are plain records addressed by id; parents are
// reached through the repository, never through pointers.
package hierarchy

import (
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
)

var (
	ErrProjectNotFound   = errors.New("project not found")
	ErrModuleNotFound    = errors.New("module not found")
	ErrSubmoduleNotFound = errors.New("submodule not found")
	ErrTestCaseNotFound  = errors.New("test case not found")
	ErrDuplicateName     = errors.New("name already used at this level")
)

type Project struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	CreatedAt      time.Time `json:"created_at"`
}

type Module struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	ProjectID      uuid.UUID `json:"project_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	CreatedAt      time.Time `json:"created_at"`
}

type Submodule struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	ModuleID       uuid.UUID `json:"module_id"`
	Name           string    `json:"name"`
	CreatedAt      time.Time `json:"created_at"`
}

type TestStep struct {
	ID             uuid.UUID `json:"id"`
	StepNumber     int       `json:"step_number"`
	Action         string    `json:"action"`
	ExpectedResult string    `json:"expected_result"`
}

// TestCase carries the ids of every ancestor so reconciliation never has to walk the
// tree. CreationOrder comes from a store sequence and only grows.
type TestCase struct {
	ID             uuid.UUID  `json:"id"`
	OrganizationID uuid.UUID  `json:"organization_id"`
	ProjectID      uuid.UUID  `json:"project_id"`
	ModuleID       uuid.UUID  `json:"module_id"`
	SubmoduleID    uuid.UUID  `json:"submodule_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	CreationOrder  int64      `json:"creation_order"`
	Steps          []TestStep `json:"steps"`
	CreatedAt      time.Time  `json:"created_at"`
}

// SortSteps orders steps by step number.
func SortSteps(steps []TestStep) {
	slices.SortFunc(steps, func(a, b TestStep) int { return a.StepNumber - b.StepNumber })
}

// Clone returns a copy that shares no step slice with tc.
func (tc TestCase) Clone() TestCase {
	tc.Steps = slices.Clone(tc.Steps)
	return tc
}

func (tc TestCase) StepIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(tc.Steps))
	for i, s := range tc.Steps {
		ids[i] = s.ID
	}
	return ids
}
