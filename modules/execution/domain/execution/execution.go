// Package execution holds per-user test executions. An execution exists for every
// (user, test case) pair implied by module assignments; it is created by the
// reconciler only and hidden, not deleted, when the assignment goes away.
package execution

import (
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/testbench/modules/catalog/domain/hierarchy"
)

var (
	ErrExecutionNotFound = errors.New("execution not found")
	ErrExecutionExists   = errors.New("execution already exists for user and test case")
	ErrStepNotFound      = errors.New("step not found in execution")
	ErrInvalidResult     = errors.New("invalid result")
)

type StepResult struct {
	StepID       uuid.UUID `json:"step_id"`
	StepNumber   int       `json:"step_number"`
	Result       Result    `json:"result"`
	ActualResult string    `json:"actual_result"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Execution struct {
	ID             uuid.UUID    `json:"id"`
	OrganizationID uuid.UUID    `json:"organization_id"`
	UserID         uuid.UUID    `json:"user_id"`
	TestCaseID     uuid.UUID    `json:"test_case_id"`
	ProjectID      uuid.UUID    `json:"project_id"`
	ModuleID       uuid.UUID    `json:"module_id"`
	SubmoduleID    uuid.UUID    `json:"submodule_id"`
	Overall        Result       `json:"overall_result"`
	Notes          string       `json:"notes"`
	Retired        bool         `json:"retired"`
	Steps          []StepResult `json:"steps"`
	CompletedAt    *time.Time   `json:"completed_at"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// New builds a PENDING execution with one PENDING step result per step of tc.
func New(userID uuid.UUID, tc hierarchy.TestCase) Execution {
	e := Execution{
		OrganizationID: tc.OrganizationID,
		UserID:         userID,
		TestCaseID:     tc.ID,
		ProjectID:      tc.ProjectID,
		ModuleID:       tc.ModuleID,
		SubmoduleID:    tc.SubmoduleID,
		Overall:        ResultPending,
	}
	return e.AlignSteps(tc)
}

func (e Execution) Owner() uuid.UUID        { return e.UserID }
func (e Execution) Organization() uuid.UUID { return e.OrganizationID }

func (e Execution) Clone() Execution {
	e.Steps = slices.Clone(e.Steps)
	if e.CompletedAt != nil {
		at := *e.CompletedAt
		e.CompletedAt = &at
	}
	return e
}

// AlignSteps rebuilds the step results from the current steps of tc. Results of
// steps that still exist are kept; new steps start PENDING and removed ones are dropped.
func (e Execution) AlignSteps(tc hierarchy.TestCase) Execution {
	prior := make(map[uuid.UUID]StepResult, len(e.Steps))
	for _, s := range e.Steps {
		prior[s.StepID] = s
	}
	steps := slices.Clone(tc.Steps)
	hierarchy.SortSteps(steps)

	out := make([]StepResult, len(steps))
	for i, s := range steps {
		r, ok := prior[s.ID]
		if !ok {
			r = StepResult{StepID: s.ID, Result: ResultPending}
		}
		r.StepNumber = s.StepNumber
		out[i] = r
	}
	e.Steps = out
	return e
}

// Aligned reports whether the step results mirror the steps of tc one to one.
func (e Execution) Aligned(tc hierarchy.TestCase) bool {
	if len(e.Steps) != len(tc.Steps) {
		return false
	}
	steps := slices.Clone(tc.Steps)
	hierarchy.SortSteps(steps)
	for i, s := range steps {
		if e.Steps[i].StepID != s.ID || e.Steps[i].StepNumber != s.StepNumber {
			return false
		}
	}
	return true
}

// WithStepResult records a step outcome. The overall result is left untouched.
func (e Execution) WithStepResult(stepID uuid.UUID, r Result, actual string, at time.Time) (Execution, error) {
	e = e.Clone()
	for i := range e.Steps {
		if e.Steps[i].StepID != stepID {
			continue
		}
		e.Steps[i].Result = r
		e.Steps[i].ActualResult = actual
		e.Steps[i].UpdatedAt = at
		e.UpdatedAt = at
		return e, nil
	}
	return Execution{}, ErrStepNotFound
}

// Complete sets a terminal overall result. Re-submitting over an earlier terminal
// result is a re-test and allowed.
func (e Execution) Complete(r Result, notes string, at time.Time) (Execution, error) {
	if !r.IsTerminal() {
		return Execution{}, ErrInvalidResult
	}
	e = e.Clone()
	e.Overall = r
	e.Notes = notes
	e.CompletedAt = &at
	e.UpdatedAt = at
	return e, nil
}

func (e Execution) Retire(at time.Time) Execution {
	e = e.Clone()
	e.Retired = true
	e.UpdatedAt = at
	return e
}

// Restore un-retires the execution and re-aligns it with the current steps of tc.
func (e Execution) Restore(tc hierarchy.TestCase, at time.Time) Execution {
	e = e.Clone().AlignSteps(tc)
	e.Retired = false
	e.UpdatedAt = at
	return e
}
