package hierarchy

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/iota-uz/testbench/pkg/constants"
	"github.com/iota-uz/testbench/pkg/serrors"
)

type ProjectCreateDTO struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description" validate:"max=4000"`
}

func (d *ProjectCreateDTO) Ok() (map[string]string, bool) {
	d.Name = strings.TrimSpace(d.Name)
	d.Description = strings.TrimSpace(d.Description)
	return serrors.CheckStruct(constants.Validate, d)
}

func (d *ProjectCreateDTO) ToEntity(organizationID uuid.UUID) Project {
	return Project{OrganizationID: organizationID, Name: d.Name, Description: d.Description}
}

type ModuleCreateDTO struct {
	ProjectID   string `json:"project_id" validate:"required,uuid"`
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description" validate:"max=4000"`
}

func (d *ModuleCreateDTO) Ok() (map[string]string, bool) {
	d.ProjectID = strings.TrimSpace(d.ProjectID)
	d.Name = strings.TrimSpace(d.Name)
	d.Description = strings.TrimSpace(d.Description)
	return serrors.CheckStruct(constants.Validate, d)
}

func (d *ModuleCreateDTO) ToEntity(project Project) Module {
	return Module{
		OrganizationID: project.OrganizationID,
		ProjectID:      project.ID,
		Name:           d.Name,
		Description:    d.Description,
	}
}

type SubmoduleCreateDTO struct {
	ModuleID string `json:"module_id" validate:"required,uuid"`
	Name     string `json:"name" validate:"required,max=255"`
}

func (d *SubmoduleCreateDTO) Ok() (map[string]string, bool) {
	d.ModuleID = strings.TrimSpace(d.ModuleID)
	d.Name = strings.TrimSpace(d.Name)
	return serrors.CheckStruct(constants.Validate, d)
}

func (d *SubmoduleCreateDTO) ToEntity(module Module) Submodule {
	return Submodule{OrganizationID: module.OrganizationID, ModuleID: module.ID, Name: d.Name}
}

type TestStepDTO struct {
	StepNumber     int    `json:"step_number" validate:"gte=0"`
	Action         string `json:"action" validate:"required,max=4000"`
	ExpectedResult string `json:"expected_result" validate:"max=4000"`
}

type TestCaseCreateDTO struct {
	SubmoduleID string        `json:"submodule_id" validate:"required,uuid"`
	Title       string        `json:"title" validate:"required,max=500"`
	Description string        `json:"description" validate:"max=4000"`
	Steps       []TestStepDTO `json:"steps" validate:"dive"`
}

// Ok normalizes the payload. Steps without numbers are numbered by position;
// explicit numbers must be unique.
func (d *TestCaseCreateDTO) Ok() (map[string]string, bool) {
	d.SubmoduleID = strings.TrimSpace(d.SubmoduleID)
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	for i := range d.Steps {
		d.Steps[i].Action = strings.TrimSpace(d.Steps[i].Action)
		d.Steps[i].ExpectedResult = strings.TrimSpace(d.Steps[i].ExpectedResult)
	}
	errs, ok := serrors.CheckStruct(constants.Validate, d)
	if !ok {
		return errs, false
	}

	seen := make(map[int]int, len(d.Steps))
	for i := range d.Steps {
		if d.Steps[i].StepNumber == 0 {
			d.Steps[i].StepNumber = i + 1
		}
		n := d.Steps[i].StepNumber
		if prev, dup := seen[n]; dup {
			errs[fmt.Sprintf("steps[%d].step_number", i)] = fmt.Sprintf("step number %d already used by steps[%d]", n, prev)
			continue
		}
		seen[n] = i
	}
	return errs, len(errs) == 0
}

func (d *TestCaseCreateDTO) ToEntity(submodule Submodule, module Module) TestCase {
	steps := make([]TestStep, len(d.Steps))
	for i, s := range d.Steps {
		steps[i] = TestStep{StepNumber: s.StepNumber, Action: s.Action, ExpectedResult: s.ExpectedResult}
	}
	SortSteps(steps)
	return TestCase{
		OrganizationID: submodule.OrganizationID,
		ProjectID:      module.ProjectID,
		ModuleID:       module.ID,
		SubmoduleID:    submodule.ID,
		Title:          d.Title,
		Description:    d.Description,
		Steps:          steps,
	}
}
