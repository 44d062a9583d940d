package assignment

import (
	"strings"

	"github.com/google/uuid"

	"github.com/iota-uz/testbench/pkg/constants"
	"github.com/iota-uz/testbench/pkg/serrors"
)

type ModuleAssignDTO struct {
	UserID   string `json:"user_id" validate:"required,uuid"`
	ModuleID string `json:"module_id" validate:"required,uuid"`
}

func (d *ModuleAssignDTO) Ok() (map[string]string, bool) {
	d.UserID = strings.TrimSpace(d.UserID)
	d.ModuleID = strings.TrimSpace(d.ModuleID)
	return serrors.CheckStruct(constants.Validate, d)
}

// IDs must only be called after Ok.
func (d *ModuleAssignDTO) IDs() (userID, moduleID uuid.UUID) {
	return uuid.MustParse(d.UserID), uuid.MustParse(d.ModuleID)
}

type ProjectAssignDTO struct {
	UserID    string `json:"user_id" validate:"required,uuid"`
	ProjectID string `json:"project_id" validate:"required,uuid"`
}

func (d *ProjectAssignDTO) Ok() (map[string]string, bool) {
	d.UserID = strings.TrimSpace(d.UserID)
	d.ProjectID = strings.TrimSpace(d.ProjectID)
	return serrors.CheckStruct(constants.Validate, d)
}

// IDs must only be called after Ok.
func (d *ProjectAssignDTO) IDs() (userID, projectID uuid.UUID) {
	return uuid.MustParse(d.UserID), uuid.MustParse(d.ProjectID)
}
