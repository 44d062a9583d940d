package user

import (
	"strings"

	"github.com/google/uuid"

	"github.com/iota-uz/testbench/pkg/constants"
	"github.com/iota-uz/testbench/pkg/serrors"
)

type CreateDTO struct {
	Email       string   `json:"email" validate:"required,email,max=254"`
	DisplayName string   `json:"display_name" validate:"required,max=200"`
	Roles       []string `json:"roles" validate:"required,min=1,dive,oneof=ADMIN QA BA TESTER"`
}

func (d *CreateDTO) Normalize() {
	d.Email = strings.TrimSpace(d.Email)
	d.DisplayName = strings.TrimSpace(d.DisplayName)
	for i, r := range d.Roles {
		d.Roles[i] = strings.ToUpper(strings.TrimSpace(r))
	}
}

func (d *CreateDTO) Ok() (map[string]string, bool) {
	d.Normalize()
	return serrors.CheckStruct(constants.Validate, d)
}

func (d *CreateDTO) ToEntity(organizationID uuid.UUID) (User, error) {
	roles, err := ParseRoles(d.Roles)
	if err != nil {
		return User{}, err
	}
	return New(organizationID, d.Email, d.DisplayName, roles...), nil
}
