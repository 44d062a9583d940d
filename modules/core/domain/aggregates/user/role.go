package user

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleQA     Role = "QA"
	RoleBA     Role = "BA"
	RoleTester Role = "TESTER"
)

var AllRoles = []Role{RoleAdmin, RoleQA, RoleBA, RoleTester}

func ParseRole(v string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(v)))
	if !r.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, v)
	}
	return r, nil
}

func ParseRoles(values []string) ([]Role, error) {
	out := make([]Role, 0, len(values))
	for _, v := range values {
		r, err := ParseRole(v)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleQA, RoleBA, RoleTester:
		return true
	}
	return false
}
