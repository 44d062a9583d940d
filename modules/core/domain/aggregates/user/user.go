package user

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

type User struct {
	id             uuid.UUID
	organizationID uuid.UUID
	email          string
	displayName    string
	roles          []Role
	createdAt      time.Time
}

func New(organizationID uuid.UUID, email, displayName string, roles ...Role) User {
	return User{
		organizationID: organizationID,
		email:          normalizeEmail(email),
		displayName:    strings.TrimSpace(displayName),
		roles:          normalizeRoles(roles),
	}
}

func Hydrate(
	id uuid.UUID,
	organizationID uuid.UUID,
	email string,
	displayName string,
	roles []Role,
	createdAt time.Time,
) User {
	return User{
		id:             id,
		organizationID: organizationID,
		email:          normalizeEmail(email),
		displayName:    strings.TrimSpace(displayName),
		roles:          normalizeRoles(roles),
		createdAt:      createdAt,
	}
}

func (u User) ID() uuid.UUID             { return u.id }
func (u User) OrganizationID() uuid.UUID { return u.organizationID }
func (u User) Email() string             { return u.email }
func (u User) DisplayName() string       { return u.displayName }
func (u User) Roles() []Role             { return slices.Clone(u.roles) }
func (u User) CreatedAt() time.Time      { return u.createdAt }
func (u User) IsZero() bool              { return u.id == uuid.Nil }

func (u User) HasRole(r Role) bool {
	return slices.Contains(u.roles, r)
}

func (u User) WithID(id uuid.UUID, createdAt time.Time) User {
	u.id = id
	u.createdAt = createdAt
	u.roles = slices.Clone(u.roles)
	return u
}

func normalizeEmail(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

func normalizeRoles(roles []Role) []Role {
	out := make([]Role, 0, len(roles))
	for _, r := range roles {
		if !slices.Contains(out, r) {
			out = append(out, r)
		}
	}
	slices.Sort(out)
	return out
}
