package dtos

import (
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/testbench/modules/core/domain/aggregates/user"
	"github.com/iota-uz/testbench/modules/core/permissions"
)

type UserResponse struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Email          string    `json:"email"`
	DisplayName    string    `json:"display_name"`
	Roles          []string  `json:"roles"`
	CreatedAt      time.Time `json:"created_at"`
}

// MeResponse is the principal as the API sees it.
type MeResponse struct {
	UserResponse
	Capabilities []string `json:"capabilities"`
}

type CSRFTokenResponse struct {
	Token     string    `json:"token"`
	Header    string    `json:"header"`
	ExpiresAt time.Time `json:"expires_at"`
}

func UserToResponse(u user.User) UserResponse {
	roles := make([]string, 0, len(u.Roles()))
	for _, r := range u.Roles() {
		roles = append(roles, string(r))
	}
	return UserResponse{
		ID:             u.ID(),
		OrganizationID: u.OrganizationID(),
		Email:          u.Email(),
		DisplayName:    u.DisplayName(),
		Roles:          roles,
		CreatedAt:      u.CreatedAt(),
	}
}

func UserToMe(u user.User, caps []permissions.Capability) MeResponse {
	out := make([]string, 0, len(caps))
	for _, c := range caps {
		out = append(out, string(c))
	}
	return MeResponse{UserResponse: UserToResponse(u), Capabilities: out}
}
