package organization

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrNameTaken            = errors.New("organization name already exists")
)

// Organization is the isolation boundary: every catalog entity, assignment and
// execution belongs to exactly one.
type Organization struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func New(name string) Organization {
	return Organization{Name: strings.TrimSpace(name)}
}

type Repository interface {
	Create(ctx context.Context, org Organization) (Organization, error)
	GetByID(ctx context.Context, id uuid.UUID) (Organization, error)
	List(ctx context.Context) ([]Organization, error)
}
