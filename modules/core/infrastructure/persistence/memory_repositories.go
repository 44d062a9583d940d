package persistence

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/testbench/modules/core/domain/aggregates/user"
	"github.com/iota-uz/testbench/modules/core/domain/entities/organization"
	"github.com/iota-uz/testbench/pkg/composables"
	"github.com/iota-uz/testbench/pkg/memdb"
)

type MemoryUserRepository struct {
	users   *memdb.Table[uuid.UUID, user.User]
	byEmail *memdb.Table[string, uuid.UUID]
}

func NewMemoryUserRepository(db *memdb.DB) *MemoryUserRepository {
	return &MemoryUserRepository{
		users:   memdb.NewTable[uuid.UUID, user.User](db),
		byEmail: memdb.NewTable[string, uuid.UUID](db),
	}
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id uuid.UUID) (user.User, error) {
	u, ok := r.users.Get(id)
	if !ok {
		return user.User{}, user.ErrUserNotFound
	}
	return u, nil
}

func (r *MemoryUserRepository) GetByEmail(ctx context.Context, email string) (user.User, error) {
	id, ok := r.byEmail.Get(strings.ToLower(strings.TrimSpace(email)))
	if !ok {
		return user.User{}, user.ErrUserNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *MemoryUserRepository) List(ctx context.Context) ([]user.User, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	users := r.users.Select(func(u user.User) bool { return u.OrganizationID() == tenantID })
	slices.SortFunc(users, func(a, b user.User) int { return strings.Compare(a.Email(), b.Email()) })
	return users, nil
}

func (r *MemoryUserRepository) Create(_ context.Context, u user.User) (user.User, error) {
	id := uuid.New()
	if err := r.byEmail.Insert(u.Email(), id); err != nil {
		return user.User{}, user.ErrEmailTaken
	}
	created := u.WithID(id, time.Now())
	r.users.Put(id, created)
	return created, nil
}

type MemoryOrganizationRepository struct {
	orgs   *memdb.Table[uuid.UUID, organization.Organization]
	byName *memdb.Table[string, uuid.UUID]
}

func NewMemoryOrganizationRepository(db *memdb.DB) *MemoryOrganizationRepository {
	return &MemoryOrganizationRepository{
		orgs:   memdb.NewTable[uuid.UUID, organization.Organization](db),
		byName: memdb.NewTable[string, uuid.UUID](db),
	}
}

func (r *MemoryOrganizationRepository) Create(_ context.Context, org organization.Organization) (organization.Organization, error) {
	org.ID = uuid.New()
	if err := r.byName.Insert(org.Name, org.ID); err != nil {
		return organization.Organization{}, organization.ErrNameTaken
	}
	org.CreatedAt = time.Now()
	r.orgs.Put(org.ID, org)
	return org, nil
}

func (r *MemoryOrganizationRepository) GetByID(_ context.Context, id uuid.UUID) (organization.Organization, error) {
	org, ok := r.orgs.Get(id)
	if !ok {
		return organization.Organization{}, organization.ErrOrganizationNotFound
	}
	return org, nil
}

func (r *MemoryOrganizationRepository) List(_ context.Context) ([]organization.Organization, error) {
	orgs := r.orgs.Select(nil)
	slices.SortFunc(orgs, func(a, b organization.Organization) int { return strings.Compare(a.Name, b.Name) })
	return orgs, nil
}
