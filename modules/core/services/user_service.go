package services

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/iota-uz/testbench/modules/core/domain/aggregates/user"
	"github.com/iota-uz/testbench/modules/core/domain/entities/organization"
	"github.com/iota-uz/testbench/modules/core/permissions"
	"github.com/iota-uz/testbench/pkg/composables"
	"github.com/iota-uz/testbench/pkg/eventbus"
	"github.com/iota-uz/testbench/pkg/repo"
	"github.com/iota-uz/testbench/pkg/serrors"
)

var (
	errUserNotFound = serrors.NotFound("USER_NOT_FOUND", "user not found")
	errEmailTaken   = serrors.Conflict("EMAIL_TAKEN", "email already registered")
)

type UserService struct {
	repo      user.Repository
	orgs      organization.Repository
	tx        repo.Transactor
	caps      *permissions.Table
	publisher eventbus.EventBus
}

func NewUserService(
	repo user.Repository,
	orgs organization.Repository,
	tx repo.Transactor,
	caps *permissions.Table,
	publisher eventbus.EventBus,
) *UserService {
	return &UserService{
		repo:      repo,
		orgs:      orgs,
		tx:        tx,
		caps:      caps,
		publisher: publisher,
	}
}

// Create registers a user in organizationID. It is an operator action (CLI/seed) and
// is not exposed over HTTP.
func (s *UserService) Create(ctx context.Context, organizationID uuid.UUID, dto *user.CreateDTO) (user.User, error) {
	if fields, ok := dto.Ok(); !ok {
		return user.User{}, serrors.ValidationFields("INVALID_USER", fields)
	}
	entity, err := dto.ToEntity(organizationID)
	if err != nil {
		return user.User{}, serrors.Wrap(serrors.KindValidation, "INVALID_ROLE", "invalid role", err)
	}

	created, err := repo.InTenantTxResult(
		composables.WithTenantID(ctx, organizationID),
		s.tx,
		func(txCtx context.Context) (user.User, error) {
			if _, err := s.orgs.GetByID(txCtx, organizationID); err != nil {
				if errors.Is(err, organization.ErrOrganizationNotFound) {
					return user.User{}, errOrganizationNotFound
				}
				return user.User{}, err
			}
			return s.repo.Create(txCtx, entity)
		},
	)
	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			return user.User{}, errEmailTaken
		}
		return user.User{}, err
	}

	s.publisher.Publish(user.NewCreatedEvent(created))
	return created, nil
}

// ResolvePrincipal loads the user behind an authenticated identity. Unknown ids are
// reported as unauthenticated, not as missing resources.
func (s *UserService) ResolvePrincipal(ctx context.Context, id uuid.UUID) (user.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return user.User{}, serrors.Unauthenticated("UNAUTHENTICATED", "unknown user")
		}
		return user.User{}, err
	}
	return u, nil
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (user.User, error) {
	u, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, user.ErrUserNotFound) {
		return user.User{}, errUserNotFound
	}
	return u, err
}

// GetInOrganization returns a user of the caller's organization; users of other
// organizations are reported as not found.
func (s *UserService) GetInOrganization(ctx context.Context, id uuid.UUID) (user.User, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return user.User{}, err
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return user.User{}, errUserNotFound
		}
		return user.User{}, err
	}
	if u.OrganizationID() != tenantID {
		return user.User{}, errUserNotFound
	}
	return u, nil
}

// List returns the users of the caller's organization. Only callers that manage
// assignments may list colleagues.
func (s *UserService) List(ctx context.Context) ([]user.User, error) {
	principal, err := composables.UseUser(ctx)
	if err != nil {
		return nil, serrors.Unauthenticated("UNAUTHENTICATED", "authentication required")
	}
	if !s.caps.Can(principal, permissions.ManageAssignments) {
		return nil, serrors.AccessDenied("ACCESS_DENIED", "not accessible")
	}
	return s.repo.List(composables.WithTenantID(ctx, principal.OrganizationID()))
}

func (s *UserService) Capabilities(u user.User) []permissions.Capability {
	return s.caps.Capabilities(u)
}
