package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/iota-uz/testbench/modules/core/domain/entities/organization"
	"github.com/iota-uz/testbench/pkg/repo"
	"github.com/iota-uz/testbench/pkg/serrors"
)

var (
	errOrganizationNotFound = serrors.NotFound("ORGANIZATION_NOT_FOUND", "organization not found")
	errOrganizationTaken    = serrors.Conflict("ORGANIZATION_NAME_TAKEN", "organization name already exists")
)

type OrganizationService struct {
	repo organization.Repository
	tx   repo.Transactor
}

func NewOrganizationService(repo organization.Repository, tx repo.Transactor) *OrganizationService {
	return &OrganizationService{repo: repo, tx: tx}
}

func (s *OrganizationService) Create(ctx context.Context, name string) (organization.Organization, error) {
	org := organization.New(name)
	if org.Name == "" {
		return organization.Organization{}, serrors.ValidationFields("INVALID_ORGANIZATION", map[string]string{
			"name": "name is required",
		})
	}
	if len(org.Name) > 255 {
		return organization.Organization{}, serrors.ValidationFields("INVALID_ORGANIZATION", map[string]string{
			"name": "name must be at most 255 characters",
		})
	}

	created, err := repo.InTenantTxResult(ctx, s.tx, func(txCtx context.Context) (organization.Organization, error) {
		return s.repo.Create(txCtx, org)
	})
	if errors.Is(err, organization.ErrNameTaken) {
		return organization.Organization{}, errOrganizationTaken
	}
	return created, err
}

func (s *OrganizationService) GetByID(ctx context.Context, id uuid.UUID) (organization.Organization, error) {
	org, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, organization.ErrOrganizationNotFound) {
		return organization.Organization{}, errOrganizationNotFound
	}
	return org, err
}

// Resolve accepts an organization id or an exact name.
func (s *OrganizationService) Resolve(ctx context.Context, ref string) (organization.Organization, error) {
	ref = strings.TrimSpace(ref)
	if id, err := uuid.Parse(ref); err == nil {
		return s.GetByID(ctx, id)
	}
	orgs, err := s.repo.List(ctx)
	if err != nil {
		return organization.Organization{}, err
	}
	for _, org := range orgs {
		if org.Name == ref {
			return org, nil
		}
	}
	return organization.Organization{}, errOrganizationNotFound
}

func (s *OrganizationService) List(ctx context.Context) ([]organization.Organization, error) {
	return s.repo.List(ctx)
}
