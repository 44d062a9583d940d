package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/iota-uz/testbench/modules/core/domain/entities/organization"
	"github.com/iota-uz/testbench/pkg/composables"
	"github.com/iota-uz/testbench/pkg/repo"
)

const selectOrganizationQuery = `SELECT id, name, created_at FROM organizations`

type PgOrganizationRepository struct{}

func NewOrganizationRepository() organization.Repository {
	return &PgOrganizationRepository{}
}

func (r *PgOrganizationRepository) Create(ctx context.Context, org organization.Organization) (organization.Organization, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return organization.Organization{}, errors.Wrap(err, "failed to get transaction")
	}
	if err := tx.QueryRow(
		ctx,
		`INSERT INTO organizations (name) VALUES ($1) RETURNING id, created_at`,
		org.Name,
	).Scan(&org.ID, &org.CreatedAt); err != nil {
		if _, ok := repo.UniqueViolation(err); ok {
			return organization.Organization{}, organization.ErrNameTaken
		}
		return organization.Organization{}, errors.Wrap(err, "failed to insert organization")
	}
	return org, nil
}

func (r *PgOrganizationRepository) GetByID(ctx context.Context, id uuid.UUID) (organization.Organization, error) {
	orgs, err := r.query(ctx, selectOrganizationQuery+" WHERE id = $1", id)
	if err != nil {
		return organization.Organization{}, err
	}
	if len(orgs) == 0 {
		return organization.Organization{}, organization.ErrOrganizationNotFound
	}
	return orgs[0], nil
}

func (r *PgOrganizationRepository) List(ctx context.Context) ([]organization.Organization, error) {
	return r.query(ctx, selectOrganizationQuery+" ORDER BY name")
}

func (r *PgOrganizationRepository) query(ctx context.Context, query string, args ...any) ([]organization.Organization, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute query")
	}
	defer rows.Close()

	orgs := make([]organization.Organization, 0)
	for rows.Next() {
		var org organization.Organization
		if err := rows.Scan(&org.ID, &org.Name, &org.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan organization row")
		}
		orgs = append(orgs, org)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "row iteration error")
	}
	return orgs, nil
}
