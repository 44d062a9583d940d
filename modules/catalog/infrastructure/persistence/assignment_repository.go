package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/iota-uz/testbench/modules/catalog/domain/assignment"
	"github.com/iota-uz/testbench/pkg/composables"
)

type PgAssignmentRepository struct{}

func NewAssignmentRepository() assignment.Repository {
	return &PgAssignmentRepository{}
}

// Inserts use ON CONFLICT DO NOTHING so a concurrent duplicate is reported as
// ErrAlreadyAssigned instead of aborting the surrounding transaction.
func (r *PgAssignmentRepository) AssignProject(ctx context.Context, a assignment.ProjectAssignment) (assignment.ProjectAssignment, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return assignment.ProjectAssignment{}, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return assignment.ProjectAssignment{}, errors.Wrap(err, "failed to get transaction")
	}
	a.OrganizationID = tenantID
	rows, err := tx.Query(
		ctx,
		`INSERT INTO project_assignments (organization_id, user_id, project_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, project_id) DO NOTHING
		RETURNING created_at`,
		tenantID, a.UserID, a.ProjectID,
	)
	if err != nil {
		return assignment.ProjectAssignment{}, errors.Wrap(err, "failed to insert project assignment")
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return assignment.ProjectAssignment{}, errors.Wrap(err, "failed to insert project assignment")
		}
		return assignment.ProjectAssignment{}, assignment.ErrAlreadyAssigned
	}
	if err := rows.Scan(&a.CreatedAt); err != nil {
		return assignment.ProjectAssignment{}, errors.Wrap(err, "failed to scan project assignment")
	}
	return a, nil
}

func (r *PgAssignmentRepository) UnassignProject(ctx context.Context, userID, projectID uuid.UUID) error {
	return r.delete(ctx, `DELETE FROM project_assignments WHERE organization_id = $1 AND user_id = $2 AND project_id = $3`, userID, projectID)
}

func (r *PgAssignmentRepository) ListProjectAssignments(ctx context.Context, userID uuid.UUID) ([]assignment.ProjectAssignment, error) {
	rows, err := tenantQuery(
		ctx,
		`SELECT organization_id, user_id, project_id, created_at
		FROM project_assignments
		WHERE organization_id = $1 AND user_id = $2
		ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]assignment.ProjectAssignment, 0)
	for rows.Next() {
		var a assignment.ProjectAssignment
		if err := rows.Scan(&a.OrganizationID, &a.UserID, &a.ProjectID, &a.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan project assignment row")
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "row iteration error")
	}
	return out, nil
}

func (r *PgAssignmentRepository) AssignModule(ctx context.Context, a assignment.ModuleAssignment) (assignment.ModuleAssignment, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return assignment.ModuleAssignment{}, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return assignment.ModuleAssignment{}, errors.Wrap(err, "failed to get transaction")
	}
	a.OrganizationID = tenantID
	rows, err := tx.Query(
		ctx,
		`INSERT INTO module_assignments (organization_id, user_id, module_id, project_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, module_id) DO NOTHING
		RETURNING created_at`,
		tenantID, a.UserID, a.ModuleID, a.ProjectID,
	)
	if err != nil {
		return assignment.ModuleAssignment{}, errors.Wrap(err, "failed to insert module assignment")
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return assignment.ModuleAssignment{}, errors.Wrap(err, "failed to insert module assignment")
		}
		return assignment.ModuleAssignment{}, assignment.ErrAlreadyAssigned
	}
	if err := rows.Scan(&a.CreatedAt); err != nil {
		return assignment.ModuleAssignment{}, errors.Wrap(err, "failed to scan module assignment")
	}
	return a, nil
}

func (r *PgAssignmentRepository) UnassignModule(ctx context.Context, userID, moduleID uuid.UUID) error {
	return r.delete(ctx, `DELETE FROM module_assignments WHERE organization_id = $1 AND user_id = $2 AND module_id = $3`, userID, moduleID)
}

func (r *PgAssignmentRepository) ListModuleAssignments(ctx context.Context, userID uuid.UUID) ([]assignment.ModuleAssignment, error) {
	rows, err := tenantQuery(
		ctx,
		`SELECT organization_id, user_id, module_id, project_id, created_at
		FROM module_assignments
		WHERE organization_id = $1 AND user_id = $2
		ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]assignment.ModuleAssignment, 0)
	for rows.Next() {
		var a assignment.ModuleAssignment
		if err := rows.Scan(&a.OrganizationID, &a.UserID, &a.ModuleID, &a.ProjectID, &a.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan module assignment row")
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "row iteration error")
	}
	return out, nil
}

func (r *PgAssignmentRepository) ListModuleAssignees(ctx context.Context, moduleID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := tenantQuery(
		ctx,
		`SELECT user_id FROM module_assignments WHERE organization_id = $1 AND module_id = $2 ORDER BY user_id`,
		moduleID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "failed to scan assignee row")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "row iteration error")
	}
	return ids, nil
}

func (r *PgAssignmentRepository) IsModuleAssigned(ctx context.Context, userID, moduleID uuid.UUID) (bool, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return false, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, errors.Wrap(err, "failed to get transaction")
	}
	var exists bool
	if err := tx.QueryRow(
		ctx,
		`SELECT EXISTS (SELECT 1 FROM module_assignments WHERE organization_id = $1 AND user_id = $2 AND module_id = $3)`,
		tenantID, userID, moduleID,
	).Scan(&exists); err != nil {
		return false, errors.Wrap(err, "failed to check module assignment")
	}
	return exists, nil
}

func (r *PgAssignmentRepository) delete(ctx context.Context, query string, userID, targetID uuid.UUID) error {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	tag, err := tx.Exec(ctx, query, tenantID, userID, targetID)
	if err != nil {
		return errors.Wrap(err, "failed to delete assignment")
	}
	if tag.RowsAffected() == 0 {
		return assignment.ErrNotAssigned
	}
	return nil
}
