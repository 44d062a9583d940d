package persistence

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/testbench/modules/execution/domain/execution"
	"github.com/iota-uz/testbench/pkg/composables"
	"github.com/iota-uz/testbench/pkg/repo"
)

const (
	executionColumns = `
		e.id, e.organization_id, e.user_id, e.test_case_id, e.project_id, e.module_id, e.submodule_id,
		e.overall_result, e.notes, e.retired, e.completed_at, e.created_at, e.updated_at`

	selectExecutionQuery = `SELECT` + executionColumns + ` FROM test_executions e WHERE e.organization_id = $1`

	selectWorkItemsQuery = `
		SELECT` + executionColumns + `, p.name, m.name, s.name, c.title, c.creation_order
		FROM test_executions e
		JOIN test_cases c ON c.id = e.test_case_id
		JOIN submodules s ON s.id = e.submodule_id
		JOIN modules m ON m.id = e.module_id
		JOIN projects p ON p.id = e.project_id
		WHERE e.organization_id = $1 AND e.user_id = $2 AND NOT e.retired
		ORDER BY m.name, m.id, s.name, s.id, c.creation_order, c.id`

	selectStepResultsQuery = `
		SELECT execution_id, step_id, step_number, result, actual_result, updated_at
		FROM test_step_results
		WHERE execution_id = ANY($1)
		ORDER BY execution_id, step_number`

	insertExecutionQuery = `
		INSERT INTO test_executions (
			organization_id, user_id, test_case_id, project_id, module_id, submodule_id,
			overall_result, notes, retired
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, test_case_id) DO NOTHING
		RETURNING id, created_at, updated_at`

	updateExecutionQuery = `
		UPDATE test_executions
		SET overall_result = $3, notes = $4, retired = $5, completed_at = $6, updated_at = $7
		WHERE organization_id = $1 AND id = $2`

	deleteStepResultsQuery = `DELETE FROM test_step_results WHERE execution_id = $1`

	insertStepResultQuery = `
		INSERT INTO test_step_results (execution_id, step_id, step_number, result, actual_result, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
)

type PgExecutionRepository struct{}

func NewExecutionRepository() execution.Repository {
	return &PgExecutionRepository{}
}

// Create relies on the unique (user_id, test_case_id) constraint: a lost race
// inserts nothing and surfaces as ErrExecutionExists.
func (r *PgExecutionRepository) Create(ctx context.Context, e execution.Execution) (execution.Execution, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return execution.Execution{}, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return execution.Execution{}, errors.Wrap(err, "failed to get transaction")
	}
	e = e.Clone()
	e.OrganizationID = tenantID
	err = tx.QueryRow(
		ctx,
		insertExecutionQuery,
		e.OrganizationID, e.UserID, e.TestCaseID, e.ProjectID, e.ModuleID, e.SubmoduleID,
		string(e.Overall), e.Notes, e.Retired,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return execution.Execution{}, execution.ErrExecutionExists
	}
	if err != nil {
		return execution.Execution{}, errors.Wrap(err, "failed to insert execution")
	}
	for i := range e.Steps {
		e.Steps[i].UpdatedAt = e.CreatedAt
	}
	if err := r.writeSteps(ctx, tx, e, false); err != nil {
		return execution.Execution{}, err
	}
	return e, nil
}

// writeSteps sends the step results of e in one batch, replacing stored ones when replace is set.
func (r *PgExecutionRepository) writeSteps(ctx context.Context, tx repo.Tx, e execution.Execution, replace bool) error {
	if !replace && len(e.Steps) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	if replace {
		batch.Queue(deleteStepResultsQuery, e.ID)
	}
	for _, s := range e.Steps {
		batch.Queue(insertStepResultQuery, e.ID, s.StepID, s.StepNumber, string(s.Result), s.ActualResult, s.UpdatedAt)
	}
	br := tx.SendBatch(ctx, batch)
	for range batch.Len() {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return errors.Wrap(err, "failed to write step results")
		}
	}
	if err := br.Close(); err != nil {
		return errors.Wrap(err, "failed to close step result batch")
	}
	return nil
}

func (r *PgExecutionRepository) GetByID(ctx context.Context, id uuid.UUID) (execution.Execution, error) {
	return r.one(ctx, " AND e.id = $2", id)
}

func (r *PgExecutionRepository) GetByUserAndCase(ctx context.Context, userID, caseID uuid.UUID) (execution.Execution, error) {
	return r.one(ctx, " AND e.user_id = $2 AND e.test_case_id = $3", userID, caseID)
}

func (r *PgExecutionRepository) ListByUserAndModule(ctx context.Context, userID, moduleID uuid.UUID) ([]execution.Execution, error) {
	return r.query(ctx, " AND e.user_id = $2 AND e.module_id = $3 ORDER BY e.created_at, e.id", userID, moduleID)
}

func (r *PgExecutionRepository) Update(ctx context.Context, e execution.Execution) (execution.Execution, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return execution.Execution{}, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return execution.Execution{}, errors.Wrap(err, "failed to get transaction")
	}
	e = e.Clone()
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now()
	}
	tag, err := tx.Exec(
		ctx,
		updateExecutionQuery,
		tenantID, e.ID, string(e.Overall), e.Notes, e.Retired, e.CompletedAt, e.UpdatedAt,
	)
	if err != nil {
		return execution.Execution{}, errors.Wrap(err, "failed to update execution")
	}
	if tag.RowsAffected() == 0 {
		return execution.Execution{}, execution.ErrExecutionNotFound
	}
	if err := r.writeSteps(ctx, tx, e, true); err != nil {
		return execution.Execution{}, err
	}
	return e, nil
}

func (r *PgExecutionRepository) DeleteByTestCase(ctx context.Context, caseID uuid.UUID) (int, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return 0, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get transaction")
	}
	tag, err := tx.Exec(ctx, `DELETE FROM test_executions WHERE organization_id = $1 AND test_case_id = $2`, tenantID, caseID)
	if err != nil {
		return 0, errors.Wrap(err, "failed to delete executions")
	}
	return int(tag.RowsAffected()), nil
}

func (r *PgExecutionRepository) ListWorkItems(ctx context.Context, userID uuid.UUID) ([]execution.WorkItem, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	rows, err := tx.Query(ctx, selectWorkItemsQuery, tenantID, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query work items")
	}
	items := make([]execution.WorkItem, 0)
	for rows.Next() {
		var (
			it      execution.WorkItem
			overall string
		)
		dest := append(
			executionDest(&it.Execution, &overall),
			&it.ProjectName, &it.ModuleName, &it.SubmoduleName, &it.TestCaseTitle, &it.CreationOrder,
		)
		if err := rows.Scan(dest...); err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "failed to scan work item row")
		}
		it.Overall = execution.ParseStoredResult(overall)
		items = append(items, it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "row iteration error")
	}

	executions := make([]execution.Execution, len(items))
	for i := range items {
		executions[i] = items[i].Execution
	}
	if err := r.loadSteps(ctx, tx, executions); err != nil {
		return nil, err
	}
	for i := range items {
		items[i].Execution = executions[i]
	}
	// Collations differ between databases; the final order is the one the navigator uses.
	execution.SortWorkItems(items)
	return items, nil
}

func (r *PgExecutionRepository) one(ctx context.Context, where string, args ...any) (execution.Execution, error) {
	out, err := r.query(ctx, where, args...)
	if err != nil {
		return execution.Execution{}, err
	}
	if len(out) == 0 {
		return execution.Execution{}, execution.ErrExecutionNotFound
	}
	return out[0], nil
}

func (r *PgExecutionRepository) query(ctx context.Context, tail string, args ...any) ([]execution.Execution, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	rows, err := tx.Query(ctx, selectExecutionQuery+tail, append([]any{tenantID}, args...)...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query executions")
	}
	out := make([]execution.Execution, 0)
	for rows.Next() {
		var (
			e       execution.Execution
			overall string
		)
		if err := rows.Scan(executionDest(&e, &overall)...); err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "failed to scan execution row")
		}
		e.Overall = execution.ParseStoredResult(overall)
		out = append(out, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "row iteration error")
	}
	if err := r.loadSteps(ctx, tx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func executionDest(e *execution.Execution, overall *string) []any {
	return []any{
		&e.ID,
		&e.OrganizationID,
		&e.UserID,
		&e.TestCaseID,
		&e.ProjectID,
		&e.ModuleID,
		&e.SubmoduleID,
		overall,
		&e.Notes,
		&e.Retired,
		&e.CompletedAt,
		&e.CreatedAt,
		&e.UpdatedAt,
	}
}

func (r *PgExecutionRepository) loadSteps(ctx context.Context, tx repo.Tx, executions []execution.Execution) error {
	if len(executions) == 0 {
		return nil
	}
	index := make(map[uuid.UUID]int, len(executions))
	ids := make([]uuid.UUID, len(executions))
	for i := range executions {
		executions[i].Steps = []execution.StepResult{}
		index[executions[i].ID] = i
		ids[i] = executions[i].ID
	}

	rows, err := tx.Query(ctx, selectStepResultsQuery, ids)
	if err != nil {
		return errors.Wrap(err, "failed to query step results")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			s           execution.StepResult
			executionID uuid.UUID
			result      string
		)
		if err := rows.Scan(&executionID, &s.StepID, &s.StepNumber, &result, &s.ActualResult, &s.UpdatedAt); err != nil {
			return errors.Wrap(err, "failed to scan step result row")
		}
		s.Result = execution.ParseStoredStepResult(result)
		if i, ok := index[executionID]; ok {
			executions[i].Steps = append(executions[i].Steps, s)
		}
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "row iteration error")
	}
	return nil
}
