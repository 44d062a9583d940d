package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/testbench/modules/catalog/domain/hierarchy"
	"github.com/iota-uz/testbench/pkg/composables"
	"github.com/iota-uz/testbench/pkg/repo"
)

const (
	selectProjectQuery   = `SELECT id, organization_id, name, description, created_at FROM projects`
	selectModuleQuery    = `SELECT id, organization_id, project_id, name, description, created_at FROM modules`
	selectSubmoduleQuery = `SELECT id, organization_id, module_id, name, created_at FROM submodules`
	selectTestCaseQuery  = `
		SELECT id, organization_id, project_id, module_id, submodule_id, title, description, creation_order, created_at
		FROM test_cases`
	selectStepsQuery = `
		SELECT id, test_case_id, step_number, action, expected_result
		FROM test_steps
		WHERE test_case_id = ANY($1)
		ORDER BY test_case_id, step_number`

	lockModuleQuery = `SELECT 1 FROM modules WHERE organization_id = $1 AND id = $2 FOR UPDATE`

	insertTestCaseQuery = `
		INSERT INTO test_cases (organization_id, project_id, module_id, submodule_id, title, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, creation_order, created_at`
)

var stepColumns = []string{"id", "test_case_id", "step_number", "action", "expected_result"}

type PgHierarchyRepository struct{}

func NewHierarchyRepository() hierarchy.Repository {
	return &PgHierarchyRepository{}
}

// mapWriteError translates constraint violations into hierarchy sentinels.
func mapWriteError(err error, parentMissing error) error {
	if _, ok := repo.UniqueViolation(err); ok {
		return hierarchy.ErrDuplicateName
	}
	if _, ok := repo.ForeignKeyViolation(err); ok {
		return parentMissing
	}
	return err
}

func (r *PgHierarchyRepository) CreateProject(ctx context.Context, p hierarchy.Project) (hierarchy.Project, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return hierarchy.Project{}, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return hierarchy.Project{}, errors.Wrap(err, "failed to get transaction")
	}
	p.OrganizationID = tenantID
	if err := tx.QueryRow(
		ctx,
		`INSERT INTO projects (organization_id, name, description) VALUES ($1, $2, $3) RETURNING id, created_at`,
		tenantID, p.Name, p.Description,
	).Scan(&p.ID, &p.CreatedAt); err != nil {
		return hierarchy.Project{}, errors.Wrap(mapWriteError(err, hierarchy.ErrProjectNotFound), "failed to insert project")
	}
	return p, nil
}

func (r *PgHierarchyRepository) GetProject(ctx context.Context, id uuid.UUID) (hierarchy.Project, error) {
	return r.oneProject(ctx, " AND id = $2", id)
}

func (r *PgHierarchyRepository) FindProjectByName(ctx context.Context, name string) (hierarchy.Project, error) {
	return r.oneProject(ctx, " AND name = $2", name)
}

func (r *PgHierarchyRepository) ListProjects(ctx context.Context) ([]hierarchy.Project, error) {
	return r.queryProjects(ctx, " ORDER BY name, id")
}

func (r *PgHierarchyRepository) oneProject(ctx context.Context, where string, arg any) (hierarchy.Project, error) {
	projects, err := r.queryProjects(ctx, where, arg)
	if err != nil {
		return hierarchy.Project{}, err
	}
	if len(projects) == 0 {
		return hierarchy.Project{}, hierarchy.ErrProjectNotFound
	}
	return projects[0], nil
}

func (r *PgHierarchyRepository) queryProjects(ctx context.Context, tail string, args ...any) ([]hierarchy.Project, error) {
	rows, err := tenantQuery(ctx, selectProjectQuery+" WHERE organization_id = $1"+tail, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]hierarchy.Project, 0)
	for rows.Next() {
		var p hierarchy.Project
		if err := rows.Scan(&p.ID, &p.OrganizationID, &p.Name, &p.Description, &p.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan project row")
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "row iteration error")
	}
	return out, nil
}

func (r *PgHierarchyRepository) CreateModule(ctx context.Context, m hierarchy.Module) (hierarchy.Module, error) {
	project, err := r.GetProject(ctx, m.ProjectID)
	if err != nil {
		return hierarchy.Module{}, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return hierarchy.Module{}, errors.Wrap(err, "failed to get transaction")
	}
	m.OrganizationID = project.OrganizationID
	if err := tx.QueryRow(
		ctx,
		`INSERT INTO modules (organization_id, project_id, name, description) VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		m.OrganizationID, m.ProjectID, m.Name, m.Description,
	).Scan(&m.ID, &m.CreatedAt); err != nil {
		return hierarchy.Module{}, errors.Wrap(mapWriteError(err, hierarchy.ErrProjectNotFound), "failed to insert module")
	}
	return m, nil
}

func (r *PgHierarchyRepository) GetModule(ctx context.Context, id uuid.UUID) (hierarchy.Module, error) {
	return r.oneModule(ctx, " AND id = $2", id)
}

func (r *PgHierarchyRepository) LockModule(ctx context.Context, id uuid.UUID) error {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	var one int
	if err := tx.QueryRow(ctx, lockModuleQuery, tenantID, id).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return hierarchy.ErrModuleNotFound
		}
		return errors.Wrap(err, "failed to lock module")
	}
	return nil
}

func (r *PgHierarchyRepository) FindModuleByName(ctx context.Context, projectID uuid.UUID, name string) (hierarchy.Module, error) {
	return r.oneModule(ctx, " AND project_id = $2 AND name = $3", projectID, name)
}

func (r *PgHierarchyRepository) ListModules(ctx context.Context) ([]hierarchy.Module, error) {
	return r.queryModules(ctx, " ORDER BY name, id")
}

func (r *PgHierarchyRepository) ListModulesByProject(ctx context.Context, projectID uuid.UUID) ([]hierarchy.Module, error) {
	return r.queryModules(ctx, " AND project_id = $2 ORDER BY name, id", projectID)
}

func (r *PgHierarchyRepository) oneModule(ctx context.Context, where string, args ...any) (hierarchy.Module, error) {
	modules, err := r.queryModules(ctx, where, args...)
	if err != nil {
		return hierarchy.Module{}, err
	}
	if len(modules) == 0 {
		return hierarchy.Module{}, hierarchy.ErrModuleNotFound
	}
	return modules[0], nil
}

func (r *PgHierarchyRepository) queryModules(ctx context.Context, tail string, args ...any) ([]hierarchy.Module, error) {
	rows, err := tenantQuery(ctx, selectModuleQuery+" WHERE organization_id = $1"+tail, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]hierarchy.Module, 0)
	for rows.Next() {
		var m hierarchy.Module
		if err := rows.Scan(&m.ID, &m.OrganizationID, &m.ProjectID, &m.Name, &m.Description, &m.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan module row")
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "row iteration error")
	}
	return out, nil
}

func (r *PgHierarchyRepository) CreateSubmodule(ctx context.Context, s hierarchy.Submodule) (hierarchy.Submodule, error) {
	module, err := r.GetModule(ctx, s.ModuleID)
	if err != nil {
		return hierarchy.Submodule{}, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return hierarchy.Submodule{}, errors.Wrap(err, "failed to get transaction")
	}
	s.OrganizationID = module.OrganizationID
	if err := tx.QueryRow(
		ctx,
		`INSERT INTO submodules (organization_id, module_id, name) VALUES ($1, $2, $3) RETURNING id, created_at`,
		s.OrganizationID, s.ModuleID, s.Name,
	).Scan(&s.ID, &s.CreatedAt); err != nil {
		return hierarchy.Submodule{}, errors.Wrap(mapWriteError(err, hierarchy.ErrModuleNotFound), "failed to insert submodule")
	}
	return s, nil
}

func (r *PgHierarchyRepository) GetSubmodule(ctx context.Context, id uuid.UUID) (hierarchy.Submodule, error) {
	return r.oneSubmodule(ctx, " AND id = $2", id)
}

func (r *PgHierarchyRepository) FindSubmoduleByName(ctx context.Context, moduleID uuid.UUID, name string) (hierarchy.Submodule, error) {
	return r.oneSubmodule(ctx, " AND module_id = $2 AND name = $3", moduleID, name)
}

func (r *PgHierarchyRepository) ListSubmodules(ctx context.Context, moduleID uuid.UUID) ([]hierarchy.Submodule, error) {
	return r.querySubmodules(ctx, " AND module_id = $2 ORDER BY name, id", moduleID)
}

func (r *PgHierarchyRepository) oneSubmodule(ctx context.Context, where string, args ...any) (hierarchy.Submodule, error) {
	subs, err := r.querySubmodules(ctx, where, args...)
	if err != nil {
		return hierarchy.Submodule{}, err
	}
	if len(subs) == 0 {
		return hierarchy.Submodule{}, hierarchy.ErrSubmoduleNotFound
	}
	return subs[0], nil
}

func (r *PgHierarchyRepository) querySubmodules(ctx context.Context, tail string, args ...any) ([]hierarchy.Submodule, error) {
	rows, err := tenantQuery(ctx, selectSubmoduleQuery+" WHERE organization_id = $1"+tail, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]hierarchy.Submodule, 0)
	for rows.Next() {
		var s hierarchy.Submodule
		if err := rows.Scan(&s.ID, &s.OrganizationID, &s.ModuleID, &s.Name, &s.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan submodule row")
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "row iteration error")
	}
	return out, nil
}

// CreateTestCase inserts the case and bulk-loads its steps with COPY.
func (r *PgHierarchyRepository) CreateTestCase(ctx context.Context, tc hierarchy.TestCase) (hierarchy.TestCase, error) {
	sub, err := r.GetSubmodule(ctx, tc.SubmoduleID)
	if err != nil {
		return hierarchy.TestCase{}, err
	}
	module, err := r.GetModule(ctx, sub.ModuleID)
	if err != nil {
		return hierarchy.TestCase{}, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return hierarchy.TestCase{}, errors.Wrap(err, "failed to get transaction")
	}

	tc = tc.Clone()
	tc.OrganizationID = sub.OrganizationID
	tc.ProjectID = module.ProjectID
	tc.ModuleID = module.ID
	if err := tx.QueryRow(
		ctx,
		insertTestCaseQuery,
		tc.OrganizationID, tc.ProjectID, tc.ModuleID, tc.SubmoduleID, tc.Title, tc.Description,
	).Scan(&tc.ID, &tc.CreationOrder, &tc.CreatedAt); err != nil {
		return hierarchy.TestCase{}, errors.Wrap(mapWriteError(err, hierarchy.ErrSubmoduleNotFound), "failed to insert test case")
	}

	if len(tc.Steps) == 0 {
		return tc, nil
	}
	hierarchy.SortSteps(tc.Steps)
	rows := make([][]any, len(tc.Steps))
	for i := range tc.Steps {
		tc.Steps[i].ID = uuid.New()
		s := tc.Steps[i]
		rows[i] = []any{s.ID, tc.ID, s.StepNumber, s.Action, s.ExpectedResult}
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"test_steps"}, stepColumns, pgx.CopyFromRows(rows)); err != nil {
		return hierarchy.TestCase{}, errors.Wrap(err, "failed to copy test steps")
	}
	return tc, nil
}

func (r *PgHierarchyRepository) GetTestCase(ctx context.Context, id uuid.UUID) (hierarchy.TestCase, error) {
	return r.oneTestCase(ctx, " AND id = $2", id)
}

func (r *PgHierarchyRepository) FindTestCaseByTitle(ctx context.Context, submoduleID uuid.UUID, title string) (hierarchy.TestCase, error) {
	return r.oneTestCase(ctx, " AND submodule_id = $2 AND title = $3", submoduleID, title)
}

func (r *PgHierarchyRepository) ListTestCasesByModule(ctx context.Context, moduleID uuid.UUID) ([]hierarchy.TestCase, error) {
	return r.queryTestCases(ctx, " AND module_id = $2 ORDER BY creation_order", moduleID)
}

func (r *PgHierarchyRepository) ListTestCasesBySubmodule(ctx context.Context, submoduleID uuid.UUID) ([]hierarchy.TestCase, error) {
	return r.queryTestCases(ctx, " AND submodule_id = $2 ORDER BY creation_order", submoduleID)
}

// DeleteTestCase removes the case; steps and executions go with it by cascade.
func (r *PgHierarchyRepository) DeleteTestCase(ctx context.Context, id uuid.UUID) error {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	tag, err := tx.Exec(ctx, `DELETE FROM test_cases WHERE organization_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete test case")
	}
	if tag.RowsAffected() == 0 {
		return hierarchy.ErrTestCaseNotFound
	}
	return nil
}

func (r *PgHierarchyRepository) oneTestCase(ctx context.Context, where string, args ...any) (hierarchy.TestCase, error) {
	cases, err := r.queryTestCases(ctx, where, args...)
	if err != nil {
		return hierarchy.TestCase{}, err
	}
	if len(cases) == 0 {
		return hierarchy.TestCase{}, hierarchy.ErrTestCaseNotFound
	}
	return cases[0], nil
}

func (r *PgHierarchyRepository) queryTestCases(ctx context.Context, tail string, args ...any) ([]hierarchy.TestCase, error) {
	rows, err := tenantQuery(ctx, selectTestCaseQuery+" WHERE organization_id = $1"+tail, args...)
	if err != nil {
		return nil, err
	}
	cases := make([]hierarchy.TestCase, 0)
	for rows.Next() {
		var tc hierarchy.TestCase
		if err := rows.Scan(
			&tc.ID,
			&tc.OrganizationID,
			&tc.ProjectID,
			&tc.ModuleID,
			&tc.SubmoduleID,
			&tc.Title,
			&tc.Description,
			&tc.CreationOrder,
			&tc.CreatedAt,
		); err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "failed to scan test case row")
		}
		tc.Steps = []hierarchy.TestStep{}
		cases = append(cases, tc)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "row iteration error")
	}
	if len(cases) == 0 {
		return cases, nil
	}
	if err := r.loadSteps(ctx, cases); err != nil {
		return nil, err
	}
	return cases, nil
}

func (r *PgHierarchyRepository) loadSteps(ctx context.Context, cases []hierarchy.TestCase) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	index := make(map[uuid.UUID]int, len(cases))
	ids := make([]uuid.UUID, len(cases))
	for i, tc := range cases {
		index[tc.ID] = i
		ids[i] = tc.ID
	}

	rows, err := tx.Query(ctx, selectStepsQuery, ids)
	if err != nil {
		return errors.Wrap(err, "failed to query test steps")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			s      hierarchy.TestStep
			caseID uuid.UUID
		)
		if err := rows.Scan(&s.ID, &caseID, &s.StepNumber, &s.Action, &s.ExpectedResult); err != nil {
			return errors.Wrap(err, "failed to scan test step row")
		}
		if i, ok := index[caseID]; ok {
			cases[i].Steps = append(cases[i].Steps, s)
		}
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "row iteration error")
	}
	return nil
}

// tenantQuery runs query with the ctx organization bound to $1.
func tenantQuery(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	rows, err := tx.Query(ctx, query, append([]any{tenantID}, args...)...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute query")
	}
	return rows, nil
}
