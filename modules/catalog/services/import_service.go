package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"github.com/iota-uz/testbench/modules/catalog/domain/hierarchy"
	"github.com/iota-uz/testbench/modules/core/permissions"
	"github.com/iota-uz/testbench/pkg/composables"
	"github.com/iota-uz/testbench/pkg/repo"
	"github.com/iota-uz/testbench/pkg/serrors"
)

const (
	colProject     = "project"
	colModule      = "module"
	colSubmodule   = "submodule"
	colTestCase    = "test case"
	colDescription = "description"
	colStepNumber  = "step #"
	colAction      = "action"
	colExpected    = "expected result"
)

// ImportColumns is the header row an import sheet must start with.
var ImportColumns = []string{"Project", "Module", "Submodule", "Test Case", "Description", "Step #", "Action", "Expected Result"}

var requiredImportColumns = []string{colProject, colModule, colSubmodule, colTestCase}

type ImportReport struct {
	ProjectsCreated   int         `json:"projects_created"`
	ModulesCreated    int         `json:"modules_created"`
	SubmodulesCreated int         `json:"submodules_created"`
	TestCasesCreated  int         `json:"test_cases_created"`
	TestCasesSkipped  int         `json:"test_cases_skipped"`
	TestCaseIDs       []uuid.UUID `json:"test_case_ids"`
}

type importCase struct {
	row         int
	project     string
	module      string
	submodule   string
	title       string
	description string
	steps       []hierarchy.TestStep
}

func (c *importCase) key() string {
	return strings.Join([]string{c.project, c.module, c.submodule, c.title}, "\x00")
}

// ImportService loads a catalog spreadsheet. Blank hierarchy cells repeat the value
// of the row above, so a case spans one row per step. Existing cases (same title in
// the same submodule) are skipped, which makes re-importing a sheet a no-op.
type ImportService struct {
	catalog *CatalogService
}

func NewImportService(catalog *CatalogService) *ImportService {
	return &ImportService{catalog: catalog}
}

func (s *ImportService) Import(ctx context.Context, r io.Reader) (ImportReport, error) {
	u, ctx, err := principal(ctx)
	if err != nil {
		return ImportReport{}, err
	}
	if err := s.catalog.require(u, permissions.ManageHierarchy); err != nil {
		return ImportReport{}, err
	}

	cases, err := parseImport(r)
	if err != nil {
		return ImportReport{}, err
	}

	var created []hierarchy.TestCase
	report, err := repo.InTenantTxResult(ctx, s.catalog.tx, func(txCtx context.Context) (ImportReport, error) {
		created = created[:0]
		var rep ImportReport
		for _, c := range cases {
			tc, ok, err := s.importCase(txCtx, c, &rep)
			if err != nil {
				return ImportReport{}, fmt.Errorf("row %d: %w", c.row, err)
			}
			if ok {
				created = append(created, tc)
				rep.TestCaseIDs = append(rep.TestCaseIDs, tc.ID)
			}
		}
		return rep, nil
	})
	if err != nil {
		return ImportReport{}, mapHierarchyError(err)
	}

	for _, tc := range created {
		s.catalog.publisher.Publish(hierarchy.NewTestCaseCreatedEvent(u.ID(), tc))
	}
	composables.UseLogger(ctx).WithFields(logrus.Fields{
		"created": report.TestCasesCreated,
		"skipped": report.TestCasesSkipped,
	}).Info("catalog import finished")
	return report, nil
}

func (s *ImportService) importCase(txCtx context.Context, c *importCase, rep *ImportReport) (hierarchy.TestCase, bool, error) {
	h := s.catalog.hierarchy

	project, err := h.FindProjectByName(txCtx, c.project)
	if errors.Is(err, hierarchy.ErrProjectNotFound) {
		project, err = h.CreateProject(txCtx, hierarchy.Project{Name: c.project})
		rep.ProjectsCreated++
	}
	if err != nil {
		return hierarchy.TestCase{}, false, err
	}

	module, err := h.FindModuleByName(txCtx, project.ID, c.module)
	if errors.Is(err, hierarchy.ErrModuleNotFound) {
		module, err = h.CreateModule(txCtx, hierarchy.Module{ProjectID: project.ID, Name: c.module})
		rep.ModulesCreated++
	}
	if err != nil {
		return hierarchy.TestCase{}, false, err
	}

	sub, err := h.FindSubmoduleByName(txCtx, module.ID, c.submodule)
	if errors.Is(err, hierarchy.ErrSubmoduleNotFound) {
		sub, err = h.CreateSubmodule(txCtx, hierarchy.Submodule{ModuleID: module.ID, Name: c.submodule})
		rep.SubmodulesCreated++
	}
	if err != nil {
		return hierarchy.TestCase{}, false, err
	}

	if _, err := h.FindTestCaseByTitle(txCtx, sub.ID, c.title); err == nil {
		rep.TestCasesSkipped++
		return hierarchy.TestCase{}, false, nil
	} else if !errors.Is(err, hierarchy.ErrTestCaseNotFound) {
		return hierarchy.TestCase{}, false, err
	}

	tc, err := s.catalog.addTestCase(txCtx, hierarchy.TestCase{
		ProjectID:   project.ID,
		ModuleID:    module.ID,
		SubmoduleID: sub.ID,
		Title:       c.title,
		Description: c.description,
		Steps:       c.steps,
	})
	if err != nil {
		return hierarchy.TestCase{}, false, err
	}
	rep.TestCasesCreated++
	return tc, true, nil
}

// isZip reports whether the sniffed type is a zip container; .xlsx files written by
// some tools are only recognized as plain zip.
func isZip(mt *mimetype.MIME) bool {
	for ; mt != nil; mt = mt.Parent() {
		if mt.Is("application/zip") {
			return true
		}
	}
	return false
}

func parseImport(r io.Reader) ([]*importCase, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if mt := mimetype.Detect(data); !isZip(mt) {
		return nil, serrors.Validation("INVALID_WORKBOOK", fmt.Sprintf("file is not a valid .xlsx workbook (detected %s)", mt.String()))
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, serrors.Wrap(serrors.KindValidation, "INVALID_WORKBOOK", "file is not a valid .xlsx workbook", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, serrors.Validation("INVALID_WORKBOOK", "workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, serrors.Wrap(serrors.KindValidation, "INVALID_WORKBOOK", "cannot read first sheet", err)
	}
	if len(rows) == 0 {
		return nil, serrors.Validation("EMPTY_IMPORT", "sheet is empty")
	}

	cols := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	missing := map[string]string{}
	for _, name := range requiredImportColumns {
		if _, ok := cols[name]; !ok {
			missing[name] = "column is missing"
		}
	}
	if len(missing) > 0 {
		return nil, serrors.ValidationFields("INVALID_IMPORT_HEADER", missing)
	}

	cell := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var (
		order   []*importCase
		byKey   = map[string]*importCase{}
		prev    importCase
		invalid = map[string]string{}
	)
	for i, row := range rows[1:] {
		line := i + 2
		cur := importCase{
			row:         line,
			project:     cell(row, colProject),
			module:      cell(row, colModule),
			submodule:   cell(row, colSubmodule),
			title:       cell(row, colTestCase),
			description: cell(row, colDescription),
		}
		action := cell(row, colAction)
		if cur.project == "" && cur.module == "" && cur.submodule == "" && cur.title == "" && action == "" {
			continue
		}
		cur.project = fallback(cur.project, prev.project)
		cur.module = fallback(cur.module, prev.module)
		cur.submodule = fallback(cur.submodule, prev.submodule)
		cur.title = fallback(cur.title, prev.title)
		prev = cur

		field := fmt.Sprintf("row %d", line)
		if cur.project == "" || cur.module == "" || cur.submodule == "" || cur.title == "" {
			invalid[field] = "project, module, submodule and test case are required"
			continue
		}
		if len(cur.project) > 255 || len(cur.module) > 255 || len(cur.submodule) > 255 || len(cur.title) > 500 {
			invalid[field] = "name is too long"
			continue
		}

		c, seen := byKey[cur.key()]
		if !seen {
			c = &importCase{
				row:         line,
				project:     cur.project,
				module:      cur.module,
				submodule:   cur.submodule,
				title:       cur.title,
				description: cur.description,
			}
			byKey[c.key()] = c
			order = append(order, c)
		} else if c.description == "" {
			c.description = cur.description
		}

		if action == "" {
			continue
		}
		number := len(c.steps) + 1
		if raw := cell(row, colStepNumber); raw != "" {
			n, err := strconv.Atoi(strings.TrimSuffix(raw, ".0"))
			if err != nil || n <= 0 {
				invalid[field] = fmt.Sprintf("step # %q is not a positive integer", raw)
				continue
			}
			number = n
		}
		for _, st := range c.steps {
			if st.StepNumber == number {
				invalid[field] = fmt.Sprintf("step # %d repeats within %q", number, c.title)
			}
		}
		if _, bad := invalid[field]; bad {
			continue
		}
		c.steps = append(c.steps, hierarchy.TestStep{
			StepNumber:     number,
			Action:         action,
			ExpectedResult: cell(row, colExpected),
		})
	}

	if len(invalid) > 0 {
		return nil, serrors.ValidationFields("INVALID_IMPORT_ROWS", invalid)
	}
	if len(order) == 0 {
		return nil, serrors.Validation("EMPTY_IMPORT", "sheet has no test cases")
	}
	for _, c := range order {
		hierarchy.SortSteps(c.steps)
	}
	return order, nil
}

func fallback(v, prev string) string {
	if v != "" {
		return v
	}
	return prev
}
