package controllers_test

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/iota-uz/testbench/modules"
	"github.com/iota-uz/testbench/modules/catalog/domain/assignment"
	"github.com/iota-uz/testbench/modules/catalog/domain/hierarchy"
	"github.com/iota-uz/testbench/modules/core/domain/aggregates/user"
	"github.com/iota-uz/testbench/modules/execution/domain/execution"
	"github.com/iota-uz/testbench/modules/execution/services"
	"github.com/iota-uz/testbench/pkg/itf"
)

type executionList struct {
	Data  []execution.WorkItem `json:"data"`
	Total int                  `json:"total"`
}

type workbenchEnv struct {
	s      *itf.Suite
	admin  user.User
	tester user.User
	other  user.User
}

// setup builds Shop/Alpha and Shop/Beta with two and one cases and assigns both
// modules to the tester.
func setup(t *testing.T) *workbenchEnv {
	t.Helper()
	s := itf.HTTP(t, modules.BuiltInModules()...)
	org := s.Organization("Acme")
	e := &workbenchEnv{
		s:      s,
		admin:  s.User(org, "admin@acme.test", "ADMIN"),
		tester: s.User(org, "tester@acme.test", "TESTER"),
		other:  s.User(org, "other@acme.test", "TESTER"),
	}
	admin := s.AsUser(e.admin)

	var p hierarchy.Project
	admin.POST("/api/v1/projects").JSON(map[string]string{"name": "Shop"}).Expect(t).Status(http.StatusCreated).JSON(&p)
	for name, cases := range map[string][]string{"Alpha": {"A1", "A2"}, "Beta": {"B1"}} {
		var m hierarchy.Module
		admin.POST("/api/v1/modules").JSON(map[string]string{"project_id": p.ID.String(), "name": name}).
			Expect(t).Status(http.StatusCreated).JSON(&m)
		var sub hierarchy.Submodule
		admin.POST("/api/v1/submodules").JSON(map[string]string{"module_id": m.ID.String(), "name": "Main"}).
			Expect(t).Status(http.StatusCreated).JSON(&sub)
		for _, title := range cases {
			admin.POST("/api/v1/test-cases").JSON(hierarchy.TestCaseCreateDTO{
				SubmoduleID: sub.ID.String(),
				Title:       title,
				Steps:       []hierarchy.TestStepDTO{{Action: "do"}},
			}).Expect(t).Status(http.StatusCreated)
		}
		admin.POST("/api/v1/assignments/modules").
			JSON(assignment.ModuleAssignDTO{UserID: e.tester.ID().String(), ModuleID: m.ID.String()}).
			Expect(t).Status(http.StatusCreated)
	}
	return e
}

func (e *workbenchEnv) list(t *testing.T) executionList {
	t.Helper()
	var out executionList
	e.s.AsUser(e.tester).GET("/api/v1/executions").Expect(t).Status(http.StatusOK).JSON(&out)
	return out
}

func TestExecutions_ListAndGet(t *testing.T) {
	e := setup(t)
	list := e.list(t)
	require.Equal(t, 3, list.Total)
	require.Equal(t, "A1", list.Data[0].TestCaseTitle)
	require.Equal(t, "B1", list.Data[2].TestCaseTitle)

	id := list.Data[0].ID.String()
	var got execution.Execution
	e.s.AsUser(e.tester).GET("/api/v1/executions/" + id).Expect(t).Status(http.StatusOK).JSON(&got)
	require.Equal(t, execution.ResultPending, got.Overall)

	e.s.AsUser(e.other).GET("/api/v1/executions/" + id).Expect(t).Status(http.StatusForbidden)
	e.s.AsUser(e.admin).GET("/api/v1/executions/" + id).Expect(t).Status(http.StatusOK)

	var forTester executionList
	e.s.AsUser(e.admin).GET("/api/v1/executions?user_id=" + e.tester.ID().String()).Expect(t).Status(http.StatusOK).JSON(&forTester)
	require.Equal(t, 3, forTester.Total)
	e.s.AsUser(e.other).GET("/api/v1/executions?user_id=" + e.tester.ID().String()).Expect(t).Status(http.StatusForbidden)
}

func TestExecutions_StepAndComplete(t *testing.T) {
	e := setup(t)
	first := e.list(t).Data[0]
	tester := e.s.AsUser(e.tester)
	base := "/api/v1/executions/" + first.ID.String()

	var updated execution.Execution
	tester.PUT(base + "/steps/" + first.Steps[0].StepID.String()).
		JSON(map[string]string{"result": "FAILED", "actual_result": "crashed"}).
		Expect(t).Status(http.StatusOK).JSON(&updated)
	require.Equal(t, execution.ResultFailed, updated.Steps[0].Result)
	require.Equal(t, execution.ResultPending, updated.Overall)

	for _, bad := range []string{"PENDING", "", "DONE"} {
		tester.PUT(base + "/complete").JSON(map[string]string{"result": bad}).Expect(t).Status(http.StatusBadRequest)
	}

	e.s.AsUser(e.other).PUT(base + "/complete").JSON(map[string]string{"result": "PASSED"}).Expect(t).Status(http.StatusForbidden)

	var done execution.Execution
	tester.PUT(base + "/complete").JSON(map[string]string{"result": "PARTIALLY_PASSED", "notes": "flaky"}).
		Expect(t).Status(http.StatusOK).JSON(&done)
	require.Equal(t, execution.ResultPartiallyPassed, done.Overall)
	require.Equal(t, "flaky", done.Notes)
	require.NotNil(t, done.CompletedAt)

	tester.PUT(base + "/complete").JSON(map[string]string{"result": "PASSED"}).Expect(t).Status(http.StatusOK)
}

func TestExecutions_Export(t *testing.T) {
	e := setup(t)
	resp := e.s.AsUser(e.tester).GET("/api/v1/executions:export").Expect(t).Status(http.StatusOK)
	require.Contains(t, resp.Header("Content-Disposition"), "executions-")

	f, err := excelize.OpenReader(bytes.NewReader(resp.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Executions")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	require.Equal(t, "A1", rows[1][3])
}

func TestWorkbench_WalksAcrossModules(t *testing.T) {
	e := setup(t)
	tester := e.s.AsUser(e.tester)

	var nav services.NavigationResult
	tester.GET("/api/v1/workbench/next").Expect(t).Status(http.StatusOK).JSON(&nav)
	require.Equal(t, "A1", nav.Execution.TestCaseTitle)
	require.Equal(t, 1, nav.Execution.Position)
	require.False(t, nav.ModuleTransition)

	tester.GET("/api/v1/workbench/next?current=" + nav.Execution.ID.String()).Expect(t).Status(http.StatusOK).JSON(&nav)
	require.Equal(t, "A2", nav.Execution.TestCaseTitle)

	tester.GET("/api/v1/workbench/next?current=" + nav.Execution.ID.String()).Expect(t).Status(http.StatusOK).JSON(&nav)
	require.Equal(t, "B1", nav.Execution.TestCaseTitle)
	require.True(t, nav.ModuleTransition)
	last := nav.Execution.ID

	nav = services.NavigationResult{}
	tester.GET("/api/v1/workbench/next?current=" + last.String()).Expect(t).Status(http.StatusOK).JSON(&nav)
	require.True(t, nav.Completed)
	require.Nil(t, nav.Execution)
	require.Equal(t, 3, nav.Summary.Total)
	require.Equal(t, 3, nav.Summary.Pending)

	nav = services.NavigationResult{}
	tester.GET("/api/v1/workbench/previous").Expect(t).Status(http.StatusOK).JSON(&nav)
	require.Equal(t, last, nav.Execution.ID)

	tester.GET("/api/v1/workbench/previous?current=bogus").Expect(t).Status(http.StatusBadRequest)
}

func TestWorkbench_AdminHasNothingToExecute(t *testing.T) {
	e := setup(t)
	var nav services.NavigationResult
	e.s.AsUser(e.admin).GET("/api/v1/workbench/next").Expect(t).Status(http.StatusOK).JSON(&nav)
	require.True(t, nav.Completed)
	require.Zero(t, nav.Summary.Total)
}
