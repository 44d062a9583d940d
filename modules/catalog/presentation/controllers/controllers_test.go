package controllers_test

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/iota-uz/testbench/modules"
	"github.com/iota-uz/testbench/modules/catalog/domain/assignment"
	"github.com/iota-uz/testbench/modules/catalog/domain/hierarchy"
	"github.com/iota-uz/testbench/modules/catalog/services"
	"github.com/iota-uz/testbench/modules/core/domain/aggregates/user"
	"github.com/iota-uz/testbench/pkg/itf"
)

type catalogEnv struct {
	s      *itf.Suite
	admin  user.User
	qa     user.User
	tester user.User
}

func setup(t *testing.T) *catalogEnv {
	t.Helper()
	s := itf.HTTP(t, modules.BuiltInModules()...)
	org := s.Organization("Acme")
	return &catalogEnv{
		s:      s,
		admin:  s.User(org, "admin@acme.test", "ADMIN"),
		qa:     s.User(org, "qa@acme.test", "QA"),
		tester: s.User(org, "tester@acme.test", "TESTER"),
	}
}

func (e *catalogEnv) hierarchy(t *testing.T) (hierarchy.Project, hierarchy.Module, hierarchy.Submodule) {
	t.Helper()
	admin := e.s.AsUser(e.admin)
	var p hierarchy.Project
	admin.POST("/api/v1/projects").JSON(map[string]string{"name": "Shop"}).Expect(t).Status(http.StatusCreated).JSON(&p)
	var m hierarchy.Module
	admin.POST("/api/v1/modules").JSON(map[string]string{"project_id": p.ID.String(), "name": "Billing"}).
		Expect(t).Status(http.StatusCreated).JSON(&m)
	var sub hierarchy.Submodule
	admin.POST("/api/v1/submodules").JSON(map[string]string{"module_id": m.ID.String(), "name": "Invoices"}).
		Expect(t).Status(http.StatusCreated).JSON(&sub)
	return p, m, sub
}

func TestProjects(t *testing.T) {
	e := setup(t)
	p, m, _ := e.hierarchy(t)

	var list struct {
		Data  []hierarchy.Project `json:"data"`
		Total int                 `json:"total"`
	}
	e.s.AsUser(e.admin).GET("/api/v1/projects").Expect(t).Status(http.StatusOK).JSON(&list)
	require.Equal(t, 1, list.Total)

	e.s.AsUser(e.tester).GET("/api/v1/projects").Expect(t).Status(http.StatusOK).JSON(&list)
	require.Zero(t, list.Total)
	require.NotNil(t, list.Data)

	env := e.s.AsUser(e.tester).GET("/api/v1/projects/" + p.ID.String()).Expect(t).Status(http.StatusForbidden).Error()
	require.Equal(t, "NOT_ACCESSIBLE", env.Code)

	var detail services.ProjectDetail
	e.s.AsUser(e.admin).GET("/api/v1/projects/" + p.ID.String()).Expect(t).Status(http.StatusOK).JSON(&detail)
	require.Len(t, detail.Modules, 1)
	require.Equal(t, m.ID, detail.Modules[0].ID)

	e.s.AsUser(e.admin).GET("/api/v1/projects/not-a-uuid").Expect(t).Status(http.StatusNotFound)
	e.s.AsUser(e.admin).GET("/api/v1/projects/" + uuid.NewString()).Expect(t).Status(http.StatusNotFound)
}

func TestProjects_CreateValidation(t *testing.T) {
	e := setup(t)
	admin := e.s.AsUser(e.admin)

	env := admin.POST("/api/v1/projects").JSON(map[string]string{"name": ""}).Expect(t).Status(http.StatusBadRequest).Error()
	require.Equal(t, "INVALID_PROJECT", env.Code)
	require.Contains(t, env.Fields, "name")

	admin.POST("/api/v1/projects").JSON(map[string]any{"name": "Shop", "extra": true}).Expect(t).Status(http.StatusBadRequest)
	admin.POST("/api/v1/projects").Body("application/json", []byte("{")).Expect(t).Status(http.StatusBadRequest)

	admin.POST("/api/v1/projects").JSON(map[string]string{"name": "Shop"}).Expect(t).Status(http.StatusCreated)
	env = admin.POST("/api/v1/projects").JSON(map[string]string{"name": "Shop"}).Expect(t).Status(http.StatusConflict).Error()
	require.Equal(t, "DUPLICATE_NAME", env.Code)

	e.s.AsUser(e.qa).POST("/api/v1/projects").JSON(map[string]string{"name": "Other"}).Expect(t).Status(http.StatusForbidden)
}

func TestTestCases_CreateGetDelete(t *testing.T) {
	e := setup(t)
	_, m, sub := e.hierarchy(t)
	admin := e.s.AsUser(e.admin)

	admin.POST("/api/v1/assignments/modules").
		JSON(assignment.ModuleAssignDTO{UserID: e.tester.ID().String(), ModuleID: m.ID.String()}).
		Expect(t).Status(http.StatusCreated)

	var tc hierarchy.TestCase
	admin.POST("/api/v1/test-cases").JSON(hierarchy.TestCaseCreateDTO{
		SubmoduleID: sub.ID.String(),
		Title:       "Issue invoice",
		Steps:       []hierarchy.TestStepDTO{{Action: "open"}, {Action: "submit"}},
	}).Expect(t).Status(http.StatusCreated).JSON(&tc)
	require.Len(t, tc.Steps, 2)

	var got hierarchy.TestCase
	e.s.AsUser(e.tester).GET("/api/v1/test-cases/" + tc.ID.String()).Expect(t).Status(http.StatusOK).JSON(&got)
	require.Equal(t, tc.ID, got.ID)

	var executions struct {
		Total int `json:"total"`
	}
	e.s.AsUser(e.tester).GET("/api/v1/executions").Expect(t).Status(http.StatusOK).JSON(&executions)
	require.Equal(t, 1, executions.Total)

	e.s.AsUser(e.tester).DELETE("/api/v1/test-cases/" + tc.ID.String()).Expect(t).Status(http.StatusForbidden)
	admin.DELETE("/api/v1/test-cases/" + tc.ID.String()).Expect(t).Status(http.StatusNoContent)
	admin.GET("/api/v1/test-cases/" + tc.ID.String()).Expect(t).Status(http.StatusNotFound)

	e.s.AsUser(e.tester).GET("/api/v1/executions").Expect(t).Status(http.StatusOK).JSON(&executions)
	require.Zero(t, executions.Total)
}

func TestModules_VisibilityFollowsAssignments(t *testing.T) {
	e := setup(t)
	_, m, _ := e.hierarchy(t)

	e.s.AsUser(e.qa).GET("/api/v1/modules/" + m.ID.String()).Expect(t).Status(http.StatusForbidden)
	e.s.AsUser(e.qa).POST("/api/v1/submodules").JSON(map[string]string{"module_id": m.ID.String(), "name": "Refunds"}).
		Expect(t).Status(http.StatusForbidden)

	e.s.AsUser(e.admin).POST("/api/v1/assignments/modules").
		JSON(assignment.ModuleAssignDTO{UserID: e.qa.ID().String(), ModuleID: m.ID.String()}).
		Expect(t).Status(http.StatusCreated)

	var detail services.ModuleDetail
	e.s.AsUser(e.qa).GET("/api/v1/modules/" + m.ID.String()).Expect(t).Status(http.StatusOK).JSON(&detail)
	require.Len(t, detail.Submodules, 1)

	var list struct {
		Data []hierarchy.Module `json:"data"`
	}
	e.s.AsUser(e.qa).GET("/api/v1/modules").Expect(t).Status(http.StatusOK).JSON(&list)
	require.Len(t, list.Data, 1)

	e.s.AsUser(e.qa).POST("/api/v1/submodules").JSON(map[string]string{"module_id": m.ID.String(), "name": "Refunds"}).
		Expect(t).Status(http.StatusCreated)
}

func TestAssignments(t *testing.T) {
	e := setup(t)
	p, m, _ := e.hierarchy(t)
	admin := e.s.AsUser(e.admin)

	e.s.AsUser(e.qa).POST("/api/v1/assignments/modules").
		JSON(assignment.ModuleAssignDTO{UserID: e.tester.ID().String(), ModuleID: m.ID.String()}).
		Expect(t).Status(http.StatusForbidden)

	admin.POST("/api/v1/assignments/modules").
		JSON(assignment.ModuleAssignDTO{UserID: e.tester.ID().String(), ModuleID: m.ID.String()}).
		Expect(t).Status(http.StatusCreated)
	admin.POST("/api/v1/assignments/modules").
		JSON(assignment.ModuleAssignDTO{UserID: e.tester.ID().String(), ModuleID: m.ID.String()}).
		Expect(t).Status(http.StatusConflict)
	admin.POST("/api/v1/assignments/projects").
		JSON(assignment.ProjectAssignDTO{UserID: e.tester.ID().String(), ProjectID: p.ID.String()}).
		Expect(t).Status(http.StatusCreated)

	var got services.Assignments
	e.s.AsUser(e.tester).GET("/api/v1/assignments").Expect(t).Status(http.StatusOK).JSON(&got)
	require.Equal(t, e.tester.ID(), got.UserID)
	require.Len(t, got.Modules, 1)
	require.Len(t, got.Projects, 1)

	admin.GET("/api/v1/assignments?user_id=" + e.tester.ID().String()).Expect(t).Status(http.StatusOK)
	admin.GET("/api/v1/assignments?user_id=bogus").Expect(t).Status(http.StatusBadRequest)
	e.s.AsUser(e.tester).GET("/api/v1/assignments?user_id=" + e.qa.ID().String()).Expect(t).Status(http.StatusForbidden)

	admin.DELETE("/api/v1/assignments/modules/" + e.tester.ID().String() + "/" + m.ID.String()).Expect(t).Status(http.StatusNoContent)
	admin.DELETE("/api/v1/assignments/modules/" + e.tester.ID().String() + "/" + m.ID.String()).Expect(t).Status(http.StatusNotFound)
	admin.DELETE("/api/v1/assignments/projects/" + e.tester.ID().String() + "/" + p.ID.String()).Expect(t).Status(http.StatusNoContent)
}

func importSheet(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	header := make([]any, len(services.ImportColumns))
	for i, c := range services.ImportColumns {
		header[i] = c
	}
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &header))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"Shop", "Billing", "Invoices", "Issue invoice", "", 1, "open", "shown"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]any{"", "", "", "", "", 2, "submit", "issued"}))
	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)
	return buf.Bytes()
}

func TestImport_Multipart(t *testing.T) {
	e := setup(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "catalog.xlsx")
	require.NoError(t, err)
	_, err = part.Write(importSheet(t))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	var report services.ImportReport
	e.s.AsUser(e.admin).POST("/api/v1/test-cases:import").Body(mw.FormDataContentType(), body.Bytes()).
		Expect(t).Status(http.StatusOK).JSON(&report)
	require.Equal(t, 1, report.TestCasesCreated)
	require.Equal(t, 1, report.ProjectsCreated)
}

func TestImport_RawBodyAndErrors(t *testing.T) {
	e := setup(t)
	admin := e.s.AsUser(e.admin)

	var report services.ImportReport
	admin.POST("/api/v1/test-cases:import").
		Body("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", importSheet(t)).
		Expect(t).Status(http.StatusOK).JSON(&report)
	require.Equal(t, 1, report.TestCasesCreated)

	admin.POST("/api/v1/test-cases:import").
		Body("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", importSheet(t)).
		Expect(t).Status(http.StatusOK).JSON(&report)
	require.Equal(t, 1, report.TestCasesSkipped)

	var empty bytes.Buffer
	mw := multipart.NewWriter(&empty)
	require.NoError(t, mw.WriteField("note", "no file"))
	require.NoError(t, mw.Close())
	env := admin.POST("/api/v1/test-cases:import").Body(mw.FormDataContentType(), empty.Bytes()).
		Expect(t).Status(http.StatusBadRequest).Error()
	require.Equal(t, "INVALID_UPLOAD", env.Code)

	env = admin.POST("/api/v1/test-cases:import").Body("application/octet-stream", []byte("plain text")).
		Expect(t).Status(http.StatusBadRequest).Error()
	require.Equal(t, "INVALID_WORKBOOK", env.Code)
	require.Contains(t, env.Message, "text/plain")

	e.s.AsUser(e.qa).POST("/api/v1/test-cases:import").Body("application/octet-stream", importSheet(t)).
		Expect(t).Status(http.StatusForbidden)
}
