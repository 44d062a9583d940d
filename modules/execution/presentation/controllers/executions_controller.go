package controllers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/iota-uz/testbench/modules/execution/domain/execution"
	"github.com/iota-uz/testbench/modules/execution/services"
	"github.com/iota-uz/testbench/pkg/application"
	"github.com/iota-uz/testbench/pkg/constants"
	"github.com/iota-uz/testbench/pkg/httpapi"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ExecutionsController struct {
	app        application.Application
	executions *services.ExecutionService
	basePath   string
}

func NewExecutionsController(app application.Application) application.Controller {
	return &ExecutionsController{
		app:        app,
		executions: app.Service(services.ExecutionService{}).(*services.ExecutionService),
		basePath:   constants.APIPrefix + "/executions",
	}
}

func (c *ExecutionsController) Key() string {
	return c.basePath
}

func (c *ExecutionsController) Register(r *mux.Router) {
	r.HandleFunc(c.basePath, c.list).Methods(http.MethodGet)
	r.HandleFunc(c.basePath+":export", c.export).Methods(http.MethodGet)
	r.HandleFunc(c.basePath+"/{id}", c.get).Methods(http.MethodGet)
	r.HandleFunc(c.basePath+"/{id}/steps/{stepId}", c.updateStep).Methods(http.MethodPut)
	r.HandleFunc(c.basePath+"/{id}/complete", c.complete).Methods(http.MethodPut)
}

func (c *ExecutionsController) list(w http.ResponseWriter, r *http.Request) {
	userID, err := httpapi.QueryUUID(r, "user_id")
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	items, err := c.executions.List(r.Context(), userID)
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, httpapi.NewList(items))
}

// export buffers the workbook so a failure halfway still yields a JSON error.
func (c *ExecutionsController) export(w http.ResponseWriter, r *http.Request) {
	userID, err := httpapi.QueryUUID(r, "user_id")
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := c.executions.Export(r.Context(), userID, &buf); err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	filename := fmt.Sprintf("executions-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (c *ExecutionsController) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathUUID(r, "id")
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	e, err := c.executions.Get(r.Context(), id)
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, e)
}

func (c *ExecutionsController) updateStep(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathUUID(r, "id")
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	stepID, err := httpapi.PathUUID(r, "stepId")
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	var dto execution.StepUpdateDTO
	if err := httpapi.DecodeJSON(r, &dto); err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	e, err := c.executions.UpdateStep(r.Context(), id, stepID, &dto)
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, e)
}

func (c *ExecutionsController) complete(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathUUID(r, "id")
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	var dto execution.CompleteDTO
	if err := httpapi.DecodeJSON(r, &dto); err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	e, err := c.executions.Complete(r.Context(), id, &dto)
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, e)
}
