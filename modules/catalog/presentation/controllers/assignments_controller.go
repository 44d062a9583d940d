package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/iota-uz/testbench/modules/catalog/domain/assignment"
	"github.com/iota-uz/testbench/modules/catalog/services"
	"github.com/iota-uz/testbench/pkg/application"
	"github.com/iota-uz/testbench/pkg/constants"
	"github.com/iota-uz/testbench/pkg/httpapi"
)

type AssignmentsController struct {
	app         application.Application
	assignments *services.AssignmentService
	basePath    string
}

func NewAssignmentsController(app application.Application) application.Controller {
	return &AssignmentsController{
		app:         app,
		assignments: app.Service(services.AssignmentService{}).(*services.AssignmentService),
		basePath:    constants.APIPrefix + "/assignments",
	}
}

func (c *AssignmentsController) Key() string {
	return c.basePath
}

func (c *AssignmentsController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.HandleFunc("", c.list).Methods(http.MethodGet)
	router.HandleFunc("/modules", c.assignModule).Methods(http.MethodPost)
	router.HandleFunc("/modules/{userId}/{moduleId}", c.unassignModule).Methods(http.MethodDelete)
	router.HandleFunc("/projects", c.assignProject).Methods(http.MethodPost)
	router.HandleFunc("/projects/{userId}/{projectId}", c.unassignProject).Methods(http.MethodDelete)
}

func (c *AssignmentsController) list(w http.ResponseWriter, r *http.Request) {
	userID, err := httpapi.QueryUUID(r, "user_id")
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	out, err := c.assignments.ListAssignments(r.Context(), userID)
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, out)
}

func (c *AssignmentsController) assignModule(w http.ResponseWriter, r *http.Request) {
	var dto assignment.ModuleAssignDTO
	if err := httpapi.DecodeJSON(r, &dto); err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	a, err := c.assignments.AssignModule(r.Context(), &dto)
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusCreated, a)
}

func (c *AssignmentsController) unassignModule(w http.ResponseWriter, r *http.Request) {
	userID, err := httpapi.PathUUID(r, "userId")
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	moduleID, err := httpapi.PathUUID(r, "moduleId")
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	if err := c.assignments.UnassignModule(r.Context(), userID, moduleID); err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *AssignmentsController) assignProject(w http.ResponseWriter, r *http.Request) {
	var dto assignment.ProjectAssignDTO
	if err := httpapi.DecodeJSON(r, &dto); err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	a, err := c.assignments.AssignProject(r.Context(), &dto)
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusCreated, a)
}

func (c *AssignmentsController) unassignProject(w http.ResponseWriter, r *http.Request) {
	userID, err := httpapi.PathUUID(r, "userId")
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	projectID, err := httpapi.PathUUID(r, "projectId")
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	if err := c.assignments.UnassignProject(r.Context(), userID, projectID); err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
