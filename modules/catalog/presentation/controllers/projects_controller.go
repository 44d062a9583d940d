package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/iota-uz/testbench/modules/catalog/domain/hierarchy"
	"github.com/iota-uz/testbench/modules/catalog/services"
	"github.com/iota-uz/testbench/pkg/application"
	"github.com/iota-uz/testbench/pkg/constants"
	"github.com/iota-uz/testbench/pkg/httpapi"
)

type ProjectsController struct {
	app      application.Application
	catalog  *services.CatalogService
	basePath string
}

func NewProjectsController(app application.Application) application.Controller {
	return &ProjectsController{
		app:      app,
		catalog:  app.Service(services.CatalogService{}).(*services.CatalogService),
		basePath: constants.APIPrefix + "/projects",
	}
}

func (c *ProjectsController) Key() string {
	return c.basePath
}

func (c *ProjectsController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.HandleFunc("", c.list).Methods(http.MethodGet)
	router.HandleFunc("", c.create).Methods(http.MethodPost)
	router.HandleFunc("/{id}", c.get).Methods(http.MethodGet)
}

func (c *ProjectsController) list(w http.ResponseWriter, r *http.Request) {
	projects, err := c.catalog.ListProjects(r.Context())
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, httpapi.NewList(projects))
}

func (c *ProjectsController) create(w http.ResponseWriter, r *http.Request) {
	var dto hierarchy.ProjectCreateDTO
	if err := httpapi.DecodeJSON(r, &dto); err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	project, err := c.catalog.CreateProject(r.Context(), &dto)
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusCreated, project)
}

func (c *ProjectsController) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathUUID(r, "id")
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	detail, err := c.catalog.GetProject(r.Context(), id)
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, detail)
}
