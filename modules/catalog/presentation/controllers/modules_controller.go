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

// ModulesController serves modules and the submodules nested under them.
type ModulesController struct {
	app     application.Application
	catalog *services.CatalogService
}

func NewModulesController(app application.Application) application.Controller {
	return &ModulesController{
		app:     app,
		catalog: app.Service(services.CatalogService{}).(*services.CatalogService),
	}
}

func (c *ModulesController) Key() string {
	return constants.APIPrefix + "/modules"
}

func (c *ModulesController) Register(r *mux.Router) {
	r.HandleFunc(constants.APIPrefix+"/modules", c.list).Methods(http.MethodGet)
	r.HandleFunc(constants.APIPrefix+"/modules", c.create).Methods(http.MethodPost)
	r.HandleFunc(constants.APIPrefix+"/modules/{id}", c.get).Methods(http.MethodGet)
	r.HandleFunc(constants.APIPrefix+"/submodules", c.createSubmodule).Methods(http.MethodPost)
}

func (c *ModulesController) list(w http.ResponseWriter, r *http.Request) {
	modules, err := c.catalog.ListModules(r.Context())
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, httpapi.NewList(modules))
}

func (c *ModulesController) create(w http.ResponseWriter, r *http.Request) {
	var dto hierarchy.ModuleCreateDTO
	if err := httpapi.DecodeJSON(r, &dto); err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	module, err := c.catalog.CreateModule(r.Context(), &dto)
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusCreated, module)
}

func (c *ModulesController) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathUUID(r, "id")
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	detail, err := c.catalog.GetModule(r.Context(), id)
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, detail)
}

func (c *ModulesController) createSubmodule(w http.ResponseWriter, r *http.Request) {
	var dto hierarchy.SubmoduleCreateDTO
	if err := httpapi.DecodeJSON(r, &dto); err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	submodule, err := c.catalog.CreateSubmodule(r.Context(), &dto)
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusCreated, submodule)
}
