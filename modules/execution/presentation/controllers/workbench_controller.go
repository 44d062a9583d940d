package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/iota-uz/testbench/modules/execution/services"
	"github.com/iota-uz/testbench/pkg/application"
	"github.com/iota-uz/testbench/pkg/constants"
	"github.com/iota-uz/testbench/pkg/httpapi"
)

// WorkbenchController walks the caller's executions one at a time.
type WorkbenchController struct {
	app       application.Application
	navigator *services.Navigator
	basePath  string
}

func NewWorkbenchController(app application.Application) application.Controller {
	return &WorkbenchController{
		app:       app,
		navigator: app.Service(services.Navigator{}).(*services.Navigator),
		basePath:  constants.APIPrefix + "/workbench",
	}
}

func (c *WorkbenchController) Key() string {
	return c.basePath
}

func (c *WorkbenchController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.HandleFunc("/next", c.move(c.navigator.Next)).Methods(http.MethodGet)
	router.HandleFunc("/previous", c.move(c.navigator.Previous)).Methods(http.MethodGet)
}

func (c *WorkbenchController) move(step func(context.Context, uuid.UUID) (services.NavigationResult, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current, err := httpapi.QueryUUID(r, "current")
		if err != nil {
			httpapi.WriteServiceError(w, r, err)
			return
		}
		res, err := step(r.Context(), current)
		if err != nil {
			httpapi.WriteServiceError(w, r, err)
			return
		}
		_ = httpapi.WriteJSON(w, http.StatusOK, res)
	}
}
