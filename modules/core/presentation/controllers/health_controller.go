package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/iota-uz/testbench/pkg/application"
)

type HealthController struct {
	app application.Application
}

func NewHealthController(app application.Application) application.Controller {
	return &HealthController{app: app}
}

func (c *HealthController) Key() string {
	return "/health"
}

func (c *HealthController) Register(r *mux.Router) {
	r.Handle("/health", application.HealthHandler(c.app)).Methods(http.MethodGet)
}
