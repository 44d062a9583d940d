package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/iota-uz/testbench/modules/core/presentation/controllers/dtos"
	"github.com/iota-uz/testbench/modules/core/services"
	"github.com/iota-uz/testbench/pkg/application"
	"github.com/iota-uz/testbench/pkg/constants"
	"github.com/iota-uz/testbench/pkg/httpapi"
)

type UsersController struct {
	app         application.Application
	userService *services.UserService
	basePath    string
}

func NewUsersController(app application.Application) application.Controller {
	return &UsersController{
		app:         app,
		userService: app.Service(services.UserService{}).(*services.UserService),
		basePath:    constants.APIPrefix + "/users",
	}
}

func (c *UsersController) Key() string {
	return c.basePath
}

func (c *UsersController) Register(r *mux.Router) {
	r.HandleFunc(c.basePath, c.list).Methods(http.MethodGet)
}

func (c *UsersController) list(w http.ResponseWriter, r *http.Request) {
	us, err := c.userService.List(r.Context())
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	out := make([]dtos.UserResponse, 0, len(us))
	for _, u := range us {
		out = append(out, dtos.UserToResponse(u))
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, httpapi.NewList(out))
}
