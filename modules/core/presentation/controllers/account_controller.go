package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/iota-uz/testbench/modules/core/authzutil"
	"github.com/iota-uz/testbench/modules/core/presentation/controllers/dtos"
	"github.com/iota-uz/testbench/modules/core/services"
	"github.com/iota-uz/testbench/pkg/application"
	"github.com/iota-uz/testbench/pkg/composables"
	"github.com/iota-uz/testbench/pkg/constants"
	"github.com/iota-uz/testbench/pkg/httpapi"
	"github.com/iota-uz/testbench/pkg/serrors"
)

var errAuthenticationRequired = serrors.Unauthenticated("UNAUTHENTICATED", "authentication required")

// AccountController serves the principal's own view: identity, capabilities and
// the CSRF token mutating calls must carry.
type AccountController struct {
	app         application.Application
	userService *services.UserService
	tokens      *authzutil.CSRFTokens
}

func NewAccountController(app application.Application) application.Controller {
	return &AccountController{
		app:         app,
		userService: app.Service(services.UserService{}).(*services.UserService),
		tokens:      app.Service(authzutil.CSRFTokens{}).(*authzutil.CSRFTokens),
	}
}

func (c *AccountController) Key() string {
	return constants.APIPrefix + "/me"
}

func (c *AccountController) Register(r *mux.Router) {
	r.HandleFunc(constants.APIPrefix+"/me", c.me).Methods(http.MethodGet)
	r.HandleFunc(constants.APIPrefix+"/csrf-token", c.csrfToken).Methods(http.MethodGet)
}

func (c *AccountController) me(w http.ResponseWriter, r *http.Request) {
	u, err := composables.UseUser(r.Context())
	if err != nil {
		httpapi.WriteServiceError(w, r, errAuthenticationRequired)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, dtos.UserToMe(u, c.userService.Capabilities(u)))
}

func (c *AccountController) csrfToken(w http.ResponseWriter, r *http.Request) {
	u, err := composables.UseUser(r.Context())
	if err != nil {
		httpapi.WriteServiceError(w, r, errAuthenticationRequired)
		return
	}
	token, expiresAt, err := c.tokens.Generate(u.ID())
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	_ = httpapi.WriteJSON(w, http.StatusOK, dtos.CSRFTokenResponse{
		Token:     token,
		Header:    constants.CSRFTokenHeader,
		ExpiresAt: expiresAt,
	})
}
