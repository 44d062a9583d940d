// Package itf builds an in-memory application for HTTP-level tests.
package itf

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/testbench/modules/core/domain/aggregates/user"
	"github.com/iota-uz/testbench/modules/core/domain/entities/organization"
	"github.com/iota-uz/testbench/modules/core/services"
	"github.com/iota-uz/testbench/pkg/application"
	"github.com/iota-uz/testbench/pkg/composables"
	"github.com/iota-uz/testbench/pkg/eventbus"
	"github.com/iota-uz/testbench/pkg/httpapi"
	"github.com/iota-uz/testbench/pkg/memdb"
	"github.com/iota-uz/testbench/pkg/middleware"
)

// Suite is one application instance backed by memdb, shared by every request a
// test sends through it.
type Suite struct {
	tb      testing.TB
	App     application.Application
	Handler http.Handler
}

// HTTP loads modules into a fresh memdb application and builds its router.
func HTTP(tb testing.TB, modules ...application.Module) *Suite {
	tb.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	app := application.New(&application.ApplicationOptions{
		Memory:   memdb.New(),
		EventBus: eventbus.NewEventPublisher(logger),
		Logger:   logger,
	})
	for _, m := range modules {
		if err := m.Register(app); err != nil {
			tb.Fatalf("register module %s: %v", m.Name(), err)
		}
	}

	mws := append([]mux.MiddlewareFunc{middleware.WithLogger(logger, middleware.DefaultLoggerOptions())}, app.Middleware()...)
	r := mux.NewRouter()
	r.Use(mws...)
	for _, c := range app.Controllers() {
		c.Register(r)
	}
	var notFound, notAllowed http.Handler = http.HandlerFunc(writeNotFound), http.HandlerFunc(writeNotAllowed)
	for i := len(mws) - 1; i >= 0; i-- {
		notFound = mws[i](notFound)
		notAllowed = mws[i](notAllowed)
	}
	r.NotFoundHandler = notFound
	r.MethodNotAllowedHandler = notAllowed

	return &Suite{tb: tb, App: app, Handler: r}
}

func writeNotFound(w http.ResponseWriter, r *http.Request) {
	_ = httpapi.WriteError(w, http.StatusNotFound, "NOT_FOUND", "route not found", nil)
}

func writeNotAllowed(w http.ResponseWriter, r *http.Request) {
	_ = httpapi.WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
}

// GetService returns the registered *T.
func GetService[T any](s *Suite) *T {
	var zero T
	svc, ok := s.App.Service(zero).(*T)
	if !ok {
		s.tb.Fatalf("service %T is not registered", zero)
	}
	return svc
}

// Organization creates an organization named name.
func (s *Suite) Organization(name string) organization.Organization {
	s.tb.Helper()
	org, err := GetService[services.OrganizationService](s).Create(context.Background(), name)
	if err != nil {
		s.tb.Fatalf("create organization %q: %v", name, err)
	}
	return org
}

// User creates a user in org with roles, e.g. "ADMIN" or "TESTER".
func (s *Suite) User(org organization.Organization, email string, roles ...string) user.User {
	s.tb.Helper()
	u, err := GetService[services.UserService](s).Create(context.Background(), org.ID, &user.CreateDTO{
		Email:       email,
		DisplayName: email,
		Roles:       roles,
	})
	if err != nil {
		s.tb.Fatalf("create user %q: %v", email, err)
	}
	return u
}

// Ctx is a context acting as u, for arranging state through services directly.
func (s *Suite) Ctx(u user.User) context.Context {
	ctx := composables.WithUser(context.Background(), u)
	return composables.WithTenantID(ctx, u.OrganizationID())
}

// AsUser returns a client sending requests as u.
func (s *Suite) AsUser(u user.User) *Client {
	return &Client{suite: s, userID: u.ID()}
}

// Anonymous returns a client without an identity header.
func (s *Suite) Anonymous() *Client {
	return &Client{suite: s}
}

// AsID sends requests with an arbitrary identity header value.
func (s *Suite) AsID(id uuid.UUID) *Client {
	return &Client{suite: s, userID: id}
}
