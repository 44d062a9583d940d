package routelint

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	internalserver "github.com/iota-uz/testbench/internal/server"
	"github.com/iota-uz/testbench/modules"
	"github.com/iota-uz/testbench/pkg/application"
	"github.com/iota-uz/testbench/pkg/configuration"
	"github.com/iota-uz/testbench/pkg/eventbus"
	"github.com/iota-uz/testbench/pkg/httpapi"
	"github.com/iota-uz/testbench/pkg/memdb"
	"github.com/iota-uz/testbench/pkg/routing"
)

func buildRouter(t *testing.T) *mux.Router {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	app := application.New(&application.ApplicationOptions{
		Memory:   memdb.New(),
		EventBus: eventbus.NewEventPublisher(logger),
		Logger:   logger,
	})
	require.NoError(t, modules.Load(app, modules.BuiltInModules()...))

	srv, err := internalserver.Default(&internalserver.DefaultOptions{
		Logger: logger,
		Configuration: &configuration.Configuration{
			Prometheus: configuration.PrometheusOptions{Enabled: true, Path: "/debug/prometheus"},
		},
		Application: app,
	})
	require.NoError(t, err)
	return srv.Router()
}

func TestServerRoutes_AllAllowlisted(t *testing.T) {
	rules, err := routing.LoadAllowlist("", "server")
	require.NoError(t, err)
	classifier := routing.NewClassifier(rules)

	var paths, offending []string
	require.NoError(t, buildRouter(t).Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		if p := routePath(route); strings.TrimSpace(p) != "" {
			paths = append(paths, p)
		}
		return nil
	}))
	require.NotEmpty(t, paths)

	for _, p := range paths {
		if _, ok := classifier.MatchAllowlist(p); !ok {
			offending = append(offending, p)
		}
	}
	sort.Strings(offending)
	require.Empty(t, offending, "routes outside the allowlist")
	require.Contains(t, paths, "/debug/prometheus")
	require.Contains(t, paths, "/api/v1/workbench/next")
}

func TestServerRoutes_ErrorsAreJSON(t *testing.T) {
	router := buildRouter(t)

	cases := []struct {
		method, path string
		status       int
		code         string
	}{
		{http.MethodGet, "/api/v1/__nonexistent__", http.StatusNotFound, "NOT_FOUND"},
		{http.MethodDelete, "/health", http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED"},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(tc.method, tc.path, nil))

		require.Equal(t, tc.status, rr.Code, tc.path)
		require.Equal(t, "application/json", rr.Header().Get("Content-Type"))
		var env httpapi.ErrorEnvelope
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&env))
		require.Equal(t, tc.code, env.Code)
	}
}

func routePath(route *mux.Route) string {
	if route == nil {
		return ""
	}
	if tmpl, err := route.GetPathTemplate(); err == nil {
		return tmpl
	}
	regexp, err := route.GetPathRegexp()
	if err != nil {
		return ""
	}
	return strings.TrimSuffix(strings.TrimPrefix(regexp, "^"), "$")
}
