package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iota-uz/testbench/pkg/configuration"
)

func TestOpsGuard(t *testing.T) {
	conf := &configuration.Configuration{
		GoAppEnvironment: configuration.Production,
		OpsGuardEnabled:  true,
		OpsGuardCIDRs:    "10.0.0.0/8",
		OpsGuardToken:    "s3cret",
		RealIPHeader:     "X-Real-IP",
	}
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := OpsGuard(conf, "/health", "/debug/prometheus")(ok)

	serve := func(path string, mutate func(*http.Request)) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "203.0.113.9:5000"
		if mutate != nil {
			mutate(req)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusNotFound, serve("/health", nil))
	require.Equal(t, http.StatusOK, serve("/api/v1/projects", nil))
	require.Equal(t, http.StatusNotFound, serve("/debug/prometheus/metrics", nil))
	require.Equal(t, http.StatusOK, serve("/healthz", nil))
	require.Equal(t, http.StatusOK, serve("/health", func(r *http.Request) { r.Header.Set("X-Real-IP", "10.1.2.3") }))
	require.Equal(t, http.StatusOK, serve("/debug/prometheus", func(r *http.Request) { r.Header.Set("Authorization", "Bearer s3cret") }))

	conf.GoAppEnvironment = "development"
	require.Equal(t, http.StatusOK, serve("/health", nil))
}
