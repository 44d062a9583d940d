package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/testbench/pkg/composables"
	"github.com/iota-uz/testbench/pkg/httpapi"
)

func TestWithLogger_RecoversPanicAsJSON(t *testing.T) {
	logger, hook := test.NewNullLogger()
	h := WithLogger(logger, DefaultLoggerOptions())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil)
	req.Header.Set("X-Request-ID", "req-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var env httpapi.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Equal(t, "INTERNAL_SERVER_ERROR", env.Code)
	require.Equal(t, "req-1", env.Meta["request_id"])

	var panicked bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel && e.Message == "panic recovered in request handler" {
			panicked = true
		}
	}
	require.True(t, panicked)
}

func TestWithLogger_ProvidesRequestScopedEntry(t *testing.T) {
	logger, _ := test.NewNullLogger()
	var requestID any
	h := WithLogger(logger, DefaultLoggerOptions())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID = composables.UseLogger(r.Context()).Data["request-id"]
		w.WriteHeader(http.StatusAccepted)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.NotEmpty(t, requestID)
	require.Equal(t, requestID, rec.Header().Get("X-Request-ID"))
}
