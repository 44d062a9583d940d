package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestWorkbenchNext_PrintsNavigation(t *testing.T) {
	userID := uuid.New()
	execID := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/workbench/next", r.URL.Path)
		require.Equal(t, userID.String(), r.Header.Get("X-User-Id"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"execution": map[string]any{"id": execID, "position": 1, "total": 2},
		})
	}))
	defer srv.Close()

	out, err := runRoot(t, "workbench", "next", "--url", srv.URL, "--user", userID.String())
	require.NoError(t, err)

	var nav struct {
		Execution struct {
			ID    uuid.UUID `json:"id"`
			Total int       `json:"total"`
		} `json:"execution"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &nav))
	require.Equal(t, execID, nav.Execution.ID)
	require.Equal(t, 2, nav.Execution.Total)
}

func TestWorkbench_InvalidUserIsUsageError(t *testing.T) {
	_, err := runRoot(t, "workbench", "previous", "--url", "http://localhost:1", "--user", "nope")
	require.Error(t, err)
	require.Equal(t, exitUsage, exitCode(err))
}

func TestWorkbenchComplete_UnknownUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":"UNAUTHENTICATED","message":"unknown user"}`))
	}))
	defer srv.Close()

	_, err := runRoot(t, "workbench", "complete", uuid.NewString(),
		"--url", srv.URL, "--user", uuid.NewString(), "--result", "passed")
	require.Error(t, err)
	require.Equal(t, exitAuth, exitCode(err))
}
