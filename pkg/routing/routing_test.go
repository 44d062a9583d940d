package routing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadAllowlist_BuiltIn(t *testing.T) {
	t.Setenv("ROUTING_ALLOWLIST_PATH", "")
	rules, err := LoadAllowlist("", "server")
	require.NoError(t, err)
	require.Equal(t, []string{"/api/v1"}, Prefixes(rules, RouteClassPublicAPI))
	require.ElementsMatch(t, []string{"/health", "/debug/prometheus"}, Prefixes(rules, RouteClassOps))
}

func TestLoadAllowlist_RejectsBadFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
		return p
	}

	_, err := LoadAllowlist(filepath.Join(dir, "missing.yaml"), "server")
	require.ErrorIs(t, err, ErrAllowlistNotFound)

	_, err = LoadAllowlist(write("v2.yaml", "version: 2\n"), "server")
	require.ErrorContains(t, err, "unsupported allowlist version")

	_, err = LoadAllowlist(write("class.yaml", "version: 1\nentrypoints:\n  server:\n    - prefix: /x\n      class: ui\n"), "server")
	require.ErrorContains(t, err, "unknown class")

	_, err = LoadAllowlist(write("slash.yaml", "version: 1\nentrypoints:\n  server:\n    - prefix: x\n      class: ops\n"), "server")
	require.ErrorContains(t, err, "must start with '/'")

	_, err = LoadAllowlist(write("ok.yaml", "version: 1\nentrypoints:\n  server: []\n"), "worker")
	require.ErrorContains(t, err, `entrypoint "worker"`)
}

func TestClassifier(t *testing.T) {
	c := NewClassifier([]AllowlistRule{
		{Prefix: "/api/v1", Class: RouteClassPublicAPI},
		{Prefix: "/health", Class: RouteClassOps},
		{Prefix: "/api/v1/internal", Class: RouteClassOps},
	})

	require.True(t, c.Is("/api/v1/projects", RouteClassPublicAPI))
	require.True(t, c.Is("/api/v1/executions:export", RouteClassPublicAPI))
	require.True(t, c.Is("/api/v1/internal/x", RouteClassOps))
	require.True(t, c.Is("/health", RouteClassOps))
	require.False(t, c.Is("/healthz", RouteClassOps))
	_, ok := c.MatchAllowlist("/api/v2/projects")
	require.False(t, ok)
}
