package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeSettings persists a minimal settings file for URL derivation tests.
func writeSettings(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "siren-settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	return path
}

// TestResolveBaseURLExplicit keeps a full URL and prepends a scheme when
// missing.
func TestResolveBaseURLExplicit(t *testing.T) {
	t.Parallel()

	base, err := resolveBaseURL(&Options{ServerURL: "https://siren:5000/"})
	require.NoError(t, err)
	require.Equal(t, "https://siren:5000", base)

	base, err = resolveBaseURL(&Options{ServerURL: "siren:5000"})
	require.NoError(t, err)
	require.Equal(t, "http://siren:5000", base)
}

// TestResolveBaseURLFromConfig derives host, port and scheme from settings.
func TestResolveBaseURLFromConfig(t *testing.T) {
	t.Parallel()

	path := writeSettings(t, "listen_addr: \":5000\"\n")

	base, err := resolveBaseURL(&Options{ConfigPath: path})
	require.NoError(t, err)
	require.Equal(t, "http://localhost:5000", base)
}

// TestResolveBaseURLPrefersTLS switches to https when certificates are
// configured.
func TestResolveBaseURLPrefersTLS(t *testing.T) {
	t.Parallel()

	path := writeSettings(t, "listen_addr: \"0.0.0.0:8443\"\ntls_cert_file: cert.pem\ntls_key_file: key.pem\n")

	base, err := resolveBaseURL(&Options{ConfigPath: path})
	require.NoError(t, err)
	require.Equal(t, "https://localhost:8443", base)
}

// TestPostCommandDecodesAcknowledgement accepts 202 responses.
func TestPostCommandDecodesAcknowledgement(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/toggle", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"correlation_id":"abc","status":{"phase":"siren_active"}}`))
	}))
	defer srv.Close()

	err := postCommand(context.Background(), srv.Client(), srv.URL+"/api/toggle")
	require.NoError(t, err)
}

// TestPostCommandSurfacesAPIErrors includes the machine-readable kind.
func TestPostCommandSurfacesAPIErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"start/stop while announcing: invalid transition","kind":"invalid_transition"}`))
	}))
	defer srv.Close()

	err := postCommand(context.Background(), srv.Client(), srv.URL+"/api/toggle")
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid_transition")
}

// TestRunUnknownAction rejects unsupported actions before any request.
func TestRunUnknownAction(t *testing.T) {
	t.Parallel()

	err := Run(context.Background(), &Options{ServerURL: "http://localhost:1", Action: Action("reboot")})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown action")
}
