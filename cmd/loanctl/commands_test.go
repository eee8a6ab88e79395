package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iwvelando/loan-support/internal/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv(envAPIBase, "")
	t.Setenv(envToken, "")

	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func newAPI(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(server.NewHandler(server.Options{
		Logger:  zaptest.NewLogger(t),
		Version: "test-build",
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSettingsLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")

	out, err := execute(t, "--settings", path, "settings", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "http://localhost:5000")
	assert.Contains(t, out, "(not set)")

	out, err = execute(t, "--settings", path, "settings", "set", "--token", "abcdef123456")
	require.NoError(t, err)
	assert.Contains(t, out, "********3456")
	assert.NotContains(t, out, "abcdef123456")

	_, err = execute(t, "--settings", path, "settings", "set", "--api-base", "https://loans.example.com")
	require.NoError(t, err)

	out, err = execute(t, "--settings", path, "-o", "json", "settings", "show")
	require.NoError(t, err)
	var view map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, "https://loans.example.com", view["apiBase"])
	assert.Equal(t, true, view["bearerTokenSet"])

	_, err = execute(t, "--settings", path, "settings", "clear")
	require.NoError(t, err)
	out, err = execute(t, "--settings", path, "settings", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "http://localhost:5000")
}

func TestSettingsSetRequiresAFlag(t *testing.T) {
	_, err := execute(t, "--settings", filepath.Join(t.TempDir(), "s.yaml"), "settings", "set")
	require.Error(t, err)
}

func TestSettingsSetRejectsBadURL(t *testing.T) {
	_, err := execute(t, "--settings", filepath.Join(t.TempDir(), "s.yaml"), "settings", "set", "--api-base", "localhost:5000")
	require.Error(t, err)
}

func TestInvalidOutputFormat(t *testing.T) {
	_, err := execute(t, "-o", "csv", "settings", "show")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected output format")
}

func TestHealthAndVersion(t *testing.T) {
	srv := newAPI(t)
	settingsPath := filepath.Join(t.TempDir(), "settings.yaml")

	out, err := execute(t, "--settings", settingsPath, "--api-base", srv.URL, "health")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+": ok\n", out)

	out, err = execute(t, "--settings", settingsPath, "--api-base", srv.URL, "version")
	require.NoError(t, err)
	assert.Equal(t, "test-build\n", out)
}

func TestEligibilityPretty(t *testing.T) {
	srv := newAPI(t)

	out, err := execute(t,
		"--settings", filepath.Join(t.TempDir(), "settings.yaml"),
		"--api-base", srv.URL,
		"eligibility", "--income", "8500", "--obligations", "1200", "--roi", "7.25",
		"--tenure", "360", "--loan-amount", "450000",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "EMI:                  $3,070")
	assert.Contains(t, out, "FOIR:                 50.2%")
	assert.Contains(t, out, "Eligible loan amount: $359,878")
	assert.Contains(t, out, "First-month interest: $2,718.75")
	assert.Contains(t, out, "Total interest:       $655,125.57")
	assert.NotContains(t, out, "no additional loan")
}

func TestEligibilityDerivedJSON(t *testing.T) {
	srv := newAPI(t)

	out, err := execute(t,
		"--settings", filepath.Join(t.TempDir(), "settings.yaml"),
		"--api-base", srv.URL, "-o", "json",
		"eligibility", "--income", "5000", "--obligations", "4000", "--roi", "6", "--tenure", "240",
	)
	require.NoError(t, err)

	var res map[string]float64
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, -2000.0, res["emi"])
	assert.Equal(t, 40.0, res["foir"])
}

func TestEligibilityValidationErrorIsShown(t *testing.T) {
	srv := newAPI(t)

	_, err := execute(t,
		"--settings", filepath.Join(t.TempDir(), "settings.yaml"),
		"--api-base", srv.URL,
		"eligibility", "--income", "8500", "--roi", "7", "--tenure", "601",
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tenure_months must be between 1 and 600")
}

func TestHistoryEmpty(t *testing.T) {
	srv := newAPI(t)
	settingsPath := filepath.Join(t.TempDir(), "settings.yaml")

	out, err := execute(t, "--settings", settingsPath, "--api-base", srv.URL, "history")
	require.NoError(t, err)
	assert.Equal(t, "No calculations recorded\n", out)
}

func TestAskAndIngest(t *testing.T) {
	srv := newAPI(t)
	settingsPath := filepath.Join(t.TempDir(), "settings.yaml")

	out, err := execute(t, "--settings", settingsPath, "--api-base", srv.URL, "ask", "what", "is", "FOIR?")
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(out))

	out, err = execute(t, "--settings", settingsPath, "--api-base", srv.URL, "ingest", "--path", "docs")
	require.NoError(t, err)
	assert.Contains(t, out, "Ingestion ok:")
}

func TestUnauthorizedMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	_, err := execute(t, "--settings", filepath.Join(t.TempDir(), "s.yaml"), "--api-base", srv.URL, "--token", "bad", "health")
	require.Error(t, err)
	assert.Equal(t, "Invalid token. Configure it in Settings.", err.Error())
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "(not set)", maskToken(""))
	assert.Equal(t, "***", maskToken("abc"))
	assert.Equal(t, "********5678", maskToken("12345678"))
}
