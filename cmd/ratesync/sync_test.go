package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs(append(args, "--env-file", ""))

	err := root.Execute()
	return out.String(), err
}

func TestSyncCommand(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"amount":1.0,"base":%q,"date":"2024-03-01","rates":{"USD":1.08,"GBP":0.85}}`, r.URL.Query().Get("from"))
	}))
	defer upstream.Close()

	t.Setenv("RATESYNC_API_URL", upstream.URL)
	t.Setenv("RATESYNC_CACHE_DIR", t.TempDir())
	t.Setenv("RATESYNC_LOG_LEVEL", "error")

	out, err := runCLI(t, "sync", "--base", "chf")
	require.NoError(t, err)

	var result syncOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "CHF", result.Base)
	assert.Equal(t, "2024-03-01", result.Date)
	assert.Equal(t, 1.08, result.Rates["USD"])
	assert.Empty(t, result.Changes)
	assert.NotEmpty(t, result.SessionID)
	assert.False(t, result.FromCache)
}

func TestSyncCommandReportsCategorizedError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rates":"none"}`))
	}))
	defer upstream.Close()

	t.Setenv("RATESYNC_API_URL", upstream.URL)
	t.Setenv("RATESYNC_CACHE_DIR", t.TempDir())
	t.Setenv("RATESYNC_LOG_LEVEL", "error")

	_, err := runCLI(t, "sync")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not be read")
}

func TestInvalidConfigFailsFast(t *testing.T) {
	t.Setenv("RATESYNC_BASE", "EURO")

	_, err := runCLI(t, "sync")
	assert.ErrorContains(t, err, "invalid base currency")
}
