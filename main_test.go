package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContentServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]*string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		out := map[string]*string{}
		for k, v := range req {
			if k == "i18n://en-us@missing.txt" {
				continue
			}
			value := "content of " + k
			if v != nil {
				value += " (default " + *v + ")"
			}
			out[k] = &value
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DJEDI_CACHE_BACKEND", "ttl")
	t.Setenv("DJEDI_URI_CONFIG", "")
	t.Setenv("LOG_LEVEL", "error")

	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestGetCommand(t *testing.T) {
	srv := newContentServer(t)

	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"batched", []string{"get", "home/title"}, "content of i18n://en-us@home/title.txt\n"},
		{"no batch", []string{"get", "--no-batch", "home/title"}, "content of i18n://en-us@home/title.txt\n"},
		{"default", []string{"get", "--default", "Hi", "l10n://x"}, "content of l10n://local@x.txt (default Hi)\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCLI(t, append(tt.args, "--base-url", srv.URL)...)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}
}

func TestGetMissingNode(t *testing.T) {
	srv := newContentServer(t)
	_, err := runCLI(t, "get", "missing", "--base-url", srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "i18n://en-us@missing.txt: no content")
}

func TestGetRequiresURI(t *testing.T) {
	_, err := runCLI(t, "get")
	assert.Error(t, err)
}

func TestPrefetchCommand(t *testing.T) {
	srv := newContentServer(t)
	out, err := runCLI(t, "prefetch", "a", "b.md", "missing", "--base-url", srv.URL)
	require.NoError(t, err)

	var snapshot map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &snapshot))
	assert.Equal(t, map[string]string{
		"i18n://en-us@a.txt": "content of i18n://en-us@a.txt",
		"i18n://en-us@b.md":  "content of i18n://en-us@b.md",
	}, snapshot)
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "djedi v0.1.0\n", out)
}
