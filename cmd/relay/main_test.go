package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/fwojciec/relay"
	relayjson "github.com/fwojciec/relay/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, version+"\n", out)
}

func TestConfigCommand(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "[service]\nkind = \"sse\"\nurl = \"http://localhost:9/chat\"\n")
	out, err := execute(t, "--config", path, "config")
	require.NoError(t, err)
	assert.Contains(t, out, `url = "http://localhost:9/chat"`)
	assert.Contains(t, out, "[logging]")
}

func TestConfigCommand_InvalidFile(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "[service]\nkind = \"fax\"\n")
	_, err := execute(t, "--config", path, "config")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown service.kind")
}

func TestSendCommand_REST(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"text":"pong"}`)
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	sessionPath := filepath.Join(dir, "s.json")
	path := writeConfig(t, fmt.Sprintf("[service]\nkind = \"rest\"\nurl = %q\n[logging]\nlevel = \"error\"\n", srv.URL))

	out, err := execute(t, "--config", path, "--session", sessionPath, "send", "ping")
	require.NoError(t, err)
	assert.Contains(t, out, "pong")
	assert.NotContains(t, out, "ping")

	s, err := relayjson.Load(sessionPath)
	require.NoError(t, err)
	require.Len(t, s.Messages, 2)
	assert.Equal(t, "ping", s.Messages[0].Text)
	assert.Equal(t, relay.RoleAssistant, s.Messages[1].Role)
}

func TestSendCommand_ServiceFailure(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	path := writeConfig(t, fmt.Sprintf("[service]\nkind = \"rest\"\nurl = %q\n[logging]\nlevel = \"error\"\n[session]\ndir = %q\n", srv.URL, t.TempDir()))
	out, err := execute(t, "--config", path, "send", "ping")
	require.Error(t, err)
	assert.Contains(t, out, relay.ServiceErrorText)
}

func TestSendCommand_RequiresText(t *testing.T) {
	t.Parallel()
	_, err := execute(t, "send")
	require.Error(t, err)
}
