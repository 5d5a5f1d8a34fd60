package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCmd выполняет команду против тестового сервера и возвращает stdout и stderr.
func runCmd(t *testing.T, srv *httptest.Server, token string, jsonMode bool, build func(func() *Client, func() *Output) *cobra.Command, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	clientFn := func() *Client { return NewClient(srv.URL, token) }
	outputFn := func() *Output { return NewOutputTo(jsonMode, &stdout, &stderr) }

	cmd := build(clientFn, outputFn)
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestSendCmd(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/notifications", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"data":{"notification_id":"n-1","channels":{"email":true,"push":false}}}`))
	}))
	defer srv.Close()

	stdout, _, err := runCmd(t, srv, "tok", false, NewSendCmd,
		"welcome", "--user-id", "u-1", "--var", "link=https://x", "--vars-json", `{"n":2}`, "--priority", "7")
	require.NoError(t, err)

	assert.Equal(t, "welcome", got["template_code"])
	assert.Equal(t, "u-1", got["user_id"])
	assert.Equal(t, map[string]any{"link": "https://x", "n": float64(2)}, got["variables"])
	assert.Equal(t, float64(7), got["priority"])

	assert.Contains(t, stdout, "NOTIFICATION_ID")
	assert.Contains(t, stdout, "n-1")
}

func TestSendCmd_OmitsPriorityByDefault(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"data":{"notification_id":"n-2","channels":{"email":false,"push":true}}}`))
	}))
	defer srv.Close()

	_, _, err := runCmd(t, srv, "", true, NewSendCmd, "welcome", "--user-id", "u-1")
	require.NoError(t, err)

	_, hasPriority := got["priority"]
	assert.False(t, hasPriority)
}

func TestSendCmd_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":"BAD_REQUEST","message":"missing variables: link"}}`))
	}))
	defer srv.Close()

	_, _, err := runCmd(t, srv, "", false, NewSendCmd, "welcome", "--user-id", "u-1")
	require.Error(t, err)
	assert.Equal(t, "BAD_REQUEST: missing variables: link", err.Error())
}

func TestSendCmd_InvalidVar(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, _, err := runCmd(t, srv, "", false, NewSendCmd, "welcome", "--var", "novalue")
	assert.ErrorContains(t, err, "expected KEY=VALUE")
}

func TestStatusCmd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/notifications/status/n-1", r.URL.Path)
		w.Write([]byte(`{"data":{"email":{"notification_id":"n-1","channel":"email","status":"delivered","timestamp":"2026-10-15T12:00:00Z"},"push":null}}`))
	}))
	defer srv.Close()

	stdout, _, err := runCmd(t, srv, "", false, NewStatusCmd, "n-1")
	require.NoError(t, err)

	assert.Contains(t, stdout, "delivered")
	assert.Contains(t, stdout, "push")
}

func TestDLQListCmd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/dead-letters", r.URL.Path)
		assert.Equal(t, "push", r.URL.Query().Get("channel"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		w.Write([]byte(`{"data":[{"id":"d-1","channel":"push","request_id":"r-1","payload":{},"reason":"rejected","failed_at":"2026-10-15T12:00:00Z"}],"total":1}`))
	}))
	defer srv.Close()

	stdout, _, err := runCmd(t, srv, "tok", false, NewDLQCmd, "list", "--channel", "push", "--limit", "5")
	require.NoError(t, err)

	assert.Contains(t, stdout, "d-1")
	assert.Contains(t, stdout, "rejected")
}

func TestDLQReplayCmd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/dead-letters/d-1/replay", r.URL.Path)
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"data":{"id":"d-1","channel":"email","request_id":"r-1","replayed_at":"2026-10-15T12:00:00Z"}}`))
	}))
	defer srv.Close()

	_, stderr, err := runCmd(t, srv, "tok", false, NewDLQCmd, "replay", "d-1")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Replayed d-1")
}

func TestHealthCmd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"user":{"status":"healthy"},"redis":{"status":"unhealthy"}}`))
	}))
	defer srv.Close()

	stdout, _, err := runCmd(t, srv, "", false, NewHealthCmd)
	assert.EqualError(t, err, "1 of 2 dependencies unhealthy")
	assert.Contains(t, stdout, "redis")
}

func TestParseVariables(t *testing.T) {
	vars, err := parseVariables([]string{"a=1", "b=x=y"}, `{"a":"json","c":true}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": "1", "b": "x=y", "c": true}, vars)

	_, err = parseVariables(nil, `[1]`)
	assert.Error(t, err)
}
