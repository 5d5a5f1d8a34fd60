package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/shaiso/Relay/internal/domain"
)

func newFCMSender(t *testing.T, handler http.HandlerFunc) *FCMSender {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	sender, err := NewFCMSender(context.Background(), FCMConfig{
		ProjectID:   "relay-test",
		Endpoint:    srv.URL,
		TokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "access"}),
	})
	require.NoError(t, err)
	return sender
}

func pushJob(tokens ...string) *domain.DeliveryJob {
	return &domain.DeliveryJob{
		RequestID:  "r1",
		Channel:    domain.ChannelPush,
		Recipients: tokens,
		Subject:    "Hi",
		Body:       "Welcome",
		Metadata:   map[string]any{"campaign": "spring", "n": 3},
	}
}

func TestFCMSender_SendsPerToken(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	sender := newFCMSender(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/v1/projects/relay-test/messages:send", r.URL.Path)
		assert.Equal(t, "Bearer access", r.Header.Get("Authorization"))

		var req fcmRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Hi", req.Message.Notification.Title)
		assert.Equal(t, "r1", req.Message.Data["request_id"])
		assert.Equal(t, "spring", req.Message.Data["campaign"])
		assert.Equal(t, "3", req.Message.Data["n"])

		_, _ = w.Write([]byte(`{"name":"projects/relay-test/messages/` + req.Message.Token + `"}`))
	})

	id, err := sender.Send(context.Background(), pushJob("token-aaaa-1", "token-bbbb-2"))
	require.NoError(t, err)
	assert.Equal(t, "projects/relay-test/messages/token-aaaa-1", id)
	assert.EqualValues(t, 2, calls.Load())
}

func TestFCMSender_PartialFailureSucceeds(t *testing.T) {
	t.Parallel()

	sender := newFCMSender(t, func(w http.ResponseWriter, r *http.Request) {
		var req fcmRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Message.Token == "stale-token-1" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Requested entity was not found.","status":"NOT_FOUND"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"name":"ok"}`))
	})

	_, err := sender.Send(context.Background(), pushJob("stale-token-1", "fresh-token-2"))
	assert.NoError(t, err)
}

func TestFCMSender_AllInvalidIsPermanent(t *testing.T) {
	t.Parallel()

	sender := newFCMSender(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"status":"INVALID_ARGUMENT","message":"bad token"}}`))
	})

	_, err := sender.Send(context.Background(), pushJob("x1", "x2"))
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
}

func TestFCMSender_ServerErrorIsTransient(t *testing.T) {
	t.Parallel()

	sender := newFCMSender(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := sender.Send(context.Background(), pushJob("t1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransient)
	assert.False(t, IsPermanent(err))
}

func TestNewFCMSender_RequiresTokenSource(t *testing.T) {
	t.Parallel()

	_, err := NewFCMSender(context.Background(), FCMConfig{ProjectID: "p"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestLogSender(t *testing.T) {
	t.Parallel()

	id, err := NewLogSender(NameEmail, nil).Send(context.Background(), &domain.DeliveryJob{RequestID: "r"})
	require.NoError(t, err)
	assert.Contains(t, id, "dev-")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewLogSender(NameEmail, nil).Send(ctx, &domain.DeliveryJob{})
	assert.Error(t, err)
}
