package status

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Relay/internal/domain"
)

func TestReporter_Report(t *testing.T) {
	received := make(chan CallbackPayload, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/notifications/push/status", r.URL.Path)
		assert.Equal(t, "s3cret", r.Header.Get(SecretHeader))

		var p CallbackPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		received <- p
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	reporter := NewReporter(ReporterConfig{GatewayURL: srv.URL + "/", Secret: "s3cret"})
	reporter.Report(context.Background(), domain.StatusRecord{
		NotificationID: "n1",
		Channel:        domain.ChannelPush,
		Status:         domain.StatusFailed,
		Error:          "boom",
	})

	select {
	case p := <-received:
		assert.Equal(t, "n1", p.NotificationID)
		assert.Equal(t, domain.StatusFailed, p.Status)
		assert.Equal(t, "boom", p.Error)
		assert.False(t, p.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("report not received")
	}
}

func TestReporter_SwallowsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	reporter := NewReporter(ReporterConfig{GatewayURL: srv.URL})
	err := reporter.send(context.Background(), domain.StatusRecord{NotificationID: "n1", Channel: domain.ChannelEmail, Status: domain.StatusDelivered})
	assert.Error(t, err)

	// Report не паникует и ничего не возвращает
	reporter.Report(context.Background(), domain.StatusRecord{NotificationID: "n1", Channel: domain.ChannelEmail})

	unconfigured := NewReporter(ReporterConfig{})
	assert.Error(t, unconfigured.send(context.Background(), domain.StatusRecord{}))
}

func TestReporter_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	reporter := NewReporter(ReporterConfig{GatewayURL: srv.URL, Timeout: 20 * time.Millisecond})

	start := time.Now()
	err := reporter.send(context.Background(), domain.StatusRecord{NotificationID: "n", Channel: domain.ChannelEmail, Status: domain.StatusDelivered})
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
