package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Relay/internal/breaker"
	"github.com/shaiso/Relay/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *breaker.Registry, *atomic.Int32) {
	t.Helper()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	reg := breaker.New(breaker.Config{})
	client := New(Config{
		Service:        "test-service",
		BaseURL:        srv.URL,
		Breaker:        reg,
		RequestTimeout: time.Second,
		CallTimeout:    2 * time.Second,
		MaxRetries:     3,
		RetryDelay:     time.Millisecond,
	})
	return client, reg, &calls
}

func TestClient_Success(t *testing.T) {
	client, reg, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/things/1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"one"}`))
	})

	var out struct {
		Name string `json:"name"`
	}
	require.NoError(t, client.GetJSON(context.Background(), "/things/1", &out))

	assert.Equal(t, "one", out.Name)
	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, breaker.StateClosed, reg.State("test-service").State)
}

func TestClient_RetriesOn5xxThenSucceeds(t *testing.T) {
	var n atomic.Int32
	client, reg, calls := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if n.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	})

	require.NoError(t, client.GetJSON(context.Background(), "/x", nil))
	assert.EqualValues(t, 3, calls.Load())
	assert.Zero(t, reg.State("test-service").FailureCount)
}

func TestClient_5xxExhaustion(t *testing.T) {
	client, reg, calls := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"db down"}`))
	})

	err := client.GetJSON(context.Background(), "/x", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)

	var ue *domain.UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, http.StatusInternalServerError, ue.StatusCode)
	assert.Equal(t, "db down", ue.Body)

	assert.EqualValues(t, 4, calls.Load())
	assert.Equal(t, 1, reg.State("test-service").FailureCount)
}

func TestClient_4xxNotRetried(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusBadRequest, domain.ErrBadRequest},
		{http.StatusUnauthorized, domain.ErrUnauthorized},
		{http.StatusNotFound, domain.ErrNotFound},
		{http.StatusConflict, domain.ErrConflict},
		{http.StatusTeapot, domain.ErrServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			client, reg, calls := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("nope"))
			})

			err := client.GetJSON(context.Background(), "/x", nil)
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), "nope")
			assert.EqualValues(t, 1, calls.Load())
			assert.Zero(t, reg.State("test-service").FailureCount)
		})
	}
}

func TestClient_FailsFastWhenOpen(t *testing.T) {
	client, reg, calls := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	for i := 0; i < breaker.DefaultFailureThreshold; i++ {
		reg.OnFailure("test-service")
	}

	err := client.GetJSON(context.Background(), "/x", nil)
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
	assert.Zero(t, calls.Load())
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	reg := breaker.New(breaker.Config{})
	client := New(Config{
		Service:    "gone",
		BaseURL:    addr,
		Breaker:    reg,
		MaxRetries: 1,
		RetryDelay: time.Millisecond,
	})

	err := client.GetJSON(context.Background(), "/x", nil)
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)

	var ue *domain.UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Zero(t, ue.StatusCode)
	assert.Equal(t, 1, reg.State("gone").FailureCount)
}

func TestClient_RequestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	reg := breaker.New(breaker.Config{})
	client := New(Config{
		Service:        "slow",
		BaseURL:        srv.URL,
		Breaker:        reg,
		RequestTimeout: 20 * time.Millisecond,
		CallTimeout:    200 * time.Millisecond,
		MaxRetries:     1,
		RetryDelay:     time.Millisecond,
	})

	start := time.Now()
	err := client.GetJSON(context.Background(), "/x", nil)
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, 1, reg.State("slow").FailureCount)
}

func TestClient_CallerCancelReleasesTrial(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	reg := breaker.New(breaker.Config{Now: func() time.Time { return now }})
	for i := 0; i < breaker.DefaultFailureThreshold; i++ {
		reg.OnFailure("flaky")
	}
	now = now.Add(breaker.DefaultResetTimeout)

	client := New(Config{
		Service:        "flaky",
		BaseURL:        srv.URL,
		Breaker:        reg,
		RequestTimeout: time.Second,
		CallTimeout:    2 * time.Second,
		MaxRetries:     1,
		RetryDelay:     time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := client.GetJSON(ctx, "/x", nil)
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)

	assert.Equal(t, breaker.StateHalfOpen, reg.State("flaky").State)
	assert.True(t, reg.CanExecute("flaky"))
}

func TestMapStatus(t *testing.T) {
	assert.ErrorIs(t, MapStatus(400), domain.ErrBadRequest)
	assert.ErrorIs(t, MapStatus(502), domain.ErrServiceUnavailable)
	assert.ErrorIs(t, MapStatus(0), domain.ErrServiceUnavailable)
}
