package upstream

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Relay/internal/cache"
	"github.com/shaiso/Relay/internal/domain"
)

func TestUserClient_GetContactCached(t *testing.T) {
	client, _, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/u1", r.URL.Path)
		_, _ = w.Write([]byte(`{"success":true,"data":{"name":"Ann","email":"ann@x.io","device_tokens":[],"preferences":{"email_notifications":true,"push_notifications":false}}}`))
	})
	users := NewUserClient(client, cache.NewMemoryStore(), time.Minute)

	for i := 0; i < 2; i++ {
		contact, err := users.GetContact(context.Background(), "u1")
		require.NoError(t, err)
		assert.Equal(t, "Ann", contact.Name)
		assert.Equal(t, "u1", contact.UserID)
		assert.True(t, contact.Wants(domain.ChannelEmail))
		assert.False(t, contact.Wants(domain.ChannelPush))
	}
	assert.EqualValues(t, 1, calls.Load())
}

func TestUserClient_NotFoundNotCached(t *testing.T) {
	client, _, calls := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	users := NewUserClient(client, cache.NewMemoryStore(), time.Minute)

	for i := 0; i < 2; i++ {
		_, err := users.GetContact(context.Background(), "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	}
	assert.EqualValues(t, 2, calls.Load())
}

func TestTemplateClient_GetTemplate(t *testing.T) {
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/templates", r.URL.Path)
		assert.Equal(t, "welcome", r.URL.Query().Get("template_code"))
		_, _ = w.Write([]byte(`{"data":{"template_code":"welcome","version":3,"subject":"Hi {{name}}","body":"Welcome {{ name }}"}}`))
	})
	templates := NewTemplateClient(client, nil, 0)

	tmpl, err := templates.GetTemplate(context.Background(), "welcome")
	require.NoError(t, err)
	assert.Equal(t, 3, tmpl.Version)
	assert.Equal(t, "Hi {{name}}", tmpl.Subject)
}

func TestTemplateClient_EmptyTemplateIsNotFound(t *testing.T) {
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":null}`))
	})
	templates := NewTemplateClient(client, nil, 0)

	_, err := templates.GetTemplate(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
