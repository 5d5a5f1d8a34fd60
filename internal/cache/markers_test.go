package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Relay/internal/domain"
)

func TestMarkers_RoundTrip(t *testing.T) {
	store, mr := newRedisStore(t)
	markers := NewMarkers(store, 0)
	ctx := context.Background()

	processed, err := markers.IsProcessed(ctx, domain.ChannelEmail, "r2")
	require.NoError(t, err)
	assert.False(t, processed)

	require.NoError(t, markers.MarkProcessed(ctx, domain.ChannelEmail, "r2", domain.StatusDelivered, "msg-1"))

	processed, err = markers.IsProcessed(ctx, domain.ChannelEmail, "r2")
	require.NoError(t, err)
	assert.True(t, processed)

	marker, found, err := markers.Get(ctx, domain.ChannelEmail, "r2")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, domain.StatusDelivered, marker.Status)
	assert.Equal(t, "msg-1", marker.Detail)

	assert.Equal(t, DefaultMarkerTTL, mr.TTL(MarkerKey(domain.ChannelEmail, "r2")))
}

func TestMarkers_ChannelScoped(t *testing.T) {
	markers := NewMarkers(NewMemoryStore(), time.Hour)
	ctx := context.Background()

	require.NoError(t, markers.MarkProcessed(ctx, domain.ChannelEmail, "r1", domain.StatusDelivered, ""))

	processed, err := markers.IsProcessed(ctx, domain.ChannelPush, "r1")
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestMarkerKey(t *testing.T) {
	assert.Equal(t, "processed:push:abc", MarkerKey(domain.ChannelPush, "abc"))
}
