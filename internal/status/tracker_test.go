package status

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Relay/internal/cache"
	"github.com/shaiso/Relay/internal/domain"
)

func TestTracker_LastWriteWins(t *testing.T) {
	tracker := NewTracker(cache.NewMemoryStore(), 0)
	ctx := context.Background()

	require.NoError(t, tracker.Save(ctx, domain.StatusRecord{
		NotificationID: "n1",
		Channel:        domain.ChannelEmail,
		Status:         domain.StatusPending,
	}))
	require.NoError(t, tracker.Save(ctx, domain.StatusRecord{
		NotificationID: "n1",
		Channel:        domain.ChannelEmail,
		Status:         domain.StatusDelivered,
	}))

	rec, err := tracker.Get(ctx, "n1", domain.ChannelEmail)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, rec.Status)
	assert.False(t, rec.Timestamp.IsZero())
}

func TestTracker_GetAll(t *testing.T) {
	tracker := NewTracker(cache.NewMemoryStore(), time.Hour)
	ctx := context.Background()

	_, err := tracker.GetAll(ctx, "n1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, tracker.Save(ctx, domain.StatusRecord{
		NotificationID: "n1",
		Channel:        domain.ChannelPush,
		Status:         domain.StatusFailed,
		Error:          "all tokens rejected",
	}))

	all, err := tracker.GetAll(ctx, "n1")
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Equal(t, "all tokens rejected", all[domain.ChannelPush].Error)
	assert.Nil(t, all[domain.ChannelEmail])

	_, err = tracker.Get(ctx, "n1", domain.ChannelEmail)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTracker_SaveValidates(t *testing.T) {
	tracker := NewTracker(cache.NewMemoryStore(), 0)
	ctx := context.Background()

	tests := []domain.StatusRecord{
		{Channel: domain.ChannelEmail, Status: domain.StatusDelivered},
		{NotificationID: "n", Channel: "sms", Status: domain.StatusDelivered},
		{NotificationID: "n", Channel: domain.ChannelEmail, Status: "lost"},
	}
	for _, rec := range tests {
		assert.ErrorIs(t, tracker.Save(ctx, rec), domain.ErrValidation)
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "notif_status:email:n1", Key(domain.ChannelEmail, "n1"))
}
