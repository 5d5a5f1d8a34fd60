package mq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Relay/internal/domain"
)

func TestQueueAndRoutingKeyFor(t *testing.T) {
	q, err := QueueFor(domain.ChannelEmail)
	require.NoError(t, err)
	assert.Equal(t, QueueEmail, q)

	k, err := RoutingKeyFor(domain.ChannelPush)
	require.NoError(t, err)
	assert.Equal(t, RoutingKeyPush, k)

	_, err = QueueFor("sms")
	assert.Error(t, err)
}

func TestQueueSpecs_DeadLetterToFailed(t *testing.T) {
	for _, q := range queueSpecs() {
		if q.name == QueueFailed {
			assert.Nil(t, q.args)
			continue
		}
		assert.Equal(t, string(ExchangeNotifications), q.args["x-dead-letter-exchange"])
		assert.Equal(t, string(RoutingKeyFailed), q.args["x-dead-letter-routing-key"])
	}
}

func TestClampPriority(t *testing.T) {
	assert.EqualValues(t, 0, clampPriority(-3))
	assert.EqualValues(t, 5, clampPriority(5))
	assert.EqualValues(t, 9, clampPriority(42))
}

func TestChannelForQueue(t *testing.T) {
	ch, ok := ChannelForQueue(QueueEmail)
	assert.True(t, ok)
	assert.Equal(t, domain.ChannelEmail, ch)

	ch, ok = ChannelForQueue(QueuePush)
	assert.True(t, ok)
	assert.Equal(t, domain.ChannelPush, ch)

	_, ok = ChannelForQueue(QueueFailed)
	assert.False(t, ok)
}
