package dispatch

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriptionDropsNewestWhenFull(t *testing.T) {
	sub := NewSubscription("ak.wwise.core.profiler.captureLog.itemAdded", 3)

	for i := 0; i < 5; i++ {
		sub.Push(map[string]any{"seq": i})
	}

	events, dropped := sub.Drain(0, false)
	require.Len(t, events, 3)
	assert.Equal(t, 2, dropped)
	// Oldest events survive; overflow is discarded on arrival.
	for i, event := range events {
		assert.Equal(t, i, event["seq"])
	}
}

func TestSubscriptionDrainWithLimit(t *testing.T) {
	sub := NewSubscription("topic", 10)
	for i := 0; i < 4; i++ {
		sub.Push(map[string]any{"seq": i})
	}

	events, _ := sub.Drain(2, false)
	require.Len(t, events, 2)
	assert.Equal(t, 0, events[0]["seq"])
	assert.Equal(t, 1, events[1]["seq"])
	assert.Equal(t, 4, sub.Pending())
}

func TestSubscriptionDrainClearRemovesReturnedEvents(t *testing.T) {
	sub := NewSubscription("topic", 3)
	for i := 0; i < 5; i++ {
		sub.Push(map[string]any{"seq": i})
	}

	events, dropped := sub.Drain(2, true)
	require.Len(t, events, 2)
	assert.Equal(t, 2, dropped)

	// The undrained tail remains, dropped counter resets, capacity frees up.
	assert.Equal(t, 1, sub.Pending())
	sub.Push(map[string]any{"seq": 5})
	events, dropped = sub.Drain(0, true)
	require.Len(t, events, 2)
	assert.Equal(t, 0, dropped)
	assert.Equal(t, 2, events[0]["seq"])
	assert.Equal(t, 5, events[1]["seq"])
}

func TestRegistryAdoptGetRemove(t *testing.T) {
	reg := NewSubscriptionRegistry()
	sub := NewSubscription("topic", 8)

	reg.Adopt("id-1", sub)
	got, ok := reg.Get("id-1")
	require.True(t, ok)
	assert.Same(t, sub, got)
	assert.Equal(t, 1, reg.Count())

	assert.True(t, reg.Remove("id-1"))
	assert.False(t, reg.Remove("id-1"))
	_, ok = reg.Get("id-1")
	assert.False(t, ok)
}

func TestRegistrySnapshot(t *testing.T) {
	reg := NewSubscriptionRegistry()
	for i := 0; i < 3; i++ {
		reg.Adopt(fmt.Sprintf("id-%d", i), NewSubscription("topic", 8))
	}

	assert.Len(t, reg.All(), 3)

	reg.Clear()
	assert.Equal(t, 0, reg.Count())
}
