package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvents_PublishSubscribe(t *testing.T) {
	t.Parallel()

	events := NewEvents()
	ch := events.Subscribe()
	assert.Equal(t, 1, events.Count())

	events.Publish(Event{Path: "/a"})
	got := <-ch
	assert.Equal(t, Path("/a"), got.Path)

	events.Unsubscribe(ch)
	assert.Equal(t, 0, events.Count())
	_, open := <-ch
	assert.False(t, open)

	// second unsubscribe is a no-op
	events.Unsubscribe(ch)
}

func TestEvents_DropsForSlowConsumers(t *testing.T) {
	t.Parallel()

	events := NewEvents()
	ch := events.Subscribe()
	defer events.Unsubscribe(ch)

	for i := 0; i < eventBuffer+10; i++ {
		events.Publish(Event{Path: "/a"})
	}
	require.Len(t, ch, eventBuffer)
}
