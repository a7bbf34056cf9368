package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishToAllSubscribers(t *testing.T) {
	h := NewHub(nil)
	_, a := h.Subscribe(4)
	idB, b := h.Subscribe(4)
	require.Equal(t, 2, h.Len())

	h.Publish(Event{Kind: KindCleared})

	evtA := <-a
	evtB := <-b
	assert.Equal(t, KindCleared, evtA.Kind)
	assert.NotZero(t, evtA.At)
	assert.Equal(t, evtA, evtB)

	h.Unsubscribe(idB)
	h.Unsubscribe(idB)
	_, open := <-b
	assert.False(t, open)
	assert.Equal(t, 1, h.Len())
}

func TestHub_PublishNeverBlocks(t *testing.T) {
	h := NewHub(nil)
	_, ch := h.Subscribe(1)

	h.Publish(Event{Kind: KindSaved, ID: "1"})
	h.Publish(Event{Kind: KindSaved, ID: "2"})

	assert.Equal(t, "1", (<-ch).ID)
	assert.Len(t, ch, 0)

	h.Close()
	assert.Equal(t, 0, h.Len())
}
