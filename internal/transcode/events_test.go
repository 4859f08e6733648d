package transcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamvio/streamvio/internal/models"
)

func TestBusPublishSubscribe(t *testing.T) {
	bus := NewBus(nil)
	sub := bus.Subscribe(4)
	defer bus.Unsubscribe(sub.ID)

	jobID := models.NewULID()
	bus.Publish(Event{Type: EventStarted, JobID: jobID})
	bus.Publish(Event{Type: EventProgress, JobID: jobID, Percent: 50})

	got := <-sub.Events
	assert.Equal(t, EventStarted, got.Type)
	assert.Equal(t, jobID, got.JobID)
	assert.False(t, got.Timestamp.IsZero())

	got = <-sub.Events
	assert.Equal(t, EventProgress, got.Type)
	assert.Equal(t, 50, got.Percent)
}

func TestBusDropsWhenSubscriberFull(t *testing.T) {
	bus := NewBus(nil)
	sub := bus.Subscribe(1)
	defer bus.Unsubscribe(sub.ID)

	// Publishing past the buffer must not block.
	for range 10 {
		bus.Publish(Event{Type: EventProgress})
	}

	// Only the first event survived.
	assert.Len(t, sub.Events, 1)
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus(nil)
	sub := bus.Subscribe(1)
	bus.Unsubscribe(sub.ID)

	_, open := <-sub.Events
	assert.False(t, open)

	// Unsubscribing twice is harmless.
	bus.Unsubscribe(sub.ID)

	// Publishing with no subscribers is harmless too.
	bus.Publish(Event{Type: EventCompleted})
}

func TestBusMultipleSubscribers(t *testing.T) {
	bus := NewBus(nil)
	a := bus.Subscribe(2)
	b := bus.Subscribe(2)
	defer bus.Unsubscribe(a.ID)
	defer bus.Unsubscribe(b.ID)

	bus.Publish(Event{Type: EventCompleted})

	require.Len(t, a.Events, 1)
	require.Len(t, b.Events, 1)
}
