// Package transcode implements the transcoding job engine: profile and
// ladder resolution, ffmpeg orchestration, and the bounded job scheduler.
package transcode

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/streamvio/streamvio/internal/models"
)

// EventType identifies a job lifecycle event.
type EventType string

const (
	EventQueued    EventType = "queued"
	EventStarted   EventType = "started"
	EventProgress  EventType = "progress"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
	EventCancelled EventType = "cancelled"
)

// Event is one job lifecycle notification.
type Event struct {
	Type       EventType   `json:"type"`
	JobID      models.ULID `json:"job_id"`
	MediaID    models.ULID `json:"media_id"`
	Percent    int         `json:"percent,omitempty"`
	OutputPath string      `json:"output_path,omitempty"`
	Reason     string      `json:"reason,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// Subscriber receives job events on a buffered channel.
type Subscriber struct {
	ID     string
	Events chan Event
}

// Bus is an in-process fan-out of job events. Publishing never blocks: when
// a subscriber's buffer is full the event is dropped for that subscriber.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	logger      *slog.Logger
}

// NewBus creates a new event bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subscribers: make(map[string]*Subscriber),
		logger:      logger.With(slog.String("component", "event_bus")),
	}
}

// Subscribe registers a new subscriber with the given channel buffer size.
func (b *Bus) Subscribe(buffer int) *Subscriber {
	if buffer < 1 {
		buffer = 16
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscriber{
		ID:     uuid.NewString(),
		Events: make(chan Event, buffer),
	}
	b.subscribers[sub.ID] = sub

	b.logger.Debug("subscriber added", slog.String("subscriber_id", sub.ID))
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subscribers[id]; ok {
		close(sub.Events)
		delete(b.subscribers, id)
		b.logger.Debug("subscriber removed", slog.String("subscriber_id", id))
	}
}

// Publish fans the event out to all subscribers without blocking.
func (b *Bus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		select {
		case sub.Events <- event:
		default:
			b.logger.Warn("subscriber event channel full, dropping event",
				slog.String("subscriber_id", sub.ID),
				slog.String("job_id", event.JobID.String()),
				slog.String("event_type", string(event.Type)),
			)
		}
	}
}
