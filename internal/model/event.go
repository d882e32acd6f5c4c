package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a step in a stored file's lifecycle.
type EventType string

const (
	EventUploaded   EventType = "uploaded"
	EventProcessed  EventType = "processed"
	EventDownloaded EventType = "downloaded"
	EventExpired    EventType = "expired"
)

// Event is published whenever a stored file changes state.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Type       EventType `json:"type"`
	Area       string    `json:"area"` // "intake" or "results"
	Name       string    `json:"name"`
	Size       int64     `json:"size,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEvent builds an Event with a fresh ID stamped with the current time.
func NewEvent(t EventType, area, name string, size int64) Event {
	return Event{
		ID:         uuid.New(),
		Type:       t,
		Area:       area,
		Name:       name,
		Size:       size,
		OccurredAt: time.Now().UTC(),
	}
}
