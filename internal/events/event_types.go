package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventRecordCreated EventType = "record_created"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID         string      `json:"id"`
	Type       EventType   `json:"type"`
	Collection string      `json:"collection"`
	RecordID   string      `json:"record_id"`
	Timestamp  time.Time   `json:"timestamp"`
	Payload    interface{} `json:"payload"`
}

// RecordCreatedPayload payload.
type RecordCreatedPayload struct {
	Fields map[string]string `json:"fields"`
}

// NewRecordCreated builds the event published after a successful insert.
func NewRecordCreated(collection, recordID string, fields map[string]string, at time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       EventRecordCreated,
		Collection: collection,
		RecordID:   recordID,
		Timestamp:  at,
		Payload:    RecordCreatedPayload{Fields: fields},
	}
}
