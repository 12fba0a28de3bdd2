package events

import "time"

// EventType identifies the type of event
type EventType string

// Conversation event types
const (
	ArtifactUpdated   EventType = "conversation.artifact.updated"
	TranscriptUpdated EventType = "conversation.transcript.updated"
	StatusChanged     EventType = "conversation.status.changed"
	HistoryChanged    EventType = "conversation.history.changed"
)

// Event represents a generic event in the system
type Event[T any] struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Payload   T         `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id,omitempty"`
}

// EventFilter defines a filter function for events
type EventFilter func(eventType EventType) bool

// PublishOption configures a published event
type PublishOption func(*PublishOptions)

// PublishOptions contains options for publishing events
type PublishOptions struct {
	SessionID string
}

// WithSessionID tags the event with a session
func WithSessionID(sessionID string) PublishOption {
	return func(opts *PublishOptions) {
		opts.SessionID = sessionID
	}
}

// FilterByType creates a filter for specific event types
func FilterByType(eventTypes ...EventType) EventFilter {
	typeMap := make(map[EventType]bool, len(eventTypes))
	for _, t := range eventTypes {
		typeMap[t] = true
	}
	return func(eventType EventType) bool {
		return typeMap[eventType]
	}
}
