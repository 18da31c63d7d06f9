package progress

import "time"

// EventType closed set of lifecycle event kinds
type EventType string

const (
	EventSubscribed EventType = "subscribed"
	EventStarted    EventType = "started"
	EventProgress   EventType = "progress"
	EventCompleted  EventType = "completed"
	EventFailed     EventType = "failed"
	EventError      EventType = "error"
)

// Event broadcast-only lifecycle notification, never persisted
type Event struct {
	AnalysisID string    `json:"analysis_id"`
	Type       EventType `json:"type"`
	Payload    any       `json:"payload,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Broadcaster port used by the pipeline (single writer per analysis).
type Broadcaster interface {
	// Open creates the topic for an analysis when it starts.
	Open(analysisID, status string)
	// Publish fans an event out to current subscribers; no-op without any.
	Publish(ev Event)
	// SetStatus updates the point-in-time snapshot for late subscribers.
	SetStatus(analysisID, status string)
	// Close schedules topic teardown after the grace period.
	Close(analysisID string)
}
