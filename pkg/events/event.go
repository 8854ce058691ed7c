package events

import "time"

// Event defines the contract for all domain events the bot emits.
type Event interface {
	// EventType returns the unique code for this event (e.g. "ENTRY_UPSERTED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent is the standard Event implementation.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// Event type codes for archive mutations and query outcomes.
const (
	TypeEntryUpserted = "ENTRY_UPSERTED"
	TypeEntryDeleted  = "ENTRY_DELETED"
	TypeQueryResolved = "QUERY_RESOLVED"
	TypeQueryMissed   = "QUERY_MISSED"
)

// NewEntryUpserted marks a question added or overwritten by the curator.
func NewEntryUpserted(question string) BaseEvent {
	return BaseEvent{
		Type:       TypeEntryUpserted,
		Data:       map[string]interface{}{"question": question},
		OccurredAt: time.Now(),
	}
}

// NewEntryDeleted marks a question removed from the archive.
func NewEntryDeleted(question string) BaseEvent {
	return BaseEvent{
		Type:       TypeEntryDeleted,
		Data:       map[string]interface{}{"question": question},
		OccurredAt: time.Now(),
	}
}

// NewQueryResolved records a successful lookup with its method and score.
func NewQueryResolved(query, question, method string, score float64) BaseEvent {
	return BaseEvent{
		Type: TypeQueryResolved,
		Data: map[string]interface{}{
			"query":    query,
			"question": question,
			"method":   method,
			"score":    score,
		},
		OccurredAt: time.Now(),
	}
}

// NewQueryMissed records a lookup that found nothing above threshold.
// Misses are the curator's signal for what the archive still lacks.
func NewQueryMissed(query string) BaseEvent {
	return BaseEvent{
		Type:       TypeQueryMissed,
		Data:       map[string]interface{}{"query": query},
		OccurredAt: time.Now(),
	}
}
