package events

import "time"

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "CHAT_EXCHANGE_COMPLETED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent helps embed common logic if needed,
// strictly creating valid implementations is preferred though.
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

// NewChatExchangeCompleted records one finished question/answer round of
// the chatbot, for downstream analytics consumers.
func NewChatExchangeCompleted(sessionID, query, answer string, ragUsed bool) Event {
	return BaseEvent{
		Type: "CHAT_EXCHANGE_COMPLETED",
		Data: map[string]interface{}{
			"session_id": sessionID,
			"query":      query,
			"answer":     answer,
			"rag_used":   ragUsed,
		},
		OccurredAt: time.Now(),
	}
}
