package stream

// Wire event types. Every response opens with exactly one stream_start
// and carries exactly one terminal event: stream_end on success, error
// on failure. Status, chunk, and metadata events sit in between.
const (
	EventStart    = "stream_start"
	EventChunk    = "chunk"
	EventStatus   = "status"
	EventMetadata = "metadata"
	EventEnd      = "stream_end"
	EventError    = "error"
)

// Event is one server-sent payload.
type Event struct {
	Type    string      `json:"type"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// EmitFunc delivers one event to the transport. A non-nil error means
// the client is gone and the pipeline should stop.
type EmitFunc func(Event) error

func startEvent() Event            { return Event{Type: EventStart} }
func chunkEvent(s string) Event    { return Event{Type: EventChunk, Data: s} }
func statusEvent(msg string) Event { return Event{Type: EventStatus, Message: msg} }
func endEvent() Event              { return Event{Type: EventEnd} }
func errorEvent(msg string) Event  { return Event{Type: EventError, Message: msg} }
