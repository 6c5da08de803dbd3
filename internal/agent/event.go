package agent

import "github.com/recaplabs/recap/internal/retrieval"

// EventType identifies a low-level generation event.
type EventType int

const (
	// EventText carries one non-empty text delta from the model.
	EventText EventType = iota

	// EventToolStart marks the beginning of the retrieval step.
	EventToolStart

	// EventToolEnd marks retrieval completion and carries the invocation
	// record. Citations are derived from this event only.
	EventToolEnd
)

// Event is one element of the orchestrator's event stream, consumed by
// the stream projector.
type Event struct {
	Type       EventType
	Text       string
	Invocation *retrieval.Invocation
}

// EmitFunc receives events in generation order. Returning an error stops
// the turn; the orchestrator emits nothing further.
type EmitFunc func(Event) error
