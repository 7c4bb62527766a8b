package events

// Record is the wire-friendly representation of a structured state change:
// a type tag plus flat string attributes.
type Record struct {
	Type       string
	Attributes map[string]string
}

// Event represents a structured state change emitted by the pool.
type Event interface {
	EventType() string
	Record() *Record
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers,
// the presentation layer). The engine never depends on anything observing
// emitted events.
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events.
// It is the default when a component does not wire a subscriber.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}
