package events

import (
	"sync"
)

// Kind names an event channel.
type Kind string

const (
	KindStats Kind = "stats"
	KindError Kind = "error"
)

// Event is one harness notification. Data holds the raw JSON payload.
type Event struct {
	Kind Kind
	Data []byte
}

// Handler reacts to a single event.
type Handler func(Event)

// Source is the subscription side of an event channel.
type Source interface {
	Subscribe(kind Kind, h Handler)
}

// Publisher is the delivery side of an event channel.
type Publisher interface {
	Emit(ev Event) int
}

// Emitter is an in-process Source and Publisher.
type Emitter struct {
	mu       sync.RWMutex
	handlers map[Kind][]Handler
}

// NewEmitter creates an Emitter with no subscribers.
func NewEmitter() *Emitter {
	return &Emitter{handlers: make(map[Kind][]Handler)}
}

// Subscribe registers h for events of the given kind. Nil handlers are ignored.
func (e *Emitter) Subscribe(kind Kind, h Handler) {
	if h == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[kind] = append(e.handlers[kind], h)
}

// Emit delivers ev to every handler of its kind and reports how many ran.
func (e *Emitter) Emit(ev Event) int {
	e.mu.RLock()
	handlers := e.handlers[ev.Kind]
	e.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
	return len(handlers)
}
