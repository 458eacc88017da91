// Package events is a small typed pub/sub broker used by the ingest
// engine to announce newly committed entities without coupling it to
// whatever is listening (RPC long-pollers, metrics, log sinks).
package events

import (
	"log"
	"sync"

	"github.com/lightchain-sdp/node/model"
)

// EventType labels what happened.
type EventType string

const (
	EventBlockCommitted       EventType = "block_committed"
	EventTransactionCommitted EventType = "transaction_committed"
)

// Event carries the id of the entity that triggered it.
type Event struct {
	Type     EventType
	EntityID model.Identifier
	Height   uint64 // 0 for transaction events
}

// Handler is a callback invoked for matching events.
type Handler func(Event)

// Emitter is a simple pub/sub broker. Subscribe before Emit.
type Emitter struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewEmitter creates an Emitter with no subscribers.
func NewEmitter() *Emitter {
	return &Emitter{handlers: make(map[EventType][]Handler)}
}

// Subscribe registers h to be called whenever typ is emitted.
func (e *Emitter) Subscribe(typ EventType, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[typ] = append(e.handlers[typ], h)
}

// Emit delivers ev to all subscribers for ev.Type synchronously, in
// subscription order. Each handler is guarded by panic recovery so a
// misbehaving subscriber cannot halt the ingest engine.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	handlers := make([]Handler, len(e.handlers[ev.Type]))
	copy(handlers, e.handlers[ev.Type])
	e.mu.RUnlock()
	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[events] handler panicked for %s: %v", ev.Type, r)
				}
			}()
			h(ev)
		}()
	}
}
