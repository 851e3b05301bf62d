package db

import (
	"sync"

	"github.com/google/uuid"
)

// Event topics emitted by the database facade.
const (
	TopicReady             = "ready"
	TopicError             = "error"
	TopicCollectionCreated = "collection.created"
	TopicCollectionDrop    = "collection.drop"
)

// Event is one facade notification.
type Event struct {
	Topic string
	Name  string      // collection name, when the topic concerns one
	Err   error       // non-nil for error-carrying events
	Data  interface{} // topic-specific payload
}

type subscription struct {
	pattern string
	fn      func(Event)
}

// Emitter delivers events to subscribers. Patterns are either an exact
// topic, a "prefix.*" wildcard matching every sub-topic, or "*" for
// everything. Delivery is synchronous on the emitting goroutine.
type Emitter struct {
	mu   sync.RWMutex
	subs map[string]subscription
}

func NewEmitter() *Emitter {
	return &Emitter{subs: make(map[string]subscription)}
}

// Subscribe registers fn for every event matching pattern and returns a
// token for Unsubscribe.
func (e *Emitter) Subscribe(pattern string, fn func(Event)) string {
	token := uuid.NewString()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.subs[token] = subscription{pattern: pattern, fn: fn}
	return token
}

// Unsubscribe removes a subscription. Unknown tokens are ignored.
func (e *Emitter) Unsubscribe(token string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.subs, token)
}

// Emit delivers the event to every matching subscriber.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	matched := make([]func(Event), 0, len(e.subs))
	for _, sub := range e.subs {
		if topicMatches(sub.pattern, ev.Topic) {
			matched = append(matched, sub.fn)
		}
	}
	e.mu.RUnlock()

	for _, fn := range matched {
		fn(ev)
	}
}

func topicMatches(pattern, topic string) bool {
	if pattern == "*" || pattern == topic {
		return true
	}
	// "collection.*" matches "collection.created", "collection.drop", ...
	const wildcard = ".*"
	if len(pattern) > len(wildcard) && pattern[len(pattern)-len(wildcard):] == wildcard {
		prefix := pattern[:len(pattern)-1] // keep the trailing dot
		return len(topic) > len(prefix) && topic[:len(prefix)] == prefix
	}
	return false
}
