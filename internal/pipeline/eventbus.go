package pipeline

import "sync"

// Topics published by the pipeline.
const (
	TopicFilterChange   = "filter-change"
	TopicSummary        = "summary-updated"
	TopicHistogram      = "histogram-updated"
	TopicAnimationState = "animation-state-changed"
	TopicQueryError     = "query-error"
	TopicView           = "view-changed"
)

// Handler receives a topic payload.
type Handler func(payload any)

type subscription struct {
	id uint64
	fn Handler
}

// EventBus is a synchronous publish/subscribe hub. Handlers run on the
// emitting goroutine in subscription order; nothing is queued or replayed.
type EventBus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[string][]subscription
}

func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[string][]subscription)}
}

// On registers fn for topic and returns a function that removes it.
func (b *EventBus) On(topic string, fn Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[topic] = append(b.subs[topic], subscription{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[topic]
		for i, s := range list {
			if s.id == id {
				b.subs[topic] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// Emit delivers payload to the current subscribers of topic.
func (b *EventBus) Emit(topic string, payload any) {
	b.mu.RLock()
	list := b.subs[topic]
	handlers := make([]Handler, len(list))
	for i, s := range list {
		handlers[i] = s.fn
	}
	b.mu.RUnlock()

	for _, fn := range handlers {
		fn(payload)
	}
}
