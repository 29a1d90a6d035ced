// Package events is a small in-process observer registry. Delivery is
// synchronous and best-effort: subscribers run inline on the publishing
// goroutine and there is no replay for late subscribers.
package events

import "sync"

type Topic string

const (
	// TopicInventory carries full remaining-stock snapshots after any
	// inventory mutation (reserve, release, admin edit, activate, end).
	TopicInventory Topic = "inventory"
	// TopicDrop carries drop lifecycle transitions.
	TopicDrop Topic = "drop"
)

const (
	DropCreated   = "created"
	DropActivated = "activated"
	DropEnded     = "ended"
)

// InventoryEvent is the payload on TopicInventory.
type InventoryEvent struct {
	DropID    string         `json:"dropId"`
	Live      bool           `json:"live"`
	Remaining map[string]int `json:"remaining"`
}

// DropEvent is the payload on TopicDrop.
type DropEvent struct {
	Type   string `json:"type"` // created | activated | ended
	DropID string `json:"dropId"`
}

type Handler func(payload any)

// Subscription is a cancellable handle. Cancel is safe to call more than
// once and after the bus is gone.
type Subscription struct {
	bus   *Bus
	topic Topic
	id    int
	once  sync.Once
}

func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()
		delete(s.bus.subs[s.topic], s.id)
	})
}

type Bus struct {
	mu   sync.Mutex
	next int
	subs map[Topic]map[int]Handler
}

func NewBus() *Bus {
	return &Bus{subs: map[Topic]map[int]Handler{}}
}

func (b *Bus) Subscribe(topic Topic, fn Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	if b.subs[topic] == nil {
		b.subs[topic] = map[int]Handler{}
	}
	b.subs[topic][b.next] = fn
	return &Subscription{bus: b, topic: topic, id: b.next}
}

// Publish fans the payload out to every current subscriber of the topic.
// Handlers run synchronously; a subscriber must not mutate engine state
// from its handler or it will deadlock on the engine's own lock.
func (b *Bus) Publish(topic Topic, payload any) {
	b.mu.Lock()
	handlers := make([]Handler, 0, len(b.subs[topic]))
	for _, fn := range b.subs[topic] {
		handlers = append(handlers, fn)
	}
	b.mu.Unlock()

	for _, fn := range handlers {
		fn(payload)
	}
}
