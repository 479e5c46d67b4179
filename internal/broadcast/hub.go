package broadcast

import (
	"sync"

	"pairchat/pkg/domain"
)

type EventType string

const (
	EventMessage EventType = "message"
	EventTyping  EventType = "typing"
)

// Event is the payload fanned out to every connected subscriber. There
// is one shared channel for all messages; clients filter locally.
type Event struct {
	Type    EventType       `json:"type"`
	Message *domain.Message `json:"message,omitempty"`
	Typing  *domain.Typing  `json:"typing,omitempty"`
}

// Sink receives a copy of every published event. Used to mirror the
// in-process fan-out to an external broker.
type Sink interface {
	Publish(ev Event) error
}

const subscriberBuffer = 64

// Subscriber is one connected client. Events arrive on C; a subscriber
// that falls behind silently misses events.
type Subscriber struct {
	C chan Event

	hub  *Hub
	once sync.Once
}

// Close detaches the subscriber and closes its channel.
func (s *Subscriber) Close() {
	s.once.Do(func() {
		s.hub.unsubscribe(s)
	})
}

// Hub is the single shared publish channel. Publishing never blocks and
// never fails: delivery is best-effort, zero subscribers is success.
type Hub struct {
	mu   sync.RWMutex
	subs map[*Subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscriber]struct{})}
}

// Subscribe attaches a new subscriber.
func (h *Hub) Subscribe() *Subscriber {
	sub := &Subscriber{C: make(chan Event, subscriberBuffer), hub: h}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *Hub) unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
	close(sub.C)
}

// Publish fans the event out to all current subscribers without
// blocking. Returns the number of subscribers that received it.
func (h *Hub) Publish(ev Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for sub := range h.subs {
		select {
		case sub.C <- ev:
			delivered++
		default:
		}
	}
	return delivered
}

// SubscriberCount reports the number of attached subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
