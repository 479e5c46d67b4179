package broadcast

import (
	"testing"

	"pairchat/pkg/domain"
)

func TestHubFansOutToAllSubscribers(t *testing.T) {
	hub := NewHub()
	sub1 := hub.Subscribe()
	sub2 := hub.Subscribe()
	defer sub1.Close()
	defer sub2.Close()

	msg := &domain.Message{ID: 1, SenderID: 1, ReceiverID: 2, Content: "hi"}
	delivered := hub.Publish(Event{Type: EventMessage, Message: msg})
	if delivered != 2 {
		t.Fatalf("expected 2 deliveries, got %d", delivered)
	}
	for _, sub := range []*Subscriber{sub1, sub2} {
		select {
		case ev := <-sub.C:
			if ev.Type != EventMessage || ev.Message.ID != 1 {
				t.Fatalf("unexpected event: %+v", ev)
			}
		default:
			t.Fatalf("expected buffered event")
		}
	}
}

func TestHubPublishWithoutSubscribersSucceeds(t *testing.T) {
	hub := NewHub()
	if delivered := hub.Publish(Event{Type: EventTyping, Typing: &domain.Typing{SenderID: 1, ReceiverID: 2, IsTyping: true}}); delivered != 0 {
		t.Fatalf("expected 0 deliveries, got %d", delivered)
	}
}

func TestHubDropsEventsForSlowSubscriber(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe()
	defer sub.Close()

	// Fill the buffer and one more; publish must not block.
	for i := 0; i < subscriberBuffer+1; i++ {
		hub.Publish(Event{Type: EventTyping, Typing: &domain.Typing{SenderID: 1, ReceiverID: 2}})
	}
	if got := len(sub.C); got != subscriberBuffer {
		t.Fatalf("expected full buffer of %d, got %d", subscriberBuffer, got)
	}
}

func TestHubUnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe()
	sub.Close()
	if hub.SubscriberCount() != 0 {
		t.Fatalf("expected no subscribers after close")
	}
	if delivered := hub.Publish(Event{Type: EventMessage, Message: &domain.Message{ID: 7}}); delivered != 0 {
		t.Fatalf("expected 0 deliveries after close, got %d", delivered)
	}
	// Close is idempotent.
	sub.Close()
}
