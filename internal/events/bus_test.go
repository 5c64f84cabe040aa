package events

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch := b.Subscribe(TopicNotification, 4)
	b.Publish(TopicNotification, map[string]any{"title": "hi"})

	select {
	case e := <-ch:
		if e.Topic != TopicNotification {
			t.Errorf("Topic = %q, want %q", e.Topic, TopicNotification)
		}
		if e.Payload["title"] != "hi" {
			t.Errorf("Payload[title] = %v, want hi", e.Payload["title"])
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublish_TopicIsolation(t *testing.T) {
	b := New()
	other := b.Subscribe(TopicNewEmail, 4)
	b.Publish(TopicNotification, map[string]any{"x": 1})

	select {
	case e := <-other:
		t.Fatalf("unexpected event delivered to unrelated topic: %+v", e)
	case <-time.After(50 * time.Millisecond):
		// expected: nothing delivered
	}
}

func TestPublish_SlowSubscriberDropsNotBlocks(t *testing.T) {
	b := New()
	ch := b.Subscribe(TopicNotification, 1)
	b.Publish(TopicNotification, map[string]any{"n": 1})
	b.Publish(TopicNotification, map[string]any{"n": 2}) // channel full, dropped

	select {
	case e := <-ch:
		if e.Payload["n"] != 1 {
			t.Errorf("expected first event to survive, got %v", e.Payload["n"])
		}
	default:
		t.Fatal("expected first event to be buffered")
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch := b.Subscribe(TopicNotification, 1)
	b.Unsubscribe(ch)
	if b.SubscriberCount(TopicNotification) != 0 {
		t.Errorf("SubscriberCount = %d, want 0", b.SubscriberCount(TopicNotification))
	}
	// Unsubscribing twice is a no-op, not a panic.
	b.Unsubscribe(ch)
}

func TestPublish_NilBusIsNoop(t *testing.T) {
	var b *Bus
	b.Publish(TopicNotification, nil) // must not panic
	if b.SubscriberCount("") != 0 {
		t.Errorf("nil bus SubscriberCount = %d, want 0", b.SubscriberCount(""))
	}
}

func TestPublish_FailingSubscriberIsolated(t *testing.T) {
	b := New()
	a := b.Subscribe(TopicNotification, 1)
	b2 := b.Subscribe(TopicNotification, 1)
	// Fill a's buffer so it drops; b2 should still receive.
	b.Publish(TopicNotification, map[string]any{"n": 1})
	b.Publish(TopicNotification, map[string]any{"n": 2})

	select {
	case <-a:
	default:
		t.Fatal("expected a to have buffered the first event")
	}
	select {
	case <-b2:
	default:
		t.Fatal("expected b2 to have buffered an event despite a dropping")
	}
}
