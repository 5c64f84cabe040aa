// Package events provides the in-process publish/subscribe bus that wires
// the proactive engine, skills, and the chat bridge to the WebSocket feed.
// The bus is nil-safe: calling Publish on a nil *Bus is a no-op, so
// components do not need guard checks.
package events

import (
	"sync"
	"time"
)

// Well-known topics used by the core. Skills may publish arbitrary
// additional topic strings.
const (
	TopicNotification      = "notification"
	TopicNewEmail          = "new_email"
	TopicCalendarSynced    = "calendar_synced"
	TopicGoogleConnected   = "google_connected"
	TopicGoogleDisconnect  = "google_disconnected"
)

// Event is the envelope delivered to every subscriber of a topic.
type Event struct {
	Topic     string         `json:"topic"`
	Timestamp time.Time      `json:"ts"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Bus is a non-blocking, per-topic broadcast bus. Subscribers register for
// one topic and receive events on a buffered channel; a slow subscriber
// misses events rather than blocking publishers or other subscribers. Events
// published to one subscriber preserve that subscriber's delivery order;
// there is no ordering guarantee across subscribers.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
	// recvToSend maps the receive-only channel returned by Subscribe back
	// to the bidirectional channel stored in subs, keyed by topic, so
	// Unsubscribe can accept the caller's <-chan Event view.
	recvToSend map[<-chan Event]subscription
}

type subscription struct {
	topic string
	ch    chan Event
}

// New creates a new event bus ready for use.
func New() *Bus {
	return &Bus{
		subs:       make(map[string]map[chan Event]struct{}),
		recvToSend: make(map[<-chan Event]subscription),
	}
}

// Publish delivers payload to every subscriber of topic. Delivery is
// best-effort and non-blocking: if a subscriber's channel is full, the
// event is dropped for that subscriber only. Safe to call on a nil
// receiver.
func (b *Bus) Publish(topic string, payload map[string]any) {
	if b == nil {
		return
	}
	e := Event{Topic: topic, Timestamp: time.Now(), Payload: payload}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[topic] {
		select {
		case ch <- e:
		default:
			// Subscriber is full — drop rather than block the publisher
			// or any other subscriber.
		}
	}
}

// Subscribe returns a channel that receives events published on topic. The
// caller must eventually call Unsubscribe to avoid leaking the channel.
// bufSize controls the channel buffer; 64 is a reasonable default for a
// WebSocket consumer.
func (b *Bus) Subscribe(topic string, bufSize int) <-chan Event {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[chan Event]struct{})
	}
	b.subs[topic][ch] = struct{}{}
	b.recvToSend[ch] = subscription{topic: topic, ch: ch}
	return ch
}

// Unsubscribe removes a subscription and closes its channel. Safe to call
// with a channel that is already unsubscribed (no-op).
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub, ok := b.recvToSend[ch]
	if !ok {
		return
	}
	delete(b.subs[sub.topic], sub.ch)
	if len(b.subs[sub.topic]) == 0 {
		delete(b.subs, sub.topic)
	}
	delete(b.recvToSend, ch)
	close(sub.ch)
}

// SubscriberCount returns the number of active subscribers across all
// topics, or for one topic when non-empty is given.
func (b *Bus) SubscriberCount(topic string) int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if topic == "" {
		n := 0
		for _, m := range b.subs {
			n += len(m)
		}
		return n
	}
	return len(b.subs[topic])
}
