// Package eventbus provides the typed publish/subscribe hub that decouples the
// sync engine from its consumers (rendering, audio, UI panels).
package eventbus

import (
	"context"
	"sync"

	"stardrift/client/logging"
)

// Topic identifies one event stream on the bus.
type Topic string

// Handler receives the payload published for a topic.
type Handler func(payload any)

type subscription struct {
	id      uint64
	topic   Topic
	handler Handler
	once    bool
}

// Subscription is the handle returned by Subscribe, used to unsubscribe.
type Subscription struct {
	id    uint64
	topic Topic
}

// Bus dispatches synchronously in subscription order. A Bus is owned and
// injected by the composing application; there is no package-level instance.
type Bus struct {
	mu     sync.Mutex
	subs   map[Topic][]*subscription
	nextID uint64
	pub    logging.Publisher
}

// New constructs an empty bus. The publisher may be nil; handler panics are
// then swallowed silently.
func New(pub logging.Publisher) *Bus {
	if pub == nil {
		pub = logging.NopPublisher()
	}
	return &Bus{
		subs: make(map[Topic][]*subscription),
		pub:  pub,
	}
}

// Subscribe registers a persistent handler for a topic.
func (b *Bus) Subscribe(topic Topic, handler Handler) Subscription {
	return b.add(topic, handler, false)
}

// SubscribeOnce registers a handler that is removed before its first delivery.
func (b *Bus) SubscribeOnce(topic Topic, handler Handler) Subscription {
	return b.add(topic, handler, true)
}

func (b *Bus) add(topic Topic, handler Handler, once bool) Subscription {
	if handler == nil {
		return Subscription{}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	sub := &subscription{id: b.nextID, topic: topic, handler: handler, once: once}
	b.subs[topic] = append(b.subs[topic], sub)
	return Subscription{id: sub.id, topic: topic}
}

// Unsubscribe removes a single subscription. Unknown handles are ignored.
func (b *Bus) Unsubscribe(handle Subscription) {
	if handle.id == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(handle.topic, handle.id)
}

func (b *Bus) removeLocked(topic Topic, id uint64) {
	list := b.subs[topic]
	for i, sub := range list {
		if sub.id != id {
			continue
		}
		list = append(list[:i], list[i+1:]...)
		break
	}
	if len(list) == 0 {
		delete(b.subs, topic)
	} else {
		b.subs[topic] = list
	}
}

// Publish delivers the payload to every subscriber of the topic in
// subscription order. One-shot subscribers are removed before delivery, so a
// handler that publishes recursively cannot be invoked twice. A panicking
// handler is recovered and logged; later handlers still run.
func (b *Bus) Publish(topic Topic, payload any) {
	b.mu.Lock()
	list := b.subs[topic]
	snapshot := make([]*subscription, len(list))
	copy(snapshot, list)
	for _, sub := range snapshot {
		if sub.once {
			b.removeLocked(topic, sub.id)
		}
	}
	b.mu.Unlock()

	for _, sub := range snapshot {
		b.dispatch(topic, sub, payload)
	}
}

func (b *Bus) dispatch(topic Topic, sub *subscription, payload any) {
	defer func() {
		if r := recover(); r != nil {
			event := logging.Event{
				Type:     "bus.handler_panic",
				Severity: logging.SeverityError,
				Category: logging.CategorySystem,
			}
			event = event.WithExtra("topic", string(topic))
			event = event.WithExtra("panic", r)
			b.pub.Publish(context.Background(), event)
		}
	}()
	sub.handler(payload)
}

// Off removes every subscriber for one topic.
func (b *Bus) Off(topic Topic) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, topic)
}

// Clear removes all subscribers for all topics.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[Topic][]*subscription)
}

// SubscriberCount reports how many handlers are registered for a topic.
func (b *Bus) SubscriberCount(topic Topic) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[topic])
}
