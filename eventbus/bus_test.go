package eventbus

import "testing"

func TestPublishDeliversInSubscriptionOrder(t *testing.T) {
	bus := New(nil)
	var order []int
	bus.Subscribe("tick", func(any) { order = append(order, 1) })
	bus.Subscribe("tick", func(any) { order = append(order, 2) })
	bus.Subscribe("tick", func(any) { order = append(order, 3) })

	bus.Publish("tick", nil)

	if len(order) != 3 {
		t.Fatalf("expected 3 deliveries, got %d", len(order))
	}
	for i, got := range order {
		if got != i+1 {
			t.Fatalf("delivery %d out of order: got %d", i, got)
		}
	}
}

func TestSubscribeOnceRemovedAfterFirstDelivery(t *testing.T) {
	bus := New(nil)
	calls := 0
	bus.SubscribeOnce("pulse", func(any) { calls++ })

	bus.Publish("pulse", nil)
	bus.Publish("pulse", nil)

	if calls != 1 {
		t.Fatalf("expected exactly one delivery, got %d", calls)
	}
	if n := bus.SubscriberCount("pulse"); n != 0 {
		t.Fatalf("expected one-shot subscriber to be removed, %d remain", n)
	}
}

func TestPanickingSubscriberDoesNotBlockOthers(t *testing.T) {
	bus := New(nil)
	delivered := false
	bus.Subscribe("sing", func(any) { panic("boom") })
	bus.Subscribe("sing", func(any) { delivered = true })

	bus.Publish("sing", nil)

	if !delivered {
		t.Fatalf("expected later subscriber to run after a panic")
	}
}

func TestUnsubscribeAndOff(t *testing.T) {
	bus := New(nil)
	calls := 0
	handle := bus.Subscribe("emote", func(any) { calls++ })
	bus.Subscribe("emote", func(any) { calls++ })

	bus.Unsubscribe(handle)
	bus.Publish("emote", nil)
	if calls != 1 {
		t.Fatalf("expected one delivery after unsubscribe, got %d", calls)
	}

	bus.Off("emote")
	bus.Publish("emote", nil)
	if calls != 1 {
		t.Fatalf("expected no deliveries after Off, got %d", calls)
	}
}

func TestClearRemovesEverything(t *testing.T) {
	bus := New(nil)
	bus.Subscribe("a", func(any) { t.Fatalf("handler survived Clear") })
	bus.Subscribe("b", func(any) { t.Fatalf("handler survived Clear") })

	bus.Clear()
	bus.Publish("a", nil)
	bus.Publish("b", nil)
}

func TestPublishPayloadReachesHandler(t *testing.T) {
	bus := New(nil)
	var got any
	bus.Subscribe("whisper", func(payload any) { got = payload })

	bus.Publish("whisper", "hello")

	if got != "hello" {
		t.Fatalf("expected payload to round-trip, got %v", got)
	}
}
