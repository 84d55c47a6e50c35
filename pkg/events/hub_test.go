package events

import "testing"

func TestPublishReachesAllSubscribers(t *testing.T) {
	hub := NewEventHub()
	a := hub.Subscribe()
	b := hub.Subscribe()

	hub.Publish(CyclePhase, CyclePhaseEvent{From: "none", To: "cc", Ts: 1000})

	for _, ch := range []chan Event{a, b} {
		ev := <-ch
		if ev.Name != CyclePhase {
			t.Fatalf("event name = %q, want %q", ev.Name, CyclePhase)
		}
		payload, err := DecodeAs[CyclePhaseEvent](ev)
		if err != nil {
			t.Fatal(err)
		}
		if payload.To != "cc" || payload.Ts != 1000 {
			t.Fatalf("payload = %+v", payload)
		}
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	hub := NewEventHub()
	ch := hub.Subscribe()
	hub.Unsubscribe(ch)

	if _, ok := <-ch; ok {
		t.Fatal("channel must be closed after unsubscribe")
	}

	// Publishing afterwards must not panic.
	hub.Publish(CycleLogging, CycleLoggingEvent{Active: true})
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	hub := NewEventHub()
	ch := hub.Subscribe()

	// Fill the subscriber buffer and keep publishing; extra events are
	// dropped instead of blocking.
	for i := 0; i < 64; i++ {
		hub.Publish(CycleLogging, CycleLoggingEvent{Ts: int64(i)})
	}

	if len(ch) == 0 {
		t.Fatal("subscriber should have buffered events")
	}
}

func TestDecodeAsEmptyPayload(t *testing.T) {
	payload, err := DecodeAs[CycleLoggingEvent](Event{Name: CycleLogging})
	if err != nil {
		t.Fatal(err)
	}
	if payload.Active {
		t.Fatal("empty payload must decode to the zero value")
	}
}
