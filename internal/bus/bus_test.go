package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("session.", 10)
	defer unsub()

	b.Publish(Event{Topic: IdentityTopic, Timestamp: time.Now(), Payload: "test"})

	select {
	case evt := <-ch:
		if evt.Topic != IdentityTopic {
			t.Errorf("got topic %q, want %q", evt.Topic, IdentityTopic)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestPrefixFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(MessageTopic("c1"), 10)
	defer unsub()

	b.Publish(Event{Topic: MessageTopic("c2")})
	b.Publish(Event{Topic: StatusTopic})
	b.Publish(Event{Topic: MessageTopic("c1")})

	select {
	case evt := <-ch:
		if evt.Topic != MessageTopic("c1") {
			t.Errorf("got topic %q, want %q", evt.Topic, MessageTopic("c1"))
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// The other conversation's push must not arrive here.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("remote.", 10)
	unsub()

	b.Publish(Event{Topic: StatusTopic})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("test.", 1)
	defer unsub()

	b.Publish(Event{Topic: "test.one"})
	// Buffer is full; this one is dropped rather than blocking the publisher.
	b.Publish(Event{Topic: "test.two"})

	evt := <-ch
	if evt.Topic != "test.one" {
		t.Errorf("got %q, want test.one", evt.Topic)
	}
}
