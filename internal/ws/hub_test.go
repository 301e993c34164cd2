package ws

import (
	"errors"
	"testing"
	"time"
)

type subscriberStub struct {
	received chan []byte
	sendErr  error
	closed   chan struct{}
}

func newSubscriberStub() *subscriberStub {
	return &subscriberStub{
		received: make(chan []byte, 8),
		closed:   make(chan struct{}, 1),
	}
}

func (s *subscriberStub) Send(payload []byte) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.received <- payload
	return nil
}

func (s *subscriberStub) Close() {
	select {
	case s.closed <- struct{}{}:
	default:
	}
}

func TestBroadcastReachesWorkspaceSubscribers(t *testing.T) {
	hub := NewHub()
	member := newSubscriberStub()
	outsider := newSubscriberStub()

	hub.Register("ws-1", member)
	hub.Register("ws-2", outsider)

	hub.Broadcast("ws-1", []byte(`{"action":"created"}`))

	select {
	case payload := <-member.received:
		if string(payload) != `{"action":"created"}` {
			t.Fatalf("unexpected payload %s", payload)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive broadcast")
	}

	select {
	case payload := <-outsider.received:
		t.Fatalf("outsider received cross-workspace payload %s", payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcastDropsFailingSubscriber(t *testing.T) {
	hub := NewHub()
	broken := newSubscriberStub()
	broken.sendErr = errors.New("connection reset")

	hub.Register("ws-1", broken)
	hub.Broadcast("ws-1", []byte("payload"))

	select {
	case <-broken.closed:
	case <-time.After(time.Second):
		t.Fatal("failing subscriber was not closed")
	}
}

func TestUnregisterStopsDelivery(t *testing.T) {
	hub := NewHub()
	sub := newSubscriberStub()

	hub.Register("ws-1", sub)
	hub.Unregister("ws-1", sub)
	hub.Broadcast("ws-1", []byte("payload"))

	select {
	case payload := <-sub.received:
		t.Fatalf("unregistered subscriber received %s", payload)
	case <-time.After(50 * time.Millisecond):
	}
}
