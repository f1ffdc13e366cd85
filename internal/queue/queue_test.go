package queue

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryRoundTrip(t *testing.T) {
	q := NewInMemory(2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := q.Publish(ctx, Message{Type: "login-notify", Body: []byte("payload")}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}

	select {
	case msg := <-messages:
		if msg.Type != "login-notify" || string(msg.Body) != "payload" {
			t.Errorf("got %q/%q, want login-notify/payload", msg.Type, msg.Body)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestConsumeStopsWhenReceiverGone(t *testing.T) {
	q := NewInMemory(2)
	ctx, cancel := context.WithCancel(context.Background())

	if err := q.Publish(ctx, Message{Type: "login-notify", Body: []byte("x")}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	messages, err := q.Consume(ctx)
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}

	// Nobody receives; the forwarder is parked on the send when we cancel.
	time.Sleep(20 * time.Millisecond)
	cancel()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-messages:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("consume channel not closed after cancel")
		}
	}
}

func TestPublishCancelled(t *testing.T) {
	q := NewInMemory(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := q.Publish(ctx, Message{Type: "x"}); err == nil {
		t.Error("Publish() on cancelled context should fail")
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{"typed message", Message{Type: "login-notify", Body: []byte(`{"student_id":"S1"}`)}},
		{"empty body", Message{Type: "ping", Body: nil}},
		{"body with separator", Message{Type: "t", Body: []byte("a|b|c")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := deserialize(serialize(tt.msg))
			if err != nil {
				t.Fatalf("deserialize() error = %v", err)
			}
			if got.Type != tt.msg.Type || string(got.Body) != string(tt.msg.Body) {
				t.Errorf("round-trip = %q/%q, want %q/%q", got.Type, got.Body, tt.msg.Type, tt.msg.Body)
			}
		})
	}
}
