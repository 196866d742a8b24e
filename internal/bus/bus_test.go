package bus

import (
	"context"
	"reflect"
	"testing"
	"time"
)

func TestPublishConsumeInbound(t *testing.T) {
	b := NewMessageBus(4)
	msg := InboundMessage{Channel: "discord", ChatID: "123", Content: "hi"}
	b.PublishInbound(msg)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, ok := b.ConsumeInbound(ctx)
	if !ok {
		t.Fatal("ConsumeInbound() ok = false, want true")
	}
	if !reflect.DeepEqual(got, msg) {
		t.Fatalf("ConsumeInbound() = %+v, want %+v", got, msg)
	}
}

func TestConsumeInboundCancelledContext(t *testing.T) {
	b := NewMessageBus(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := b.ConsumeInbound(ctx)
	if ok {
		t.Fatal("ConsumeInbound() on cancelled context should report ok = false")
	}
}

func TestPublishSubscribeOutbound(t *testing.T) {
	b := NewMessageBus(4)
	msg := OutboundMessage{Channel: "telegram", ChatID: "456", Content: "reply"}
	b.PublishOutbound(msg)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, ok := b.SubscribeOutbound(ctx)
	if !ok || !reflect.DeepEqual(got, msg) {
		t.Fatalf("SubscribeOutbound() = (%+v, %v), want (%+v, true)", got, ok, msg)
	}
}

func TestBroadcastFansOutToAllListeners(t *testing.T) {
	b := NewMessageBus(1)
	var gotA, gotB Event

	b.Subscribe("a", func(e Event) { gotA = e })
	b.Subscribe("b", func(e Event) { gotB = e })

	event := Event{Name: "health", Payload: "ok"}
	b.Broadcast(event)

	if gotA != event || gotB != event {
		t.Fatalf("Broadcast() did not reach both listeners: gotA=%+v gotB=%+v", gotA, gotB)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := NewMessageBus(1)
	calls := 0
	b.Subscribe("a", func(Event) { calls++ })
	b.Unsubscribe("a")

	b.Broadcast(Event{Name: "noop"})
	if calls != 0 {
		t.Fatalf("handler called %d times after Unsubscribe, want 0", calls)
	}
}

func TestMessageBusSatisfiesMessageRouter(t *testing.T) {
	var _ MessageRouter = NewMessageBus(1)
	var _ EventPublisher = NewMessageBus(1)
}
