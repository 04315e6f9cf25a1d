package event

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/panoptikon-net/panoptikon/pkg/plugin"
	"go.uber.org/zap"
)

func TestPublish_OrderPreserved(t *testing.T) {
	b := NewBus(zap.NewNop())

	var got []int
	b.Subscribe("t", func(_ context.Context, e plugin.Event) {
		got = append(got, e.Payload.(int))
	})

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_ = b.Publish(ctx, plugin.Event{Topic: "t", Payload: i})
	}

	for i, v := range got {
		if v != i {
			t.Fatalf("delivery order %v, want 0..4", got)
		}
	}
	if len(got) != 5 {
		t.Fatalf("delivered %d events, want 5", len(got))
	}
}

func TestPublishAsync_PerPublisherOrderPreserved(t *testing.T) {
	b := NewBus(zap.NewNop())

	var mu sync.Mutex
	var got []string
	done := make(chan struct{})
	b.Subscribe("t", func(_ context.Context, e plugin.Event) {
		// A slow first delivery must not let the second overtake it.
		if e.Payload.(string) == "device_online" {
			time.Sleep(20 * time.Millisecond)
		}
		mu.Lock()
		got = append(got, e.Payload.(string))
		if len(got) == 2 {
			close(done)
		}
		mu.Unlock()
	})

	ctx := context.Background()
	b.PublishAsync(ctx, plugin.Event{Topic: "t", Payload: "device_online"})
	b.PublishAsync(ctx, plugin.Event{Topic: "t", Payload: "ip_changed"})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("events not delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	if got[0] != "device_online" || got[1] != "ip_changed" {
		t.Fatalf("delivery order %v, want [device_online ip_changed]", got)
	}
}

func TestUnsubscribe(t *testing.T) {
	b := NewBus(zap.NewNop())

	calls := 0
	unsub := b.Subscribe("t", func(context.Context, plugin.Event) { calls++ })

	ctx := context.Background()
	_ = b.Publish(ctx, plugin.Event{Topic: "t"})
	unsub()
	_ = b.Publish(ctx, plugin.Event{Topic: "t"})

	if calls != 1 {
		t.Errorf("handler called %d times, want 1", calls)
	}
}

func TestSubscribeAll_ReceivesEveryTopic(t *testing.T) {
	b := NewBus(zap.NewNop())

	var topics []string
	b.SubscribeAll(func(_ context.Context, e plugin.Event) {
		topics = append(topics, e.Topic)
	})

	ctx := context.Background()
	_ = b.Publish(ctx, plugin.Event{Topic: "a"})
	_ = b.Publish(ctx, plugin.Event{Topic: "b"})

	if len(topics) != 2 || topics[0] != "a" || topics[1] != "b" {
		t.Errorf("topics = %v, want [a b]", topics)
	}
}

func TestPublish_PanickingHandlerDoesNotStopOthers(t *testing.T) {
	b := NewBus(zap.NewNop())

	b.Subscribe("t", func(context.Context, plugin.Event) { panic("boom") })
	reached := false
	b.Subscribe("t", func(context.Context, plugin.Event) { reached = true })

	_ = b.Publish(context.Background(), plugin.Event{Topic: "t", Timestamp: time.Now()})

	if !reached {
		t.Error("second handler not reached after first panicked")
	}
}
