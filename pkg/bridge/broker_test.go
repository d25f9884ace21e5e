package bridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func startBroker(t *testing.T, cfg BrokerConfig) *Broker {
	t.Helper()
	b := NewBroker(cfg)
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return b
}

func receive(t *testing.T, events <-chan Message) Message {
	t.Helper()
	select {
	case msg, ok := <-events:
		if !ok {
			t.Fatal("event channel closed")
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
	return Message{}
}

func TestBroker_StartStop(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	b := startBroker(t, BrokerConfig{})
	if err := b.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestBroker_BroadcastReachesAllClients(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	b := startBroker(t, BrokerConfig{})
	defer b.Stop()
	ctx := context.Background()

	first, cleanup1, err := b.Subscribe(ctx, "/index.html")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer cleanup1()
	second, cleanup2, _ := b.Subscribe(ctx, "/gallery/index.html")
	defer cleanup2()

	if err := b.Broadcast(ctx, NewOfflineReady("v1.0.2")); err != nil {
		t.Fatalf("Broadcast failed: %v", err)
	}

	for _, sub := range []*Subscription{first, second} {
		msg := receive(t, sub.Events)
		if msg.Type != TypeOfflineReady || msg.Version != "v1.0.2" {
			t.Errorf("client %s got %+v", sub.ID, msg)
		}
	}
}

func TestBroker_TargetedDelivery(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	b := startBroker(t, BrokerConfig{})
	defer b.Stop()
	ctx := context.Background()

	target, cleanup1, _ := b.Subscribe(ctx, "/archive/archive.html")
	defer cleanup1()
	other, cleanup2, _ := b.Subscribe(ctx, "/")
	defer cleanup2()

	b.Broadcast(ctx, NewFocus(target.ID, "/archive/archive.html"))
	b.Broadcast(ctx, NewActivated("v2", ToneUpdate))

	if msg := receive(t, target.Events); msg.Type != TypeFocus {
		t.Errorf("target first message = %+v, want FOCUS", msg)
	}
	if msg := receive(t, other.Events); msg.Type != TypeActivated {
		t.Errorf("other client first message = %+v, want only the broadcast", msg)
	}
}

func TestBroker_ClientsAndIdleHook(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	b := startBroker(t, BrokerConfig{})
	defer b.Stop()

	idle := make(chan struct{}, 1)
	b.OnIdle(func() { idle <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	sub, _, _ := b.Subscribe(ctx, "/know-me/about.html")

	clients := b.Clients()
	if len(clients) != 1 || clients[0].ID != sub.ID || clients[0].URL != "/know-me/about.html" {
		t.Errorf("Clients = %+v", clients)
	}

	cancel()

	select {
	case <-idle:
	case <-time.After(time.Second):
		t.Fatal("idle hook not called after last client left")
	}
	if b.ClientCount() != 0 {
		t.Errorf("ClientCount = %d, want 0", b.ClientCount())
	}
	if _, ok := <-sub.Events; ok {
		t.Error("Events should be closed after disconnect")
	}
}

func TestBroker_MaxClients(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	b := startBroker(t, BrokerConfig{MaxClients: 1})
	defer b.Stop()
	ctx := context.Background()

	_, cleanup, err := b.Subscribe(ctx, "/")
	if err != nil {
		t.Fatalf("first Subscribe failed: %v", err)
	}
	defer cleanup()

	if _, _, err := b.Subscribe(ctx, "/"); !errors.Is(err, ErrTooManyClients) {
		t.Errorf("second Subscribe = %v, want ErrTooManyClients", err)
	}
}

func TestBroker_SlowClientDropped(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	b := startBroker(t, BrokerConfig{ClientBufferSize: 1})
	defer b.Stop()
	ctx := context.Background()

	sub, cleanup, _ := b.Subscribe(ctx, "/")
	defer cleanup()

	b.Broadcast(ctx, NewOfflineReady("v1"))
	b.Broadcast(ctx, NewOfflineReady("v2"))

	deadline := time.After(time.Second)
	for b.ClientCount() != 0 {
		select {
		case <-deadline:
			t.Fatal("slow client was not dropped")
		case <-time.After(10 * time.Millisecond):
		}
	}

	// the buffered message is still readable, then the channel closes
	if msg := receive(t, sub.Events); msg.Version != "v1" {
		t.Errorf("buffered message = %+v", msg)
	}
	if _, ok := <-sub.Events; ok {
		t.Error("Events should be closed for a dropped client")
	}
}

func TestBroker_StopClosesStreams(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	b := startBroker(t, BrokerConfig{})
	sub, _, _ := b.Subscribe(context.Background(), "/")

	if err := b.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if _, ok := <-sub.Events; ok {
		t.Error("Events should be closed after Stop")
	}
}
