package connectivity

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/museum-edge/internal/testutil"
	"github.com/Sternrassler/museum-edge/pkg/network"
)

func newWatcher(t *testing.T) (*Watcher, *testutil.MockOrigin) {
	t.Helper()
	origin := testutil.NewMockOrigin()
	t.Cleanup(origin.Close)

	client, err := network.New(network.DefaultConfig("museum-edge-test/1.0"))
	if err != nil {
		t.Fatalf("network.New failed: %v", err)
	}
	w, err := NewWatcher(client, Config{ProbeURL: origin.URL() + "/", Interval: 10 * time.Millisecond, Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	return w, origin
}

func TestWatcher_FiresOnTransitions(t *testing.T) {
	w, origin := newWatcher(t)
	var fired atomic.Int32
	w.OnOnline(func(ctx context.Context) { fired.Add(1) })
	ctx := context.Background()

	if w.Online() {
		t.Fatal("watcher should start offline")
	}

	if !w.Check(ctx) {
		t.Fatal("probe against a running origin should succeed")
	}
	if fired.Load() != 1 {
		t.Errorf("first successful probe fired %d times, want 1", fired.Load())
	}

	w.Check(ctx)
	if fired.Load() != 1 {
		t.Errorf("staying online fired again: %d", fired.Load())
	}

	origin.SetOffline(true)
	if w.Check(ctx) || w.Online() {
		t.Error("dropped connections should read as offline")
	}

	origin.SetOffline(false)
	w.Check(ctx)
	if fired.Load() != 2 {
		t.Errorf("offline to online fired %d times total, want 2", fired.Load())
	}
}

func TestWatcher_ServerErrorIsOnline(t *testing.T) {
	w, origin := newWatcher(t)
	origin.SetResponse("/", testutil.NewServerErrorResponse())

	if !w.Check(context.Background()) {
		t.Error("an HTTP 500 still means the origin is reachable")
	}
}

func TestWatcher_StartStop(t *testing.T) {
	w, origin := newWatcher(t)
	done := make(chan struct{}, 1)
	w.OnOnline(func(ctx context.Context) {
		select {
		case done <- struct{}{}:
		default:
		}
	})

	w.Start(context.Background())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not probe")
	}
	w.Stop()

	if origin.RequestCount() == 0 {
		t.Error("expected probe requests at the origin")
	}
}

func TestNewWatcher_Validation(t *testing.T) {
	if _, err := NewWatcher(nil, DefaultConfig("http://origin/")); err == nil {
		t.Error("Expected error for nil fetcher")
	}
	client, _ := network.New(network.DefaultConfig("ua"))
	if _, err := NewWatcher(client, Config{}); err == nil {
		t.Error("Expected error for missing probe URL")
	}
}
