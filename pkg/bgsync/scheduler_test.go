package bgsync

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/museum-edge/internal/testutil"
	"github.com/Sternrassler/museum-edge/pkg/syncqueue"
	"github.com/gin-gonic/gin"
)

type fakeReplayer struct {
	mu   sync.Mutex
	tags []string
	err  error
}

func (f *fakeReplayer) Replay(ctx context.Context, tag string) (*syncqueue.ReplayReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tags = append(f.tags, tag)
	if f.err != nil {
		return nil, f.err
	}
	return &syncqueue.ReplayReport{Synced: []string{"item-1"}}, nil
}

func (f *fakeReplayer) fired() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tags...)
}

type fakeConn bool

func (f fakeConn) Online() bool { return bool(f) }

func TestRegister_Offline(t *testing.T) {
	client, _ := testutil.NewRedis(t)
	replayer := &fakeReplayer{}
	s := New(client, "", fakeConn(false))
	s.Bind(replayer)
	ctx := context.Background()

	if err := s.Register(ctx, syncqueue.TagForms); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	s.Drain(ctx)

	if len(replayer.fired()) != 0 {
		t.Errorf("offline registration fired: %v", replayer.fired())
	}
	tags, _ := s.Pending(ctx)
	if len(tags) != 1 || tags[0] != syncqueue.TagForms {
		t.Errorf("Pending = %v, want [sync-forms]", tags)
	}
}

func TestRegister_OnlineFiresAndClears(t *testing.T) {
	client, _ := testutil.NewRedis(t)
	replayer := &fakeReplayer{}
	s := New(client, "", fakeConn(true))
	s.Bind(replayer)
	ctx := context.Background()

	s.Register(ctx, syncqueue.TagForms)

	drainCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.Drain(drainCtx); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	if got := replayer.fired(); len(got) != 1 || got[0] != syncqueue.TagForms {
		t.Errorf("fired = %v", got)
	}
	if tags, _ := s.Pending(ctx); len(tags) != 0 {
		t.Errorf("Pending after completion = %v", tags)
	}
}

func TestOnOnline_FiresPendingAndAll(t *testing.T) {
	client, _ := testutil.NewRedis(t)
	replayer := &fakeReplayer{}
	s := New(client, "", fakeConn(false))
	s.Bind(replayer)
	ctx := context.Background()

	s.Register(ctx, syncqueue.TagForms)
	s.OnOnline(ctx)

	got := replayer.fired()
	if len(got) != 2 || got[0] != syncqueue.TagAll || got[1] != syncqueue.TagForms {
		t.Errorf("fired = %v, want [sync-all sync-forms]", got)
	}
	if tags, _ := s.Pending(ctx); len(tags) != 0 {
		t.Errorf("Pending = %v, want none", tags)
	}
}

func TestFire_ErrorKeepsTag(t *testing.T) {
	client, _ := testutil.NewRedis(t)
	replayer := &fakeReplayer{err: errors.New("store unavailable")}
	s := New(client, "", fakeConn(false))
	s.Bind(replayer)
	ctx := context.Background()

	s.Register(ctx, syncqueue.TagForms)
	if _, err := s.Fire(ctx, syncqueue.TagForms); err == nil {
		t.Fatal("expected replay error")
	}
	if tags, _ := s.Pending(ctx); len(tags) != 1 {
		t.Errorf("Pending = %v, want tag kept for the next attempt", tags)
	}
}

func TestFire_Unbound(t *testing.T) {
	client, _ := testutil.NewRedis(t)
	s := New(client, "", nil)
	if _, err := s.Fire(context.Background(), syncqueue.TagAll); err == nil {
		t.Error("expected error without a replayer")
	}
}

func TestHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	client, _ := testutil.NewRedis(t)
	replayer := &fakeReplayer{}
	s := New(client, "", nil)
	s.Bind(replayer)

	r := gin.New()
	r.POST("/sw/sync", s.Handler())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sw/sync", strings.NewReader(`{"tag":"sync-all"}`)))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp syncResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Tag != syncqueue.TagAll || len(resp.Synced) != 1 || resp.Failed == nil {
		t.Errorf("response = %+v", resp)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sw/sync", strings.NewReader(`{}`)))
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing tag status = %d, want 400", w.Code)
	}
}
