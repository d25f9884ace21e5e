package syncqueue

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Sternrassler/museum-edge/internal/testutil"
)

// engines returns a fresh store per engine so every contract test runs
// against Redis and SQLite alike.
func engines(t *testing.T) map[string]Store {
	t.Helper()

	client, _ := testutil.NewRedis(t)
	sqlite, err := OpenSQLite(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Store{
		"redis":  NewRedisStore(client, ""),
		"sqlite": sqlite,
	}
}

func sampleItem(id string) Item {
	return Item{
		ID:         id,
		Type:       TypeForm,
		URL:        "/api/signature",
		Method:     "POST",
		Headers:    map[string]string{"Content-Type": "application/json"},
		Payload:    json.RawMessage(`{"name":"ada"}`),
		EnqueuedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestStore_AddGet(t *testing.T) {
	for name, store := range engines(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			want := sampleItem("a1")

			if err := store.Add(ctx, want); err != nil {
				t.Fatalf("Add failed: %v", err)
			}

			got, err := store.Get(ctx, "a1")
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if got.URL != want.URL || got.Type != want.Type || got.Method != want.Method {
				t.Errorf("Get = %+v, want %+v", got, want)
			}
			if string(got.Payload) != string(want.Payload) {
				t.Errorf("Payload = %s, want %s", got.Payload, want.Payload)
			}
			if got.Headers["Content-Type"] != "application/json" {
				t.Errorf("Headers = %v", got.Headers)
			}
			if !got.EnqueuedAt.Equal(want.EnqueuedAt) {
				t.Errorf("EnqueuedAt = %v, want %v", got.EnqueuedAt, want.EnqueuedAt)
			}
		})
	}
}

func TestStore_DuplicateID(t *testing.T) {
	for name, store := range engines(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := store.Add(ctx, sampleItem("dup")); err != nil {
				t.Fatalf("Add failed: %v", err)
			}
			if err := store.Add(ctx, sampleItem("dup")); !errors.Is(err, ErrDuplicateID) {
				t.Errorf("second Add = %v, want ErrDuplicateID", err)
			}
		})
	}
}

func TestStore_NotFound(t *testing.T) {
	for name, store := range engines(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Get = %v, want ErrNotFound", err)
			}
			if err := store.Delete(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Delete = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestStore_ListOrderAndDelete(t *testing.T) {
	for name, store := range engines(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			empty, err := store.List(ctx)
			if err != nil || len(empty) != 0 {
				t.Fatalf("List on empty store = %v, %v", empty, err)
			}

			for _, id := range []string{"z", "a", "m"} {
				if err := store.Add(ctx, sampleItem(id)); err != nil {
					t.Fatalf("Add(%s) failed: %v", id, err)
				}
			}
			if err := store.Delete(ctx, "a"); err != nil {
				t.Fatalf("Delete failed: %v", err)
			}

			items, err := store.List(ctx)
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if len(items) != 2 || items[0].ID != "z" || items[1].ID != "m" {
				t.Errorf("List = %+v, want [z m] in insertion order", items)
			}
		})
	}
}

func TestItem_UnmarshalDataAlias(t *testing.T) {
	var item Item
	if err := json.Unmarshal([]byte(`{"type":"form","url":"/api/signature","data":{"x":1}}`), &item); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if string(item.Payload) != `{"x":1}` {
		t.Errorf("Payload = %s, want data alias", item.Payload)
	}

	var both Item
	json.Unmarshal([]byte(`{"payload":{"p":1},"data":{"d":1}}`), &both)
	if string(both.Payload) != `{"p":1}` {
		t.Errorf("Payload = %s, payload must win over data", both.Payload)
	}
}

func TestStore_ClaimLease(t *testing.T) {
	for name, store := range engines(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			ok, err := store.Claim(ctx, "a", time.Minute)
			if err != nil || !ok {
				t.Fatalf("first Claim = %v, %v; want true", ok, err)
			}
			ok, err = store.Claim(ctx, "a", time.Minute)
			if err != nil || ok {
				t.Fatalf("second Claim = %v, %v; want false while leased", ok, err)
			}
			if ok, _ := store.Claim(ctx, "b", time.Minute); !ok {
				t.Errorf("Claim(b) = false, want leases to be per item")
			}

			if err := store.Release(ctx, "a"); err != nil {
				t.Fatalf("Release failed: %v", err)
			}
			if ok, err := store.Claim(ctx, "a", time.Minute); err != nil || !ok {
				t.Errorf("Claim after Release = %v, %v; want true", ok, err)
			}
		})
	}
}

func TestSQLiteStore_ExpiredLeaseReclaimed(t *testing.T) {
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if ok, _ := store.Claim(ctx, "a", time.Millisecond); !ok {
		t.Fatalf("first Claim = false")
	}
	time.Sleep(5 * time.Millisecond)
	if ok, err := store.Claim(ctx, "a", time.Minute); err != nil || !ok {
		t.Errorf("Claim after expiry = %v, %v; want true", ok, err)
	}
}

func TestRedisStore_AddWritesRecordAndOrderTogether(t *testing.T) {
	client, mr := testutil.NewRedis(t)
	store := NewRedisStore(client, "")
	ctx := context.Background()

	if err := store.Add(ctx, sampleItem("a")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := store.Add(ctx, sampleItem("a")); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("duplicate Add error = %v, want ErrDuplicateID", err)
	}

	if !mr.Exists(DefaultRedisPrefix + "items") {
		t.Fatalf("items hash missing")
	}
	members, err := mr.ZMembers(DefaultRedisPrefix + "order")
	if err != nil {
		t.Fatalf("ZMembers failed: %v", err)
	}
	if len(members) != 1 || members[0] != "a" {
		t.Errorf("order = %v, want [a]", members)
	}
	if seq, _ := mr.Get(DefaultRedisPrefix + "seq"); seq != "1" {
		t.Errorf("seq = %q, want 1; a duplicate must not advance it", seq)
	}
}
