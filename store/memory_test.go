package store

import (
	"context"
	"testing"
	"time"

	"github.com/rushteam/cfkit/core"
)

func TestMemoryStore_GetSet(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	if _, err := m.Get(ctx, "missing"); !core.IsStoreNotFound(err) {
		t.Errorf("Get(missing) error = %v, want not-found", err)
	}
	if err := m.Set(ctx, "a", []byte("1")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, err := m.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != "1" {
		t.Errorf("Get() = %q, want %q", got, "1")
	}

	if err := m.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := m.Get(ctx, "a"); !core.IsStoreNotFound(err) {
		t.Errorf("Get() after Delete() error = %v, want not-found", err)
	}
}

func TestMemoryStore_Batch(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	kvs := map[string][]byte{"a": []byte("1"), "b": []byte("2")}
	if err := m.BatchSet(ctx, kvs); err != nil {
		t.Fatalf("BatchSet() error = %v", err)
	}
	got, err := m.BatchGet(ctx, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("BatchGet() error = %v", err)
	}
	if len(got) != 2 || string(got["a"]) != "1" || string(got["b"]) != "2" {
		t.Errorf("BatchGet() = %v", got)
	}
	if _, ok := got["c"]; ok {
		t.Error("BatchGet() should omit missing keys instead of erroring")
	}
}

func TestMemoryStore_TTL(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	if err := m.Set(ctx, "tmp", []byte("x"), 1); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	// 直接把 deadline 拨到过去，避免真实等待
	m.mu.Lock()
	e := m.data["tmp"]
	e.deadline = time.Now().Add(-time.Second)
	m.data["tmp"] = e
	m.mu.Unlock()

	if _, err := m.Get(ctx, "tmp"); !core.IsStoreNotFound(err) {
		t.Errorf("Get() after expiry error = %v, want not-found", err)
	}
	got, err := m.BatchGet(ctx, []string{"tmp"})
	if err != nil {
		t.Fatalf("BatchGet() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("BatchGet() returned expired entry: %v", got)
	}
}
