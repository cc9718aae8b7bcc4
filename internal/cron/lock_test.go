package cron

import (
	"context"
	"testing"
	"time"
)

type memoryLockStore struct {
	values map[string]string
	ttls   map[string]time.Duration
}

func newMemoryLockStore() *memoryLockStore {
	return &memoryLockStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryLockStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	m.ttls[key] = ttl
	return true, nil
}

func (m *memoryLockStore) ReleaseIfOwner(_ context.Context, key, owner string) (bool, error) {
	if m.values[key] != owner {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

func (m *memoryLockStore) LockKey(name string) string { return "storefront:lock:" + name }

func TestRedisLockExcludesSecondHolder(t *testing.T) {
	store := newMemoryLockStore()
	first, err := NewRedisLock(store, "", 0)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}
	second, _ := NewRedisLock(store, "", 0)
	ctx := context.Background()

	if ok, err := first.Acquire(ctx); err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	if first.Key() != "storefront:lock:cron-worker" {
		t.Fatalf("unexpected key %s", first.Key())
	}
	if store.ttls[first.Key()] != defaultLockTTL {
		t.Fatalf("expected default ttl, got %s", store.ttls[first.Key()])
	}
	if ok, _ := second.Acquire(ctx); ok {
		t.Fatal("second holder acquired a held lock")
	}
	if err := second.Release(ctx); err != nil {
		t.Fatalf("non-owner release: %v", err)
	}
	if _, held := store.values[first.Key()]; !held {
		t.Fatal("non-owner release dropped the lock")
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("owner release: %v", err)
	}
	if ok, _ := second.Acquire(ctx); !ok {
		t.Fatal("lock not reusable after release")
	}
}

func TestRedisLockReleaseIgnoresExpiredKey(t *testing.T) {
	store := newMemoryLockStore()
	lock, _ := NewRedisLock(store, "jobs", time.Minute)
	ctx := context.Background()
	if _, err := lock.Acquire(ctx); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	delete(store.values, lock.Key())
	if err := lock.Release(ctx); err != nil {
		t.Fatalf("expected nil for expired key, got %v", err)
	}
}

func TestRedisLockStaleHolderKeepsSuccessorLock(t *testing.T) {
	store := newMemoryLockStore()
	stale, _ := NewRedisLock(store, "jobs", time.Minute)
	next, _ := NewRedisLock(store, "jobs", time.Minute)
	ctx := context.Background()

	if ok, _ := stale.Acquire(ctx); !ok {
		t.Fatal("first acquire failed")
	}
	delete(store.values, stale.Key())
	if ok, _ := next.Acquire(ctx); !ok {
		t.Fatal("successor acquire failed")
	}
	if err := stale.Release(ctx); err != nil {
		t.Fatalf("stale release: %v", err)
	}
	if _, held := store.values[next.Key()]; !held {
		t.Fatal("stale holder released the successor's lock")
	}
}

func TestNewRedisLockRequiresClient(t *testing.T) {
	if _, err := NewRedisLock(nil, "x", time.Second); err == nil {
		t.Fatal("expected client error")
	}
}
