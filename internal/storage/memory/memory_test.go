package memory

import (
	"context"
	"errors"
	"testing"

	"finplan/internal/storage"
)

func TestMemoryStoreSetGet(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.Get(ctx, "k"); !errors.Is(err, storage.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}

	buf := []byte("value")
	if err := s.Set(ctx, "k", buf); err != nil {
		t.Fatalf("set: %v", err)
	}
	buf[0] = 'X' // caller mutation must not leak into the store
	got, err := s.Get(ctx, "k")
	if err != nil || string(got) != "value" {
		t.Fatalf("unexpected value %q (err=%v)", got, err)
	}
}

func TestMemoryStoreKeysDelete(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.Set(ctx, "b", nil)
	_ = s.Set(ctx, "a", nil)

	keys, _ := s.Keys(ctx)
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Fatalf("unexpected keys %v", keys)
	}
	_ = s.Delete(ctx, "a", "missing")
	keys, _ = s.Keys(ctx)
	if len(keys) != 1 || keys[0] != "b" {
		t.Fatalf("unexpected keys after delete %v", keys)
	}
}

func TestMemoryStoreFailOn(t *testing.T) {
	ctx := context.Background()
	s := New()
	boom := errors.New("disk full")
	s.FailOn = func(key string) error {
		if key == "bad" {
			return boom
		}
		return nil
	}
	if err := s.Set(ctx, "bad", []byte("x")); !errors.Is(err, boom) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	if err := s.Set(ctx, "good", []byte("x")); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}
