package blob

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
)

func TestMemoryPutGetRoundTrip(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	info, err := store.Put(ctx, "audit/a.csv", strings.NewReader("Timestamp,User\n"), PutOptions{
		ContentType: "text/csv",
		Metadata:    map[string]string{"rows": "1"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "audit/a.csv" || info.Size != 15 || info.ContentType != "text/csv" {
		t.Fatalf("unexpected info: %+v", info)
	}
	if info.ETag == "" {
		t.Fatalf("expected content hash etag")
	}

	got, rc, err := store.Get(ctx, "audit/a.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "Timestamp,User\n" {
		t.Fatalf("payload = %q", data)
	}
	if got.Metadata["rows"] != "1" {
		t.Fatalf("metadata = %v", got.Metadata)
	}
	if store.Driver() != DriverMemory {
		t.Fatalf("driver = %s", store.Driver())
	}
}

func TestMemoryPutIsCreateOnly(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	if _, err := store.Put(ctx, "k", strings.NewReader("one"), PutOptions{}); err != nil {
		t.Fatalf("first put: %v", err)
	}
	if _, err := store.Put(ctx, "k", strings.NewReader("two"), PutOptions{}); err == nil {
		t.Fatalf("second put must fail")
	}
	if _, err := store.Put(ctx, "  ", strings.NewReader("x"), PutOptions{}); err == nil {
		t.Fatalf("blank key must fail")
	}
}

func TestMemoryMissingKey(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	if _, _, err := store.Get(ctx, "absent"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("get: expected ErrNotExist, got %v", err)
	}
	if _, err := store.Head(ctx, "absent"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("head: expected ErrNotExist, got %v", err)
	}
	deleted, err := store.Delete(ctx, "absent")
	if err != nil || deleted {
		t.Fatalf("delete absent = (%v, %v), want (false, nil)", deleted, err)
	}
}

func TestMemoryListByPrefix(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	for _, key := range []string{"audit/b.csv", "audit/a.csv", "compliance/c.json"} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	infos, err := store.List(ctx, "audit/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "audit/a.csv" || infos[1].Key != "audit/b.csv" {
		t.Fatalf("unexpected listing: %+v", infos)
	}
	all, err := store.List(ctx, "")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("all = %d entries, want 3", len(all))
	}
}

func TestMemoryDelete(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	if _, err := store.Put(ctx, "k", strings.NewReader("x"), PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	deleted, err := store.Delete(ctx, "k")
	if err != nil || !deleted {
		t.Fatalf("delete = (%v, %v), want (true, nil)", deleted, err)
	}
	if _, err := store.Head(ctx, "k"); err == nil {
		t.Fatalf("deleted blob should be gone")
	}
}
