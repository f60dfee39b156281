package blob

import (
	"context"
	"io"
	"strings"
	"testing"
)

func newFSStore(t *testing.T) *FilesystemStore {
	t.Helper()
	store, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("new filesystem store: %v", err)
	}
	return store
}

func TestFilesystemPutGetRoundTrip(t *testing.T) {
	store := newFSStore(t)
	ctx := context.Background()

	info, err := store.Put(ctx, "audit/20250601T080000Z.csv", strings.NewReader("Timestamp,User\n"), PutOptions{
		ContentType: "text/csv",
		Metadata:    map[string]string{"rows": "1"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 15 || info.ContentType != "text/csv" || info.ETag == "" {
		t.Fatalf("unexpected info: %+v", info)
	}

	got, rc, err := store.Get(ctx, "audit/20250601T080000Z.csv")
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
	if got.Metadata["rows"] != "1" || got.ContentType != "text/csv" {
		t.Fatalf("metadata did not survive the sidecar: %+v", got)
	}
	if store.Driver() != DriverFilesystem {
		t.Fatalf("driver = %s", store.Driver())
	}
}

func TestFilesystemPutIsCreateOnly(t *testing.T) {
	store := newFSStore(t)
	ctx := context.Background()
	if _, err := store.Put(ctx, "k.txt", strings.NewReader("one"), PutOptions{}); err != nil {
		t.Fatalf("first put: %v", err)
	}
	if _, err := store.Put(ctx, "k.txt", strings.NewReader("two"), PutOptions{}); err == nil {
		t.Fatalf("second put must fail")
	}
}

func TestFilesystemRejectsTraversalKeys(t *testing.T) {
	store := newFSStore(t)
	ctx := context.Background()
	for _, key := range []string{"../escape", "/abs", "a/../../b", ""} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), PutOptions{}); err == nil {
			t.Errorf("key %q should be rejected", key)
		}
	}
}

func TestFilesystemHeadAndDelete(t *testing.T) {
	store := newFSStore(t)
	ctx := context.Background()
	if _, err := store.Put(ctx, "a/b/c.json", strings.NewReader("{}"), PutOptions{ContentType: "application/json"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	info, err := store.Head(ctx, "a/b/c.json")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if info.Size != 2 || info.ContentType != "application/json" {
		t.Fatalf("unexpected info: %+v", info)
	}

	deleted, err := store.Delete(ctx, "a/b/c.json")
	if err != nil || !deleted {
		t.Fatalf("delete = (%v, %v), want (true, nil)", deleted, err)
	}
	deleted, err = store.Delete(ctx, "a/b/c.json")
	if err != nil || deleted {
		t.Fatalf("second delete = (%v, %v), want (false, nil)", deleted, err)
	}
}

func TestFilesystemListByPrefix(t *testing.T) {
	store := newFSStore(t)
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
}
