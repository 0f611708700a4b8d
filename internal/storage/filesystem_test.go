package storage

import (
	"context"
	"errors"
	"testing"
)

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "http://localhost:8080/static/")
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}
	ctx := context.Background()

	key, err := store.Write(ctx, "/manuscripts/owner/../owner/novel.zip", []byte("zip"), "application/zip")
	if err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if key != "manuscripts/owner/novel.zip" {
		t.Fatalf("key = %q", key)
	}
	data, err := store.Read(ctx, key)
	if err != nil || string(data) != "zip" {
		t.Fatalf("Read = %q, %v", data, err)
	}
	url, err := store.URL(ctx, key, 0)
	if err != nil || url != "http://localhost:8080/static/manuscripts/owner/novel.zip" {
		t.Fatalf("URL = %q, %v", url, err)
	}
	if _, err := store.Read(ctx, "missing.zip"); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("Read missing error = %v, want ErrObjectNotFound", err)
	}
}

func TestSanitizeKeyRejectsTraversal(t *testing.T) {
	for _, key := range []string{"", " ", "..", "../etc/passwd", "a/../../b", "."} {
		if _, err := sanitizeKey(key); err == nil {
			t.Fatalf("sanitizeKey(%q) should fail", key)
		}
	}
	got, err := sanitizeKey(`.\chapters\one.txt`)
	if err != nil || got != "chapters/one.txt" {
		t.Fatalf("sanitizeKey windows path = %q, %v", got, err)
	}
}

func TestNewMinIOStoreRequiresBucket(t *testing.T) {
	if _, err := NewMinIOStore(MinIOOptions{Endpoint: "localhost:9000"}); err == nil {
		t.Fatal("expected error without bucket")
	}
	store, err := NewMinIOStore(MinIOOptions{Endpoint: "localhost:9000", Bucket: "manuscripts", AccessKey: "a", SecretKey: "b"})
	if err != nil || store == nil {
		t.Fatalf("NewMinIOStore returned %v", err)
	}
}
