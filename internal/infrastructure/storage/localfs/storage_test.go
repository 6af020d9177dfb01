package localfs

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestSaveAndOpenRoundTrip(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := storage.Save(context.Background(), "doc-1_report.txt", strings.NewReader("hello")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	reader, err := storage.Open(context.Background(), "doc-1_report.txt")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(raw) != "hello" {
		t.Fatalf("expected hello, got %q", raw)
	}
}

func TestSaveRejectsPathEscape(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for _, key := range []string{"../escape.txt", "a/b.txt", `a\b.txt`, ""} {
		if err := storage.Save(context.Background(), key, strings.NewReader("x")); err == nil {
			t.Fatalf("expected rejection for key %q", key)
		}
	}
}

func TestOpenMissingKeyFails(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := storage.Open(context.Background(), "missing.txt"); err == nil {
		t.Fatalf("expected error for missing key")
	}
}
