package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalStorageUploadAndDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir, "http://localhost:5000/uploads/")
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	ctx := context.Background()

	resp, err := store.Upload(ctx, &UploadRequest{
		Key:         "documents/u1/license/scan.pdf",
		Reader:      strings.NewReader("pdf-bytes"),
		ContentType: "application/pdf",
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if resp.Size != int64(len("pdf-bytes")) {
		t.Fatalf("expected size %d, got %d", len("pdf-bytes"), resp.Size)
	}
	if resp.URL != "http://localhost:5000/uploads/documents/u1/license/scan.pdf" {
		t.Fatalf("unexpected url %s", resp.URL)
	}

	exists, err := store.FileExists(ctx, resp.Key)
	if err != nil || !exists {
		t.Fatalf("expected file to exist, got %v %v", exists, err)
	}

	if err := store.Delete(ctx, resp.Key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if exists, _ := store.FileExists(ctx, resp.Key); exists {
		t.Fatal("expected file to be gone")
	}
}

func TestLocalStorageKeepsKeysInsideBasePath(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(filepath.Join(dir, "uploads"), "http://localhost/uploads")
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}

	_, err = store.Upload(context.Background(), &UploadRequest{
		Key:    "../../escape.txt",
		Reader: strings.NewReader("x"),
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "escape.txt")); !os.IsNotExist(err) {
		t.Fatal("upload escaped the base path")
	}
	if _, err := os.Stat(filepath.Join(dir, "uploads", "escape.txt")); err != nil {
		t.Fatalf("expected file under base path: %v", err)
	}
}
