package object

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"

	"github.com/Lalitha-balijepalli/FileFlexor/internal/storage"
)

func TestKeyUsesAreaPrefix(t *testing.T) {
	c := &Client{bucketName: "files"}
	s := c.Area("/intake/")

	if got := s.key("file-1-2.png"); got != "intake/file-1-2.png" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestWrapNotFound(t *testing.T) {
	if err := wrapNotFound(minio.ErrorResponse{Code: "NoSuchKey"}, "load"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for NoSuchKey, got %v", err)
	}

	if err := wrapNotFound(minio.ErrorResponse{StatusCode: http.StatusNotFound}, "stat"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for 404, got %v", err)
	}

	other := minio.ErrorResponse{Code: "AccessDenied", Message: "denied"}
	err := wrapNotFound(other, "load")
	if errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected AccessDenied to stay a distinct error")
	}
	if !strings.Contains(err.Error(), "denied") {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}

func TestRejectsInvalidNamesBeforeNetwork(t *testing.T) {
	s := (&Client{bucketName: "files"}).Area("results")
	ctx := context.Background()

	if _, err := s.Load(ctx, "../intake/x.png"); !errors.Is(err, storage.ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
	if _, err := s.Save(ctx, "a/b", strings.NewReader("x")); !errors.Is(err, storage.ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
	if err := s.Delete(ctx, ".."); !errors.Is(err, storage.ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
}
