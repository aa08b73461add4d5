package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperrors "github.com/cardex-app/imagekit/errors"
)

func TestLocalRoundTrip(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocal(root, 0)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	ctx := context.Background()
	data := []byte("jpeg bytes")
	if err := store.Store(ctx, "cards", "u1/photos/123.jpg", data, "image/jpeg"); err != nil {
		t.Fatalf("Store: %v", err)
	}

	abs := filepath.Join(root, "cards", "u1/photos/123.jpg")
	got, err := os.ReadFile(abs)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("stored bytes differ")
	}

	url := store.PublicURL("cards", "u1/photos/123.jpg")
	if !strings.HasPrefix(url, "file://") || !strings.HasSuffix(url, "123.jpg") {
		t.Errorf("url: %s", url)
	}

	if err := store.Remove(ctx, "cards", []string{"u1/photos/123.jpg"}); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(abs); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("object still present after Remove: %v", err)
	}
}

func TestLocalRemoveMissingObject(t *testing.T) {
	store, err := NewLocal(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	// Removing an already-gone object is not an error.
	if err := store.Remove(context.Background(), "cards", []string{"nope/missing.jpg", ""}); err != nil {
		t.Errorf("Remove missing: %v", err)
	}
}

func TestLocalStoreEmptyData(t *testing.T) {
	store, err := NewLocal(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	err = store.Store(context.Background(), "cards", "u/empty.jpg", nil, "image/jpeg")
	if !errors.Is(err, apperrors.ErrEmptyInput) {
		t.Errorf("got %v, want ErrEmptyInput", err)
	}
}

func TestLocalStoreCancelledContext(t *testing.T) {
	store, err := NewLocal(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := store.Store(ctx, "cards", "u/a.jpg", []byte("x"), "image/jpeg"); err == nil {
		t.Error("expected error for cancelled context")
	}
}
