package localfs

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kirillkom/complaint-analyst/internal/core/domain"
)

func TestSaveAndOpen(t *testing.T) {
	dir := t.TempDir()
	storage, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := storage.Save(context.Background(), "medium_metadata.json", strings.NewReader("[]")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	rc, err := storage.Open(context.Background(), "medium_metadata.json")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()
	raw, _ := io.ReadAll(rc)
	if string(raw) != "[]" {
		t.Fatalf("unexpected content: %q", raw)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("expected temp files cleaned up, got %d entries", len(entries))
	}
}

func TestSaveKeepsPreviousFileOnFailedWrite(t *testing.T) {
	dir := t.TempDir()
	storage, _ := New(dir)
	if err := storage.Save(context.Background(), "medium_vector.index", strings.NewReader("v1")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	err := storage.Save(context.Background(), "medium_vector.index", io.MultiReader(strings.NewReader("partial"), failingReader{}))
	if err == nil {
		t.Fatalf("expected write error")
	}
	raw, _ := os.ReadFile(filepath.Join(dir, "medium_vector.index"))
	if string(raw) != "v1" {
		t.Fatalf("expected previous artifact intact, got %q", raw)
	}
}

func TestOpenMissingKey(t *testing.T) {
	storage, _ := New(t.TempDir())
	if _, err := storage.Open(context.Background(), "full_vector.index"); !errors.Is(err, domain.ErrIndexNotFound) {
		t.Fatalf("expected index not found, got %v", err)
	}
}

func TestRejectsEscapingKeys(t *testing.T) {
	storage, _ := New(t.TempDir())
	if err := storage.Save(context.Background(), "../outside", strings.NewReader("x")); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk error") }
