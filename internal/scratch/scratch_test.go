package scratch

import (
	"os"
	"strings"
	"testing"
)

func TestAcquirePathsAreRunScoped(t *testing.T) {
	store := NewStore(t.TempDir())

	a := store.Acquire("run-1", "raw")
	b := store.Acquire("run-2", "raw")
	c := store.Acquire("run-1", "cleaned")

	if a.Path() == b.Path() {
		t.Errorf("different runs share a path: %s", a.Path())
	}
	if a.Path() == c.Path() {
		t.Errorf("different roles share a path: %s", a.Path())
	}
	if !strings.Contains(a.Path(), "run-1") || !strings.Contains(a.Path(), "raw") {
		t.Errorf("path %s does not embed run id and role", a.Path())
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())
	h := store.Acquire("run-1", "raw")
	defer h.Release()

	payload := []byte{0x52, 0x49, 0x46, 0x46, 0x00}
	if err := h.Write(payload); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got, err := h.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("Read = %v, want %v", got, payload)
	}
}

func TestReleaseRemovesFile(t *testing.T) {
	store := NewStore(t.TempDir())
	h := store.Acquire("run-1", "raw")

	if err := h.Write([]byte("audio")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if !h.Exists() {
		t.Fatal("file missing after Write")
	}

	h.Release()
	if h.Exists() {
		t.Error("file still present after Release")
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	store := NewStore(t.TempDir())

	// Never materialized.
	h := store.Acquire("run-1", "cleaned")
	h.Release()
	h.Release()

	// Released twice after a write.
	h2 := store.Acquire("run-1", "raw")
	if err := h2.Write([]byte("x")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	h2.Release()
	h2.Release()
}

func TestReadMissingFileFails(t *testing.T) {
	store := NewStore(t.TempDir())
	h := store.Acquire("run-1", "raw")

	if _, err := h.Read(); err == nil {
		t.Error("expected error reading never-materialized handle")
	}
}

func TestDefaultDirFallsBackToTempDir(t *testing.T) {
	store := NewStore("")
	h := store.Acquire("run-x", "raw")

	if !strings.HasPrefix(h.Path(), os.TempDir()) {
		t.Errorf("path %s not under %s", h.Path(), os.TempDir())
	}
}
