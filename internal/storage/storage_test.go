package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "storage.json")
	store := NewFileStore(path)

	if _, ok, err := store.Get(KeySessionStats); err != nil || ok {
		t.Fatalf("expected empty store, got ok=%v err=%v", ok, err)
	}

	if err := store.Set(KeySessionStats, `{"totalProcessed":1}`); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Set(KeySelectedLang, "en"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	reopened := NewFileStore(path)
	v, ok, err := reopened.Get(KeySessionStats)
	if err != nil || !ok || v != `{"totalProcessed":1}` {
		t.Fatalf("unexpected value %q ok=%v err=%v", v, ok, err)
	}

	if err := reopened.Remove(KeySessionStats); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok, _ := store.Get(KeySessionStats); ok {
		t.Fatal("expected key removed")
	}
	if v, ok, _ := store.Get(KeySelectedLang); !ok || v != "en" {
		t.Fatalf("expected language kept, got %q", v)
	}
	if err := store.Remove("missing"); err != nil {
		t.Fatalf("Remove missing key: %v", err)
	}
}

func TestFileStoreCorruptFileIsTreatedAsAbsent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "storage.json")
	if err := os.WriteFile(path, []byte(`{"sessionStats":"{\"totalPro`), 0o644); err != nil {
		t.Fatal(err)
	}
	store := NewFileStore(path)
	if _, ok, err := store.Get(KeySessionStats); err != nil || ok {
		t.Fatalf("expected corrupt file to read as empty, got ok=%v err=%v", ok, err)
	}
	if _, err := os.Stat(path + ".corrupt"); err != nil {
		t.Fatalf("expected corrupt document kept aside: %v", err)
	}

	if err := store.Set(KeySessionStats, "fresh"); err != nil {
		t.Fatalf("Set after corruption: %v", err)
	}
	if err := store.Remove(KeySessionStats); err != nil {
		t.Fatalf("Remove after corruption: %v", err)
	}
	if err := store.Set(KeySelectedLang, "en"); err != nil {
		t.Fatalf("Set after remove: %v", err)
	}
	if v, ok, err := NewFileStore(path).Get(KeySelectedLang); err != nil || !ok || v != "en" {
		t.Fatalf("unexpected value %q ok=%v err=%v", v, ok, err)
	}
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, "storage.json"))
	for i := 0; i < 3; i++ {
		if err := store.Set("k", "v"); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the storage file, found %d entries", len(entries))
	}
}

func TestMemoryStoreCountsWrites(t *testing.T) {
	m := NewMemoryStore()
	_ = m.Set("a", "1")
	_ = m.Set("a", "2")
	_ = m.Remove("a")
	if m.Writes() != 2 {
		t.Fatalf("expected 2 writes, got %d", m.Writes())
	}
	if _, ok, _ := m.Get("a"); ok {
		t.Fatal("expected key removed")
	}
}
