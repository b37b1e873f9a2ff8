// Package storage provides the durable client-side key/value storage used
// for the session statistics snapshot and the selected language.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mwiater/escombro/internal/logging"
)

const (
	// KeySessionStats holds the serialized session statistics snapshot.
	KeySessionStats = "sessionStats"
	// KeySelectedLang holds the language code the user picked last.
	KeySelectedLang = "selectedLang"
)

// Storage is a string key/value store that survives process restarts.
type Storage interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
}

// FileStore keeps every key in a single JSON document on disk.
type FileStore struct {
	mu       sync.Mutex
	filepath string
}

// NewFileStore creates a file-backed store. The file is created lazily on the first write.
func NewFileStore(filepath string) *FileStore {
	return &FileStore{filepath: filepath}
}

// Path returns the backing file.
func (f *FileStore) Path() string { return f.filepath }

func (f *FileStore) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.load()
	if err != nil {
		return "", false, err
	}
	v, ok := entries[key]
	return v, ok, nil
}

func (f *FileStore) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.load()
	if err != nil {
		return err
	}
	entries[key] = value
	return f.save(entries)
}

func (f *FileStore) Remove(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := entries[key]; !ok {
		return nil
	}
	delete(entries, key)
	return f.save(entries)
}

// load reads all entries; a missing file is an empty store. A document that
// does not parse is moved aside to <file>.corrupt and treated as absent, so
// later writes start from an empty store.
func (f *FileStore) load() (map[string]string, error) {
	data, err := os.ReadFile(f.filepath)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read storage file %s: %w", f.filepath, err)
	}
	entries := map[string]string{}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		aside := f.filepath + ".corrupt"
		logging.LogWarn("[STORAGE] unreadable storage file %s (%v), moving it to %s", f.filepath, err, aside)
		if rerr := os.Rename(f.filepath, aside); rerr != nil {
			logging.LogWarn("[STORAGE] could not move %s aside: %v", f.filepath, rerr)
		}
		return map[string]string{}, nil
	}
	return entries, nil
}

// save replaces the file atomically so a crash never leaves half a document.
func (f *FileStore) save(entries map[string]string) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal storage: %w", err)
	}
	dir := filepath.Dir(f.filepath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create storage dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".storage-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp storage file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write storage file %s: %w", f.filepath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write storage file %s: %w", f.filepath, err)
	}
	if err := os.Rename(tmpName, f.filepath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace storage file %s: %w", f.filepath, err)
	}
	return nil
}

// MemoryStore is an in-process Storage, mostly for tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]string
	writes  int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string]string{}}
}

func (m *MemoryStore) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	m.writes++
	return nil
}

func (m *MemoryStore) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Writes counts Set calls.
func (m *MemoryStore) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
