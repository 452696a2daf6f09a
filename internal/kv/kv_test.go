package kv

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// openBackends returns one fresh store per backend for shared behavior tests.
func openBackends(t *testing.T) map[string]ExtendedStore {
	t.Helper()

	file, err := NewFileStore(t.TempDir(), 3)
	if err != nil {
		t.Fatalf("Failed to create file store: %v", err)
	}
	sqlite, err := NewSQLiteStore(":memory:", 0)
	if err != nil {
		t.Fatalf("Failed to create sqlite store: %v", err)
	}

	stores := map[string]ExtendedStore{
		BackendMemory: NewMemoryStore(),
		BackendFile:   file,
		BackendSQLite: sqlite,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

func TestStore_BasicOperations(t *testing.T) {
	for name, store := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := store.Get("missing"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
			}

			if err := store.Set("version", []byte("2024-06-01T00:00:00.000Z")); err != nil {
				t.Fatalf("Set failed: %v", err)
			}

			got, err := store.Get("version")
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if string(got) != "2024-06-01T00:00:00.000Z" {
				t.Errorf("Retrieved value mismatch: got %s", got)
			}

			// Overwrite
			if err := store.Set("version", []byte("v2")); err != nil {
				t.Fatalf("Set (overwrite) failed: %v", err)
			}
			got, _ = store.Get("version")
			if string(got) != "v2" {
				t.Errorf("Overwritten value mismatch: got %s, want v2", got)
			}

			if err := store.Set("sites", []byte("[]")); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
			keys, err := store.Keys()
			if err != nil {
				t.Fatalf("Keys failed: %v", err)
			}
			if len(keys) != 2 || keys[0] != "sites" || keys[1] != "version" {
				t.Errorf("Keys = %v, want [sites version]", keys)
			}

			if err := store.Delete("version"); err != nil {
				t.Fatalf("Delete failed: %v", err)
			}
			if _, err := store.Get("version"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Key still exists after delete, err = %v", err)
			}
			if err := store.Delete("version"); err != nil {
				t.Errorf("Deleting a missing key should not fail: %v", err)
			}
		})
	}
}

func TestStore_Closed(t *testing.T) {
	for name, store := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.Close(); err != nil {
				t.Fatalf("Close failed: %v", err)
			}
			if err := store.Set("k", []byte("v")); !errors.Is(err, ErrClosed) {
				t.Errorf("Set after close error = %v, want ErrClosed", err)
			}
			if _, err := store.Get("k"); !errors.Is(err, ErrClosed) {
				t.Errorf("Get after close error = %v, want ErrClosed", err)
			}
		})
	}
}

func TestStoreError_Unwrap(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Get("changdang-sites")

	var storeErr *StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("error %T is not a *StoreError", err)
	}
	if storeErr.Op != "get" || storeErr.Key != "changdang-sites" {
		t.Errorf("StoreError = %+v", storeErr)
	}
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	store := NewMemoryStore()
	value := []byte("abc")
	store.Set("k", value)
	value[0] = 'x'

	got, _ := store.Get("k")
	if string(got) != "abc" {
		t.Errorf("stored value aliased caller slice: %s", got)
	}
	got[1] = 'y'
	again, _ := store.Get("k")
	if string(again) != "abc" {
		t.Errorf("returned value aliased stored slice: %s", again)
	}
}

func TestFileStore_Reopen(t *testing.T) {
	dir := t.TempDir()

	store, err := NewFileStore(dir, 3)
	if err != nil {
		t.Fatalf("Failed to create file store: %v", err)
	}
	large := bytes.Repeat([]byte(`{"id":"site-1","tags":["a","b"]},`), 200)
	if err := store.Set("sites", large); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := NewFileStore(dir, 3)
	if err != nil {
		t.Fatalf("Failed to reopen file store: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get("sites")
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if !bytes.Equal(got, large) {
		t.Errorf("value changed across reopen: got %d bytes, want %d", len(got), len(large))
	}
	if reopened.Size() >= int64(len(large)) {
		t.Errorf("repetitive value should be stored compressed, size %d >= %d", reopened.Size(), len(large))
	}
}

func TestFileStore_CompressedReadableWithoutCompression(t *testing.T) {
	dir := t.TempDir()

	store, _ := NewFileStore(dir, 3)
	large := bytes.Repeat([]byte("terms"), 1000)
	store.Set("terms", large)
	store.Close()

	plain, err := NewFileStore(dir, 0)
	if err != nil {
		t.Fatalf("Failed to reopen without compression: %v", err)
	}
	defer plain.Close()

	got, err := plain.Get("terms")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, large) {
		t.Error("compressed entry not readable after disabling compression")
	}
}

func TestFileStore_CorruptedFile(t *testing.T) {
	dir := t.TempDir()

	store, _ := NewFileStore(dir, 3)
	defer store.Close()

	store.Set("terms", bytes.Repeat([]byte("x"), 4096))

	path := filepath.Join(dir, fileNameForKey("terms"))
	if err := os.WriteFile(path, []byte("not zstd"), 0o644); err != nil {
		t.Fatalf("Failed to corrupt file: %v", err)
	}

	if _, err := store.Get("terms"); !errors.Is(err, ErrCorrupted) {
		t.Errorf("Get on corrupted file error = %v, want ErrCorrupted", err)
	}
}

func TestFileStore_MissingFile(t *testing.T) {
	dir := t.TempDir()

	store, _ := NewFileStore(dir, 0)
	defer store.Close()

	store.Set("version", []byte("v1"))
	os.Remove(filepath.Join(dir, fileNameForKey("version")))

	if _, err := store.Get("version"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get with missing file error = %v, want ErrNotFound", err)
	}
	keys, _ := store.Keys()
	if len(keys) != 0 {
		t.Errorf("missing file should be dropped from index, keys = %v", keys)
	}
}

func TestSQLiteStore_OnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")

	store, err := NewSQLiteStore(path, DefaultConfig().BusyTimeout)
	if err != nil {
		t.Fatalf("Failed to create sqlite store: %v", err)
	}
	store.Set("version", []byte("v1"))
	store.Close()

	reopened, err := NewSQLiteStore(path, DefaultConfig().BusyTimeout)
	if err != nil {
		t.Fatalf("Failed to reopen sqlite store: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get("version")
	if err != nil || string(got) != "v1" {
		t.Errorf("Get after reopen = %q, %v; want v1", got, err)
	}
}

func TestPrefixed(t *testing.T) {
	base := NewMemoryStore()
	content := Prefixed(base, "changdang")
	other := Prefixed(base, "settings")

	content.Set("sites", []byte("content"))
	other.Set("sites", []byte("other"))

	if _, err := base.Get("changdang-sites"); err != nil {
		t.Errorf("prefixed key not written to base store: %v", err)
	}

	got, _ := content.Get("sites")
	if string(got) != "content" {
		t.Errorf("namespaces collided: got %s", got)
	}

	keys, err := content.Keys()
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != 1 || keys[0] != "sites" {
		t.Errorf("Keys = %v, want [sites]", keys)
	}

	if err := content.Delete("sites"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := other.Get("sites"); err != nil {
		t.Errorf("deleting in one namespace touched another: %v", err)
	}
}

func TestOpen(t *testing.T) {
	tests := []struct {
		name      string
		config    Config
		expectErr bool
	}{
		{name: "memory", config: Config{Backend: BackendMemory}},
		{name: "file", config: Config{Backend: BackendFile, Path: t.TempDir(), CompressionLevel: 3}},
		{name: "sqlite", config: Config{Backend: BackendSQLite, Path: ":memory:"}},
		{name: "file without path", config: Config{Backend: BackendFile}, expectErr: true},
		{name: "unknown", config: Config{Backend: "bolt"}, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := Open(tt.config)
			if tt.expectErr {
				if err == nil {
					store.Close()
					t.Error("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			store.Close()
		})
	}
}
