package kv

import (
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

const (
	indexFileName     = "store.index"
	compressThreshold = 1024 // only compress values larger than 1KB
)

// FileStore keeps one file per key under a directory. Larger values are
// zstd-compressed when that makes them smaller. A gob index maps keys to
// files so Keys can report the original key names.
type FileStore struct {
	basePath string

	// Compression
	compressionLevel int
	encoder          *zstd.Encoder
	decoder          *zstd.Decoder

	index map[string]*fileEntry

	mu     sync.Mutex
	closed bool
}

// fileEntry represents an entry in the store index
type fileEntry struct {
	Key          string
	FileName     string
	Size         int64 // Size on disk
	OriginalSize int64
	Compressed   bool
	UpdatedAt    time.Time
}

// NewFileStore creates (or reopens) a file store rooted at basePath.
// compressionLevel 0 disables compression.
func NewFileStore(basePath string, compressionLevel int) (*FileStore, error) {
	if basePath == "" {
		return nil, errors.New("file store path is empty")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	fs := &FileStore{
		basePath:         basePath,
		compressionLevel: compressionLevel,
		index:            make(map[string]*fileEntry),
	}

	if compressionLevel > 0 {
		var err error
		fs.encoder, err = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(compressionLevel)))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
	}
	// Always able to read compressed entries, even if compression was
	// turned off after they were written.
	var err error
	fs.decoder, err = zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	if err := fs.loadIndex(); err != nil {
		// Non-fatal: an unreadable index only loses the key listing, values
		// are re-indexed as they are written again.
		fs.index = make(map[string]*fileEntry)
	}

	return fs, nil
}

// Get reads the value stored under key.
func (fs *FileStore) Get(key string) ([]byte, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.closed {
		return nil, &StoreError{Op: "get", Key: key, Err: ErrClosed}
	}

	entry, ok := fs.index[key]
	if !ok {
		return nil, &StoreError{Op: "get", Key: key, Err: ErrNotFound}
	}

	data, err := os.ReadFile(filepath.Join(fs.basePath, entry.FileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// File vanished behind our back, forget it
			delete(fs.index, key)
			_ = fs.saveIndex()
			return nil, &StoreError{Op: "get", Key: key, Err: ErrNotFound}
		}
		return nil, &StoreError{Op: "get", Key: key, Err: err}
	}

	if entry.Compressed {
		decompressed, err := fs.decoder.DecodeAll(data, nil)
		if err != nil {
			return nil, &StoreError{Op: "get", Key: key, Err: fmt.Errorf("%w: %v", ErrCorrupted, err)}
		}
		data = decompressed
	}

	if int64(len(data)) != entry.OriginalSize {
		return nil, &StoreError{Op: "get", Key: key, Err: ErrCorrupted}
	}

	return data, nil
}

// Set writes value under key, replacing any previous value.
func (fs *FileStore) Set(key string, value []byte) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.closed {
		return &StoreError{Op: "set", Key: key, Err: ErrClosed}
	}

	originalSize := int64(len(value))

	dataToWrite := value
	compressed := false
	if fs.encoder != nil && originalSize > compressThreshold {
		compressedData := fs.encoder.EncodeAll(value, nil)
		// Only use compression if it actually reduces size
		if len(compressedData) < len(value) {
			dataToWrite = compressedData
			compressed = true
		}
	}

	fileName := fileNameForKey(key)
	if err := writeFileAtomic(filepath.Join(fs.basePath, fileName), dataToWrite); err != nil {
		return &StoreError{Op: "set", Key: key, Err: err}
	}

	fs.index[key] = &fileEntry{
		Key:          key,
		FileName:     fileName,
		Size:         int64(len(dataToWrite)),
		OriginalSize: originalSize,
		Compressed:   compressed,
		UpdatedAt:    time.Now(),
	}

	if err := fs.saveIndex(); err != nil {
		return &StoreError{Op: "set", Key: key, Err: fmt.Errorf("save index: %w", err)}
	}
	return nil
}

// Delete removes key and its file.
func (fs *FileStore) Delete(key string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.closed {
		return &StoreError{Op: "delete", Key: key, Err: ErrClosed}
	}

	entry, ok := fs.index[key]
	if !ok {
		return nil
	}

	if err := os.Remove(filepath.Join(fs.basePath, entry.FileName)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &StoreError{Op: "delete", Key: key, Err: err}
	}
	delete(fs.index, key)

	if err := fs.saveIndex(); err != nil {
		return &StoreError{Op: "delete", Key: key, Err: fmt.Errorf("save index: %w", err)}
	}
	return nil
}

// Keys returns all indexed keys in sorted order.
func (fs *FileStore) Keys() ([]string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.closed {
		return nil, ErrClosed
	}
	keys := make([]string, 0, len(fs.index))
	for key := range fs.index {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Size returns the total on-disk size of all values in bytes.
func (fs *FileStore) Size() int64 {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	var size int64
	for _, entry := range fs.index {
		size += entry.Size
	}
	return size
}

// Close saves the index and releases the codecs.
func (fs *FileStore) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.closed {
		return nil
	}
	fs.closed = true

	if fs.encoder != nil {
		_ = fs.encoder.Close()
	}
	fs.decoder.Close()

	return fs.saveIndex()
}

// Private helper methods

func fileNameForKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:16]) + ".kv"
}

func writeFileAtomic(path string, data []byte) error {
	// Write to temp file first, then rename (atomic on most systems)
	tempPath := path + ".tmp"

	file, err := os.Create(tempPath)
	if err != nil {
		return err
	}

	_, err = file.Write(data)
	closeErr := file.Close()

	if err != nil {
		os.Remove(tempPath)
		return err
	}
	if closeErr != nil {
		os.Remove(tempPath)
		return closeErr
	}

	return os.Rename(tempPath, path)
}

func (fs *FileStore) loadIndex() error {
	file, err := os.Open(filepath.Join(fs.basePath, indexFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil // No index file yet
		}
		return err
	}
	defer file.Close()

	return gob.NewDecoder(file).Decode(&fs.index)
}

func (fs *FileStore) saveIndex() error {
	indexPath := filepath.Join(fs.basePath, indexFileName)
	tempPath := indexPath + ".tmp"

	file, err := os.Create(tempPath)
	if err != nil {
		return err
	}

	err = gob.NewEncoder(file).Encode(fs.index)
	closeErr := file.Close()

	if err != nil {
		os.Remove(tempPath)
		return err
	}
	if closeErr != nil {
		os.Remove(tempPath)
		return closeErr
	}

	return os.Rename(tempPath, indexPath)
}
