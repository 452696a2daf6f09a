package audio

import (
	"container/list"
	"fmt"
	"os"
	"sync"
)

// DefaultCacheBytes bounds the decoded audio kept in memory.
const DefaultCacheBytes = 64 << 20

// PCMCache keeps recently decoded sources in memory with LRU eviction, so
// switching back to a source does not decode it again. Entries are keyed by
// path, file size, modification time and target format.
type PCMCache struct {
	capacity int64
	size     int64

	items    map[string]*list.Element
	eviction *list.List

	mu sync.Mutex

	hits      int64
	misses    int64
	evictions int64
}

type pcmEntry struct {
	key string
	pcm []byte
}

// CacheStats reports PCMCache usage.
type CacheStats struct {
	Size      int64
	Items     int
	Hits      int64
	Misses    int64
	Evictions int64
}

// NewPCMCache creates a cache holding at most capacity bytes of PCM.
// A capacity <= 0 disables caching.
func NewPCMCache(capacity int64) *PCMCache {
	return &PCMCache{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		eviction: list.New(),
	}
}

// Load returns the PCM for path converted to target, decoding it only on a
// miss. Returned slices are shared and must not be modified.
func (c *PCMCache) Load(path string, target Format) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%s|%d|%d|%d|%d", path, info.Size(), info.ModTime().UnixNano(), target.SampleRate, target.Channels)

	if pcm, ok := c.get(key); ok {
		return pcm, nil
	}
	pcm, err := LoadFile(path, target)
	if err != nil {
		return nil, err
	}
	c.put(key, pcm)
	return pcm, nil
}

func (c *PCMCache) get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.eviction.MoveToFront(elem)
	c.hits++
	return elem.Value.(*pcmEntry).pcm, true
}

func (c *PCMCache) put(key string, pcm []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := int64(len(pcm))
	if n > c.capacity {
		return
	}
	if elem, ok := c.items[key]; ok {
		c.eviction.MoveToFront(elem)
		return
	}
	for c.size+n > c.capacity && c.eviction.Len() > 0 {
		c.evictOldest()
	}
	c.items[key] = c.eviction.PushFront(&pcmEntry{key: key, pcm: pcm})
	c.size += n
}

func (c *PCMCache) evictOldest() {
	elem := c.eviction.Back()
	entry := elem.Value.(*pcmEntry)
	c.eviction.Remove(elem)
	delete(c.items, entry.key)
	c.size -= int64(len(entry.pcm))
	c.evictions++
}

// Stats returns cache statistics.
func (c *PCMCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{
		Size:      c.size,
		Items:     len(c.items),
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}
