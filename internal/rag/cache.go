package rag

import (
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// CacheEntry is a cached embedding keyed by content hash.
type CacheEntry struct {
	Embedding []float32
	Timestamp time.Time
}

// EmbeddingCache persists embeddings across runs so unchanged chunks are
// never re-embedded.
type EmbeddingCache struct {
	mu       sync.RWMutex
	entries  map[string]CacheEntry // content hash -> entry
	filePath string
	ttl      time.Duration
	dirty    bool
}

// NewEmbeddingCache creates a per-project embedding cache under configDir.
func NewEmbeddingCache(configDir, projectID string, ttl time.Duration) *EmbeddingCache {
	cacheDir := filepath.Join(configDir, "embedding_cache")
	cache := &EmbeddingCache{
		entries:  make(map[string]CacheEntry),
		filePath: filepath.Join(cacheDir, projectID+".gob"),
		ttl:      ttl,
	}
	_ = cache.Load() // Start fresh if the file doesn't exist
	return cache
}

// Get retrieves an embedding by content hash.
func (c *EmbeddingCache) Get(hash string) ([]float32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[hash]
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && time.Since(entry.Timestamp) > c.ttl {
		return nil, false
	}
	return entry.Embedding, true
}

// Set stores an embedding under its content hash.
func (c *EmbeddingCache) Set(hash string, embedding []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[hash] = CacheEntry{Embedding: embedding, Timestamp: time.Now()}
	c.dirty = true
}

// Size returns the number of cached entries.
func (c *EmbeddingCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Save persists the cache to disk with a tmp file + rename.
func (c *EmbeddingCache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dirty {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(c.filePath), 0755); err != nil {
		return err
	}

	tmpPath := c.filePath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return err
	}

	if err := gob.NewEncoder(f).Encode(c.entries); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, c.filePath); err != nil {
		os.Remove(tmpPath)
		return err
	}

	c.dirty = false
	return nil
}

// Load loads the cache from disk.
func (c *EmbeddingCache) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.Open(c.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	if err := gob.NewDecoder(f).Decode(&c.entries); err != nil {
		c.entries = make(map[string]CacheEntry)
		return err
	}
	return nil
}

// ContentHash hashes chunk content for staleness detection and cache keys.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
