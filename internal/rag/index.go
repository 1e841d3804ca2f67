package rag

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"forge/internal/logging"
)

// Embedder computes an embedding vector for a text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Chunk is a retrievable unit of indexed content.
type Chunk struct {
	Path      string
	LineStart int
	LineEnd   int
	Unit      string
	Content   string
	Hash      string
	Embedding []float32
	Score     float32 // Populated on query results
}

// Index is the in-memory knowledge base over project files and supplemental
// documents.
type Index struct {
	embedder Embedder
	chunker  Chunker
	cache    *EmbeddingCache // Optional

	mu     sync.RWMutex
	chunks map[string][]Chunk // path -> chunks
}

// NewIndex creates a knowledge index. cache may be nil.
func NewIndex(embedder Embedder, chunker Chunker, cache *EmbeddingCache) *Index {
	if chunker == nil {
		chunker = NewStructuralChunker(50, 10)
	}
	return &Index{
		embedder: embedder,
		chunker:  chunker,
		cache:    cache,
		chunks:   make(map[string][]Chunk),
	}
}

// Ingest (re)indexes the content of a path. All chunks previously associated
// with the path are replaced, so no stale leftovers survive. Chunks whose
// content hash is unchanged reuse their existing embedding; ingesting
// identical content is idempotent and performs no embedding calls.
func (i *Index) Ingest(ctx context.Context, path, content string) error {
	infos := i.chunker.Chunk(path, content)

	i.mu.RLock()
	prior := make(map[string][]float32, len(i.chunks[path]))
	for _, c := range i.chunks[path] {
		prior[c.Hash] = c.Embedding
	}
	i.mu.RUnlock()

	fresh := make([]Chunk, 0, len(infos))
	for _, info := range infos {
		hash := ContentHash(info.Content)
		chunk := Chunk{
			Path:      path,
			LineStart: info.LineStart,
			LineEnd:   info.LineEnd,
			Unit:      info.Unit,
			Content:   info.Content,
			Hash:      hash,
		}

		if emb, ok := prior[hash]; ok {
			chunk.Embedding = emb
		} else if emb, ok := i.cacheGet(hash); ok {
			chunk.Embedding = emb
		} else {
			emb, err := i.embedder.Embed(ctx, info.Content)
			if err != nil {
				return fmt.Errorf("embedding chunk %s:%d: %w", path, info.LineStart, err)
			}
			chunk.Embedding = emb
			i.cacheSet(hash, emb)
		}

		fresh = append(fresh, chunk)
	}

	i.mu.Lock()
	i.chunks[path] = fresh
	i.mu.Unlock()

	logging.Debug("ingested path", "path", path, "chunks", len(fresh))
	return nil
}

// Remove drops all chunks associated with a path.
func (i *Index) Remove(path string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.chunks, path)
}

// Query ranks indexed chunks by similarity to text and returns the top k,
// most relevant first. Each call re-ranks from scratch.
func (i *Index) Query(ctx context.Context, text string, k int) ([]Chunk, error) {
	queryEmb, err := i.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	i.mu.RLock()
	var results []Chunk
	for _, chunks := range i.chunks {
		for _, chunk := range chunks {
			if chunk.Embedding == nil {
				continue
			}
			chunk.Score = CosineSimilarity(queryEmb, chunk.Embedding)
			results = append(results, chunk)
		}
	}
	i.mu.RUnlock()

	sort.SliceStable(results, func(a, b int) bool {
		if results[a].Score != results[b].Score {
			return results[a].Score > results[b].Score
		}
		return results[a].Path < results[b].Path
	})

	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// ChunkCount returns the number of chunks indexed for a path.
func (i *Index) ChunkCount(path string) int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.chunks[path])
}

// Hashes returns the content hashes indexed for a path, in chunk order.
func (i *Index) Hashes(path string) []string {
	i.mu.RLock()
	defer i.mu.RUnlock()

	out := make([]string, len(i.chunks[path]))
	for n, c := range i.chunks[path] {
		out[n] = c.Hash
	}
	return out
}

// SaveCache persists the embedding cache, if one is configured.
func (i *Index) SaveCache() error {
	if i.cache != nil {
		return i.cache.Save()
	}
	return nil
}

func (i *Index) cacheGet(hash string) ([]float32, bool) {
	if i.cache == nil {
		return nil, false
	}
	return i.cache.Get(hash)
}

func (i *Index) cacheSet(hash string, emb []float32) {
	if i.cache != nil {
		i.cache.Set(hash, emb)
	}
}
