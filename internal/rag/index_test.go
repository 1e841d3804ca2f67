package rag

import (
	"context"
	"strings"
	"sync"
	"testing"
)

// fakeEmbedder derives deterministic vectors from text so similarity ranking
// is predictable without a model.
type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	vec := make([]float32, 8)
	for i, r := range text {
		vec[i%8] += float32(r)
	}
	return vec, nil
}

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestIngestIsIdempotentForUnchangedContent(t *testing.T) {
	emb := &fakeEmbedder{}
	idx := NewIndex(emb, NewStructuralChunker(10, 2), nil)
	ctx := context.Background()

	content := "def alpha():\n    return 1\n"
	if err := idx.Ingest(ctx, "a.py", content); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	first := emb.callCount()
	if first == 0 {
		t.Fatal("no embedding calls on first ingest")
	}

	if err := idx.Ingest(ctx, "a.py", content); err != nil {
		t.Fatalf("re-Ingest: %v", err)
	}
	if emb.callCount() != first {
		t.Errorf("re-ingesting unchanged content made %d extra calls", emb.callCount()-first)
	}
}

func TestIngestReplacesPriorChunks(t *testing.T) {
	emb := &fakeEmbedder{}
	idx := NewIndex(emb, NewStructuralChunker(10, 2), nil)
	ctx := context.Background()

	if err := idx.Ingest(ctx, "a.py", "def old():\n    pass\n"); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	oldHashes := idx.Hashes("a.py")

	if err := idx.Ingest(ctx, "a.py", "def renewed():\n    pass\n"); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	newHashes := idx.Hashes("a.py")

	for _, oh := range oldHashes {
		for _, nh := range newHashes {
			if oh == nh {
				t.Errorf("stale chunk %s survived re-ingest", oh[:8])
			}
		}
	}
}

func TestQueryRanksMostSimilarFirst(t *testing.T) {
	emb := &fakeEmbedder{}
	idx := NewIndex(emb, NewStructuralChunker(10, 2), nil)
	ctx := context.Background()

	if err := idx.Ingest(ctx, "match.py", "database connection pooling helpers"); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if err := idx.Ingest(ctx, "other.py", "zzzz"); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	results, err := idx.Query(ctx, "database connection pooling helpers", 1)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Path != "match.py" {
		t.Errorf("top result = %s, want match.py", results[0].Path)
	}
	if results[0].Score <= 0 {
		t.Errorf("score = %f, want positive", results[0].Score)
	}
}

func TestRemoveDropsPath(t *testing.T) {
	emb := &fakeEmbedder{}
	idx := NewIndex(emb, NewStructuralChunker(10, 2), nil)

	if err := idx.Ingest(context.Background(), "a.py", "x = 1\n"); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	idx.Remove("a.py")
	if idx.ChunkCount("a.py") != 0 {
		t.Error("chunks survived Remove")
	}
}

func TestChunkerSplitsPythonByStructure(t *testing.T) {
	chunker := NewStructuralChunker(50, 10)
	content := strings.Join([]string{
		"def first():",
		"    return 1",
		"",
		"def second():",
		"    return 2",
		"",
		"class Widget:",
		"    pass",
	}, "\n")

	chunks := chunker.Chunk("app.py", content)
	if len(chunks) < 3 {
		t.Fatalf("got %d chunks, want one per top-level unit", len(chunks))
	}
	for _, c := range chunks {
		if c.LineStart <= 0 || c.LineEnd < c.LineStart {
			t.Errorf("bad line range %d-%d", c.LineStart, c.LineEnd)
		}
	}
}

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{1, 0, 0}
	c := []float32{0, 1, 0}

	if got := CosineSimilarity(a, b); got < 0.999 {
		t.Errorf("identical vectors similarity = %f", got)
	}
	if got := CosineSimilarity(a, c); got > 0.001 {
		t.Errorf("orthogonal vectors similarity = %f", got)
	}
}
