package rag

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"forge/internal/event"
	"forge/internal/project"
)

// An externally edited file must not keep its pre-edit chunks: the watcher's
// stale hook feeds the edited content straight back into the index.
func TestStaleHookReingestsEditedContent(t *testing.T) {
	root := t.TempDir()
	p := project.New(root)
	bus := event.NewBus()
	defer bus.Close()

	emb := &fakeEmbedder{}
	idx := NewIndex(emb, NewStructuralChunker(10, 2), nil)
	ctx := context.Background()

	_, _ = p.Commit("a.py", "def old():\n    pass\n")
	if err := p.Materialize(); err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if err := idx.Ingest(ctx, "a.py", "def old():\n    pass\n"); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	oldHashes := idx.Hashes("a.py")

	reingested := make(chan struct{}, 1)
	w, err := project.NewWatcher(p, bus, func(path, content string) {
		if err := idx.Ingest(ctx, path, content); err != nil {
			t.Errorf("Ingest from stale hook: %v", err)
		}
		select {
		case reingested <- struct{}{}:
		default:
		}
	})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	edited := "def renewed():\n    return 2\n"
	if err := os.WriteFile(filepath.Join(root, "a.py"), []byte(edited), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-reingested:
	case <-time.After(3 * time.Second):
		t.Fatal("external edit never reached the index")
	}

	newHashes := idx.Hashes("a.py")
	if len(newHashes) == 0 {
		t.Fatal("edited file dropped from the index")
	}
	if len(oldHashes) == len(newHashes) {
		same := true
		for i := range oldHashes {
			if oldHashes[i] != newHashes[i] {
				same = false
				break
			}
		}
		if same {
			t.Error("index still holds pre-edit chunks")
		}
	}
}
