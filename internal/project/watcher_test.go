package project

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"forge/internal/event"
)

func TestWatcherMarksExternalEditsStale(t *testing.T) {
	root := t.TempDir()
	p := New(root)
	bus := event.NewBus()
	defer bus.Close()

	_, _ = p.Commit("app.py", "x = 1\n")
	if err := p.Materialize(); err != nil {
		t.Fatalf("Materialize: %v", err)
	}

	staleSeen := make(chan string, 1)
	w, err := NewWatcher(p, bus, func(path, content string) {
		select {
		case staleSeen <- path:
		default:
		}
	})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	// An external edit with different content.
	if err := os.WriteFile(filepath.Join(root, "app.py"), []byte("x = 2\n"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case path := <-staleSeen:
		if path != "app.py" {
			t.Errorf("stale path = %s", path)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("external edit never reported")
	}

	node, _ := p.Get("app.py")
	if node.Status != StatusStale {
		t.Errorf("status = %s, want stale", node.Status)
	}
	// Committed content and version stay authoritative.
	if node.Content != "x = 1\n" || node.Version != 1 {
		t.Errorf("external edit mutated committed state: %+v", node)
	}
}

func TestWatcherIgnoresOwnMaterialization(t *testing.T) {
	root := t.TempDir()
	p := New(root)
	bus := event.NewBus()
	defer bus.Close()

	_, _ = p.Commit("app.py", "x = 1\n")

	staleSeen := make(chan string, 1)
	w, err := NewWatcher(p, bus, func(path, content string) {
		select {
		case staleSeen <- path:
		default:
		}
	})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	// Writing the committed content is what our own materializer does.
	if err := p.MaterializePath("app.py"); err != nil {
		t.Fatalf("MaterializePath: %v", err)
	}

	select {
	case path := <-staleSeen:
		t.Errorf("own materialization of %s reported as external edit", path)
	case <-time.After(500 * time.Millisecond):
	}

	node, _ := p.Get("app.py")
	if node.Status != StatusComplete {
		t.Errorf("status = %s, want complete", node.Status)
	}
}
