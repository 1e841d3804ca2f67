package project

import (
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"forge/internal/event"
	"forge/internal/logging"
)

// StaleFunc is invoked when an external edit makes a committed file stale.
type StaleFunc func(path, content string)

// Watcher observes the materialized project directory and flags committed
// files that were edited outside of a build session as stale.
type Watcher struct {
	project *Project
	bus     *event.Bus
	onStale StaleFunc
	fw      *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher creates a watcher for the project's root directory.
func NewWatcher(p *Project, bus *event.Bus, onStale StaleFunc) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		project: p,
		bus:     bus,
		onStale: onStale,
		fw:      fw,
		done:    make(chan struct{}),
	}

	if err := w.addRecursive(p.Root); err != nil {
		fw.Close()
		return nil, err
	}

	go w.loop()
	return w, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fw.Close()
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // Skip unreadable entries
		}
		if !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr == nil && rel != "." && Ignored(rel) {
			return filepath.SkipDir
		}
		return w.fw.Add(path)
	})
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			logging.Warn("project watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}

	// New directories need watching too.
	if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
		if ev.Op&fsnotify.Create != 0 {
			_ = w.addRecursive(ev.Name)
		}
		return
	}

	rel, err := filepath.Rel(w.project.Root, ev.Name)
	if err != nil || Ignored(rel) {
		return
	}
	rel = filepath.ToSlash(rel)

	node, ok := w.project.Get(rel)
	if !ok {
		return
	}

	data, err := os.ReadFile(ev.Name)
	if err != nil {
		return
	}

	// A write that matches the committed content is our own materialization.
	if string(data) == node.Content {
		return
	}

	if !w.project.MarkStale(rel) {
		return
	}

	logging.Info("file edited externally, marked stale", "path", rel)
	w.bus.Publish(event.Event{
		Type:   event.TypeFileStale,
		Path:   rel,
		Status: string(StatusStale),
	})

	if w.onStale != nil {
		w.onStale(rel, string(data))
	}
}
