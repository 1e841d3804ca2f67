package syncer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/sergi/go-diff/diffmatchpatch"

	"forge/internal/event"
	"forge/internal/logging"
	"forge/internal/project"
)

// ErrPathLocked is returned when a second task tries to write a path that
// another task already holds. The orchestrator never targets one path with
// two tasks in a session, so hitting this means a scheduling bug upstream.
type ErrPathLocked struct {
	Path   string
	Holder string
}

func (e *ErrPathLocked) Error() string {
	return fmt.Sprintf("path %q is locked by task %s", e.Path, e.Holder)
}

// taskBuffer accumulates streamed output for one task before commit.
type taskBuffer struct {
	path        string
	sessionID   string
	buf         strings.Builder
	priorStatus project.Status
	committed   bool
}

// Synchronizer applies streamed agent output to the project store safely.
// Partial output lives in task-scoped buffers and becomes authoritative only
// on a successful, validated commit.
type Synchronizer struct {
	project *project.Project
	bus     *event.Bus

	mu        sync.Mutex
	pathOwner map[string]string      // path -> task id holding the write lock
	buffers   map[string]*taskBuffer // task id -> buffer
	committed map[string]bool        // task id -> reached committed state
}

// New creates a synchronizer bound to a project.
func New(p *project.Project, bus *event.Bus) *Synchronizer {
	return &Synchronizer{
		project:   p,
		bus:       bus,
		pathOwner: make(map[string]string),
		buffers:   make(map[string]*taskBuffer),
		committed: make(map[string]bool),
	}
}

// Begin acquires the write lock for path on behalf of taskID and opens its
// buffer. At most one task holds a path's lock at any time.
func (s *Synchronizer) Begin(taskID, sessionID, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if holder, held := s.pathOwner[path]; held && holder != taskID {
		return &ErrPathLocked{Path: path, Holder: holder}
	}
	if _, open := s.buffers[taskID]; open {
		return fmt.Errorf("task %s already has an open buffer", taskID)
	}

	node := s.project.Ensure(path)

	s.pathOwner[path] = taskID
	s.buffers[taskID] = &taskBuffer{
		path:        path,
		sessionID:   sessionID,
		priorStatus: node.Status,
	}

	_ = s.project.SetStatus(path, project.StatusGenerating)
	return nil
}

// ApplyChunk appends a streamed token chunk to the task's buffer. The
// authoritative file node is untouched, so garbled partial output is never
// visible as committed state.
func (s *Synchronizer) ApplyChunk(taskID, chunk string) error {
	s.mu.Lock()
	buf, ok := s.buffers[taskID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("no open buffer for task %s", taskID)
	}
	buf.buf.WriteString(chunk)
	path, sessionID := buf.path, buf.sessionID
	s.mu.Unlock()

	s.bus.Publish(event.Event{
		Type:      event.TypeFileChunk,
		SessionID: sessionID,
		TaskID:    taskID,
		Path:      path,
		Text:      chunk,
	})
	return nil
}

// Commit sanitizes and validates the buffered content, then atomically
// replaces the file node's content, bumping its version exactly once. On
// validation failure the prior content and version are untouched and the
// node is marked error.
func (s *Synchronizer) Commit(taskID string) (int, error) {
	s.mu.Lock()
	buf, ok := s.buffers[taskID]
	if !ok {
		s.mu.Unlock()
		return 0, fmt.Errorf("no open buffer for task %s", taskID)
	}
	path, sessionID := buf.path, buf.sessionID
	content := Sanitize(buf.buf.String())
	s.mu.Unlock()

	if err := Validate(path, content); err != nil {
		s.mu.Lock()
		delete(s.buffers, taskID)
		delete(s.pathOwner, path)
		s.mu.Unlock()

		_ = s.project.SetStatus(path, project.StatusError)
		logging.Warn("generated content failed validation", "path", path, "error", err)
		return 0, err
	}

	prior, _ := s.project.Get(path)

	version, err := s.project.Commit(path, content)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	delete(s.buffers, taskID)
	delete(s.pathOwner, path)
	s.committed[taskID] = true
	s.mu.Unlock()

	s.bus.Publish(event.Event{
		Type:      event.TypeFileCommitted,
		SessionID: sessionID,
		TaskID:    taskID,
		Path:      path,
		Version:   version,
		Text:      diffText(prior.Content, content),
	})

	logging.Info("committed file", "path", path, "version", version)
	return version, nil
}

// Rollback discards the task's buffer and restores the file node's prior
// status. Content and version are never touched. Rolling back a task that
// already committed, or was already rolled back, is a no-op.
func (s *Synchronizer) Rollback(taskID, reason string) {
	s.mu.Lock()
	if s.committed[taskID] {
		s.mu.Unlock()
		return
	}
	buf, ok := s.buffers[taskID]
	if !ok {
		s.mu.Unlock()
		return
	}
	path := buf.path
	prior := buf.priorStatus
	delete(s.buffers, taskID)
	delete(s.pathOwner, path)
	s.mu.Unlock()

	_ = s.project.SetStatus(path, prior)
	logging.Debug("rolled back task buffer", "task", taskID, "path", path, "reason", reason)
}

// Holder returns the task currently holding the write lock for path.
func (s *Synchronizer) Holder(path string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	holder, ok := s.pathOwner[path]
	return holder, ok
}

// diffText renders a compact patch between two versions for commit events.
func diffText(before, after string) string {
	if before == "" {
		return ""
	}
	dmp := diffmatchpatch.New()
	patches := dmp.PatchMake(before, after)
	return dmp.PatchToText(patches)
}
