package project

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a file node.
type Status string

const (
	StatusPending    Status = "pending"
	StatusGenerating Status = "generating"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
	StatusStale      Status = "stale"
)

// FileNode is one file in the authoritative project tree. Content and version
// are mutated only through Commit, driven by the generation synchronizer.
type FileNode struct {
	Path    string
	Content string
	Version int
	Status  Status
}

// Project is the authoritative in-memory file tree for one project.
type Project struct {
	ID   string
	Root string // Directory where files are materialized

	mu        sync.RWMutex
	files     map[string]*FileNode
	sessionID string
}

// New creates an empty project rooted at dir.
func New(root string) *Project {
	return &Project{
		ID:    uuid.NewString(),
		Root:  root,
		files: make(map[string]*FileNode),
	}
}

// Ensure registers a file node for path if one does not exist and returns it.
// Paths are unique within a project; an existing node is returned as is.
func (p *Project) Ensure(path string) FileNode {
	p.mu.Lock()
	defer p.mu.Unlock()

	node, ok := p.files[path]
	if !ok {
		node = &FileNode{Path: path, Status: StatusPending}
		p.files[path] = node
	}
	return *node
}

// Get returns a copy of the node for path.
func (p *Project) Get(path string) (FileNode, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	node, ok := p.files[path]
	if !ok {
		return FileNode{}, false
	}
	return *node, true
}

// Files returns copies of all nodes ordered by path.
func (p *Project) Files() []FileNode {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]FileNode, 0, len(p.files))
	for _, node := range p.files {
		out = append(out, *node)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Contents returns a path→content map of all complete files.
func (p *Project) Contents() map[string]string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(map[string]string, len(p.files))
	for path, node := range p.files {
		if node.Status == StatusComplete || node.Status == StatusStale {
			out[path] = node.Content
		}
	}
	return out
}

// Commit atomically replaces the content of path, increments its version and
// marks it complete. The version increments exactly once per commit and never
// decrements.
func (p *Project) Commit(path, content string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	node, ok := p.files[path]
	if !ok {
		node = &FileNode{Path: path}
		p.files[path] = node
	}

	node.Content = content
	node.Version++
	node.Status = StatusComplete
	return node.Version, nil
}

// SetStatus updates the status of path without touching content or version.
func (p *Project) SetStatus(path string, status Status) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	node, ok := p.files[path]
	if !ok {
		return fmt.Errorf("unknown file %q", path)
	}
	node.Status = status
	return nil
}

// MarkStale flags path as stale after an external edit. Content and version
// are left untouched; the committed state is still the last agent commit.
func (p *Project) MarkStale(path string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	node, ok := p.files[path]
	if !ok || node.Status != StatusComplete {
		return false
	}
	node.Status = StatusStale
	return true
}

// SessionID returns the id of the current build session, if any.
func (p *Project) SessionID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sessionID
}

// SetSessionID records the current build session.
func (p *Project) SetSessionID(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessionID = id
}

// Len returns the number of file nodes.
func (p *Project) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.files)
}
