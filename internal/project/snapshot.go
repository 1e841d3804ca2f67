package project

// Snapshot is a serializable view of a project's committed state. Only
// complete (or stale) nodes are included, so restoring a snapshot never
// resurrects partially committed entries.
type Snapshot struct {
	ProjectID string         `json:"project_id"`
	Root      string         `json:"root"`
	SessionID string         `json:"session_id,omitempty"`
	Files     []FileSnapshot `json:"files"`
}

// FileSnapshot is one committed file in a snapshot.
type FileSnapshot struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Version int    `json:"version"`
}

// Snapshot captures the current committed state.
func (p *Project) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	snap := Snapshot{
		ProjectID: p.ID,
		Root:      p.Root,
		SessionID: p.sessionID,
	}
	for _, node := range p.files {
		if node.Status != StatusComplete && node.Status != StatusStale {
			continue
		}
		snap.Files = append(snap.Files, FileSnapshot{
			Path:    node.Path,
			Content: node.Content,
			Version: node.Version,
		})
	}
	return snap
}

// Restore replaces the project tree with the snapshot contents. Every
// restored node is complete; versions carry over so later commits keep
// increasing monotonically.
func Restore(snap Snapshot) *Project {
	p := &Project{
		ID:        snap.ProjectID,
		Root:      snap.Root,
		sessionID: snap.SessionID,
		files:     make(map[string]*FileNode, len(snap.Files)),
	}
	for _, f := range snap.Files {
		p.files[f.Path] = &FileNode{
			Path:    f.Path,
			Content: f.Content,
			Version: f.Version,
			Status:  StatusComplete,
		}
	}
	return p
}
