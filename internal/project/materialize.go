package project

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"forge/internal/fileutil"
)

// DefaultIgnorePatterns are paths never materialized or watched.
var DefaultIgnorePatterns = []string{
	"**/.git/**",
	"**/.venv/**",
	"**/venv/**",
	"**/__pycache__/**",
	"**/node_modules/**",
	"**/rag_db/**",
}

// Ignored reports whether a project-relative path matches an ignore pattern.
func Ignored(relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	for _, pattern := range DefaultIgnorePatterns {
		if ok, _ := doublestar.Match(pattern, relPath); ok {
			return true
		}
	}
	return false
}

// MaterializePath writes one committed file to disk under the project root.
func (p *Project) MaterializePath(path string) error {
	node, ok := p.Get(path)
	if !ok {
		return os.ErrNotExist
	}

	abs, err := p.absPath(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return err
	}
	return fileutil.AtomicWriteString(abs, node.Content, 0644)
}

// Materialize writes all committed files to disk.
func (p *Project) Materialize() error {
	for _, node := range p.Files() {
		if node.Status != StatusComplete && node.Status != StatusStale {
			continue
		}
		if Ignored(node.Path) {
			continue
		}
		if err := p.MaterializePath(node.Path); err != nil {
			return err
		}
	}
	return nil
}

// absPath resolves a project-relative path inside the root, rejecting
// traversal outside of it.
func (p *Project) absPath(rel string) (string, error) {
	abs := filepath.Join(p.Root, filepath.FromSlash(rel))
	root := filepath.Clean(p.Root)
	if abs != root && !strings.HasPrefix(abs, root+string(filepath.Separator)) {
		return "", os.ErrPermission
	}
	return abs, nil
}
