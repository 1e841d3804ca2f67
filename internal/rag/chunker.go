package rag

import (
	"go/ast"
	"go/parser"
	"go/token"
	"path/filepath"
	"regexp"
	"strings"
)

// ChunkInfo is a pre-embedding unit of content produced by a chunker.
type ChunkInfo struct {
	Path      string
	LineStart int
	LineEnd   int
	Unit      string // "function", "class", "declaration" or "window"
	Content   string
}

// Chunker splits file content into logical chunks.
type Chunker interface {
	Chunk(path, content string) []ChunkInfo
}

// StructuralChunker splits code along structural boundaries (functions,
// classes, types), falling back to fixed-size overlapping windows for
// unstructured text.
type StructuralChunker struct {
	baseChunkSize int
	overlap       int
}

// NewStructuralChunker creates a structural chunker.
func NewStructuralChunker(baseChunkSize, overlap int) *StructuralChunker {
	return &StructuralChunker{
		baseChunkSize: baseChunkSize,
		overlap:       overlap,
	}
}

var (
	pythonStructRe    = regexp.MustCompile(`^(class|def|async\s+def)\s+[a-zA-Z_][a-zA-Z0-9_]*`)
	heuristicStructRe = regexp.MustCompile(`^(func|def|class|interface|type|struct|enum|namespace|module|function|export\s+(class|function|const))\s+[a-zA-Z_$][a-zA-Z0-9_$]*`)
)

// Chunk splits the content based on language-specific structure.
func (c *StructuralChunker) Chunk(path, content string) []ChunkInfo {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return c.chunkGo(path, content)
	case ".py":
		return c.chunkWithRegex(path, content, pythonStructRe)
	default:
		return c.chunkWithRegex(path, content, heuristicStructRe)
	}
}

// chunkGo uses the Go AST to split code into top-level declarations.
func (c *StructuralChunker) chunkGo(path, content string) []ChunkInfo {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, path, content, parser.ParseComments)
	if err != nil {
		return c.chunkSlidingWindow(path, content)
	}

	lines := strings.Split(content, "\n")
	var chunks []ChunkInfo

	for _, decl := range f.Decls {
		var unit string
		switch decl.(type) {
		case *ast.FuncDecl:
			unit = "function"
		case *ast.GenDecl:
			unit = "declaration"
		default:
			continue
		}

		start := fset.Position(decl.Pos()).Line
		end := fset.Position(decl.End()).Line
		if start < 1 || end < start || end > len(lines) {
			continue
		}

		text := strings.Join(lines[start-1:end], "\n")
		if strings.TrimSpace(text) == "" {
			continue
		}
		chunks = append(chunks, ChunkInfo{
			Path:      path,
			LineStart: start,
			LineEnd:   end,
			Unit:      unit,
			Content:   text,
		})
	}

	if len(chunks) == 0 {
		return c.chunkSlidingWindow(path, content)
	}
	return chunks
}

// chunkWithRegex splits on lines matching a structure regex at top level.
func (c *StructuralChunker) chunkWithRegex(path, content string, structRe *regexp.Regexp) []ChunkInfo {
	lines := strings.Split(content, "\n")
	var chunks []ChunkInfo
	currentStart := -1

	flush := func(end int) {
		text := strings.Join(lines[currentStart:end], "\n")
		if strings.TrimSpace(text) == "" {
			return
		}
		chunks = append(chunks, ChunkInfo{
			Path:      path,
			LineStart: currentStart + 1,
			LineEnd:   end,
			Unit:      "class",
			Content:   text,
		})
	}

	for i, line := range lines {
		if structRe.MatchString(line) {
			if currentStart != -1 {
				flush(i)
			}
			currentStart = i
		}

		// Force a split when a single unit grows too large.
		if currentStart != -1 && i-currentStart >= c.baseChunkSize*2 {
			flush(i)
			currentStart = i
		}
	}

	if currentStart != -1 {
		flush(len(lines))
	}

	if len(chunks) == 0 {
		return c.chunkSlidingWindow(path, content)
	}
	return chunks
}

// chunkSlidingWindow is the fallback for unstructured text.
func (c *StructuralChunker) chunkSlidingWindow(path, content string) []ChunkInfo {
	lines := strings.Split(content, "\n")
	var chunks []ChunkInfo

	step := c.baseChunkSize - c.overlap
	if step < 1 {
		step = c.baseChunkSize
	}

	for start := 0; start < len(lines); start += step {
		end := start + c.baseChunkSize
		if end > len(lines) {
			end = len(lines)
		}

		text := strings.Join(lines[start:end], "\n")
		if strings.TrimSpace(text) != "" {
			chunks = append(chunks, ChunkInfo{
				Path:      path,
				LineStart: start + 1,
				LineEnd:   end,
				Unit:      "window",
				Content:   text,
			})
		}

		if end >= len(lines) {
			break
		}
	}

	return chunks
}
