package syncer

import (
	"encoding/json"
	"fmt"
	"go/parser"
	"go/token"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/alecthomas/chroma/v2/lexers"
	"gopkg.in/yaml.v3"
)

// ValidationError reports generated content that fails its structural check.
// It is permanent for the attempt; the orchestrator may grant one
// regeneration retry.
type ValidationError struct {
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Path, e.Reason)
}

// DetectKind returns the language name for a path, using the chroma lexer
// registry so detection covers the same surface editors use.
func DetectKind(path string) string {
	if lexer := lexers.Match(filepath.Base(path)); lexer != nil {
		return lexer.Config().Name
	}
	return ""
}

// Validate checks that content is structurally well-formed for its file kind.
// Unknown kinds only need to be valid UTF-8 text.
func Validate(path, content string) error {
	if !utf8.ValidString(content) {
		return &ValidationError{Path: path, Reason: "content is not valid UTF-8"}
	}
	if strings.ContainsRune(content, 0) {
		return &ValidationError{Path: path, Reason: "content contains NUL bytes"}
	}
	if strings.HasPrefix(strings.TrimSpace(content), "```") {
		return &ValidationError{Path: path, Reason: "content still wrapped in a markdown fence"}
	}

	switch DetectKind(path) {
	case "Go":
		fset := token.NewFileSet()
		if _, err := parser.ParseFile(fset, path, content, 0); err != nil {
			return &ValidationError{Path: path, Reason: err.Error()}
		}
	case "JSON":
		if !json.Valid([]byte(content)) {
			return &ValidationError{Path: path, Reason: "invalid JSON"}
		}
	case "YAML":
		var out any
		if err := yaml.Unmarshal([]byte(content), &out); err != nil {
			return &ValidationError{Path: path, Reason: err.Error()}
		}
	case "Python":
		if err := checkPython(content); err != nil {
			return &ValidationError{Path: path, Reason: err.Error()}
		}
	}

	return nil
}

// checkPython applies lightweight structural checks: terminated strings and
// balanced brackets outside of strings and comments. A full parse is the job
// of the project's own interpreter, not this gate.
func checkPython(content string) error {
	depth := 0
	inString := "" // Current string delimiter: `"""`, `'''`, `"` or `'`
	escaped := false

	for n := 0; n < len(content); n++ {
		ch := content[n]

		if inString != "" {
			if escaped {
				escaped = false
				continue
			}
			switch {
			case ch == '\\':
				escaped = true
			case strings.HasPrefix(content[n:], inString):
				n += len(inString) - 1
				inString = ""
			case ch == '\n' && len(inString) == 1:
				// Single-quoted strings don't span lines; tolerate and reset.
				inString = ""
			}
			continue
		}

		switch {
		case strings.HasPrefix(content[n:], `"""`) || strings.HasPrefix(content[n:], "'''"):
			inString = content[n : n+3]
			n += 2
		case ch == '"' || ch == '\'':
			inString = string(ch)
		case ch == '#':
			for n < len(content) && content[n] != '\n' {
				n++
			}
		case ch == '(' || ch == '[' || ch == '{':
			depth++
		case ch == ')' || ch == ']' || ch == '}':
			depth--
			if depth < 0 {
				return fmt.Errorf("unbalanced brackets")
			}
		}
	}

	if len(inString) == 3 {
		return fmt.Errorf("unterminated %s string", inString)
	}
	if depth != 0 {
		return fmt.Errorf("unbalanced brackets")
	}
	return nil
}
