package syncer

import "strings"

var (
	fences    = []string{"```", "'''"}
	languages = []string{"python", "py", "go", "golang", "json", "yaml", "javascript", "js", "html", "css", "text"}
)

// Sanitize strips markdown fences and optional language identifiers that
// models wrap around generated code, step by step so nested or partial
// fences don't corrupt the content.
func Sanitize(raw string) string {
	code := strings.TrimSpace(raw)

	for _, fence := range fences {
		if strings.HasPrefix(code, fence) {
			code = strings.TrimLeft(code[len(fence):], " \t")
			lower := strings.ToLower(code)
			for _, lang := range languages {
				if strings.HasPrefix(lower, lang+"\n") || lower == lang {
					code = strings.TrimSpace(code[len(lang):])
					break
				}
			}
			code = strings.TrimPrefix(code, "\n")
			break
		}
	}

	for _, fence := range fences {
		if strings.HasSuffix(strings.TrimRight(code, " \t\n"), fence) {
			trimmed := strings.TrimRight(code, " \t\n")
			code = strings.TrimRight(trimmed[:len(trimmed)-len(fence)], " \t\n")
			break
		}
	}

	if code != "" && !strings.HasSuffix(code, "\n") {
		code += "\n"
	}
	return code
}
