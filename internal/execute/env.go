package execute

import (
	"os"
	"path/filepath"
	"strings"
)

// SafeEnvVars is the whitelist of environment variables passed to project
// commands. The model provider's API keys and everything else stay out of the
// child process.
var SafeEnvVars = []string{
	"PATH",
	"HOME",
	"USER",
	"SHELL",
	"TERM",
	"LANG",
	"LC_ALL",
	"LC_CTYPE",
	"TMPDIR",
	"TMP",
	"TEMP",
	"XDG_CONFIG_HOME",
	"XDG_DATA_HOME",
	"XDG_CACHE_HOME",
	"PYTHONPATH",
	"PYTHONUNBUFFERED",
}

// buildEnv creates a sanitized environment for a command rooted at root.
// When the project carries a virtualenv its bin directory leads PATH, so
// tools installed there win over system ones.
func buildEnv(root string) []string {
	env := make([]string, 0, len(SafeEnvVars)+2)
	for _, key := range SafeEnvVars {
		if val := os.Getenv(key); val != "" {
			env = append(env, key+"="+val)
		}
	}

	hasPath := false
	for i, e := range env {
		if strings.HasPrefix(e, "PATH=") {
			hasPath = true
			if venv, ok := venvDir(root); ok {
				env[i] = "PATH=" + filepath.Join(venv, "bin") + ":" + e[len("PATH="):]
			}
			break
		}
	}
	if !hasPath {
		env = append(env, "PATH=/usr/local/bin:/usr/bin:/bin")
	}

	if venv, ok := venvDir(root); ok {
		env = append(env, "VIRTUAL_ENV="+venv)
	}
	env = append(env, "PYTHONUNBUFFERED=1")
	return env
}

// venvDir returns the project virtualenv directory, if one exists.
func venvDir(root string) (string, bool) {
	for _, name := range []string{".venv", "venv"} {
		dir := filepath.Join(root, name)
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir, true
		}
	}
	return "", false
}

// RewriteCommand maps interpreter and tool invocations into the project
// virtualenv so generated code runs against its own dependencies, not the
// system interpreter. Commands are returned unchanged when no virtualenv
// exists.
func RewriteCommand(root, command string) string {
	venv, ok := venvDir(root)
	if !ok {
		return command
	}

	head, rest, _ := strings.Cut(strings.TrimSpace(command), " ")
	if head == "" {
		return command
	}

	switch head {
	case "python", "python3":
		head = filepath.Join(venv, "bin", "python")
	case "pip", "pip3":
		head = filepath.Join(venv, "bin", "pip")
	default:
		candidate := filepath.Join(venv, "bin", head)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			head = candidate
		}
	}

	if rest == "" {
		return head
	}
	return head + " " + rest
}
