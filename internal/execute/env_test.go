package execute

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func makeVenv(t *testing.T, root string, tools ...string) string {
	t.Helper()
	bin := filepath.Join(root, ".venv", "bin")
	if err := os.MkdirAll(bin, 0755); err != nil {
		t.Fatal(err)
	}
	for _, tool := range tools {
		if err := os.WriteFile(filepath.Join(bin, tool), []byte("#!/bin/sh\n"), 0755); err != nil {
			t.Fatal(err)
		}
	}
	return filepath.Join(root, ".venv")
}

func TestRewriteCommandWithoutVenv(t *testing.T) {
	root := t.TempDir()
	if got := RewriteCommand(root, "python app.py"); got != "python app.py" {
		t.Errorf("rewrote without venv: %q", got)
	}
}

func TestRewriteCommand(t *testing.T) {
	root := t.TempDir()
	venv := makeVenv(t, root, "pytest")

	tests := []struct {
		in   string
		want string
	}{
		{"python app.py", filepath.Join(venv, "bin", "python") + " app.py"},
		{"python3 -m http.server", filepath.Join(venv, "bin", "python") + " -m http.server"},
		{"pip install flask", filepath.Join(venv, "bin", "pip") + " install flask"},
		{"pytest -v", filepath.Join(venv, "bin", "pytest") + " -v"},
		{"ls -la", "ls -la"}, // Not a venv tool
	}

	for _, tt := range tests {
		if got := RewriteCommand(root, tt.in); got != tt.want {
			t.Errorf("RewriteCommand(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildEnvFiltersAndPrepends(t *testing.T) {
	root := t.TempDir()
	venv := makeVenv(t, root)

	t.Setenv("PATH", "/usr/bin:/bin")
	t.Setenv("SECRET_API_KEY", "leaky")

	env := buildEnv(root)

	var path, virtualEnv string
	for _, e := range env {
		if strings.HasPrefix(e, "PATH=") {
			path = e
		}
		if strings.HasPrefix(e, "VIRTUAL_ENV=") {
			virtualEnv = e
		}
		if strings.HasPrefix(e, "SECRET_API_KEY=") {
			t.Error("non-whitelisted variable leaked into env")
		}
	}

	if !strings.HasPrefix(path, "PATH="+filepath.Join(venv, "bin")+":") {
		t.Errorf("venv bin not leading PATH: %s", path)
	}
	if virtualEnv != "VIRTUAL_ENV="+venv {
		t.Errorf("VIRTUAL_ENV = %q", virtualEnv)
	}
}
