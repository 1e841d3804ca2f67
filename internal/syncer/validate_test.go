package syncer

import (
	"errors"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		content string
		wantErr bool
	}{
		{
			name:    "valid go",
			path:    "main.go",
			content: "package main\n\nfunc main() {}\n",
		},
		{
			name:    "invalid go",
			path:    "main.go",
			content: "package main\n\nfunc main() {\n",
			wantErr: true,
		},
		{
			name:    "valid json",
			path:    "config.json",
			content: `{"key": "value"}`,
		},
		{
			name:    "invalid json",
			path:    "config.json",
			content: `{"key":`,
			wantErr: true,
		},
		{
			name:    "valid python",
			path:    "app.py",
			content: "def main():\n    \"\"\"Entry point.\"\"\"\n    print('ok')\n",
		},
		{
			name:    "python unterminated docstring",
			path:    "app.py",
			content: "def main():\n    \"\"\"Entry point.\n    pass\n",
			wantErr: true,
		},
		{
			name:    "python docstring with brackets",
			path:    "app.py",
			content: "def f(x):\n    \"\"\"Returns (x) squared.\"\"\"\n    return x * x\n",
		},
		{
			name:    "python unbalanced brackets",
			path:    "app.py",
			content: "x = foo(1, 2\n",
			wantErr: true,
		},
		{
			name:    "leftover markdown fence",
			path:    "app.py",
			content: "```python\nx = 1\n```\n",
			wantErr: true,
		},
		{
			name:    "nul bytes",
			path:    "data.txt",
			content: "abc\x00def",
			wantErr: true,
		},
		{
			name:    "unknown kind passes",
			path:    "notes.xyzzy",
			content: "anything goes here",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.path, tt.content)
			if tt.wantErr {
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("Validate(%s) = %v, want ValidationError", tt.path, err)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate(%s): %v", tt.path, err)
			}
		})
	}
}
