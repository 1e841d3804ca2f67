package syncer

import "testing"

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "fenced with language",
			raw:  "```python\nprint('hi')\n```",
			want: "print('hi')\n",
		},
		{
			name: "fenced without language",
			raw:  "```\nx = 1\n```",
			want: "x = 1\n",
		},
		{
			name: "triple quote fence",
			raw:  "'''\nx = 1\n'''",
			want: "x = 1\n",
		},
		{
			name: "plain content untouched",
			raw:  "def main():\n    pass\n",
			want: "def main():\n    pass\n",
		},
		{
			name: "trailing newline added",
			raw:  "x = 1",
			want: "x = 1\n",
		},
		{
			name: "leading prose kept",
			raw:  "x = '```'\n",
			want: "x = '```'\n",
		},
		{
			name: "empty",
			raw:  "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.raw); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
