package scheduler

import "testing"

func TestMatchGlobDoubleStar(t *testing.T) {
	cases := []struct {
		pattern, path string
		want          bool
	}{
		{"src/**/*.go", "src/a.go", true},
		{"src/**/*.go", "src/pkg/tool/registry.go", true},
		{"src/**/*.go", "docs/readme.md", false},
		{"**/*.yaml", "skills/deploy/skill.yaml", true},
		{"**/*.yaml", "skill.yaml", true},
		{"*.txt", "notes.txt", true},
		{"*.txt", "a/notes.txt", false},
	}
	for _, c := range cases {
		if got := MatchGlob(c.pattern, c.path); got != c.want {
			t.Errorf("MatchGlob(%q, %q) = %v, want %v", c.pattern, c.path, got, c.want)
		}
	}
}
