package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGitignoreExcludePatternsMissingFile(t *testing.T) {
	root := t.TempDir()
	patterns, err := GitignoreExcludePatterns(root)
	if err != nil {
		t.Fatalf("GitignoreExcludePatterns: %v", err)
	}
	if patterns != nil {
		t.Fatalf("expected nil patterns for missing .gitignore, got %v", patterns)
	}
}

func TestGitignoreExcludePatternsConvertsDirectoryAndGlob(t *testing.T) {
	root := t.TempDir()
	content := "# comment\n\nnode_modules/\n*.log\n/build\n"
	if err := os.WriteFile(filepath.Join(root, ".gitignore"), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	patterns, err := GitignoreExcludePatterns(root)
	if err != nil {
		t.Fatalf("GitignoreExcludePatterns: %v", err)
	}

	want := map[string]bool{
		"**/node_modules/**": false,
		"**/*.log":           false,
		"build":              false,
	}
	for _, p := range patterns {
		if _, ok := want[p]; ok {
			want[p] = true
		}
	}
	for p, seen := range want {
		if !seen {
			t.Fatalf("expected pattern %q in %v", p, patterns)
		}
	}
}

func TestGitignoreExcludePatternsSkipsNegation(t *testing.T) {
	root := t.TempDir()
	content := "*.log\n!important.log\n"
	if err := os.WriteFile(filepath.Join(root, ".gitignore"), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	patterns, err := GitignoreExcludePatterns(root)
	if err != nil {
		t.Fatalf("GitignoreExcludePatterns: %v", err)
	}
	for _, p := range patterns {
		if p == "**/important.log" || p == "important.log" {
			t.Fatalf("did not expect a negated pattern to produce an exclude glob, got %v", patterns)
		}
	}
}

func TestGitignoreParserShouldIgnore(t *testing.T) {
	gp := &gitignoreParser{}
	gp.addPattern("*.log")
	gp.addPattern("build/")
	gp.addPattern("!keep.log")

	if !gp.shouldIgnore("app.log", false) {
		t.Fatalf("expected app.log to be ignored")
	}
	if gp.shouldIgnore("keep.log", false) {
		t.Fatalf("expected keep.log negation to win")
	}
	if !gp.shouldIgnore("build", true) {
		t.Fatalf("expected build/ directory to be ignored")
	}
	if !gp.shouldIgnore("build/output.o", false) {
		t.Fatalf("expected a file inside build/ to be ignored")
	}
}
