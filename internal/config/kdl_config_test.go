package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadKDLReturnsNilWhenFileAbsent(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadKDL(dir)
	if err != nil {
		t.Fatalf("LoadKDL: %v", err)
	}
	if cfg != nil {
		t.Fatalf("expected nil config for missing file, got %+v", cfg)
	}
}

func TestParseKDLIncludeExclude(t *testing.T) {
	content := `
include {
    "**/*.rs"
    "**/*.py"
}
exclude {
    "**/target/**"
}
`
	cfg, err := parseKDL(content)
	if err != nil {
		t.Fatalf("parseKDL: %v", err)
	}
	if len(cfg.Include) != 2 || cfg.Include[0] != "**/*.rs" || cfg.Include[1] != "**/*.py" {
		t.Fatalf("unexpected Include: %v", cfg.Include)
	}
	if len(cfg.Exclude) != 1 || cfg.Exclude[0] != "**/target/**" {
		t.Fatalf("unexpected Exclude: %v", cfg.Exclude)
	}
}

func TestParseKDLWorkspaceAndLangOverrides(t *testing.T) {
	content := `
workspace {
    root "/srv/project"
    db_path "/var/lib/magellan/graph.db"
    lang_overrides "/etc/magellan/langs.toml"
}
`
	cfg, err := parseKDL(content)
	if err != nil {
		t.Fatalf("parseKDL: %v", err)
	}
	if cfg.Root != "/srv/project" {
		t.Fatalf("expected root from workspace block, got %q", cfg.Root)
	}
	if cfg.DBPath != "/var/lib/magellan/graph.db" {
		t.Fatalf("expected db_path from workspace block, got %q", cfg.DBPath)
	}
	if cfg.LangOverridesPath != "/etc/magellan/langs.toml" {
		t.Fatalf("expected lang_overrides from workspace block, got %q", cfg.LangOverridesPath)
	}
}

func TestParseSizeSuffixes(t *testing.T) {
	cases := map[string]int64{
		"10":   10,
		"10B":  10,
		"1KB":  1024,
		"5MB":  5 * 1024 * 1024,
		"2GB":  2 * 1024 * 1024 * 1024,
		"0MB":  0,
	}
	for in, want := range cases {
		got, err := parseSize(in)
		if err != nil {
			t.Fatalf("parseSize(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("parseSize(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestParseSizeRejectsGarbage(t *testing.T) {
	if _, err := parseSize("not-a-size"); err == nil {
		t.Fatalf("expected error for invalid size string")
	}
}

func TestLoadKDLResolvesRelativeToGivenDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".magellan.kdl"), []byte(`watch { debounce_ms 42 }`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := LoadKDL(dir)
	if err != nil {
		t.Fatalf("LoadKDL: %v", err)
	}
	if cfg == nil {
		t.Fatalf("expected non-nil config")
	}
	if cfg.DebounceMs != 42 {
		t.Fatalf("expected debounce_ms 42, got %d", cfg.DebounceMs)
	}
}
