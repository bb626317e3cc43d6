package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWithNoConfigFile(t *testing.T) {
	root := t.TempDir()
	// Isolate from the real user's home directory so a stray
	// ~/.magellan.kdl on the test machine cannot leak in.
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Root != root {
		absRoot, _ := filepath.Abs(root)
		if cfg.Root != absRoot {
			t.Fatalf("expected Root %q, got %q", absRoot, cfg.Root)
		}
	}
	if cfg.DebounceMs != defaultDebounceMs {
		t.Fatalf("expected default debounce %d, got %d", defaultDebounceMs, cfg.DebounceMs)
	}
	if cfg.MaxFileSize != defaultMaxFileSize {
		t.Fatalf("expected default max file size %d, got %d", defaultMaxFileSize, cfg.MaxFileSize)
	}
	if cfg.DBPath != filepath.Join(cfg.Root, DefaultDBName) {
		t.Fatalf("expected default db path under root, got %q", cfg.DBPath)
	}
}

func TestLoadProjectKDLOverridesDefaults(t *testing.T) {
	root := t.TempDir()
	t.Setenv("HOME", t.TempDir())

	kdlContent := `
workspace {
    db_path "custom/graph.db"
}
watch {
    mode false
    debounce_ms 250
}
index {
    max_file_size "5MB"
    staleness_threshold_sec 60
    respect_gitignore false
}
exclude {
    "**/fixtures/**"
}
`
	if err := os.WriteFile(filepath.Join(root, ".magellan.kdl"), []byte(kdlContent), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WatchMode {
		t.Fatalf("expected watch mode false from project config")
	}
	if cfg.DebounceMs != 250 {
		t.Fatalf("expected debounce_ms 250, got %d", cfg.DebounceMs)
	}
	if cfg.MaxFileSize != 5*1024*1024 {
		t.Fatalf("expected 5MB max file size, got %d", cfg.MaxFileSize)
	}
	if cfg.StalenessThresholdSec != 60 {
		t.Fatalf("expected staleness_threshold_sec 60, got %d", cfg.StalenessThresholdSec)
	}
	wantDB := filepath.Join(cfg.Root, "custom/graph.db")
	if cfg.DBPath != wantDB {
		t.Fatalf("expected db path %q, got %q", wantDB, cfg.DBPath)
	}
	found := false
	for _, p := range cfg.Exclude {
		if p == "**/fixtures/**" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected project exclude pattern present, got %v", cfg.Exclude)
	}
}

func TestLoadMergesGlobalAndProjectExcludes(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	root := t.TempDir()

	globalKDL := `
exclude {
    "**/global-secret/**"
}
`
	if err := os.WriteFile(filepath.Join(home, ".magellan.kdl"), []byte(globalKDL), 0o644); err != nil {
		t.Fatalf("WriteFile global: %v", err)
	}
	projectKDL := `
exclude {
    "**/project-only/**"
}
`
	if err := os.WriteFile(filepath.Join(root, ".magellan.kdl"), []byte(projectKDL), 0o644); err != nil {
		t.Fatalf("WriteFile project: %v", err)
	}

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	hasGlobal, hasProject := false, false
	for _, p := range cfg.Exclude {
		if p == "**/global-secret/**" {
			hasGlobal = true
		}
		if p == "**/project-only/**" {
			hasProject = true
		}
	}
	if !hasGlobal || !hasProject {
		t.Fatalf("expected both global and project excludes present, got %v", cfg.Exclude)
	}
}

func TestLoadFoldsInGitignore(t *testing.T) {
	root := t.TempDir()
	t.Setenv("HOME", t.TempDir())

	if err := os.WriteFile(filepath.Join(root, ".gitignore"), []byte("secrets/\n*.tmp\n"), 0o644); err != nil {
		t.Fatalf("WriteFile .gitignore: %v", err)
	}

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	hasDir, hasGlob := false, false
	for _, p := range cfg.Exclude {
		if p == "**/secrets/**" {
			hasDir = true
		}
		if p == "**/*.tmp" {
			hasGlob = true
		}
	}
	if !hasDir || !hasGlob {
		t.Fatalf("expected gitignore-derived excludes, got %v", cfg.Exclude)
	}
}
