package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDetectBuildOutputDirsJavaScript(t *testing.T) {
	root := t.TempDir()
	pkg := `{"name": "demo", "build": {"outDir": "dist-custom"}}`
	if err := os.WriteFile(filepath.Join(root, "package.json"), []byte(pkg), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	ts := `{"compilerOptions": {"outDir": "lib-out"}}`
	if err := os.WriteFile(filepath.Join(root, "tsconfig.json"), []byte(ts), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	dirs := DetectBuildOutputDirs(root)

	wantDist, wantLib := false, false
	for _, d := range dirs {
		if d == "**/dist-custom/**" {
			wantDist = true
		}
		if d == "**/lib-out/**" {
			wantLib = true
		}
	}
	if !wantDist || !wantLib {
		t.Fatalf("expected both custom output dirs detected, got %v", dirs)
	}
}

func TestDetectBuildOutputDirsRust(t *testing.T) {
	root := t.TempDir()
	cargo := "[profile.release]\ntarget-dir = \"out/release\"\n"
	if err := os.WriteFile(filepath.Join(root, "Cargo.toml"), []byte(cargo), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	dirs := DetectBuildOutputDirs(root)
	found := false
	for _, d := range dirs {
		if d == "**/out/release/**" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected rust target-dir detected, got %v", dirs)
	}
}

func TestDetectBuildOutputDirsPython(t *testing.T) {
	root := t.TempDir()
	pyproject := "[tool.poetry.build]\ntarget-dir = \"wheelhouse\"\n"
	if err := os.WriteFile(filepath.Join(root, "pyproject.toml"), []byte(pyproject), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	dirs := DetectBuildOutputDirs(root)
	found := false
	for _, d := range dirs {
		if d == "**/wheelhouse/**" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected python target-dir detected, got %v", dirs)
	}
}

func TestDetectBuildOutputDirsNoManifests(t *testing.T) {
	root := t.TempDir()
	dirs := DetectBuildOutputDirs(root)
	if len(dirs) != 0 {
		t.Fatalf("expected no output dirs without manifests, got %v", dirs)
	}
}

func TestDeduplicatePatternsPreservesFirstSeenOrder(t *testing.T) {
	in := []string{"**/a/**", "**/b/**", "**/a/**", "**/c/**", "**/b/**"}
	got := DeduplicatePatterns(in)
	want := []string{"**/a/**", "**/b/**", "**/c/**"}
	if len(got) != len(want) {
		t.Fatalf("DeduplicatePatterns(%v) = %v, want %v", in, got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("DeduplicatePatterns(%v) = %v, want %v", in, got, want)
		}
	}
}
