package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// DetectBuildOutputDirs inspects well-known per-language build files
// under root (package.json/tsconfig.json, Cargo.toml, pyproject.toml)
// for a custom output directory and returns doublestar exclude globs
// for whatever it finds. Absence of any of these files is not an
// error — each detector simply contributes nothing.
func DetectBuildOutputDirs(root string) []string {
	var patterns []string
	patterns = append(patterns, detectJavaScriptOutputs(root)...)
	patterns = append(patterns, detectRustOutputs(root)...)
	patterns = append(patterns, detectPythonOutputs(root)...)
	return patterns
}

func detectJavaScriptOutputs(root string) []string {
	var patterns []string

	if data, err := os.ReadFile(filepath.Join(root, "package.json")); err == nil {
		var pkg map[string]any
		if json.Unmarshal(data, &pkg) == nil {
			if build, ok := pkg["build"].(map[string]any); ok {
				if outDir, ok := build["outDir"].(string); ok {
					patterns = append(patterns, "**/"+outDir+"/**")
				}
			}
		}
	}

	if data, err := os.ReadFile(filepath.Join(root, "tsconfig.json")); err == nil {
		var tsconfig map[string]any
		if json.Unmarshal(data, &tsconfig) == nil {
			if opts, ok := tsconfig["compilerOptions"].(map[string]any); ok {
				if outDir, ok := opts["outDir"].(string); ok {
					patterns = append(patterns, "**/"+outDir+"/**")
				}
			}
		}
	}

	return patterns
}

func detectRustOutputs(root string) []string {
	var patterns []string
	data, err := os.ReadFile(filepath.Join(root, "Cargo.toml"))
	if err != nil {
		return nil
	}
	var cargo map[string]any
	if toml.Unmarshal(data, &cargo) != nil {
		return nil
	}
	if profile, ok := cargo["profile"].(map[string]any); ok {
		if release, ok := profile["release"].(map[string]any); ok {
			if targetDir, ok := release["target-dir"].(string); ok {
				patterns = append(patterns, "**/"+targetDir+"/**")
			}
		}
	}
	return patterns
}

func detectPythonOutputs(root string) []string {
	var patterns []string
	data, err := os.ReadFile(filepath.Join(root, "pyproject.toml"))
	if err != nil {
		return nil
	}
	var pyproject map[string]any
	if toml.Unmarshal(data, &pyproject) != nil {
		return nil
	}
	if tool, ok := pyproject["tool"].(map[string]any); ok {
		if poetry, ok := tool["poetry"].(map[string]any); ok {
			if build, ok := poetry["build"].(map[string]any); ok {
				if targetDir, ok := build["target-dir"].(string); ok {
					patterns = append(patterns, "**/"+targetDir+"/**")
				}
			}
		}
	}
	return patterns
}

// DeduplicatePatterns removes duplicate glob patterns, preserving first-seen order.
func DeduplicatePatterns(patterns []string) []string {
	seen := make(map[string]bool, len(patterns))
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
