// Package config implements the ambient configuration layer: a single
// Config value carrying everything the pipeline needs to run (root,
// database path, include/exclude globs, debounce window, size cap,
// watch mode, staleness threshold), loaded from an optional global
// `~/.magellan.kdl`, an optional per-project `.magellan.kdl`, and
// enriched with .gitignore-derived and build-tool-derived exclusions.
//
// Grounded on the teacher's internal/config/config.go: a plain struct
// with a Load/LoadWithRoot entry point that layers a global config
// under a project config, generalized from the teacher's much larger
// search/semantic/feature-flag surface (out of scope here) down to the
// fields SPEC_FULL's Configuration section names.
package config

import (
	"os"
	"path/filepath"
)

// DefaultDBName is the database file created under Root when DBPath is
// not set explicitly.
const DefaultDBName = ".magellan/graph.db"

const (
	defaultMaxFileSize           = 10 * 1024 * 1024 // 10MB
	defaultDebounceMs            = 500
	defaultStalenessThresholdSec = 3600
)

// Config is everything the scan/watch/query pipeline reads at startup.
type Config struct {
	Root   string // workspace root; made absolute during Load
	DBPath string // graph database path; relative paths are resolved against Root

	Include []string // doublestar patterns; empty means "every file the Language Dispatcher recognizes"
	Exclude []string // doublestar patterns, checked before Include

	DebounceMs            int   // Watch Pipeline coalescing window
	MaxFileSize           int64 // validated and defaulted only; no scan or watch stage reads it, so files of any size are indexed
	WatchMode             bool  // whether `magellan watch` runs by default
	StalenessThresholdSec int64 // status query: last_indexed_at older than this vs. on-disk mtime is "stale"

	RespectGitignore  bool   // fold the project's .gitignore into Exclude
	LangOverridesPath string // optional TOML file with internal/langcap.CapabilityOverride entries
}

// Load reads configuration for the project rooted at root: a global
// `~/.magellan.kdl` is loaded first (if present), then `root/.magellan.kdl`
// is merged on top of it (project settings win; project exclusions are
// unioned with global ones), then gitignore- and build-tool-derived
// exclusions are folded in. With neither file present, Load returns the
// built-in defaults rooted at root.
func Load(root string) (*Config, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		absRoot = root
	}

	var base *Config
	if home, err := os.UserHomeDir(); err == nil {
		if g, err := LoadKDL(home); err == nil && g != nil {
			base = g
		}
	}

	var project *Config
	if p, err := LoadKDL(absRoot); err != nil {
		return nil, err
	} else if p != nil {
		project = p
	}

	var cfg *Config
	switch {
	case base != nil && project != nil:
		cfg = mergeConfigs(base, project)
	case project != nil:
		cfg = project
	case base != nil:
		cfg = base
	default:
		cfg = defaults()
	}
	cfg.Root = absRoot

	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(absRoot, DefaultDBName)
	} else if !filepath.IsAbs(cfg.DBPath) {
		cfg.DBPath = filepath.Join(absRoot, cfg.DBPath)
	}

	if cfg.RespectGitignore {
		if patterns, err := GitignoreExcludePatterns(absRoot); err == nil {
			cfg.Exclude = DeduplicatePatterns(append(cfg.Exclude, patterns...))
		}
	}
	cfg.Exclude = DeduplicatePatterns(append(cfg.Exclude, DetectBuildOutputDirs(absRoot)...))

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Include:               nil,
		Exclude:               append([]string(nil), defaultExclude...),
		DebounceMs:            defaultDebounceMs,
		MaxFileSize:           defaultMaxFileSize,
		WatchMode:             true,
		StalenessThresholdSec: defaultStalenessThresholdSec,
		RespectGitignore:      true,
	}
}

var defaultExclude = []string{
	"**/.git/**",
	"**/.*/**",
	"**/node_modules/**",
	"**/vendor/**",
	"**/dist/**",
	"**/build/**",
	"**/out/**",
	"**/target/**",
	"**/bin/**",
	"**/obj/**",
}

// mergeConfigs layers project over base: project's scalar fields win
// outright, Exclude is unioned (base's defensive patterns are never
// silently dropped by a project config), and Include is inherited from
// base only when the project does not specify its own.
func mergeConfigs(base, project *Config) *Config {
	merged := *project

	if len(base.Exclude) > 0 {
		merged.Exclude = DeduplicatePatterns(append(append([]string(nil), base.Exclude...), project.Exclude...))
	}
	if len(project.Include) == 0 && len(base.Include) > 0 {
		merged.Include = base.Include
	}
	return &merged
}
