// Command magellan is the CLI shell over the core pipeline (§6 CLI
// Surface): a thin collaborator that wires configuration, the Path
// Validator, the chosen Graph Store Contract backend, the File
// Reconciler, the Watch Pipeline, the Validator & Diagnostics checks,
// and the Query Surface together, and nothing else. All indexing and
// query logic lives in internal/*; this package only parses flags,
// opens the store, and renders results.
//
// Grounded on the teacher's cmd/lci/main.go urfave/cli.App shape
// (global flags + Commands slice, config-then-flag-override layering)
// generalized away from the teacher's search/grep/MCP-server/display
// surface, which is out of scope (§1: "CLI argument parsing, help
// text, and output formatting... the core exposes query primitives,
// the CLI is a thin shell").
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/oldnordic/magellan/internal/config"
	"github.com/oldnordic/magellan/internal/pathsafe"
	"github.com/oldnordic/magellan/internal/store"
	"github.com/oldnordic/magellan/internal/store/fastdb"
	"github.com/oldnordic/magellan/internal/store/richdb"
	"github.com/oldnordic/magellan/internal/version"

	"github.com/google/uuid"
)

// envelope is the shape every JSON response carries on stdout (§6 CLI
// Surface: "Every JSON response carries {schema_version, execution_id,
// data, partial?}").
type envelope struct {
	SchemaVersion string `json:"schema_version"`
	ExecutionID   string `json:"execution_id"`
	Data          any    `json:"data"`
	Partial       bool   `json:"partial,omitempty"`
}

func emit(executionID string, data any, partial bool) error {
	enc := json.NewEncoder(os.Stdout)
	return enc.Encode(envelope{
		SchemaVersion: version.SchemaVersion,
		ExecutionID:   executionID,
		Data:          data,
		Partial:       partial,
	})
}

// userError builds an error carrying the exit code a CLI-facing failure should produce
// (§6: "Exit codes: 0 success; 1 validation failure or user-facing
// error"). cli.App already exits 1 for any non-nil Action error, so
// this exists only to give errors printed to stderr a stable shape.
func userError(format string, args ...any) error {
	return cli.Exit(fmt.Sprintf(format, args...), 1)
}

// openStore opens the configured backend. magellan supports two
// interchangeable Graph Store Contract backends (§6): richdb
// (mattn/go-sqlite3, SQL-introspectable) and fastdb (go.etcd.io/bbolt,
// traversal-optimized). ":memory:" is rejected: both backends assume a
// file-backed, multi-handle-safe store (§6 Environment).
func openStore(backend, dbPath string) (store.Store, error) {
	if dbPath == "" {
		return nil, userError("--db is mandatory")
	}
	if dbPath == ":memory:" {
		return nil, userError("--db :memory: is rejected; magellan requires a file-backed store")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, userError("cannot create database directory: %v", err)
	}

	switch backend {
	case "fast", "":
		return fastdb.Open(dbPath)
	case "rich":
		return richdb.Open(dbPath)
	default:
		return nil, userError("unknown --backend %q (want fast or rich)", backend)
	}
}

// loadConfig resolves the effective Config for a CLI invocation: KDL
// layering via config.Load, CLI flag overrides on top, then
// validation/defaulting.
func loadConfig(c *cli.Context) (*config.Config, error) {
	root := c.String("root")
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, userError("cannot resolve root %q: %v", root, err)
	}

	cfg, err := config.Load(absRoot)
	if err != nil {
		return nil, userError("loading config: %v", err)
	}

	if db := c.String("db"); db != "" {
		if filepath.IsAbs(db) || db == ":memory:" {
			cfg.DBPath = db
		} else {
			cfg.DBPath = filepath.Join(absRoot, db)
		}
	}
	if includes := c.StringSlice("include"); len(includes) > 0 {
		cfg.Include = includes
	}
	if excludes := c.StringSlice("exclude"); len(excludes) > 0 {
		cfg.Exclude = append(cfg.Exclude, excludes...)
	}

	if err := config.ValidateConfig(cfg); err != nil {
		return nil, userError("invalid configuration: %v", err)
	}

	if cfg.LangOverridesPath != "" {
		if err := config.LoadLangOverrides(cfg.LangOverridesPath); err != nil {
			return nil, userError("loading language overrides: %v", err)
		}
	}

	return cfg, nil
}

// validatorFor builds the Path Validator bound to cfg.Root (§4.1).
func validatorFor(cfg *config.Config) (*pathsafe.Validator, error) {
	v, err := pathsafe.New(cfg.Root)
	if err != nil {
		return nil, userError("invalid workspace root %q: %v", cfg.Root, err)
	}
	return v, nil
}

func newExecutionID() string { return uuid.NewString() }

// notifyContext wires SIGINT/SIGTERM into ctx cancellation, the
// caller responsibility internal/watch's doc comment names for
// cmd/magellan specifically.
func notifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func main() {
	app := &cli.App{
		Name:    "magellan",
		Usage:   "local, CLI-driven code intelligence indexer",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "db", Usage: "path to the graph database (mandatory, file-backed)"},
			&cli.StringFlag{Name: "root", Aliases: []string{"r"}, Usage: "workspace root to index", Value: "."},
			&cli.StringFlag{Name: "backend", Usage: "storage backend: fast (bbolt) or rich (sqlite)", Value: "fast"},
			&cli.StringSliceFlag{Name: "include", Usage: "include only files matching this doublestar glob (repeatable)"},
			&cli.StringSliceFlag{Name: "exclude", Usage: "exclude files matching this doublestar glob, in addition to config excludes (repeatable)"},
		},
		Commands: []*cli.Command{
			watchCommand,
			statusCommand,
			filesCommand,
			verifyCommand,
			migrateCommand,
			queryCommand,
			findCommand,
			refsCommand,
			getCommand,
			getFileCommand,
			labelCommand,
			chunksCommand,
			chunkBySpanCommand,
			chunkBySymbolCommand,
			astCommand,
			findASTCommand,
			collisionsCommand,
			cyclesCommand,
			deadCodeCommand,
			reachableCommand,
			pathsCommand,
			exportCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
