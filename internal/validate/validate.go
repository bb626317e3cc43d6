// Package validate implements the Validator & Diagnostics component
// (§4.11): pre-run sanity checks that must hold before any mutation,
// and post-run invariant checks over the committed graph, both
// reported as the closed-vocabulary errors.Diagnostic shape so
// downstream tooling (the CLI's `validate` command) can filter by
// reason code.
//
// Grounded on the teacher's config.Validator (internal/config/validator.go:
// a struct with no state and one exported entry point) generalized
// from configuration fields to graph invariants, with one entry point
// per validation phase that returns every problem found rather than
// stopping at the first one, and on errors.Diagnostic/errors.Code for
// the stable reporting shape.
package validate

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	magerrors "github.com/oldnordic/magellan/internal/errors"
	"github.com/oldnordic/magellan/internal/store"
)

// PreRun checks the preconditions §4.11 requires before any mutation:
// the database's parent directory exists, the workspace root exists
// and is readable, and every declared input path (if any were
// supplied) exists. Returns one Diagnostic per failed check; a nil/
// empty result means all checks passed.
func PreRun(dbPath, root string, inputPaths []string) []magerrors.Diagnostic {
	var diags []magerrors.Diagnostic

	parent := filepath.Dir(dbPath)
	if info, err := os.Stat(parent); err != nil {
		diags = append(diags, magerrors.Diagnostic{
			File: parent, Stage: "pre-run.db", Reason: magerrors.CodePathNotFound,
			Details: fmt.Sprintf("database parent directory does not exist: %v", err),
		})
	} else if !info.IsDir() {
		diags = append(diags, magerrors.Diagnostic{
			File: parent, Stage: "pre-run.db", Reason: magerrors.CodePathNotFound,
			Details: "database parent path exists but is not a directory",
		})
	}

	if info, err := os.Stat(root); err != nil {
		diags = append(diags, magerrors.Diagnostic{
			File: root, Stage: "pre-run.root", Reason: magerrors.CodePathNotFound,
			Details: fmt.Sprintf("root does not exist: %v", err),
		})
	} else if !info.IsDir() {
		diags = append(diags, magerrors.Diagnostic{
			File: root, Stage: "pre-run.root", Reason: magerrors.CodePathNotFound,
			Details: "root exists but is not a directory",
		})
	} else if f, err := os.Open(root); err != nil {
		diags = append(diags, magerrors.Diagnostic{
			File: root, Stage: "pre-run.root", Reason: magerrors.CodeFileUnreadable,
			Details: fmt.Sprintf("root is not readable: %v", err),
		})
	} else {
		f.Close()
	}

	for _, p := range inputPaths {
		if _, err := os.Stat(p); err != nil {
			diags = append(diags, magerrors.Diagnostic{
				File: p, Stage: "pre-run.input", Reason: magerrors.CodePathNotFound,
				Details: fmt.Sprintf("declared input path does not exist: %v", err),
			})
		}
	}

	return diags
}

// PostRun walks the committed graph inside tx and reports every
// invariant violation named in §4.11: orphan references, orphan
// calls, symbols whose DEFINES file is missing, and KV index entries
// inconsistent with the primary graph. Results are sorted by (file,
// stage, details) for stable output.
func PostRun(tx store.Tx, s store.Store) ([]magerrors.Diagnostic, error) {
	var diags []magerrors.Diagnostic

	refs, err := s.AllReferences(tx)
	if err != nil {
		return nil, fmt.Errorf("validate: AllReferences: %w", err)
	}
	for _, r := range refs {
		if r.TargetID == "" {
			diags = append(diags, magerrors.Diagnostic{
				File: r.File, Stage: "validate.references", Reason: magerrors.CodeOrphanReference,
				Details: fmt.Sprintf("reference %q at [%d,%d) has no resolved REFERENCES edge", r.Name, r.Span.ByteStart, r.Span.ByteEnd),
			})
		}
	}

	calls, err := s.AllCalls(tx)
	if err != nil {
		return nil, fmt.Errorf("validate: AllCalls: %w", err)
	}
	for _, c := range calls {
		if c.CallerID == "" {
			diags = append(diags, magerrors.Diagnostic{
				File: c.File, Stage: "validate.calls", Reason: magerrors.CodeOrphanCallNoCaller,
				Details: fmt.Sprintf("call at [%d,%d) has no incoming CALLER edge", c.Span.ByteStart, c.Span.ByteEnd),
			})
		}
		if c.CalleeID == "" {
			diags = append(diags, magerrors.Diagnostic{
				File: c.File, Stage: "validate.calls", Reason: magerrors.CodeOrphanCallNoCallee,
				Details: fmt.Sprintf("call at [%d,%d) has no outgoing CALLS edge", c.Span.ByteStart, c.Span.ByteEnd),
			})
		}
	}

	files, err := s.ListFiles(tx)
	if err != nil {
		return nil, fmt.Errorf("validate: ListFiles: %w", err)
	}
	knownFiles := make(map[string]bool, len(files))
	for _, f := range files {
		knownFiles[f.Path] = true
	}

	symbols, err := s.AllSymbols(tx)
	if err != nil {
		return nil, fmt.Errorf("validate: AllSymbols: %w", err)
	}
	bySymbolID := make(map[string]string, len(symbols)) // symbol_id -> canonical_fqn
	for _, sym := range symbols {
		bySymbolID[sym.SymbolID] = sym.CanonicalFQN
		if !knownFiles[sym.File] {
			diags = append(diags, magerrors.Diagnostic{
				File: sym.File, Stage: "validate.symbols", Reason: magerrors.CodeDefinesMissing,
				Details: fmt.Sprintf("symbol %q claims file %q but no File entity defines it", sym.CanonicalFQN, sym.File),
			})
		}
	}

	kv, err := s.KVPrefixScan(tx, "sym:fqn:")
	if err != nil {
		return nil, fmt.Errorf("validate: KVPrefixScan: %w", err)
	}
	for key, symbolID := range kv {
		fqn := strings.TrimPrefix(key, "sym:fqn:")
		gotFQN, ok := bySymbolID[symbolID]
		if !ok || gotFQN != fqn {
			diags = append(diags, magerrors.Diagnostic{
				File: "", Stage: "validate.kv", Reason: magerrors.CodeKVInconsistent,
				Details: fmt.Sprintf("kv key %q points to symbol_id %q which does not resolve to that canonical_fqn", key, symbolID),
			})
		}
	}

	sort.Slice(diags, func(i, j int) bool {
		if diags[i].File != diags[j].File {
			return diags[i].File < diags[j].File
		}
		if diags[i].Stage != diags[j].Stage {
			return diags[i].Stage < diags[j].Stage
		}
		return diags[i].Details < diags[j].Details
	})

	return diags, nil
}
