// Package resolve implements the two-stage lookup described in §4.6:
// resolve a raw reference or call name against a symbol table, never
// silently choosing among multiple candidates. Grounded on the
// teacher's internal/symbollinker resolver family (go_resolver.go,
// js_resolver.go, python_resolver.go), each of which performs the same
// same-file-first-then-global lookup before falling back to an
// unresolved result; generalized here into one resolver shared by
// every language instead of one per extractor.
package resolve

import (
	"sort"

	"github.com/oldnordic/magellan/internal/extract"
	"github.com/oldnordic/magellan/internal/graphmodel"
)

// Index is a queryable view over a symbol population: every symbol a
// file's references/calls might target, whether drawn from the file
// currently being reconciled or from the rest of the graph store.
type Index struct {
	byDisplayFQN map[string][]graphmodel.Symbol
	byName       map[string][]graphmodel.Symbol
}

// NewIndex builds an Index from a flat symbol population. Callers
// assemble this from the graph store's full symbol set (§4.6 step 3:
// "the union of ... all symbols in the database").
func NewIndex(symbols []graphmodel.Symbol) *Index {
	idx := &Index{
		byDisplayFQN: make(map[string][]graphmodel.Symbol, len(symbols)),
		byName:       make(map[string][]graphmodel.Symbol, len(symbols)),
	}
	for _, s := range symbols {
		idx.byDisplayFQN[s.DisplayFQN] = append(idx.byDisplayFQN[s.DisplayFQN], s)
		idx.byName[s.Name] = append(idx.byName[s.Name], s)
	}
	return idx
}

// Resolution is the outcome of resolving one raw reference or call
// name: at most one of (TargetSymbolID set, Ambiguous) is meaningful —
// an unresolved name has neither.
type Resolution struct {
	TargetSymbolID string
	Ambiguous      bool
	Candidates     []string
}

// byFileOnly filters an Index's global population down to one file's
// symbols, used to give same-file matches priority (§4.6 step 3:
// "same-file symbols (preferred)").
func byFileOnly(symbols []graphmodel.Symbol, file string) []graphmodel.Symbol {
	var out []graphmodel.Symbol
	for _, s := range symbols {
		if s.File == file {
			out = append(out, s)
		}
	}
	return out
}

// Reference resolves one RawReference against the full graph-wide
// Index, preferring a match within file before falling back to every
// symbol with a matching simple name (§4.6 step 3).
func Reference(all *Index, file string, ref extract.RawReference) Resolution {
	return resolveSimpleName(all, file, ref.Name)
}

// Call resolves one RawCall's callee, attempting the qualified
// expression as a display_fqn match first (the "FQN first" stage of
// §4.6 step 2), then falling back to the same-file/global simple-name
// lookup used for plain references.
//
// CalleeQualified is the verbatim source text of the call's qualified
// expression (e.g. "Foo::new", "pkg::helper") — it matches a symbol's
// display_fqn, not its canonical_fqn (canonical_fqn carries a
// "{file}::{kind} " prefix no source expression ever spells out).
// This stage only disambiguates qualified calls whose qualifier names
// the declaring scope directly (a type or module path, as in
// "Type::method()"); a qualifier that names a value instead (e.g.
// "w.render()") cannot match any display_fqn and falls through to the
// simple-name stage like a bare call.
func Call(all *Index, file string, call extract.RawCall) Resolution {
	if call.CalleeQualified != "" && call.CalleeQualified != call.CalleeName {
		if res, ok := resolveCandidates(all.byDisplayFQN[call.CalleeQualified], file); ok {
			return res
		}
	}
	return resolveSimpleName(all, file, call.CalleeName)
}

func resolveSimpleName(all *Index, file, name string) Resolution {
	res, _ := resolveCandidates(all.byName[name], file)
	return res
}

// resolveCandidates narrows pool to file-local matches (preferred),
// falling back to the whole pool, then reports unresolved, unique, or
// ambiguous. The second return is false only when pool contributes no
// candidates at all, letting Call distinguish "no display_fqn match,
// try the simple name" from "matched, but unresolved/ambiguous".
func resolveCandidates(pool []graphmodel.Symbol, file string) (Resolution, bool) {
	candidates := dedupe(byFileOnly(pool, file))
	if len(candidates) == 0 {
		candidates = dedupe(pool)
	}

	switch len(candidates) {
	case 0:
		return Resolution{}, false
	case 1:
		return Resolution{TargetSymbolID: candidates[0].SymbolID}, true
	default:
		ids := make([]string, len(candidates))
		for i, c := range candidates {
			ids[i] = c.SymbolID
		}
		sort.Strings(ids)
		return Resolution{Ambiguous: true, Candidates: ids}, true
	}
}

// dedupe removes duplicate symbol_id entries. The same Symbol cannot
// legitimately appear twice in a well-formed population, but this
// guards against a caller passing an already-concatenated slice.
func dedupe(symbols []graphmodel.Symbol) []graphmodel.Symbol {
	if len(symbols) < 2 {
		return symbols
	}
	seen := make(map[string]bool, len(symbols))
	out := make([]graphmodel.Symbol, 0, len(symbols))
	for _, s := range symbols {
		if seen[s.SymbolID] {
			continue
		}
		seen[s.SymbolID] = true
		out = append(out, s)
	}
	return out
}
