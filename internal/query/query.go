// Package query implements the Query Surface (§4.12): deterministic,
// read-only primitives over the Graph Store Contract, each sorted by
// the stable composite key (path, byte_start, byte_end, kind, name)
// the design requires, plus the pure edge-derived graph algorithms
// (cycles, reachable-from, paths-between, dead-code) named in §4.12/§6
// and specified exactly in SPEC_FULL's supplemented-features section.
//
// Grounded on the teacher's edge-indexed traversal style
// (internal/core/graph_propagator.go: deterministic map-keyed state,
// sorted output, BFS/queue-based propagation over a call graph built
// from resolved edges) generalized from semantic label propagation
// (out of scope here) to plain reachability/cycle/path queries. No
// third-party graph library appears anywhere in the pack — Tarjan's
// SCC and BFS are a few dozen lines of plain Go each and the pack
// shows no precedent for pulling in a graph library for this size of
// problem, so these algorithms are implemented directly.
package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/oldnordic/magellan/internal/graphmodel"
	"github.com/oldnordic/magellan/internal/store"
)

// Engine answers Query Surface primitives against one Store.
type Engine struct {
	Store store.Store
}

// New creates an Engine over s.
func New(s store.Store) *Engine { return &Engine{Store: s} }

// SymbolsInFile returns file's symbols, optionally filtered to kind
// (pass "" for no filter), sorted by the composite key.
func (e *Engine) SymbolsInFile(tx store.Tx, file string, kind graphmodel.SymbolKind) ([]graphmodel.Symbol, error) {
	syms, err := e.Store.SymbolsInFile(tx, file)
	if err != nil {
		return nil, err
	}
	if kind != "" {
		filtered := make([]graphmodel.Symbol, 0, len(syms))
		for _, s := range syms {
			if s.Kind == kind {
				filtered = append(filtered, s)
			}
		}
		syms = filtered
	}
	sortSymbols(syms)
	return syms, nil
}

// FindSymbolResult reports every symbol matching a name lookup plus
// whether the match was ambiguous (more than one hit).
type FindSymbolResult struct {
	Matches   []graphmodel.Symbol
	Ambiguous bool
}

// FindSymbol looks up name, optionally narrowed to file ("" for global).
func (e *Engine) FindSymbol(tx store.Tx, name, file string) (FindSymbolResult, error) {
	syms, err := e.Store.SymbolsByName(tx, name)
	if err != nil {
		return FindSymbolResult{}, err
	}
	if file != "" {
		filtered := make([]graphmodel.Symbol, 0, len(syms))
		for _, s := range syms {
			if s.File == file {
				filtered = append(filtered, s)
			}
		}
		syms = filtered
	}
	sortSymbols(syms)
	return FindSymbolResult{Matches: syms, Ambiguous: len(syms) > 1}, nil
}

// FindBySymbolID returns the single symbol with the given symbol_id, if any.
func (e *Engine) FindBySymbolID(tx store.Tx, id string) (graphmodel.Symbol, bool, error) {
	return e.Store.GetSymbolByID(tx, id)
}

// RefResult bundles the two edge kinds that can point at a symbol_id.
type RefResult struct {
	References []graphmodel.Reference
	Calls      []graphmodel.Call
}

// Refs returns the cross-file edges touching symbolID. Direction "in"
// returns every Reference and Call resolved to symbolID (who points at
// it); direction "out" returns the Calls symbolID itself performs —
// plain References carry no "from" symbol, so they never appear in an
// "out" result.
func (e *Engine) Refs(tx store.Tx, symbolID string, dir graphmodel.Direction) (RefResult, error) {
	switch dir {
	case graphmodel.DirIn:
		refs, err := e.Store.ReferencesTo(tx, symbolID)
		if err != nil {
			return RefResult{}, err
		}
		calls, err := e.Store.CallsTo(tx, symbolID)
		if err != nil {
			return RefResult{}, err
		}
		sortReferences(refs)
		sortCalls(calls)
		return RefResult{References: refs, Calls: calls}, nil
	case graphmodel.DirOut:
		calls, err := e.Store.CallsFrom(tx, symbolID)
		if err != nil {
			return RefResult{}, err
		}
		sortCalls(calls)
		return RefResult{Calls: calls}, nil
	default:
		return RefResult{}, fmt.Errorf("query: unknown direction %q", dir)
	}
}

// ChunksForSymbol returns every chunk named name, optionally narrowed
// to file ("" searches every file that defines a symbol named name).
func (e *Engine) ChunksForSymbol(tx store.Tx, name, file string) ([]graphmodel.CodeChunk, error) {
	var files []string
	if file != "" {
		files = []string{file}
	} else {
		syms, err := e.Store.SymbolsByName(tx, name)
		if err != nil {
			return nil, err
		}
		seen := make(map[string]bool, len(syms))
		for _, s := range syms {
			if !seen[s.File] {
				seen[s.File] = true
				files = append(files, s.File)
			}
		}
		sort.Strings(files)
	}

	var out []graphmodel.CodeChunk
	for _, f := range files {
		chunks, err := e.Store.ChunksInFile(tx, f)
		if err != nil {
			return nil, err
		}
		for _, c := range chunks {
			if c.SymbolName == name {
				out = append(out, c)
			}
		}
	}
	sortChunks(out)
	return out, nil
}

// ChunkBySpan returns the chunk at exactly [span.ByteStart, span.ByteEnd) in file.
func (e *Engine) ChunkBySpan(tx store.Tx, file string, span graphmodel.Span) (graphmodel.CodeChunk, bool, error) {
	return e.Store.ChunkBySpan(tx, file, span)
}

// ChunksInFile returns every chunk in file, sorted by span.
func (e *Engine) ChunksInFile(tx store.Tx, file string) ([]graphmodel.CodeChunk, error) {
	chunks, err := e.Store.ChunksInFile(tx, file)
	if err != nil {
		return nil, err
	}
	sortChunks(chunks)
	return chunks, nil
}

// AST returns file's structural forest, parents before children, sorted by span.
func (e *Engine) AST(tx store.Tx, file string) ([]graphmodel.AstNode, error) {
	nodes, err := e.Store.AstForFile(tx, file)
	if err != nil {
		return nil, err
	}
	sortAstNodes(nodes)
	return nodes, nil
}

// FindASTByKind returns every AST node of the given structural kind across the workspace.
func (e *Engine) FindASTByKind(tx store.Tx, kind string) ([]graphmodel.AstNode, error) {
	nodes, err := e.Store.FindAstByKind(tx, kind)
	if err != nil {
		return nil, err
	}
	sortAstNodes(nodes)
	return nodes, nil
}

// CollisionField is the closed set of Symbol name fields collisions can group by.
type CollisionField string

const (
	FieldFQN          CollisionField = "fqn"           // alias for DisplayFQN (§GLOSSARY: FQN == hierarchical name without file path)
	FieldDisplayFQN    CollisionField = "display_fqn"
	FieldCanonicalFQN CollisionField = "canonical_fqn"
)

// CollisionGroup is one set of symbols sharing the same field value.
type CollisionGroup struct {
	Value   string
	Symbols []graphmodel.Symbol
}

// Collisions groups every symbol by field, keeps only groups with more
// than one member, and sorts by group size descending then field value
// ascending, truncated to limit (limit <= 0 means unbounded).
func (e *Engine) Collisions(tx store.Tx, field CollisionField, limit int) ([]CollisionGroup, error) {
	syms, err := e.Store.AllSymbols(tx)
	if err != nil {
		return nil, err
	}

	groups := make(map[string][]graphmodel.Symbol)
	for _, s := range syms {
		var key string
		switch field {
		case FieldFQN, FieldDisplayFQN:
			key = s.DisplayFQN
		case FieldCanonicalFQN:
			key = s.CanonicalFQN
		default:
			return nil, fmt.Errorf("query: unknown collision field %q", field)
		}
		groups[key] = append(groups[key], s)
	}

	var out []CollisionGroup
	for value, members := range groups {
		if len(members) > 1 {
			sortSymbols(members)
			out = append(out, CollisionGroup{Value: value, Symbols: members})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].Symbols) != len(out[j].Symbols) {
			return len(out[i].Symbols) > len(out[j].Symbols)
		}
		return out[i].Value < out[j].Value
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// buildCallGraph returns the resolved-call adjacency (caller -> sorted
// callees), the substrate every graph algorithm below walks (§4.12:
// "derived from edges alone").
func (e *Engine) buildCallGraph(tx store.Tx) (map[string][]string, error) {
	calls, err := e.Store.AllCalls(tx)
	if err != nil {
		return nil, err
	}
	adj := make(map[string][]string)
	for _, c := range calls {
		if c.CallerID == "" || c.CalleeID == "" {
			continue
		}
		adj[c.CallerID] = append(adj[c.CallerID], c.CalleeID)
	}
	for k := range adj {
		sort.Strings(adj[k])
	}
	return adj, nil
}

// ReachableFrom returns every symbol_id reachable from symbolID via
// one or more CALLS edges, sorted, excluding symbolID itself.
func (e *Engine) ReachableFrom(tx store.Tx, symbolID string) ([]string, error) {
	adj, err := e.buildCallGraph(tx)
	if err != nil {
		return nil, err
	}
	visited := map[string]bool{symbolID: true}
	queue := []string{symbolID}
	var order []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range adj[cur] {
			if !visited[next] {
				visited[next] = true
				order = append(order, next)
				queue = append(queue, next)
			}
		}
	}
	sort.Strings(order)
	return order, nil
}

// Cycle is one strongly-connected set of symbol_ids in the call graph
// (or a single self-calling symbol), sorted.
type Cycle struct {
	SymbolIDs []string
}

// Cycles finds every call-graph cycle via Tarjan's strongly-connected-
// components algorithm, keeping components of size > 1 plus any
// single-node component with a self-loop. Nodes are seeded in sorted
// order and each component's members are sorted before being
// returned, so the result is deterministic regardless of map
// iteration order.
func (e *Engine) Cycles(tx store.Tx) ([]Cycle, error) {
	adj, err := e.buildCallGraph(tx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var nodes []string
	for from, tos := range adj {
		if !seen[from] {
			seen[from] = true
			nodes = append(nodes, from)
		}
		for _, to := range tos {
			if !seen[to] {
				seen[to] = true
				nodes = append(nodes, to)
			}
		}
	}
	sort.Strings(nodes)

	index := 0
	indices := make(map[string]int)
	lowlink := make(map[string]int)
	onStack := make(map[string]bool)
	var stack []string
	var sccs [][]string

	var strongConnect func(v string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range adj[v] {
			if _, ok := indices[w]; !ok {
				strongConnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] {
				if indices[w] < lowlink[v] {
					lowlink[v] = indices[w]
				}
			}
		}

		if lowlink[v] == indices[v] {
			var comp []string
			for {
				n := len(stack) - 1
				w := stack[n]
				stack = stack[:n]
				onStack[w] = false
				comp = append(comp, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, comp)
		}
	}

	for _, n := range nodes {
		if _, ok := indices[n]; !ok {
			strongConnect(n)
		}
	}

	var cycles []Cycle
	for _, comp := range sccs {
		if len(comp) > 1 {
			sort.Strings(comp)
			cycles = append(cycles, Cycle{SymbolIDs: comp})
			continue
		}
		v := comp[0]
		for _, w := range adj[v] {
			if w == v {
				cycles = append(cycles, Cycle{SymbolIDs: []string{v}})
				break
			}
		}
	}

	sort.Slice(cycles, func(i, j int) bool {
		if len(cycles[i].SymbolIDs) != len(cycles[j].SymbolIDs) {
			return len(cycles[i].SymbolIDs) < len(cycles[j].SymbolIDs)
		}
		return strings.Join(cycles[i].SymbolIDs, ",") < strings.Join(cycles[j].SymbolIDs, ",")
	})
	return cycles, nil
}

// Path is one simple (no repeated node) call chain from one symbol_id to another.
type Path struct {
	SymbolIDs []string
}

// PathsBetween enumerates every simple path from -> to in the call
// graph via DFS with no-revisit, sorted by length then lexicographically.
// Call graphs are sparse enough in practice that exhaustive enumeration
// is the right default for an on-demand query; a caller wanting only
// the shortest path can take paths[0] after sorting.
func (e *Engine) PathsBetween(tx store.Tx, from, to string) ([]Path, error) {
	adj, err := e.buildCallGraph(tx)
	if err != nil {
		return nil, err
	}

	var paths []Path
	visited := map[string]bool{from: true}
	var walk func(cur string, path []string)
	walk = func(cur string, path []string) {
		if cur == to {
			cp := make([]string, len(path))
			copy(cp, path)
			paths = append(paths, Path{SymbolIDs: cp})
			return
		}
		for _, next := range adj[cur] {
			if visited[next] {
				continue
			}
			visited[next] = true
			walk(next, append(path, next))
			visited[next] = false
		}
	}
	walk(from, []string{from})

	sort.Slice(paths, func(i, j int) bool {
		if len(paths[i].SymbolIDs) != len(paths[j].SymbolIDs) {
			return len(paths[i].SymbolIDs) < len(paths[j].SymbolIDs)
		}
		return strings.Join(paths[i].SymbolIDs, ",") < strings.Join(paths[j].SymbolIDs, ",")
	})
	return paths, nil
}

// DeadCode returns every symbol with no incoming CALLS or REFERENCES
// edge anywhere in the graph, sorted by the composite key.
func (e *Engine) DeadCode(tx store.Tx) ([]graphmodel.Symbol, error) {
	syms, err := e.Store.AllSymbols(tx)
	if err != nil {
		return nil, err
	}
	calls, err := e.Store.AllCalls(tx)
	if err != nil {
		return nil, err
	}
	refs, err := e.Store.AllReferences(tx)
	if err != nil {
		return nil, err
	}

	referenced := make(map[string]bool)
	for _, c := range calls {
		if c.CalleeID != "" {
			referenced[c.CalleeID] = true
		}
	}
	for _, r := range refs {
		if r.TargetID != "" {
			referenced[r.TargetID] = true
		}
	}

	var dead []graphmodel.Symbol
	for _, s := range syms {
		if !referenced[s.SymbolID] {
			dead = append(dead, s)
		}
	}
	sortSymbols(dead)
	return dead, nil
}

func sortSymbols(syms []graphmodel.Symbol) {
	sort.SliceStable(syms, func(i, j int) bool {
		a, b := syms[i], syms[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Span.ByteStart != b.Span.ByteStart {
			return a.Span.ByteStart < b.Span.ByteStart
		}
		if a.Span.ByteEnd != b.Span.ByteEnd {
			return a.Span.ByteEnd < b.Span.ByteEnd
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Name < b.Name
	})
}

func sortReferences(refs []graphmodel.Reference) {
	sort.SliceStable(refs, func(i, j int) bool {
		a, b := refs[i], refs[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Span.ByteStart != b.Span.ByteStart {
			return a.Span.ByteStart < b.Span.ByteStart
		}
		if a.Span.ByteEnd != b.Span.ByteEnd {
			return a.Span.ByteEnd < b.Span.ByteEnd
		}
		return a.Name < b.Name
	})
}

func sortCalls(calls []graphmodel.Call) {
	sort.SliceStable(calls, func(i, j int) bool {
		a, b := calls[i], calls[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Span.ByteStart != b.Span.ByteStart {
			return a.Span.ByteStart < b.Span.ByteStart
		}
		return a.Span.ByteEnd < b.Span.ByteEnd
	})
}

func sortChunks(chunks []graphmodel.CodeChunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		a, b := chunks[i], chunks[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Span.ByteStart != b.Span.ByteStart {
			return a.Span.ByteStart < b.Span.ByteStart
		}
		if a.Span.ByteEnd != b.Span.ByteEnd {
			return a.Span.ByteEnd < b.Span.ByteEnd
		}
		if a.SymbolKind != b.SymbolKind {
			return a.SymbolKind < b.SymbolKind
		}
		return a.SymbolName < b.SymbolName
	})
}

func sortAstNodes(nodes []graphmodel.AstNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Span.ByteStart != b.Span.ByteStart {
			return a.Span.ByteStart < b.Span.ByteStart
		}
		if a.Span.ByteEnd != b.Span.ByteEnd {
			return a.Span.ByteEnd < b.Span.ByteEnd
		}
		return a.Kind < b.Kind
	})
}
