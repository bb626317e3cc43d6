// Package reconcile implements the File Reconciler (§4.9): the single
// write path into the graph store. One call to Reconcile takes a
// workspace-relative path through hash-gate -> delete-all-facts ->
// re-extract -> index-all-facts -> commit, so the visible graph state
// never observes a mix of the previous file's facts and the new
// file's facts. Grounded on the teacher's reindex pipeline shape
// (internal/indexing's per-file hash-gated reindex step) generalized
// onto the tree-sitter-backed extraction pipeline built out in
// internal/extract, internal/resolve, internal/ast, internal/cfg and
// internal/chunk.
package reconcile

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/oldnordic/magellan/internal/ast"
	"github.com/oldnordic/magellan/internal/cfg"
	"github.com/oldnordic/magellan/internal/chunk"
	magerrors "github.com/oldnordic/magellan/internal/errors"
	"github.com/oldnordic/magellan/internal/extract"
	"github.com/oldnordic/magellan/internal/graphmodel"
	"github.com/oldnordic/magellan/internal/langcap"
	"github.com/oldnordic/magellan/internal/parserpool"
	"github.com/oldnordic/magellan/internal/resolve"
	"github.com/oldnordic/magellan/internal/store"
)

// Kind is the closed outcome vocabulary for one Reconcile call (§4.9).
type Kind string

const (
	KindDeleted   Kind = "deleted"
	KindUnchanged Kind = "unchanged"
	KindReindexed Kind = "reindexed"
	// KindSkipped is not one of the spec's three named outcomes; it
	// covers the Language Dispatcher's "unknown extension -> non-error
	// skip" case (§4.2), which the file-level operation must still
	// report something for.
	KindSkipped Kind = "skipped"
)

// Outcome is the result of one Reconcile call.
type Outcome struct {
	Kind       Kind
	Symbols    int
	References int
	Calls      int
}

// Reconciler owns the collaborators one reconcile call threads
// together: a parser pool, a graph store, and the workspace root every
// File.Path is relative to.
type Reconciler struct {
	Store  store.Store
	Pool   *parserpool.Pool
	Root   string // canonical, absolute
	// Clock returns the current time in seconds since epoch. Overridable
	// for deterministic tests; defaults to time.Now in New.
	Clock func() int64
}

// New creates a Reconciler rooted at root (already canonicalized by
// pathsafe.New).
func New(s store.Store, pool *parserpool.Pool, root string) *Reconciler {
	return &Reconciler{Store: s, Pool: pool, Root: root, Clock: func() int64 { return time.Now().Unix() }}
}

// Reconcile runs the procedure in §4.9 for one workspace-relative
// path, using workerID's parser-pool thread slot (§4.3: one parser per
// (thread, language) pair).
func (r *Reconciler) Reconcile(ctx context.Context, workerID int, relPath string) (Outcome, error) {
	relPath = normalizeRel(relPath)
	abs := filepath.Join(r.Root, filepath.FromSlash(relPath))

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return r.delete(ctx, relPath)
		}
		return Outcome{}, magerrors.New(magerrors.CodeFileUnreadable, "reconcile.Stat", err).WithFile(relPath)
	}
	if info.IsDir() {
		return Outcome{Kind: KindSkipped}, nil
	}

	lang, ok := langcap.Dispatch(relPath)
	if !ok {
		return Outcome{Kind: KindSkipped}, nil
	}

	content, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			// Disappeared between Stat and ReadFile (§7:
			// FILE_DISAPPEARED_MID_RECONCILE): reclassify as a delete
			// rather than surfacing a read error.
			return r.delete(ctx, relPath)
		}
		return Outcome{}, magerrors.New(magerrors.CodeFileUnreadable, "reconcile.ReadFile", err).WithFile(relPath)
	}
	hash := sha256Hex(content)

	tx, err := r.Store.Begin(ctx)
	if err != nil {
		return Outcome{}, err
	}
	existing, found, err := r.Store.GetFile(tx, relPath)
	if err != nil {
		tx.Rollback()
		return Outcome{}, err
	}
	if found && existing.ContentHash == hash {
		tx.Rollback()
		return Outcome{Kind: KindUnchanged}, nil
	}

	outcome, err := r.reindex(tx, workerID, relPath, lang, content, info)
	if err != nil {
		tx.Rollback()
		return Outcome{}, err
	}
	if err := tx.Commit(); err != nil {
		return Outcome{}, err
	}
	return outcome, nil
}

func (r *Reconciler) delete(ctx context.Context, relPath string) (Outcome, error) {
	tx, err := r.Store.Begin(ctx)
	if err != nil {
		return Outcome{}, err
	}
	if err := r.Store.DeleteFileFacts(tx, relPath); err != nil {
		tx.Rollback()
		return Outcome{}, err
	}
	if err := tx.Commit(); err != nil {
		return Outcome{}, err
	}
	return Outcome{Kind: KindDeleted}, nil
}

// reindex performs step 4 of §4.9 within the caller's open tx: delete
// the file's previous facts, parse and run every extractor, insert all
// facts in a fixed deterministic order, and compute metrics.
func (r *Reconciler) reindex(tx store.Tx, workerID int, relPath string, lang graphmodel.Language, content []byte, info os.FileInfo) (Outcome, error) {
	if err := r.Store.DeleteFileFacts(tx, relPath); err != nil {
		return Outcome{}, err
	}

	pt, err := r.Pool.Parse(workerID, lang, content)
	if err != nil {
		return Outcome{}, magerrors.New(magerrors.CodeParseFailed, "reconcile.Parse", err).WithFile(relPath)
	}

	now := r.Clock()
	file := graphmodel.File{
		Path:           relPath,
		ContentHash:    sha256Hex(content),
		LastIndexedAt:  now,
		LastModifiedAt: info.ModTime().Unix(),
	}
	if err := r.Store.PutFile(tx, file); err != nil {
		return Outcome{}, err
	}

	symResult := extract.Symbols(relPath, lang, pt)
	symbols := append([]graphmodel.Symbol(nil), symResult.Symbols...)
	sortSymbols(symbols)
	if err := r.Store.PutSymbols(tx, symbols); err != nil {
		return Outcome{}, err
	}

	allSymbols, err := r.Store.AllSymbols(tx)
	if err != nil {
		return Outcome{}, err
	}
	index := resolve.NewIndex(allSymbols)

	rawRefs := extract.References(lang, pt, symResult)
	refs := make([]graphmodel.Reference, 0, len(rawRefs))
	for _, rr := range rawRefs {
		res := resolve.Reference(index, relPath, rr)
		refs = append(refs, graphmodel.Reference{
			File: relPath, Span: rr.Span, Name: rr.Name,
			TargetID: res.TargetSymbolID, Ambiguous: res.Ambiguous, Candidates: res.Candidates,
		})
	}
	sortBySpan(refs, func(i int) graphmodel.Span { return refs[i].Span })
	if err := r.Store.PutReferences(tx, refs); err != nil {
		return Outcome{}, err
	}

	rawCalls := extract.Calls(relPath, lang, pt, symResult)
	calls := make([]graphmodel.Call, 0, len(rawCalls))
	for _, rc := range rawCalls {
		res := resolve.Call(index, relPath, rc)
		calls = append(calls, graphmodel.Call{
			CallerID: rc.CallerSymbolID, CalleeID: res.TargetSymbolID,
			File: relPath, Span: rc.Span, Ambiguous: res.Ambiguous, Candidates: res.Candidates,
		})
	}
	sortBySpan(calls, func(i int) graphmodel.Span { return calls[i].Span })
	if err := r.Store.PutCalls(tx, calls); err != nil {
		return Outcome{}, err
	}

	if err := r.putAST(tx, relPath, pt.Tree.RootNode()); err != nil {
		return Outcome{}, err
	}

	complexityBySymbol, err := r.putCFG(tx, lang, symbols, pt.Tree.RootNode())
	if err != nil {
		return Outcome{}, err
	}

	chunks := chunk.FromSymbols(relPath, content, symbols, now)
	sort.SliceStable(chunks, func(i, j int) bool { return lessSpan(chunks[i].Span, chunks[j].Span) })
	if err := r.Store.PutChunks(tx, chunks); err != nil {
		return Outcome{}, err
	}

	if err := r.putMetrics(tx, relPath, content, symbols, complexityBySymbol); err != nil {
		return Outcome{}, err
	}

	return Outcome{Kind: KindReindexed, Symbols: len(symbols), References: len(refs), Calls: len(calls)}, nil
}

// putAST inserts the per-file AST forest one node at a time in
// parent-first traversal order, remapping each node's parent from the
// builder's local traversal ID to the store-assigned ID the parent
// received on its own insert, since the forest's ParentID is a
// store-assigned handle rather than a traversal index (§4.7).
func (r *Reconciler) putAST(tx store.Tx, relPath string, root *tree_sitter.Node) error {
	nodes := ast.Build(root)
	storeID := make(map[int]uint64, len(nodes))
	for _, n := range nodes {
		var parentID uint64
		if n.ParentID >= 0 {
			parentID = storeID[n.ParentID]
		}
		record := []graphmodel.AstNode{{
			ParentID: parentID,
			File:     relPath,
			Kind:     n.Kind,
			Span:     n.Span,
		}}
		if err := r.Store.PutAstNodes(tx, record); err != nil {
			return err
		}
		storeID[n.ID] = record[0].ID
	}
	return nil
}

// putCFG locates, for every function-like symbol, the tree-sitter node
// with the matching byte span and builds its control-flow graph,
// returning each symbol's cyclomatic complexity for the metrics pass.
func (r *Reconciler) putCFG(tx store.Tx, lang graphmodel.Language, symbols []graphmodel.Symbol, root *tree_sitter.Node) (map[string]int, error) {
	c, ok := langcap.For(lang)
	if !ok {
		return nil, nil
	}
	bySpan := make(map[graphmodel.Span]string, len(symbols))
	for _, s := range symbols {
		if isFunctionLike(s) {
			bySpan[s.Span] = s.SymbolID
		}
	}
	if len(bySpan) == 0 {
		return nil, nil
	}

	complexity := make(map[string]int, len(bySpan))
	var blocks []graphmodel.CfgBlock
	var walk func(n *tree_sitter.Node)
	walk = func(n *tree_sitter.Node) {
		if n == nil {
			return
		}
		if isSymbolKind(c.FunctionLikeKinds, n.Kind()) {
			span := graphmodel.Span{ByteStart: int(n.StartByte()), ByteEnd: int(n.EndByte())}
			if symbolID, ok := bySpan[span]; ok {
				g := cfg.Build(n)
				complexity[symbolID] = g.Complexity
				for _, b := range g.Blocks {
					blocks = append(blocks, graphmodel.CfgBlock{
						OwningSymbolID: symbolID,
						BlockIndex:     b.ID,
						Successors:     b.Successors,
					})
				}
			}
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)

	sort.SliceStable(blocks, func(i, j int) bool {
		if blocks[i].OwningSymbolID != blocks[j].OwningSymbolID {
			return blocks[i].OwningSymbolID < blocks[j].OwningSymbolID
		}
		return blocks[i].BlockIndex < blocks[j].BlockIndex
	})
	if err := r.Store.PutCfgBlocks(tx, blocks); err != nil {
		return nil, err
	}
	return complexity, nil
}

func isFunctionLike(s graphmodel.Symbol) bool {
	return s.Kind == graphmodel.KindFunction || s.Kind == graphmodel.KindMethod
}

func isSymbolKind(kinds []string, k string) bool {
	for _, s := range kinds {
		if s == k {
			return true
		}
	}
	return false
}

func (r *Reconciler) putMetrics(tx store.Tx, relPath string, content []byte, symbols []graphmodel.Symbol, complexity map[string]int) error {
	loc := strings.Count(string(content), "\n") + 1
	fileComplexity := 0
	for _, s := range symbols {
		symComplexity := complexity[s.SymbolID]
		fileComplexity += symComplexity

		fanIn, err := r.Store.CallsTo(tx, s.SymbolID)
		if err != nil {
			return err
		}
		fanOut, err := r.Store.CallsFrom(tx, s.SymbolID)
		if err != nil {
			return err
		}
		m := graphmodel.SymbolMetrics{
			SymbolID:   s.SymbolID,
			FanIn:      len(fanIn),
			FanOut:     len(fanOut),
			LOC:        s.Span.EndLine - s.Span.StartLine + 1,
			Complexity: symComplexity,
		}
		if err := r.Store.PutSymbolMetrics(tx, m); err != nil {
			return err
		}
	}
	return r.Store.PutFileMetrics(tx, graphmodel.FileMetrics{
		File: relPath, LOC: loc, SymbolsN: len(symbols), Complexity: fileComplexity,
	})
}

func sortSymbols(symbols []graphmodel.Symbol) {
	sort.SliceStable(symbols, func(i, j int) bool {
		if symbols[i].Kind != symbols[j].Kind {
			return symbols[i].Kind < symbols[j].Kind
		}
		return lessSpan(symbols[i].Span, symbols[j].Span)
	})
}

func sortBySpan[T any](items []T, spanOf func(i int) graphmodel.Span) {
	sort.SliceStable(items, func(i, j int) bool {
		return lessSpan(spanOf(i), spanOf(j))
	})
}

func lessSpan(a, b graphmodel.Span) bool {
	if a.ByteStart != b.ByteStart {
		return a.ByteStart < b.ByteStart
	}
	return a.ByteEnd < b.ByteEnd
}

func normalizeRel(p string) string {
	return filepath.ToSlash(p)
}

func sha256Hex(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
