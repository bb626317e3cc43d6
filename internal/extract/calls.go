package extract

import (
	"sort"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/oldnordic/magellan/internal/graphmodel"
	"github.com/oldnordic/magellan/internal/langcap"
	"github.com/oldnordic/magellan/internal/parserpool"
)

// RawCall is an unresolved call site emitted by the call pass: the
// caller is already a concrete symbol_id (found via the innermost
// enclosing function/method symbol), the callee is still a simple name
// awaiting resolution against the symbol table (§4.6 step 2).
type RawCall struct {
	CallerSymbolID string
	CalleeName     string
	// CalleeQualified is the full callee expression text as written
	// (e.g. "x::m", "pkg::Type::new"), used by the resolver to attempt
	// an FQN match before falling back to CalleeName (§4.6 step 2).
	// Equal to CalleeName for a bare call with no qualifier.
	CalleeQualified string
	Span            graphmodel.Span
}

// Calls performs the second pass described in §4.6: every node whose
// kind is in the language's CallNodeKinds becomes a RawCall. The caller
// is resolved by finding the innermost symbol in decl.Symbols, among
// those of a function-like kind, whose span contains the call site —
// matching against the Symbols pass's own output instead of
// recomputing FQNs/symbol_ids a second time, so the two passes can
// never disagree about identity (§4.5, §4.6). A call at file scope
// (no enclosing function-like symbol) is dropped, per the edge case in
// §4.6 ("calls outside any function body produce no Call fact").
func Calls(file string, lang graphmodel.Language, pt *parserpool.ParseTree, decl SymbolResult) []RawCall {
	c, ok := langcap.For(lang)
	if !ok {
		return nil
	}

	callers := functionLikeSymbols(lang, decl.Symbols)

	var calls []RawCall
	var walk func(node *tree_sitter.Node)
	walk = func(node *tree_sitter.Node) {
		if node == nil {
			return
		}
		if isSymbolKind(c.CallNodeKinds, node.Kind()) {
			if calleeNode, qualifier := calleeInfo(node); calleeNode != nil {
				span := spanOf(node)
				if caller, ok := innermostEnclosing(callers, span); ok {
					name := lastComponent(nodeText(calleeNode, pt.Content))
					qualified := name
					if qualifier != nil {
						qualified = nodeText(qualifier, pt.Content)
					}
					calls = append(calls, RawCall{
						CallerSymbolID:  caller.SymbolID,
						CalleeName:      name,
						CalleeQualified: qualified,
						Span:            span,
					})
				}
			}
		}
		for i := uint(0); i < node.ChildCount(); i++ {
			walk(node.Child(i))
		}
	}
	walk(pt.Tree.RootNode())

	sort.SliceStable(calls, func(i, j int) bool {
		if calls[i].Span.ByteStart != calls[j].Span.ByteStart {
			return calls[i].Span.ByteStart < calls[j].Span.ByteStart
		}
		return calls[i].Span.ByteEnd < calls[j].Span.ByteEnd
	})
	return calls
}

// functionLikeSymbols filters a file's symbols down to the function-
// and method-kind ones, the only symbols that can own a call site.
func functionLikeSymbols(lang graphmodel.Language, symbols []graphmodel.Symbol) []graphmodel.Symbol {
	var out []graphmodel.Symbol
	for _, s := range symbols {
		if s.Kind == graphmodel.KindFunction || s.Kind == graphmodel.KindMethod {
			out = append(out, s)
		}
	}
	return out
}

// innermostEnclosing returns the function-like symbol with the
// smallest span that still fully contains target, i.e. the nearest
// enclosing function body. Ties (identical spans, which tree-sitter
// grammars do not produce for distinct declarations) favor the later
// entry, an arbitrary but deterministic tiebreak.
func innermostEnclosing(callers []graphmodel.Symbol, target graphmodel.Span) (graphmodel.Symbol, bool) {
	var best graphmodel.Symbol
	found := false
	for _, s := range callers {
		if s.Span.ByteStart <= target.ByteStart && target.ByteEnd <= s.Span.ByteEnd {
			if !found || s.Span.Len() <= best.Span.Len() {
				best = s
				found = true
			}
		}
	}
	return best, found
}
