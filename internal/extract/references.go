package extract

import (
	"sort"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/oldnordic/magellan/internal/graphmodel"
	"github.com/oldnordic/magellan/internal/langcap"
	"github.com/oldnordic/magellan/internal/parserpool"
)

// identifierKinds is the closed set of leaf node kinds every supported
// grammar uses for a plain name reference. All seven grammars in the
// capability table use "identifier" for this; C/C++/Rust additionally
// use "field_identifier"/"type_identifier" for member/type references.
var identifierKinds = map[string]bool{
	"identifier":       true,
	"field_identifier": true,
	"type_identifier":  true,
	"property_identifier": true,
}

// RawReference is an unresolved name lookup emitted by the reference
// pass, before the resolver (§4.6) looks it up against the graph store.
type RawReference struct {
	Name string
	Span graphmodel.Span
}

// References performs the first of the two passes described in §4.6:
// gather every identifier-like node not already recorded as a
// declaration token by the Symbols pass, and not the callee of a call
// expression (those become Call facts instead, §4.6/scenario 2).
// Results are ordered by byte-span, satisfying the determinism
// requirement in §4.6/§4.9.
func References(lang graphmodel.Language, pt *parserpool.ParseTree, decl SymbolResult) []RawReference {
	c, ok := langcap.For(lang)
	if !ok {
		return nil
	}
	calleePositions := calleeNamePositions(c, pt.Tree.RootNode())

	var refs []RawReference
	var walk func(node *tree_sitter.Node)
	walk = func(node *tree_sitter.Node) {
		if node == nil {
			return
		}
		if identifierKinds[node.Kind()] {
			start := int(node.StartByte())
			if !decl.DeclPositions[start] && !calleePositions[start] {
				name := lastComponent(nodeText(node, pt.Content))
				refs = append(refs, RawReference{Name: name, Span: spanOf(node)})
			}
		}
		for i := uint(0); i < node.ChildCount(); i++ {
			walk(node.Child(i))
		}
	}
	walk(pt.Tree.RootNode())

	sort.SliceStable(refs, func(i, j int) bool {
		if refs[i].Span.ByteStart != refs[j].Span.ByteStart {
			return refs[i].Span.ByteStart < refs[j].Span.ByteStart
		}
		return refs[i].Span.ByteEnd < refs[j].Span.ByteEnd
	})
	return refs
}

// lastComponent reduces a scoped identifier text (e.g. "a::foo") to
// its final component, the lookup key per §4.6 step 2. Plain
// identifiers (the overwhelming common case, since scoped paths are
// usually multiple AST nodes rather than one token) pass through
// unchanged.
func lastComponent(text string) string {
	idx := -1
	for i := 0; i+1 < len(text); i++ {
		if text[i] == ':' && text[i+1] == ':' {
			idx = i + 2
		}
	}
	if idx >= 0 && idx < len(text) {
		return text[idx:]
	}
	return text
}

// calleeNamePositions collects the byte-start of every identifier node
// that serves as a call expression's callee, so the reference pass can
// exclude them (they are reported as Call facts, not References).
func calleeNamePositions(c langcap.Capability, root *tree_sitter.Node) map[int]bool {
	positions := make(map[int]bool)
	var walk func(node *tree_sitter.Node)
	walk = func(node *tree_sitter.Node) {
		if node == nil {
			return
		}
		if isSymbolKind(c.CallNodeKinds, node.Kind()) {
			if n := calleeNameNode(node); n != nil {
				positions[int(n.StartByte())] = true
			}
		}
		for i := uint(0); i < node.ChildCount(); i++ {
			walk(node.Child(i))
		}
	}
	walk(root)
	return positions
}

// calleeNameNode resolves the identifier-like node naming the callee
// of a call-expression node, handling both `foo()` and `x.foo()` /
// `x::foo()` forms (§4.6 step 2: "Method calls ... use m as the
// simple-name key").
func calleeNameNode(call *tree_sitter.Node) *tree_sitter.Node {
	fn := call.ChildByFieldName("function")
	if fn == nil {
		fn = call.ChildByFieldName("name") // Java method_invocation
	}
	if fn == nil {
		return nil
	}
	switch fn.Kind() {
	case "identifier", "field_identifier", "type_identifier", "property_identifier":
		return fn
	}
	// Qualified callee (member/scoped access): use the rightmost
	// identifier-like descendant as the simple name.
	if n := rightmostIdentifier(fn); n != nil {
		return n
	}
	return fn
}

// calleeInfo returns the simple-name node for call's callee (as
// calleeNameNode does) plus the full callee expression node, so the
// caller can recover the qualified text (e.g. "x::m") for the
// resolver's FQN-first attempt (§4.6 step 2). The second return value
// is nil when the callee is a bare identifier with no qualifier.
func calleeInfo(call *tree_sitter.Node) (*tree_sitter.Node, *tree_sitter.Node) {
	fn := call.ChildByFieldName("function")
	if fn == nil {
		fn = call.ChildByFieldName("name")
	}
	if fn == nil {
		return nil, nil
	}
	switch fn.Kind() {
	case "identifier", "field_identifier", "type_identifier", "property_identifier":
		return fn, nil
	}
	if n := rightmostIdentifier(fn); n != nil {
		return n, fn
	}
	return fn, nil
}

func rightmostIdentifier(node *tree_sitter.Node) *tree_sitter.Node {
	if node == nil {
		return nil
	}
	if identifierKinds[node.Kind()] {
		return node
	}
	var found *tree_sitter.Node
	for i := uint(0); i < node.ChildCount(); i++ {
		if n := rightmostIdentifier(node.Child(i)); n != nil {
			found = n
		}
	}
	return found
}
