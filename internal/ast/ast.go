// Package ast emits the per-file AST forest described in §4.7: every
// node of a configured set of structural kinds, carrying its parent
// handle, captured via a traversal stack so parent-child relations are
// recorded without a second pass over the tree. Grounded on the
// teacher's internal/parser tree-walking helpers (same
// StartByte/EndByte/Kind node inspection), generalized across
// languages instead of being duplicated per extractor.
package ast

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/oldnordic/magellan/internal/graphmodel"
)

// structuralKinds is the configured set of node kinds that produce an
// AstNode fact. Declarations, scope-defining nodes, and control-flow
// statements are included; purely syntactic leaves (punctuation,
// literal tokens) are not, keeping the forest at a useful granularity
// without one row per token.
var structuralKinds = map[string]bool{
	// declarations / definitions (kept in sync with langcap's
	// SymbolNodeKinds + ScopeNodeKinds across all seven languages)
	"function_item": true, "struct_item": true, "enum_item": true,
	"trait_item": true, "mod_item": true, "type_item": true, "impl_item": true,
	"function_definition": true, "class_definition": true,
	"function_declaration": true, "method_declaration": true,
	"class_declaration": true, "interface_declaration": true,
	"enum_declaration": true, "method_definition": true,
	"type_alias_declaration": true, "namespace_definition": true,
	"class_specifier": true, "struct_specifier": true, "enum_specifier": true,
	"type_definition": true,
	// control flow: every kind cfg.go treats as a decision point, plus
	// jump statements and call expressions
	"if_statement": true, "if_expression": true,
	"for_statement": true, "for_expression": true,
	"while_statement": true, "while_expression": true,
	"do_statement": true, "switch_statement": true, "switch_expression": true, "match_expression": true,
	"try_statement": true, "try_expression": true,
	"return_statement": true, "break_statement": true, "continue_statement": true,
	"call_expression": true, "call": true, "method_invocation": true,
}

// Node is one row of the per-file AST forest: a structural tree-sitter
// node plus a handle to its nearest structural ancestor.
type Node struct {
	Kind     string
	Span     graphmodel.Span
	ParentID int // -1 for the file's root (no structural parent)
	ID       int
}

// Build walks root and returns every structural node as a Node,
// assigning each a stable, deterministic ID equal to its position in a
// pre-order traversal (so re-running Build on unchanged source
// reproduces identical IDs, required for stable downstream storage).
func Build(root *tree_sitter.Node) []Node {
	var nodes []Node
	var walk func(n *tree_sitter.Node, parentID int)
	walk = func(n *tree_sitter.Node, parentID int) {
		if n == nil {
			return
		}
		thisParent := parentID
		if structuralKinds[n.Kind()] {
			id := len(nodes)
			start := n.StartPosition()
			end := n.EndPosition()
			nodes = append(nodes, Node{
				Kind: n.Kind(),
				Span: graphmodel.Span{
					ByteStart: int(n.StartByte()),
					ByteEnd:   int(n.EndByte()),
					StartLine: int(start.Row) + 1,
					StartCol:  int(start.Column),
					EndLine:   int(end.Row) + 1,
					EndCol:    int(end.Column),
				},
				ParentID: parentID,
				ID:       id,
			})
			thisParent = id
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			walk(n.Child(i), thisParent)
		}
	}
	walk(root, -1)
	return nodes
}
