package extract

import (
	"unicode/utf8"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/oldnordic/magellan/internal/graphmodel"
)

// nodeText returns the source text for node's span, clamped to
// content's bounds. Tree-sitter guarantees node spans are always valid
// UTF-8 boundaries (§4.5), so no trimming is needed for nodes obtained
// directly from the tree; SafeSlice below is for spans built from
// arbitrary byte offsets (e.g. a chunk-by-span query).
func nodeText(node *tree_sitter.Node, content []byte) string {
	if node == nil {
		return ""
	}
	start, end := int(node.StartByte()), int(node.EndByte())
	if start < 0 || end > len(content) || start > end {
		return ""
	}
	return string(content[start:end])
}

// spanOf converts a tree-sitter node's position info into a Span (§4.5):
// 1-indexed lines, 0-indexed byte-offset-in-line columns.
func spanOf(node *tree_sitter.Node) graphmodel.Span {
	start := node.StartPosition()
	end := node.EndPosition()
	return graphmodel.Span{
		ByteStart: int(node.StartByte()),
		ByteEnd:   int(node.EndByte()),
		StartLine: int(start.Row) + 1,
		StartCol:  int(start.Column),
		EndLine:   int(end.Row) + 1,
		EndCol:    int(end.Column),
	}
}

// SafeSlice extracts content[start:end] as UTF-8, trimming a trailing
// offset that falls inside a multibyte code point to the previous
// valid boundary. A start offset that splits a character returns
// ("", false): extraction must never invent a boundary (§4.5, §8).
func SafeSlice(content []byte, start, end int) (string, bool) {
	if start < 0 || end > len(content) || start > end {
		return "", false
	}
	if start < len(content) && !utf8.RuneStart(content[start]) {
		return "", false
	}
	for end > start && end < len(content) && !utf8.RuneStart(content[end]) {
		end--
	}
	return string(content[start:end]), true
}

// nameChild finds the conventional "name" field of a declaration node,
// the tree-sitter-grammar-wide convention the teacher relies on
// (internal/parser ChildByFieldName("name") call sites).
func nameChild(node *tree_sitter.Node) *tree_sitter.Node {
	return node.ChildByFieldName("name")
}
