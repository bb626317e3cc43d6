// Package extract walks tree-sitter parse trees to produce Symbol,
// Reference, and Call facts (§4.5-§4.6).
// Grounded on the teacher's internal/symbollinker per-language
// extractors (go_extractor.go, js_extractor.go, python_extractor.go):
// same ChildByFieldName("name") convention, same scope-manager-driven
// FQN building, generalized here into one engine driven by the
// language capability table in internal/langcap instead of one
// hand-written extractor type per language.
package extract

import (
	"fmt"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/oldnordic/magellan/internal/graphmodel"
	"github.com/oldnordic/magellan/internal/langcap"
	"github.com/oldnordic/magellan/internal/parserpool"
	"github.com/oldnordic/magellan/internal/scope"
	"github.com/oldnordic/magellan/internal/symid"
)

// symWalker carries the mutable state of one extraction walk: the
// Scope Tracker is the only shared mutable state during extraction and
// is owned by the current walk (§9).
type symWalker struct {
	file    string
	lang    graphmodel.Language
	cap     langcap.Capability
	content []byte
	tracker *scope.Tracker
	// scopeKinds runs parallel to tracker's stack, recording the node
	// kind that pushed each frame, used to tell a nested function_item
	// inside an impl/trait from a free function (§4.5 Method vs Function).
	scopeKinds []string
	symbols    []graphmodel.Symbol
	// declPositions holds the byte-start of every identifier node that
	// names a symbol declaration, so the reference pass can skip
	// declaration tokens rather than treating them as uses (§4.6).
	declPositions map[int]bool
}

// SymbolResult bundles the Symbol facts for a file with the byte
// positions of their declaring name tokens, consumed by References to
// exclude declaration sites from the use-site scan (§4.6 step 1).
type SymbolResult struct {
	Symbols       []graphmodel.Symbol
	DeclPositions map[int]bool
}

// Symbols walks pt and emits one Symbol per node kind in the
// language's SymbolNodeKinds set (§4.5).
func Symbols(file string, lang graphmodel.Language, pt *parserpool.ParseTree) SymbolResult {
	c, ok := langcap.For(lang)
	if !ok {
		return SymbolResult{}
	}
	w := &symWalker{
		file:          file,
		lang:          lang,
		cap:           c,
		content:       pt.Content,
		tracker:       scope.New(c.ScopeSeparator),
		declPositions: make(map[int]bool),
	}
	w.walk(pt.Tree.RootNode())
	return SymbolResult{Symbols: w.symbols, DeclPositions: w.declPositions}
}

func isSymbolKind(kinds []string, k string) bool {
	for _, s := range kinds {
		if s == k {
			return true
		}
	}
	return false
}

func (w *symWalker) currentScopeKind() string {
	if len(w.scopeKinds) == 0 {
		return ""
	}
	return w.scopeKinds[len(w.scopeKinds)-1]
}

func (w *symWalker) walk(node *tree_sitter.Node) {
	if node == nil {
		return
	}

	kind := node.Kind()
	isSymbol := isSymbolKind(w.cap.SymbolNodeKinds, kind)
	isScope := isSymbolKind(w.cap.ScopeNodeKinds, kind) || kind == "impl_item"

	var displayName string
	var nameNode *tree_sitter.Node
	pushedScope := false

	if isSymbol || isScope {
		displayName, nameNode = scopeName(w.lang, kind, node, w.content)
		if nameNode != nil {
			w.declPositions[int(nameNode.StartByte())] = true
		}
	}

	if isSymbol {
		w.emitSymbol(kind, displayName, node)
	}

	if isScope {
		name := displayName
		if name == "" {
			name = fmt.Sprintf("<anon@%d-%d>", node.StartByte(), node.EndByte())
		}
		w.tracker.Push(name)
		w.scopeKinds = append(w.scopeKinds, kind)
		pushedScope = true
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		w.walk(node.Child(i))
	}

	if pushedScope {
		w.tracker.Pop()
		w.scopeKinds = w.scopeKinds[:len(w.scopeKinds)-1]
	}
}

func (w *symWalker) emitSymbol(nodeKind, displayName string, node *tree_sitter.Node) {
	name := displayName
	if name == "" {
		name = fmt.Sprintf("<anon@%d-%d>", node.StartByte(), node.EndByte())
	}

	kind := symbolKind(w.lang, nodeKind, w.currentScopeKind())
	displayFQN := w.tracker.FQNFor(name)
	canonicalFQN := graphmodel.CanonicalFQNFor(w.file, kind, displayFQN)
	span := spanOf(node)

	sym := graphmodel.Symbol{
		SymbolID:     symid.For(w.lang, canonicalFQN, span.ByteStart, span.ByteEnd),
		File:         w.file,
		Language:     w.lang,
		Kind:         kind,
		CanonicalFQN: canonicalFQN,
		DisplayFQN:   displayFQN,
		Name:         name,
		Span:         span,
	}
	w.symbols = append(w.symbols, sym)
}

// scopeName resolves the conventional display name for a symbol- or
// scope-producing node, with per-language special cases for grammars
// that don't expose a plain "name" field (§4.5).
func scopeName(lang graphmodel.Language, nodeKind string, node *tree_sitter.Node, content []byte) (string, *tree_sitter.Node) {
	switch lang {
	case graphmodel.LangRust:
		if nodeKind == "impl_item" {
			typeNode := node.ChildByFieldName("type")
			traitNode := node.ChildByFieldName("trait")
			typeName := nodeText(typeNode, content)
			if traitNode != nil {
				return fmt.Sprintf("%s:%s", typeName, nodeText(traitNode, content)), traitNode
			}
			return typeName, typeNode
		}
	case graphmodel.LangC, graphmodel.LangCpp:
		if nodeKind == "function_definition" {
			declarator := node.ChildByFieldName("declarator")
			if n := unwrapDeclaratorName(declarator); n != nil {
				return nodeText(n, content), n
			}
			return "", nil
		}
		if nodeKind == "type_definition" {
			declarator := node.ChildByFieldName("declarator")
			if n := unwrapDeclaratorName(declarator); n != nil {
				return nodeText(n, content), n
			}
		}
	}

	if n := nameChild(node); n != nil {
		return nodeText(n, content), n
	}
	return "", nil
}

// unwrapDeclaratorName walks a C/C++ declarator chain (pointer, array,
// function) down to the leaf identifier, mirroring how the teacher's
// extractor digs through nested declarators for Go's AST (ChildByFieldName
// chains in internal/parser).
func unwrapDeclaratorName(n *tree_sitter.Node) *tree_sitter.Node {
	cur := n
	for cur != nil {
		switch cur.Kind() {
		case "identifier", "field_identifier", "type_identifier":
			return cur
		}
		next := cur.ChildByFieldName("declarator")
		if next == nil {
			return nil
		}
		cur = next
	}
	return nil
}

// symbolKind maps a grammar node kind (plus enclosing scope context)
// to the closed SymbolKind set (§3), applying the Method-vs-Function
// and Class-vs-Namespace distinctions each language needs.
func symbolKind(lang graphmodel.Language, nodeKind, parentScopeKind string) graphmodel.SymbolKind {
	switch lang {
	case graphmodel.LangRust:
		switch nodeKind {
		case "function_item":
			if parentScopeKind == "impl_item" || parentScopeKind == "trait_item" {
				return graphmodel.KindMethod
			}
			return graphmodel.KindFunction
		case "struct_item":
			return graphmodel.KindClass
		case "enum_item":
			return graphmodel.KindEnum
		case "trait_item":
			return graphmodel.KindInterface
		case "mod_item":
			return graphmodel.KindModule
		case "type_item":
			return graphmodel.KindTypeAlias
		}
	case graphmodel.LangPython:
		switch nodeKind {
		case "function_definition":
			if parentScopeKind == "class_definition" {
				return graphmodel.KindMethod
			}
			return graphmodel.KindFunction
		case "class_definition":
			return graphmodel.KindClass
		}
	case graphmodel.LangC:
		switch nodeKind {
		case "function_definition":
			return graphmodel.KindFunction
		case "struct_specifier":
			return graphmodel.KindClass
		case "enum_specifier":
			return graphmodel.KindEnum
		case "type_definition":
			return graphmodel.KindTypeAlias
		}
	case graphmodel.LangCpp:
		switch nodeKind {
		case "function_definition":
			if parentScopeKind == "class_specifier" || parentScopeKind == "struct_specifier" {
				return graphmodel.KindMethod
			}
			return graphmodel.KindFunction
		case "class_specifier", "struct_specifier":
			return graphmodel.KindClass
		case "namespace_definition":
			return graphmodel.KindNamespace
		case "enum_specifier":
			return graphmodel.KindEnum
		}
	case graphmodel.LangJava:
		switch nodeKind {
		case "method_declaration":
			return graphmodel.KindMethod
		case "class_declaration":
			return graphmodel.KindClass
		case "interface_declaration":
			return graphmodel.KindInterface
		case "enum_declaration":
			return graphmodel.KindEnum
		}
	case graphmodel.LangJavaScript, graphmodel.LangTypeScript:
		switch nodeKind {
		case "function_declaration":
			return graphmodel.KindFunction
		case "method_definition":
			return graphmodel.KindMethod
		case "class_declaration":
			return graphmodel.KindClass
		case "interface_declaration":
			return graphmodel.KindInterface
		case "type_alias_declaration":
			return graphmodel.KindTypeAlias
		case "enum_declaration":
			return graphmodel.KindEnum
		}
	}
	return graphmodel.KindUnknown
}
