package ast

import (
	"testing"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
)

func parseRust(t *testing.T, src string) *tree_sitter.Tree {
	t.Helper()
	parser := tree_sitter.NewParser()
	lang := tree_sitter.NewLanguage(tree_sitter_rust.Language())
	if err := parser.SetLanguage(lang); err != nil {
		t.Fatalf("set language: %v", err)
	}
	tree := parser.Parse([]byte(src), nil)
	if tree == nil {
		t.Fatal("parse returned nil tree")
	}
	t.Cleanup(tree.Close)
	return tree
}

func TestBuildRecordsStructuralNodes(t *testing.T) {
	src := `
fn outer() {
    if true {
        inner();
    }
}
`
	tree := parseRust(t, src)
	nodes := Build(tree.RootNode())

	var sawFunction, sawIf bool
	for _, n := range nodes {
		switch n.Kind {
		case "function_item":
			sawFunction = true
		case "if_expression":
			sawIf = true
		}
	}
	if !sawFunction {
		t.Error("expected a function_item node in the forest")
	}
	if !sawIf {
		t.Error("expected an if_expression node in the forest")
	}
}

func TestBuildParentIDsAreValid(t *testing.T) {
	src := `fn outer() { if true { inner(); } }`
	tree := parseRust(t, src)
	nodes := Build(tree.RootNode())

	for _, n := range nodes {
		if n.ParentID == -1 {
			continue
		}
		if n.ParentID < 0 || n.ParentID >= n.ID {
			t.Errorf("node %d (%s): parent id %d is not a valid earlier index", n.ID, n.Kind, n.ParentID)
		}
	}
}

func TestBuildDeterministicIDs(t *testing.T) {
	src := `fn a() {} fn b() {}`
	t1 := parseRust(t, src)
	t2 := parseRust(t, src)

	n1 := Build(t1.RootNode())
	n2 := Build(t2.RootNode())

	if len(n1) != len(n2) {
		t.Fatalf("node count differs across identical parses: %d vs %d", len(n1), len(n2))
	}
	for i := range n1 {
		if n1[i].Kind != n2[i].Kind || n1[i].ParentID != n2[i].ParentID {
			t.Errorf("node %d differs: %+v vs %+v", i, n1[i], n2[i])
		}
	}
}
