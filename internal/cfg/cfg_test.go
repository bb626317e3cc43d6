package cfg

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

// findKind returns the first descendant of kind within node, depth-first.
func findKind(node *tree_sitter.Node, kind string) *tree_sitter.Node {
	if node == nil {
		return nil
	}
	if node.Kind() == kind {
		return node
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		if n := findKind(node.Child(i), kind); n != nil {
			return n
		}
	}
	return nil
}

func TestBuildLinearFunction(t *testing.T) {
	src := `
fn straight() {
    let a = 1;
    let b = 2;
}
`
	tree := parseRust(t, src)
	fn := findKind(tree.RootNode(), "function_item")
	if fn == nil {
		t.Fatal("function_item not found")
	}

	g := Build(fn)
	// entry + 2 statements + exit = 4 blocks, 3 sequential edges.
	if len(g.Blocks) != 4 {
		t.Fatalf("expected 4 blocks, got %d (%+v)", len(g.Blocks), g.Blocks)
	}
	if g.Complexity != 1 {
		t.Errorf("expected complexity 1 for a straight-line function, got %d", g.Complexity)
	}
}

func TestBuildIfElseBranches(t *testing.T) {
	src := `
fn branchy() {
    if cond {
        a();
    } else {
        b();
    }
}
`
	tree := parseRust(t, src)
	fn := findKind(tree.RootNode(), "function_item")
	g := Build(fn)

	if g.Complexity < 2 {
		t.Errorf("expected complexity >= 2 for an if/else, got %d", g.Complexity)
	}
}

func TestBuildLoopHasBackEdge(t *testing.T) {
	src := `
fn looping() {
    while cond {
        work();
    }
}
`
	tree := parseRust(t, src)
	fn := findKind(tree.RootNode(), "function_item")
	g := Build(fn)

	foundBackEdge := false
	for _, blk := range g.Blocks {
		for _, succ := range blk.Successors {
			if succ == blk.ID {
				t.Errorf("block %d has a self-successor, expected the back-edge to target the loop header block, not itself", blk.ID)
			}
			if succ < blk.ID {
				foundBackEdge = true
			}
		}
	}
	if !foundBackEdge {
		t.Error("expected at least one back-edge (a successor pointing to an earlier block)")
	}
}

func TestBuildNoBodyIsSingleBlock(t *testing.T) {
	// A node with no "body" field (e.g. the file root itself, never a
	// real call site but exercises the fallback path).
	tree := parseRust(t, "fn f();")
	root := tree.RootNode()
	g := Build(root)
	if len(g.Blocks) != 1 {
		t.Fatalf("expected 1 block when no body field exists, got %d", len(g.Blocks))
	}
}

func TestBuildDeterministic(t *testing.T) {
	src := `
fn deterministic() {
    if cond {
        a();
    }
    loop_call();
}
`
	t1 := parseRust(t, src)
	t2 := parseRust(t, src)

	g1 := Build(findKind(t1.RootNode(), "function_item"))
	g2 := Build(findKind(t2.RootNode(), "function_item"))

	if len(g1.Blocks) != len(g2.Blocks) || g1.Complexity != g2.Complexity {
		t.Fatalf("CFG not deterministic across identical parses: %+v vs %+v", g1, g2)
	}
}
