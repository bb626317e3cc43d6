package extract

import (
	"testing"

	"github.com/oldnordic/magellan/internal/graphmodel"
)

func TestReferencesExcludesDeclarations(t *testing.T) {
	src := `
fn helper() {}

fn caller() {
    helper();
    let x = helper();
}
`
	pt := parse(t, graphmodel.LangRust, src)
	decl := Symbols("r.rs", graphmodel.LangRust, pt)
	refs := References(graphmodel.LangRust, pt, decl)

	// Every occurrence of "helper" is either its own declaration or a
	// call callee, so none should surface as a plain reference.
	for _, r := range refs {
		if r.Name == "helper" {
			t.Errorf("did not expect a reference to %q (should be decl or call callee), got span %+v", r.Name, r.Span)
		}
	}

	foundX := false
	for _, r := range refs {
		if r.Name == "x" {
			foundX = true
		}
	}
	if !foundX {
		t.Error("expected a reference to local binding x")
	}
}

func TestReferencesLastComponent(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"foo", "foo"},
		{"a::b::c", "c"},
		{"::root", "root"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := lastComponent(tt.in); got != tt.want {
			t.Errorf("lastComponent(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestReferencesOrderedByByteSpan(t *testing.T) {
	src := `
fn caller() {
    let a = 1;
    let b = a;
    let c = b;
}
`
	pt := parse(t, graphmodel.LangRust, src)
	decl := Symbols("order.rs", graphmodel.LangRust, pt)
	refs := References(graphmodel.LangRust, pt, decl)

	for i := 1; i < len(refs); i++ {
		if refs[i-1].Span.ByteStart > refs[i].Span.ByteStart {
			t.Fatalf("references not sorted by byte span: %+v then %+v", refs[i-1], refs[i])
		}
	}
}
