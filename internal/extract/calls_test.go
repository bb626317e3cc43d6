package extract

import (
	"testing"

	"github.com/oldnordic/magellan/internal/graphmodel"
)

func TestCallsResolveCaller(t *testing.T) {
	src := `
fn helper() {}

fn caller() {
    helper();
    helper();
}
`
	pt := parse(t, graphmodel.LangRust, src)
	decl := Symbols("c.rs", graphmodel.LangRust, pt)
	calls := Calls("c.rs", graphmodel.LangRust, pt, decl)

	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(calls))
	}

	var callerID string
	for _, s := range decl.Symbols {
		if s.Name == "caller" {
			callerID = s.SymbolID
		}
	}
	if callerID == "" {
		t.Fatal("caller symbol not found")
	}

	for _, c := range calls {
		if c.CalleeName != "helper" {
			t.Errorf("got callee %q, want helper", c.CalleeName)
		}
		if c.CallerSymbolID != callerID {
			t.Errorf("got caller %q, want %q", c.CallerSymbolID, callerID)
		}
	}
}

func TestCallsOutsideFunctionDropped(t *testing.T) {
	// The const initializer's call has no enclosing function and is
	// dropped; only the call inside only() is kept.
	src := `
const LIMIT: u32 = compute();
fn only() { isolated_call(); }
`
	pt := parse(t, graphmodel.LangRust, src)
	decl := Symbols("d.rs", graphmodel.LangRust, pt)
	calls := Calls("d.rs", graphmodel.LangRust, pt, decl)

	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	if calls[0].CalleeName != "isolated_call" {
		t.Errorf("got callee %q, want isolated_call", calls[0].CalleeName)
	}
	if calls[0].CallerSymbolID == "" {
		t.Error("expected a non-empty caller symbol id")
	}
}

func TestCallsMethodCallUsesSimpleName(t *testing.T) {
	src := `
fn caller(p: Point) {
    p.magnitude();
}
`
	pt := parse(t, graphmodel.LangRust, src)
	decl := Symbols("m.rs", graphmodel.LangRust, pt)
	calls := Calls("m.rs", graphmodel.LangRust, pt, decl)

	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	if calls[0].CalleeName != "magnitude" {
		t.Errorf("got callee %q, want magnitude", calls[0].CalleeName)
	}
}

func TestCallsOrderedByByteSpan(t *testing.T) {
	src := `
fn a() {}
fn b() {}
fn c() {}

fn caller() {
    a();
    b();
    c();
}
`
	pt := parse(t, graphmodel.LangRust, src)
	decl := Symbols("order.rs", graphmodel.LangRust, pt)
	calls := Calls("order.rs", graphmodel.LangRust, pt, decl)

	if len(calls) != 3 {
		t.Fatalf("expected 3 calls, got %d", len(calls))
	}
	for i := 1; i < len(calls); i++ {
		if calls[i-1].Span.ByteStart > calls[i].Span.ByteStart {
			t.Fatalf("calls not ordered by byte span")
		}
	}
}
