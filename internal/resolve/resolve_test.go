package resolve

import (
	"testing"

	"github.com/oldnordic/magellan/internal/extract"
	"github.com/oldnordic/magellan/internal/graphmodel"
)

func sym(file, name, fqn, id string) graphmodel.Symbol {
	return graphmodel.Symbol{
		File:         file,
		Name:         name,
		CanonicalFQN: fqn,
		SymbolID:     id,
	}
}

// symWithDisplay builds a Symbol whose canonical_fqn is derived from
// displayFQN the way the Symbol Extractor actually builds it (§4.5),
// for tests that exercise the FQN-first call resolution stage against
// a realistic display_fqn rather than a synthetic canonical_fqn.
func symWithDisplay(file, name, displayFQN, id string) graphmodel.Symbol {
	return graphmodel.Symbol{
		File:         file,
		Name:         name,
		Kind:         graphmodel.KindMethod,
		DisplayFQN:   displayFQN,
		CanonicalFQN: graphmodel.CanonicalFQNFor(file, graphmodel.KindMethod, displayFQN),
		SymbolID:     id,
	}
}

func TestReferenceSameFilePreferred(t *testing.T) {
	symbols := []graphmodel.Symbol{
		sym("a.rs", "helper", "a.rs::Function helper", "id-a"),
		sym("b.rs", "helper", "b.rs::Function helper", "id-b"),
	}
	idx := NewIndex(symbols)

	res := Reference(idx, "a.rs", extract.RawReference{Name: "helper"})
	if res.Ambiguous {
		t.Fatalf("expected unambiguous same-file match, got ambiguous with %v", res.Candidates)
	}
	if res.TargetSymbolID != "id-a" {
		t.Errorf("got %q, want id-a (same-file preference)", res.TargetSymbolID)
	}
}

func TestReferenceGlobalAmbiguous(t *testing.T) {
	symbols := []graphmodel.Symbol{
		sym("a.rs", "helper", "a.rs::Function helper", "id-a"),
		sym("b.rs", "helper", "b.rs::Function helper", "id-b"),
	}
	idx := NewIndex(symbols)

	// Resolving from a third file with no same-file candidate: both
	// global matches remain, so this must be ambiguous, never a silent
	// pick (§4.6 step 3).
	res := Reference(idx, "c.rs", extract.RawReference{Name: "helper"})
	if !res.Ambiguous {
		t.Fatal("expected ambiguous resolution")
	}
	if len(res.Candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(res.Candidates))
	}
}

func TestReferenceUnresolved(t *testing.T) {
	idx := NewIndex(nil)
	res := Reference(idx, "a.rs", extract.RawReference{Name: "missing"})
	if res.Ambiguous || res.TargetSymbolID != "" {
		t.Errorf("expected unresolved, got %+v", res)
	}
}

func TestCallFQNFirst(t *testing.T) {
	symbols := []graphmodel.Symbol{
		symWithDisplay("a.rs", "new", "Point::new", "id-point-new"),
		symWithDisplay("b.rs", "new", "Other::new", "id-other-new"),
	}
	idx := NewIndex(symbols)

	// "Point::new()" is a qualified call whose qualifier names the
	// declaring type directly, so the display_fqn match must win over
	// the two same-named "new" symbols despite neither living in x.rs.
	call := extract.RawCall{CalleeName: "new", CalleeQualified: "Point::new"}
	res := Call(idx, "x.rs", call)
	if res.Ambiguous {
		t.Fatal("expected display_fqn match to resolve unambiguously despite two symbols sharing the simple name")
	}
	if res.TargetSymbolID != "id-point-new" {
		t.Errorf("got %q, want id-point-new", res.TargetSymbolID)
	}
}

func TestCallQualifierNotADisplayFQNFallsBackToSimpleName(t *testing.T) {
	symbols := []graphmodel.Symbol{
		symWithDisplay("a.rs", "render", "Widget::render", "id-render"),
	}
	idx := NewIndex(symbols)

	// "w.render()" where w is a value, not a type/module path: the
	// qualifier never matches any display_fqn, so resolution falls
	// through to the simple-name stage and still finds the method.
	call := extract.RawCall{CalleeName: "render", CalleeQualified: "w.render"}
	res := Call(idx, "a.rs", call)
	if res.Ambiguous {
		t.Fatal("expected unambiguous simple-name fallback")
	}
	if res.TargetSymbolID != "id-render" {
		t.Errorf("got %q, want id-render", res.TargetSymbolID)
	}
}

func TestCallFallsBackToSimpleName(t *testing.T) {
	symbols := []graphmodel.Symbol{
		sym("a.rs", "helper", "a.rs::Function helper", "id-a"),
	}
	idx := NewIndex(symbols)

	call := extract.RawCall{CalleeName: "helper", CalleeQualified: "helper"}
	res := Call(idx, "a.rs", call)
	if res.TargetSymbolID != "id-a" {
		t.Errorf("got %q, want id-a", res.TargetSymbolID)
	}
}
