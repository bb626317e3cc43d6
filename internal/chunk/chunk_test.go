package chunk

import (
	"testing"

	"github.com/oldnordic/magellan/internal/graphmodel"
)

func TestFromSymbolsExtractsVerbatimText(t *testing.T) {
	content := []byte("fn hello() {}\nfn world() {}\n")
	symbols := []graphmodel.Symbol{
		{Name: "hello", Kind: graphmodel.KindFunction, Span: graphmodel.Span{ByteStart: 0, ByteEnd: 13}},
		{Name: "world", Kind: graphmodel.KindFunction, Span: graphmodel.Span{ByteStart: 14, ByteEnd: 27}},
	}

	chunks := FromSymbols("f.rs", content, symbols, 1000)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Content != "fn hello() {}" {
		t.Errorf("got %q", chunks[0].Content)
	}
	if chunks[0].ContentHash == "" || chunks[0].FastHash == 0 {
		t.Error("expected both hashes to be populated")
	}
}

func TestFromSymbolsStableHash(t *testing.T) {
	content := []byte("fn a() {}")
	symbols := []graphmodel.Symbol{
		{Name: "a", Kind: graphmodel.KindFunction, Span: graphmodel.Span{ByteStart: 0, ByteEnd: 9}},
	}
	c1 := FromSymbols("f.rs", content, symbols, 1)
	c2 := FromSymbols("f.rs", content, symbols, 2)

	if c1[0].ContentHash != c2[0].ContentHash {
		t.Error("content hash should depend only on content, not createdAt")
	}
	if c1[0].FastHash != c2[0].FastHash {
		t.Error("fast hash should depend only on content, not createdAt")
	}
}

func TestFromSymbolsSkipsInvalidSpan(t *testing.T) {
	content := []byte("short")
	symbols := []graphmodel.Symbol{
		{Name: "bad", Kind: graphmodel.KindFunction, Span: graphmodel.Span{ByteStart: 0, ByteEnd: 999}},
	}
	chunks := FromSymbols("f.rs", content, symbols, 1)
	if len(chunks) != 0 {
		t.Errorf("expected out-of-range span to be skipped, got %d chunks", len(chunks))
	}
}

func TestForSpan(t *testing.T) {
	content := []byte("hello world")
	c, ok := ForSpan("f.rs", content, graphmodel.Span{ByteStart: 0, ByteEnd: 5}, 1)
	if !ok {
		t.Fatal("expected ok")
	}
	if c.Content != "hello" {
		t.Errorf("got %q", c.Content)
	}
}
