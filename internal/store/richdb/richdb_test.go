package richdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/oldnordic/magellan/internal/graphmodel"
	"github.com/oldnordic/magellan/internal/store"
)

func open(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "graph.sqlite")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func withTx(t *testing.T, db *DB, fn func(tx store.Tx)) {
	t.Helper()
	tx, err := db.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	fn(tx)
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
}

func TestOpenStampsSchemaVersion(t *testing.T) {
	db := open(t)
	if db.SchemaVersion() == "" {
		t.Fatal("expected schema version to be stamped")
	}
}

func TestReopenWithMatchingSchemaSucceeds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.sqlite")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	db.Close()

	db2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen with matching schema should succeed: %v", err)
	}
	db2.Close()
}

func TestPutGetFile(t *testing.T) {
	db := open(t)
	f := graphmodel.File{Path: "src/lib.rs", ContentHash: "abc", LastIndexedAt: 1, LastModifiedAt: 1}

	withTx(t, db, func(tx store.Tx) {
		if err := db.PutFile(tx, f); err != nil {
			t.Fatalf("PutFile: %v", err)
		}
	})

	var got graphmodel.File
	var ok bool
	withTx(t, db, func(tx store.Tx) {
		var err error
		got, ok, err = db.GetFile(tx, "src/lib.rs")
		if err != nil {
			t.Fatalf("GetFile: %v", err)
		}
	})
	if !ok || got.ContentHash != "abc" {
		t.Fatalf("got %+v, ok=%v", got, ok)
	}
}

func TestPutFileUpsertOverwrites(t *testing.T) {
	db := open(t)
	withTx(t, db, func(tx store.Tx) {
		db.PutFile(tx, graphmodel.File{Path: "a.rs", ContentHash: "h1"})
		db.PutFile(tx, graphmodel.File{Path: "a.rs", ContentHash: "h2"})
	})
	var got graphmodel.File
	withTx(t, db, func(tx store.Tx) {
		got, _, _ = db.GetFile(tx, "a.rs")
	})
	if got.ContentHash != "h2" {
		t.Fatalf("expected upsert to overwrite, got %q", got.ContentHash)
	}
}

func TestSymbolsInFileAndByName(t *testing.T) {
	db := open(t)
	symbols := []graphmodel.Symbol{
		{SymbolID: "id1", File: "a.rs", Name: "magnitude", Kind: graphmodel.KindMethod, CanonicalFQN: "a.rs::Method Point::magnitude"},
		{SymbolID: "id2", File: "a.rs", Name: "helper", Kind: graphmodel.KindFunction, CanonicalFQN: "a.rs::Function helper"},
		{SymbolID: "id3", File: "b.rs", Name: "magnitude", Kind: graphmodel.KindFunction, CanonicalFQN: "b.rs::Function magnitude"},
	}

	withTx(t, db, func(tx store.Tx) {
		if err := db.PutSymbols(tx, symbols); err != nil {
			t.Fatalf("PutSymbols: %v", err)
		}
	})

	var inFile, byName []graphmodel.Symbol
	withTx(t, db, func(tx store.Tx) {
		var err error
		inFile, err = db.SymbolsInFile(tx, "a.rs")
		if err != nil {
			t.Fatalf("SymbolsInFile: %v", err)
		}
		byName, err = db.SymbolsByName(tx, "magnitude")
		if err != nil {
			t.Fatalf("SymbolsByName: %v", err)
		}
	})
	if len(inFile) != 2 {
		t.Fatalf("expected 2 symbols in a.rs, got %d", len(inFile))
	}
	if len(byName) != 2 {
		t.Fatalf("expected 2 symbols named magnitude, got %d", len(byName))
	}

	var fqnResolved string
	var found bool
	withTx(t, db, func(tx store.Tx) {
		var err error
		fqnResolved, found, err = db.KVGet(tx, store.KeySymFQN("a.rs::Method Point::magnitude"))
		if err != nil {
			t.Fatalf("KVGet: %v", err)
		}
	})
	if !found || fqnResolved != "id1" {
		t.Fatalf("expected fqn index to resolve to id1, got %q found=%v", fqnResolved, found)
	}
}

func TestPutReferencesAssignsIDsAndIndexesByTarget(t *testing.T) {
	db := open(t)
	refs := []graphmodel.Reference{
		{File: "a.rs", Name: "helper", TargetID: "id2", Span: graphmodel.Span{ByteStart: 10, ByteEnd: 16}},
		{File: "a.rs", Name: "unresolved", Span: graphmodel.Span{ByteStart: 20, ByteEnd: 30}},
	}
	withTx(t, db, func(tx store.Tx) {
		if err := db.PutReferences(tx, refs); err != nil {
			t.Fatalf("PutReferences: %v", err)
		}
	})
	if refs[0].ID == 0 || refs[1].ID == 0 {
		t.Fatal("expected PutReferences to assign non-zero IDs")
	}

	var resolved, inFile []graphmodel.Reference
	withTx(t, db, func(tx store.Tx) {
		var err error
		resolved, err = db.ReferencesTo(tx, "id2")
		if err != nil {
			t.Fatalf("ReferencesTo: %v", err)
		}
		inFile, err = db.ReferencesIn(tx, "a.rs")
		if err != nil {
			t.Fatalf("ReferencesIn: %v", err)
		}
	})
	if len(resolved) != 1 || resolved[0].Name != "helper" {
		t.Fatalf("got %+v", resolved)
	}
	if len(inFile) != 2 {
		t.Fatalf("expected 2 references in a.rs, got %d", len(inFile))
	}
}

func TestPutCallsIndexesByCallerAndCallee(t *testing.T) {
	db := open(t)
	calls := []graphmodel.Call{
		{CallerID: "id1", CalleeID: "id2", File: "a.rs", Span: graphmodel.Span{ByteStart: 5, ByteEnd: 13}},
	}
	withTx(t, db, func(tx store.Tx) {
		if err := db.PutCalls(tx, calls); err != nil {
			t.Fatalf("PutCalls: %v", err)
		}
	})

	var from, to []graphmodel.Call
	withTx(t, db, func(tx store.Tx) {
		var err error
		from, err = db.CallsFrom(tx, "id1")
		if err != nil {
			t.Fatalf("CallsFrom: %v", err)
		}
		to, err = db.CallsTo(tx, "id2")
		if err != nil {
			t.Fatalf("CallsTo: %v", err)
		}
	})
	if len(from) != 1 || len(to) != 1 {
		t.Fatalf("expected one call each direction, got from=%d to=%d", len(from), len(to))
	}
}

func TestChunkRoundTrip(t *testing.T) {
	db := open(t)
	span := graphmodel.Span{ByteStart: 0, ByteEnd: 10}
	chunks := []graphmodel.CodeChunk{
		{File: "a.rs", Span: span, Content: "fn a() {}", ContentHash: "h1", SymbolName: "a"},
	}
	withTx(t, db, func(tx store.Tx) {
		if err := db.PutChunks(tx, chunks); err != nil {
			t.Fatalf("PutChunks: %v", err)
		}
	})

	var got graphmodel.CodeChunk
	var ok bool
	var inFile []graphmodel.CodeChunk
	withTx(t, db, func(tx store.Tx) {
		var err error
		got, ok, err = db.ChunkBySpan(tx, "a.rs", span)
		if err != nil {
			t.Fatalf("ChunkBySpan: %v", err)
		}
		inFile, err = db.ChunksInFile(tx, "a.rs")
		if err != nil {
			t.Fatalf("ChunksInFile: %v", err)
		}
	})
	if !ok || got.Content != "fn a() {}" {
		t.Fatalf("got %+v ok=%v", got, ok)
	}
	if len(inFile) != 1 {
		t.Fatalf("expected 1 chunk in file, got %d", len(inFile))
	}
}

func TestAstRoundTripAndFindByKind(t *testing.T) {
	db := open(t)
	nodes := []graphmodel.AstNode{
		{File: "a.rs", Kind: "function_item", Span: graphmodel.Span{ByteStart: 0, ByteEnd: 20}},
		{File: "a.rs", Kind: "struct_item", Span: graphmodel.Span{ByteStart: 21, ByteEnd: 40}},
	}
	withTx(t, db, func(tx store.Tx) {
		if err := db.PutAstNodes(tx, nodes); err != nil {
			t.Fatalf("PutAstNodes: %v", err)
		}
	})

	var inFile, byKind []graphmodel.AstNode
	withTx(t, db, func(tx store.Tx) {
		var err error
		inFile, err = db.AstForFile(tx, "a.rs")
		if err != nil {
			t.Fatalf("AstForFile: %v", err)
		}
		byKind, err = db.FindAstByKind(tx, "function_item")
		if err != nil {
			t.Fatalf("FindAstByKind: %v", err)
		}
	})
	if len(inFile) != 2 {
		t.Fatalf("expected 2 ast nodes, got %d", len(inFile))
	}
	if len(byKind) != 1 {
		t.Fatalf("expected 1 function_item node, got %d", len(byKind))
	}
}

func TestCfgRoundTripOrderedByBlockIndex(t *testing.T) {
	db := open(t)
	blocks := []graphmodel.CfgBlock{
		{OwningSymbolID: "id1", BlockIndex: 1, Successors: nil},
		{OwningSymbolID: "id1", BlockIndex: 0, Successors: []int{1}},
	}
	withTx(t, db, func(tx store.Tx) {
		if err := db.PutCfgBlocks(tx, blocks); err != nil {
			t.Fatalf("PutCfgBlocks: %v", err)
		}
	})

	var got []graphmodel.CfgBlock
	withTx(t, db, func(tx store.Tx) {
		var err error
		got, err = db.CfgForSymbol(tx, "id1")
		if err != nil {
			t.Fatalf("CfgForSymbol: %v", err)
		}
	})
	if len(got) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(got))
	}
	if got[0].BlockIndex != 0 || got[1].BlockIndex != 1 {
		t.Fatalf("expected blocks ordered by index, got %+v", got)
	}
}

func TestDeleteFileFactsRemovesEverything(t *testing.T) {
	db := open(t)
	withTx(t, db, func(tx store.Tx) {
		db.PutFile(tx, graphmodel.File{Path: "a.rs"})
		db.PutSymbols(tx, []graphmodel.Symbol{
			{SymbolID: "id1", File: "a.rs", Name: "helper", Kind: graphmodel.KindFunction, CanonicalFQN: "a.rs::Function helper"},
		})
		db.PutReferences(tx, []graphmodel.Reference{
			{File: "a.rs", Name: "helper", TargetID: "id1", Span: graphmodel.Span{ByteStart: 1, ByteEnd: 7}},
		})
		db.PutCalls(tx, []graphmodel.Call{
			{CallerID: "id1", CalleeID: "id1", File: "a.rs", Span: graphmodel.Span{ByteStart: 1, ByteEnd: 7}},
		})
		db.PutChunks(tx, []graphmodel.CodeChunk{
			{File: "a.rs", Span: graphmodel.Span{ByteStart: 0, ByteEnd: 7}, Content: "fn a(){}"},
		})
		db.PutAstNodes(tx, []graphmodel.AstNode{
			{File: "a.rs", Kind: "function_item", Span: graphmodel.Span{ByteStart: 0, ByteEnd: 7}},
		})
		db.PutCfgBlocks(tx, []graphmodel.CfgBlock{{OwningSymbolID: "id1", BlockIndex: 0}})
	})

	withTx(t, db, func(tx store.Tx) {
		if err := db.DeleteFileFacts(tx, "a.rs"); err != nil {
			t.Fatalf("DeleteFileFacts: %v", err)
		}
	})

	withTx(t, db, func(tx store.Tx) {
		if _, ok, _ := db.GetFile(tx, "a.rs"); ok {
			t.Error("expected file to be deleted")
		}
		if syms, _ := db.SymbolsInFile(tx, "a.rs"); len(syms) != 0 {
			t.Errorf("expected no symbols left, got %d", len(syms))
		}
		if refs, _ := db.ReferencesIn(tx, "a.rs"); len(refs) != 0 {
			t.Errorf("expected no references left, got %d", len(refs))
		}
		if calls, _ := db.CallsFrom(tx, "id1"); len(calls) != 0 {
			t.Errorf("expected no calls left, got %d", len(calls))
		}
		if chunks, _ := db.ChunksInFile(tx, "a.rs"); len(chunks) != 0 {
			t.Errorf("expected no chunks left, got %d", len(chunks))
		}
		if nodes, _ := db.AstForFile(tx, "a.rs"); len(nodes) != 0 {
			t.Errorf("expected no ast nodes left, got %d", len(nodes))
		}
		if blocks, _ := db.CfgForSymbol(tx, "id1"); len(blocks) != 0 {
			t.Errorf("expected no cfg blocks left, got %d", len(blocks))
		}
		if _, found, _ := db.KVGet(tx, store.KeySymFQN("a.rs::Function helper")); found {
			t.Error("expected fqn index entry to be removed")
		}
	})
}

func TestKVPrefixScan(t *testing.T) {
	db := open(t)
	withTx(t, db, func(tx store.Tx) {
		db.KVPut(tx, "sym:fqn:a", "id1")
		db.KVPut(tx, "sym:fqn:b", "id2")
		db.KVPut(tx, "file:sym:c", "id3")
	})

	var got map[string]string
	withTx(t, db, func(tx store.Tx) {
		var err error
		got, err = db.KVPrefixScan(tx, "sym:fqn:")
		if err != nil {
			t.Fatalf("KVPrefixScan: %v", err)
		}
	})
	if len(got) != 2 {
		t.Fatalf("expected 2 entries under sym:fqn:, got %d", len(got))
	}
}
