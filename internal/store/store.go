// Package store defines the Graph Store Contract (§6): the only
// persistence boundary the rest of the module depends on. Two
// backends satisfy it — internal/store/richdb (mattn/go-sqlite3, for
// SQL-introspectable storage) and internal/store/fastdb
// (go.etcd.io/bbolt, for traversal-optimized KV storage) — chosen
// because the pack carries real uses of both drivers and the spec
// explicitly expects two interchangeable backends (one rich/SQL, one
// KV/traversal). Grounded on the teacher's own layered approach:
// internal/core holds in-memory structures behind narrow interfaces
// that internal/indexing and internal/search consume without knowing
// the concrete representation; this package generalizes that same
// separation to a durable, swappable backend.
package store

import (
	"context"

	"github.com/oldnordic/magellan/internal/graphmodel"
)

// Tx is a single serialized unit of work (§6: "Transactional unit
// (single-writer): begin -> mutate nodes and edges -> commit |
// rollback; post-commit no partial state is observable").
type Tx interface {
	Commit() error
	Rollback() error
}

// Store is the abstract contract every backend implements. All
// mutating methods take a Tx obtained from Begin; read methods may be
// called either inside an open Tx (for a consistent snapshot) or with
// a nil Tx (for an implicit read-only transaction), at the backend's
// discretion.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
	Close() error

	// SchemaVersion reports the version stamped in the store's header
	// at open time, for the migration-instruction check (§6).
	SchemaVersion() string

	// Files
	PutFile(tx Tx, f graphmodel.File) error
	GetFile(tx Tx, path string) (graphmodel.File, bool, error)
	ListFiles(tx Tx) ([]graphmodel.File, error)

	// DeleteFileFacts removes, for path: every Symbol (and its DEFINES
	// edge), every Reference/Call owned by the file, every CodeChunk,
	// AstNode, CfgBlock, every KV entry keyed by path or by the file's
	// symbol_ids, and finally the File entity itself (§4.9 step 4a).
	DeleteFileFacts(tx Tx, path string) error

	// Symbols
	PutSymbols(tx Tx, symbols []graphmodel.Symbol) error
	GetSymbolByID(tx Tx, id string) (graphmodel.Symbol, bool, error)
	SymbolsInFile(tx Tx, file string) ([]graphmodel.Symbol, error)
	SymbolsByName(tx Tx, name string) ([]graphmodel.Symbol, error)
	AllSymbols(tx Tx) ([]graphmodel.Symbol, error)

	// References and Calls
	PutReferences(tx Tx, refs []graphmodel.Reference) error
	PutCalls(tx Tx, calls []graphmodel.Call) error
	ReferencesTo(tx Tx, symbolID string) ([]graphmodel.Reference, error)
	ReferencesIn(tx Tx, file string) ([]graphmodel.Reference, error)
	CallsFrom(tx Tx, callerSymbolID string) ([]graphmodel.Call, error)
	CallsTo(tx Tx, calleeSymbolID string) ([]graphmodel.Call, error)
	AllCalls(tx Tx) ([]graphmodel.Call, error)
	AllReferences(tx Tx) ([]graphmodel.Reference, error)

	// Chunks
	PutChunks(tx Tx, chunks []graphmodel.CodeChunk) error
	ChunksInFile(tx Tx, file string) ([]graphmodel.CodeChunk, error)
	ChunkBySpan(tx Tx, file string, span graphmodel.Span) (graphmodel.CodeChunk, bool, error)

	// AST / CFG
	PutAstNodes(tx Tx, nodes []graphmodel.AstNode) error
	AstForFile(tx Tx, file string) ([]graphmodel.AstNode, error)
	FindAstByKind(tx Tx, kind string) ([]graphmodel.AstNode, error)
	PutCfgBlocks(tx Tx, blocks []graphmodel.CfgBlock) error
	CfgForSymbol(tx Tx, symbolID string) ([]graphmodel.CfgBlock, error)

	// Metrics and execution log
	PutFileMetrics(tx Tx, m graphmodel.FileMetrics) error
	PutSymbolMetrics(tx Tx, m graphmodel.SymbolMetrics) error
	AppendExecutionLog(tx Tx, e graphmodel.ExecutionLogEntry) error

	// Key-value index (§3's sym:fqn:*, sym:fqn_of:*, file:sym:*)
	KVPut(tx Tx, key, value string) error
	KVGet(tx Tx, key string) (string, bool, error)
	KVPrefixScan(tx Tx, prefix string) (map[string]string, error)
	KVDelete(tx Tx, key string) error
}

// KeySymFQN, KeySymFQNOf, and KeyFileSym build the three documented KV
// index key shapes (§3 side records).
func KeySymFQN(canonicalFQN string) string { return "sym:fqn:" + canonicalFQN }
func KeySymFQNOf(symbolID string) string   { return "sym:fqn_of:" + symbolID }
func KeyFileSym(file string) string        { return "file:sym:" + file }
