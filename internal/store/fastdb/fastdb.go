// Package fastdb is the traversal-optimized Graph Store Contract
// backend (§6), built on go.etcd.io/bbolt: an ordered, embedded,
// single-writer B+tree key-value store. Every entity is JSON-encoded
// into its own top-level bucket, with secondary buckets holding sorted
// string-slice indices (file->symbol_ids, name->symbol_ids, and so
// on) for the lookups the Query Surface needs. Grounded on the
// teacher's own layered storage style (internal/core's in-memory
// sync.Map-backed stores, each exposing narrow get/put/scan methods to
// the rest of the codebase) translated onto a durable backend.
package fastdb

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	bolt "go.etcd.io/bbolt"

	magerrors "github.com/oldnordic/magellan/internal/errors"
	"github.com/oldnordic/magellan/internal/graphmodel"
	"github.com/oldnordic/magellan/internal/store"
	"github.com/oldnordic/magellan/internal/version"
)

var topBuckets = []string{
	"meta", "files", "symbols", "symbols_by_file", "symbols_by_name",
	"references", "references_by_file", "references_by_target",
	"calls", "calls_by_caller", "calls_by_callee",
	"chunks", "chunks_by_file",
	"ast", "ast_by_file", "ast_by_kind",
	"cfg_by_symbol",
	"file_metrics", "symbol_metrics", "execution_log",
	"kv",
}

const metaSchemaKey = "schema_version"

// DB is the bbolt-backed Store implementation ("fastdb").
type DB struct {
	bolt   *bolt.DB
	schema string
}

// Open opens or creates a bbolt database at path, stamping/verifying
// the schema-version header (§6: "header/magic-byte discriminator for
// format detection at open time; refuse to open databases of unknown
// or incompatible schema version").
func Open(path string) (*DB, error) {
	bdb, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, magerrors.New(magerrors.CodeFileUnreadable, "fastdb.Open", err).WithFile(path)
	}

	db := &DB{bolt: bdb}
	err = bdb.Update(func(tx *bolt.Tx) error {
		for _, name := range topBuckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		meta := tx.Bucket([]byte("meta"))
		existing := meta.Get([]byte(metaSchemaKey))
		if existing == nil {
			db.schema = version.SchemaVersion
			return meta.Put([]byte(metaSchemaKey), []byte(version.SchemaVersion))
		}
		db.schema = string(existing)
		if db.schema != version.SchemaVersion {
			return fmt.Errorf("fastdb: schema version mismatch: db has %q, binary expects %q (run migrate)", db.schema, version.SchemaVersion)
		}
		return nil
	})
	if err != nil {
		bdb.Close()
		return nil, magerrors.New(magerrors.CodeDBVersionMismatch, "fastdb.Open", err).WithFile(path)
	}
	return db, nil
}

func (db *DB) SchemaVersion() string { return db.schema }

func (db *DB) Close() error { return db.bolt.Close() }

// tx adapts a *bolt.Tx to the store.Tx interface. bbolt transactions
// are created eagerly (begin/commit/rollback), matching the contract.
type tx struct {
	bt *bolt.Tx
}

func (db *DB) Begin(ctx context.Context) (store.Tx, error) {
	bt, err := db.bolt.Begin(true)
	if err != nil {
		return nil, err
	}
	return &tx{bt: bt}, nil
}

func (t *tx) Commit() error   { return t.bt.Commit() }
func (t *tx) Rollback() error { return t.bt.Rollback() }

func asBoltTx(t store.Tx) *bolt.Tx {
	return t.(*tx).bt
}

func (db *DB) bucket(t store.Tx, name string) *bolt.Bucket {
	return asBoltTx(t).Bucket([]byte(name))
}

func encode(v interface{}) []byte {
	b, _ := json.Marshal(v)
	return b
}

func decode(b []byte, v interface{}) bool {
	if b == nil {
		return false
	}
	return json.Unmarshal(b, v) == nil
}

// stringSet is the JSON shape of every secondary index value: a sorted,
// deduplicated list of string keys (symbol_ids, reference ids encoded
// as decimal strings, and so on).
type stringSet []string

func addToIndex(b *bolt.Bucket, key, value string) error {
	var set stringSet
	decode(b.Get([]byte(key)), &set)
	for _, v := range set {
		if v == value {
			return nil
		}
	}
	set = append(set, value)
	sort.Strings(set)
	return b.Put([]byte(key), encode(set))
}

func readIndex(b *bolt.Bucket, key string) []string {
	var set stringSet
	decode(b.Get([]byte(key)), &set)
	return set
}

func deleteFromIndex(b *bolt.Bucket, key, value string) error {
	var set stringSet
	decode(b.Get([]byte(key)), &set)
	out := set[:0]
	for _, v := range set {
		if v != value {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return b.Delete([]byte(key))
	}
	return b.Put([]byte(key), encode(out))
}

func itoa(id uint64) string { return fmt.Sprintf("%020d", id) }

func nextID(b *bolt.Bucket) uint64 {
	id, _ := b.NextSequence()
	return id
}

// --- Files ---

func (db *DB) PutFile(t store.Tx, f graphmodel.File) error {
	return db.bucket(t, "files").Put([]byte(f.Path), encode(f))
}

func (db *DB) GetFile(t store.Tx, path string) (graphmodel.File, bool, error) {
	var f graphmodel.File
	ok := decode(db.bucket(t, "files").Get([]byte(path)), &f)
	return f, ok, nil
}

func (db *DB) ListFiles(t store.Tx) ([]graphmodel.File, error) {
	var out []graphmodel.File
	c := db.bucket(t, "files").Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		var f graphmodel.File
		if decode(v, &f) {
			out = append(out, f)
		}
	}
	return out, nil
}

// DeleteFileFacts removes every Symbol, Reference, Call, CodeChunk,
// AstNode, CfgBlock and KV entry owned by path, and finally the File
// entity itself (§4.9 step 4a).
func (db *DB) DeleteFileFacts(t store.Tx, path string) error {
	symbols, err := db.SymbolsInFile(t, path)
	if err != nil {
		return err
	}
	symbolsBucket := db.bucket(t, "symbols")
	byName := db.bucket(t, "symbols_by_name")
	for _, s := range symbols {
		if err := symbolsBucket.Delete([]byte(s.SymbolID)); err != nil {
			return err
		}
		if err := deleteFromIndex(byName, s.Name, s.SymbolID); err != nil {
			return err
		}
		if err := db.KVDelete(t, store.KeySymFQN(s.CanonicalFQN)); err != nil {
			return err
		}
		if err := db.KVDelete(t, store.KeySymFQNOf(s.SymbolID)); err != nil {
			return err
		}
	}
	if err := db.bucket(t, "symbols_by_file").Delete([]byte(path)); err != nil {
		return err
	}

	if err := db.deleteReferencesIn(t, path); err != nil {
		return err
	}
	if err := db.deleteCallsIn(t, path); err != nil {
		return err
	}
	if err := db.deleteChunksIn(t, path); err != nil {
		return err
	}
	if err := db.deleteAstIn(t, path); err != nil {
		return err
	}
	for _, s := range symbols {
		if err := db.bucket(t, "cfg_by_symbol").Delete([]byte(s.SymbolID)); err != nil {
			return err
		}
	}
	if err := db.bucket(t, "file_metrics").Delete([]byte(path)); err != nil {
		return err
	}
	if err := db.KVDelete(t, store.KeyFileSym(path)); err != nil {
		return err
	}
	return db.bucket(t, "files").Delete([]byte(path))
}

// --- Symbols ---

func (db *DB) PutSymbols(t store.Tx, symbols []graphmodel.Symbol) error {
	symbolsBucket := db.bucket(t, "symbols")
	byFile := db.bucket(t, "symbols_by_file")
	byName := db.bucket(t, "symbols_by_name")
	byFileSymIDs := make(map[string][]string)
	for _, s := range symbols {
		if err := symbolsBucket.Put([]byte(s.SymbolID), encode(s)); err != nil {
			return err
		}
		if err := addToIndex(byFile, s.File, s.SymbolID); err != nil {
			return err
		}
		if err := addToIndex(byName, s.Name, s.SymbolID); err != nil {
			return err
		}
		if err := db.KVPut(t, store.KeySymFQN(s.CanonicalFQN), s.SymbolID); err != nil {
			return err
		}
		if err := db.KVPut(t, store.KeySymFQNOf(s.SymbolID), s.CanonicalFQN); err != nil {
			return err
		}
		byFileSymIDs[s.File] = append(byFileSymIDs[s.File], s.SymbolID)
	}
	// file:sym:{file} (§3 side records) mirrors the symbols_by_file bucket
	// as a KV entry so a plain KVGet/KVPrefixScan consumer can recover a
	// file's symbol set without going through the bucket API.
	for file, ids := range byFileSymIDs {
		sort.Strings(ids)
		if err := db.KVPut(t, store.KeyFileSym(file), strings.Join(ids, ",")); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) GetSymbolByID(t store.Tx, id string) (graphmodel.Symbol, bool, error) {
	var s graphmodel.Symbol
	ok := decode(db.bucket(t, "symbols").Get([]byte(id)), &s)
	return s, ok, nil
}

func (db *DB) SymbolsInFile(t store.Tx, file string) ([]graphmodel.Symbol, error) {
	ids := readIndex(db.bucket(t, "symbols_by_file"), file)
	return db.resolveSymbols(t, ids), nil
}

func (db *DB) SymbolsByName(t store.Tx, name string) ([]graphmodel.Symbol, error) {
	ids := readIndex(db.bucket(t, "symbols_by_name"), name)
	return db.resolveSymbols(t, ids), nil
}

func (db *DB) AllSymbols(t store.Tx) ([]graphmodel.Symbol, error) {
	var out []graphmodel.Symbol
	c := db.bucket(t, "symbols").Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		var s graphmodel.Symbol
		if decode(v, &s) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (db *DB) resolveSymbols(t store.Tx, ids []string) []graphmodel.Symbol {
	b := db.bucket(t, "symbols")
	out := make([]graphmodel.Symbol, 0, len(ids))
	for _, id := range ids {
		var s graphmodel.Symbol
		if decode(b.Get([]byte(id)), &s) {
			out = append(out, s)
		}
	}
	return out
}

// --- References and Calls ---

func (db *DB) PutReferences(t store.Tx, refs []graphmodel.Reference) error {
	refsBucket := db.bucket(t, "references")
	byFile := db.bucket(t, "references_by_file")
	byTarget := db.bucket(t, "references_by_target")
	for i := range refs {
		if refs[i].ID == 0 {
			refs[i].ID = nextID(refsBucket)
		}
		key := itoa(refs[i].ID)
		if err := refsBucket.Put([]byte(key), encode(refs[i])); err != nil {
			return err
		}
		if err := addToIndex(byFile, refs[i].File, key); err != nil {
			return err
		}
		if refs[i].TargetID != "" {
			if err := addToIndex(byTarget, refs[i].TargetID, key); err != nil {
				return err
			}
		}
	}
	return nil
}

func (db *DB) PutCalls(t store.Tx, calls []graphmodel.Call) error {
	callsBucket := db.bucket(t, "calls")
	byCaller := db.bucket(t, "calls_by_caller")
	byCallee := db.bucket(t, "calls_by_callee")
	for i := range calls {
		if calls[i].ID == 0 {
			calls[i].ID = nextID(callsBucket)
		}
		key := itoa(calls[i].ID)
		if err := callsBucket.Put([]byte(key), encode(calls[i])); err != nil {
			return err
		}
		if err := addToIndex(byCaller, calls[i].CallerID, key); err != nil {
			return err
		}
		if calls[i].CalleeID != "" {
			if err := addToIndex(byCallee, calls[i].CalleeID, key); err != nil {
				return err
			}
		}
	}
	return nil
}

func (db *DB) ReferencesTo(t store.Tx, symbolID string) ([]graphmodel.Reference, error) {
	keys := readIndex(db.bucket(t, "references_by_target"), symbolID)
	return db.resolveReferences(t, keys), nil
}

func (db *DB) ReferencesIn(t store.Tx, file string) ([]graphmodel.Reference, error) {
	keys := readIndex(db.bucket(t, "references_by_file"), file)
	return db.resolveReferences(t, keys), nil
}

func (db *DB) CallsFrom(t store.Tx, callerSymbolID string) ([]graphmodel.Call, error) {
	keys := readIndex(db.bucket(t, "calls_by_caller"), callerSymbolID)
	return db.resolveCalls(t, keys), nil
}

func (db *DB) CallsTo(t store.Tx, calleeSymbolID string) ([]graphmodel.Call, error) {
	keys := readIndex(db.bucket(t, "calls_by_callee"), calleeSymbolID)
	return db.resolveCalls(t, keys), nil
}

func (db *DB) AllCalls(t store.Tx) ([]graphmodel.Call, error) {
	var out []graphmodel.Call
	c := db.bucket(t, "calls").Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		var call graphmodel.Call
		if decode(v, &call) {
			out = append(out, call)
		}
	}
	return out, nil
}

func (db *DB) AllReferences(t store.Tx) ([]graphmodel.Reference, error) {
	var out []graphmodel.Reference
	c := db.bucket(t, "references").Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		var ref graphmodel.Reference
		if decode(v, &ref) {
			out = append(out, ref)
		}
	}
	return out, nil
}

func (db *DB) resolveReferences(t store.Tx, keys []string) []graphmodel.Reference {
	b := db.bucket(t, "references")
	out := make([]graphmodel.Reference, 0, len(keys))
	for _, k := range keys {
		var ref graphmodel.Reference
		if decode(b.Get([]byte(k)), &ref) {
			out = append(out, ref)
		}
	}
	return out
}

func (db *DB) resolveCalls(t store.Tx, keys []string) []graphmodel.Call {
	b := db.bucket(t, "calls")
	out := make([]graphmodel.Call, 0, len(keys))
	for _, k := range keys {
		var call graphmodel.Call
		if decode(b.Get([]byte(k)), &call) {
			out = append(out, call)
		}
	}
	return out
}

func (db *DB) deleteReferencesIn(t store.Tx, file string) error {
	refsBucket := db.bucket(t, "references")
	byFile := db.bucket(t, "references_by_file")
	byTarget := db.bucket(t, "references_by_target")
	keys := readIndex(byFile, file)
	for _, k := range keys {
		var ref graphmodel.Reference
		if decode(refsBucket.Get([]byte(k)), &ref) && ref.TargetID != "" {
			if err := deleteFromIndex(byTarget, ref.TargetID, k); err != nil {
				return err
			}
		}
		if err := refsBucket.Delete([]byte(k)); err != nil {
			return err
		}
	}
	return byFile.Delete([]byte(file))
}

func (db *DB) deleteCallsIn(t store.Tx, file string) error {
	callsBucket := db.bucket(t, "calls")
	byCaller := db.bucket(t, "calls_by_caller")
	byCallee := db.bucket(t, "calls_by_callee")

	// Calls have no by-file index (callers/callees are keyed by symbol),
	// so a full scan is needed to find calls owned by file.
	var toDelete []string
	c := callsBucket.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		var call graphmodel.Call
		if decode(v, &call) && call.File == file {
			toDelete = append(toDelete, string(k))
			if err := deleteFromIndex(byCaller, call.CallerID, string(k)); err != nil {
				return err
			}
			if call.CalleeID != "" {
				if err := deleteFromIndex(byCallee, call.CalleeID, string(k)); err != nil {
					return err
				}
			}
		}
	}
	for _, k := range toDelete {
		if err := callsBucket.Delete([]byte(k)); err != nil {
			return err
		}
	}
	return nil
}

// --- Chunks ---

func (db *DB) PutChunks(t store.Tx, chunks []graphmodel.CodeChunk) error {
	chunksBucket := db.bucket(t, "chunks")
	byFile := db.bucket(t, "chunks_by_file")
	for _, c := range chunks {
		key := chunkKey(c.File, c.Span)
		if err := chunksBucket.Put([]byte(key), encode(c)); err != nil {
			return err
		}
		if err := addToIndex(byFile, c.File, key); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) ChunksInFile(t store.Tx, file string) ([]graphmodel.CodeChunk, error) {
	keys := readIndex(db.bucket(t, "chunks_by_file"), file)
	b := db.bucket(t, "chunks")
	out := make([]graphmodel.CodeChunk, 0, len(keys))
	for _, k := range keys {
		var c graphmodel.CodeChunk
		if decode(b.Get([]byte(k)), &c) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (db *DB) ChunkBySpan(t store.Tx, file string, span graphmodel.Span) (graphmodel.CodeChunk, bool, error) {
	var c graphmodel.CodeChunk
	ok := decode(db.bucket(t, "chunks").Get([]byte(chunkKey(file, span))), &c)
	return c, ok, nil
}

func (db *DB) deleteChunksIn(t store.Tx, file string) error {
	chunksBucket := db.bucket(t, "chunks")
	byFile := db.bucket(t, "chunks_by_file")
	keys := readIndex(byFile, file)
	for _, k := range keys {
		if err := chunksBucket.Delete([]byte(k)); err != nil {
			return err
		}
	}
	return byFile.Delete([]byte(file))
}

func chunkKey(file string, span graphmodel.Span) string {
	return fmt.Sprintf("%s\x00%012d\x00%012d", file, span.ByteStart, span.ByteEnd)
}

// --- AST / CFG ---

func (db *DB) PutAstNodes(t store.Tx, nodes []graphmodel.AstNode) error {
	astBucket := db.bucket(t, "ast")
	byFile := db.bucket(t, "ast_by_file")
	byKind := db.bucket(t, "ast_by_kind")
	for i := range nodes {
		if nodes[i].ID == 0 {
			nodes[i].ID = nextID(astBucket)
		}
		key := itoa(nodes[i].ID)
		if err := astBucket.Put([]byte(key), encode(nodes[i])); err != nil {
			return err
		}
		if err := addToIndex(byFile, nodes[i].File, key); err != nil {
			return err
		}
		if err := addToIndex(byKind, nodes[i].Kind, key); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) AstForFile(t store.Tx, file string) ([]graphmodel.AstNode, error) {
	keys := readIndex(db.bucket(t, "ast_by_file"), file)
	b := db.bucket(t, "ast")
	out := make([]graphmodel.AstNode, 0, len(keys))
	for _, k := range keys {
		var n graphmodel.AstNode
		if decode(b.Get([]byte(k)), &n) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (db *DB) FindAstByKind(t store.Tx, kind string) ([]graphmodel.AstNode, error) {
	keys := readIndex(db.bucket(t, "ast_by_kind"), kind)
	b := db.bucket(t, "ast")
	out := make([]graphmodel.AstNode, 0, len(keys))
	for _, k := range keys {
		var n graphmodel.AstNode
		if decode(b.Get([]byte(k)), &n) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (db *DB) deleteAstIn(t store.Tx, file string) error {
	astBucket := db.bucket(t, "ast")
	byFile := db.bucket(t, "ast_by_file")
	byKind := db.bucket(t, "ast_by_kind")
	keys := readIndex(byFile, file)
	for _, k := range keys {
		var n graphmodel.AstNode
		if decode(astBucket.Get([]byte(k)), &n) {
			if err := deleteFromIndex(byKind, n.Kind, k); err != nil {
				return err
			}
		}
		if err := astBucket.Delete([]byte(k)); err != nil {
			return err
		}
	}
	return byFile.Delete([]byte(file))
}

func (db *DB) PutCfgBlocks(t store.Tx, blocks []graphmodel.CfgBlock) error {
	byBlock := map[string][]graphmodel.CfgBlock{}
	for _, b := range blocks {
		byBlock[b.OwningSymbolID] = append(byBlock[b.OwningSymbolID], b)
	}
	cfgBucket := db.bucket(t, "cfg_by_symbol")
	for symbolID, bs := range byBlock {
		var existing []graphmodel.CfgBlock
		decode(cfgBucket.Get([]byte(symbolID)), &existing)
		existing = append(existing, bs...)
		if err := cfgBucket.Put([]byte(symbolID), encode(existing)); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) CfgForSymbol(t store.Tx, symbolID string) ([]graphmodel.CfgBlock, error) {
	var blocks []graphmodel.CfgBlock
	decode(db.bucket(t, "cfg_by_symbol").Get([]byte(symbolID)), &blocks)
	return blocks, nil
}

// --- Metrics and execution log ---

func (db *DB) PutFileMetrics(t store.Tx, m graphmodel.FileMetrics) error {
	return db.bucket(t, "file_metrics").Put([]byte(m.File), encode(m))
}

func (db *DB) PutSymbolMetrics(t store.Tx, m graphmodel.SymbolMetrics) error {
	return db.bucket(t, "symbol_metrics").Put([]byte(m.SymbolID), encode(m))
}

func (db *DB) AppendExecutionLog(t store.Tx, e graphmodel.ExecutionLogEntry) error {
	b := db.bucket(t, "execution_log")
	key := e.ExecutionID
	if key == "" {
		key = itoa(nextID(b))
	}
	return b.Put([]byte(key), encode(e))
}

// --- KV index ---

func (db *DB) KVPut(t store.Tx, key, value string) error {
	return db.bucket(t, "kv").Put([]byte(key), []byte(value))
}

func (db *DB) KVGet(t store.Tx, key string) (string, bool, error) {
	v := db.bucket(t, "kv").Get([]byte(key))
	if v == nil {
		return "", false, nil
	}
	return string(v), true, nil
}

func (db *DB) KVPrefixScan(t store.Tx, prefix string) (map[string]string, error) {
	out := map[string]string{}
	c := db.bucket(t, "kv").Cursor()
	p := []byte(prefix)
	for k, v := c.Seek(p); k != nil && hasPrefix(k, p); k, v = c.Next() {
		out[string(k)] = string(v)
	}
	return out, nil
}

func (db *DB) KVDelete(t store.Tx, key string) error {
	return db.bucket(t, "kv").Delete([]byte(key))
}

func hasPrefix(k, prefix []byte) bool {
	if len(k) < len(prefix) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

var _ store.Store = (*DB)(nil)
