package richdb

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/oldnordic/magellan/internal/graphmodel"
	"github.com/oldnordic/magellan/internal/store"
)

// --- Files ---

func (db *DB) PutFile(t store.Tx, f graphmodel.File) error {
	_, err := asSQLTx(t).Exec(
		`INSERT INTO files (path, content_hash, last_indexed_at, last_modified_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET content_hash=excluded.content_hash,
		   last_indexed_at=excluded.last_indexed_at, last_modified_at=excluded.last_modified_at`,
		f.Path, f.ContentHash, f.LastIndexedAt, f.LastModifiedAt)
	return err
}

func (db *DB) GetFile(t store.Tx, path string) (graphmodel.File, bool, error) {
	var f graphmodel.File
	row := asSQLTx(t).QueryRow(
		`SELECT path, content_hash, last_indexed_at, last_modified_at FROM files WHERE path = ?`, path)
	err := row.Scan(&f.Path, &f.ContentHash, &f.LastIndexedAt, &f.LastModifiedAt)
	if err == sql.ErrNoRows {
		return graphmodel.File{}, false, nil
	}
	if err != nil {
		return graphmodel.File{}, false, err
	}
	return f, true, nil
}

func (db *DB) ListFiles(t store.Tx) ([]graphmodel.File, error) {
	rows, err := asSQLTx(t).Query(`SELECT path, content_hash, last_indexed_at, last_modified_at FROM files`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []graphmodel.File
	for rows.Next() {
		var f graphmodel.File
		if err := rows.Scan(&f.Path, &f.ContentHash, &f.LastIndexedAt, &f.LastModifiedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// DeleteFileFacts transactionally removes every Symbol, Reference,
// Call, CodeChunk, AstNode, CfgBlock and KV entry owned by path, and
// finally the File row itself (§4.9 step 4a). Grounded on the
// delete-in-dependency-order pattern from the pack's canopy store.
func (db *DB) DeleteFileFacts(t store.Tx, path string) error {
	sqlTx := asSQLTx(t)

	rows, err := sqlTx.Query(`SELECT symbol_id, canonical_fqn FROM symbols WHERE file = ?`, path)
	if err != nil {
		return err
	}
	var symbolIDs []string
	var fqns []string
	for rows.Next() {
		var id, fqn string
		if err := rows.Scan(&id, &fqn); err != nil {
			rows.Close()
			return err
		}
		symbolIDs = append(symbolIDs, id)
		fqns = append(fqns, fqn)
	}
	rows.Close()

	for i, id := range symbolIDs {
		if _, err := sqlTx.Exec(`DELETE FROM cfg_blocks WHERE owning_symbol_id = ?`, id); err != nil {
			return err
		}
		if _, err := sqlTx.Exec(`DELETE FROM calls WHERE caller_id = ? OR callee_id = ?`, id, id); err != nil {
			return err
		}
		if _, err := sqlTx.Exec(`DELETE FROM references_ WHERE target_id = ?`, id); err != nil {
			return err
		}
		if _, err := sqlTx.Exec(`DELETE FROM symbol_metrics WHERE symbol_id = ?`, id); err != nil {
			return err
		}
		if _, err := sqlTx.Exec(`DELETE FROM kv WHERE key = ?`, "sym:fqn:"+fqns[i]); err != nil {
			return err
		}
		if _, err := sqlTx.Exec(`DELETE FROM kv WHERE key = ?`, "sym:fqn_of:"+id); err != nil {
			return err
		}
	}

	for _, q := range []string{
		`DELETE FROM symbols WHERE file = ?`,
		`DELETE FROM references_ WHERE file = ?`,
		`DELETE FROM calls WHERE file = ?`,
		`DELETE FROM chunks WHERE file = ?`,
		`DELETE FROM ast_nodes WHERE file = ?`,
		`DELETE FROM file_metrics WHERE file = ?`,
		`DELETE FROM kv WHERE key = ?`,
	} {
		arg := path
		if q == `DELETE FROM kv WHERE key = ?` {
			arg = "file:sym:" + path
		}
		if _, err := sqlTx.Exec(q, arg); err != nil {
			return fmt.Errorf("delete file facts: %w", err)
		}
	}
	_, err = sqlTx.Exec(`DELETE FROM files WHERE path = ?`, path)
	return err
}

// --- Symbols ---

func (db *DB) PutSymbols(t store.Tx, symbols []graphmodel.Symbol) error {
	sqlTx := asSQLTx(t)
	byFileSymIDs := make(map[string][]string)
	for _, s := range symbols {
		_, err := sqlTx.Exec(
			`INSERT INTO symbols (symbol_id, file, name, canonical_fqn, data)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(symbol_id) DO UPDATE SET file=excluded.file, name=excluded.name,
			   canonical_fqn=excluded.canonical_fqn, data=excluded.data`,
			s.SymbolID, s.File, s.Name, s.CanonicalFQN, marshal(s))
		if err != nil {
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
	// file:sym:{file} (§3 side records) mirrors the symbols table's file
	// column as a KV entry, the same way sym:fqn:/sym:fqn_of: mirror
	// canonical_fqn/symbol_id above.
	for file, ids := range byFileSymIDs {
		sort.Strings(ids)
		if err := db.KVPut(t, store.KeyFileSym(file), strings.Join(ids, ",")); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) GetSymbolByID(t store.Tx, id string) (graphmodel.Symbol, bool, error) {
	var data string
	row := asSQLTx(t).QueryRow(`SELECT data FROM symbols WHERE symbol_id = ?`, id)
	if err := row.Scan(&data); err == sql.ErrNoRows {
		return graphmodel.Symbol{}, false, nil
	} else if err != nil {
		return graphmodel.Symbol{}, false, err
	}
	var s graphmodel.Symbol
	if err := unmarshal(data, &s); err != nil {
		return graphmodel.Symbol{}, false, err
	}
	return s, true, nil
}

func (db *DB) SymbolsInFile(t store.Tx, file string) ([]graphmodel.Symbol, error) {
	return db.querySymbols(t, `SELECT data FROM symbols WHERE file = ?`, file)
}

func (db *DB) SymbolsByName(t store.Tx, name string) ([]graphmodel.Symbol, error) {
	return db.querySymbols(t, `SELECT data FROM symbols WHERE name = ?`, name)
}

func (db *DB) AllSymbols(t store.Tx) ([]graphmodel.Symbol, error) {
	return db.querySymbols(t, `SELECT data FROM symbols`)
}

func (db *DB) querySymbols(t store.Tx, query string, args ...interface{}) ([]graphmodel.Symbol, error) {
	rows, err := asSQLTx(t).Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []graphmodel.Symbol
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var s graphmodel.Symbol
		if err := unmarshal(data, &s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// --- References and Calls ---

func (db *DB) PutReferences(t store.Tx, refs []graphmodel.Reference) error {
	sqlTx := asSQLTx(t)
	for i := range refs {
		targetID := sql.NullString{String: refs[i].TargetID, Valid: refs[i].TargetID != ""}
		res, err := sqlTx.Exec(`INSERT INTO references_ (file, target_id, data) VALUES (?, ?, ?)`,
			refs[i].File, targetID, marshal(refs[i]))
		if err != nil {
			return err
		}
		if refs[i].ID == 0 {
			id, err := res.LastInsertId()
			if err != nil {
				return err
			}
			refs[i].ID = uint64(id)
			if _, err := sqlTx.Exec(`UPDATE references_ SET data = ? WHERE id = ?`, marshal(refs[i]), id); err != nil {
				return err
			}
		}
	}
	return nil
}

func (db *DB) PutCalls(t store.Tx, calls []graphmodel.Call) error {
	sqlTx := asSQLTx(t)
	for i := range calls {
		calleeID := sql.NullString{String: calls[i].CalleeID, Valid: calls[i].CalleeID != ""}
		res, err := sqlTx.Exec(`INSERT INTO calls (file, caller_id, callee_id, data) VALUES (?, ?, ?, ?)`,
			calls[i].File, calls[i].CallerID, calleeID, marshal(calls[i]))
		if err != nil {
			return err
		}
		if calls[i].ID == 0 {
			id, err := res.LastInsertId()
			if err != nil {
				return err
			}
			calls[i].ID = uint64(id)
			if _, err := sqlTx.Exec(`UPDATE calls SET data = ? WHERE id = ?`, marshal(calls[i]), id); err != nil {
				return err
			}
		}
	}
	return nil
}

func (db *DB) ReferencesTo(t store.Tx, symbolID string) ([]graphmodel.Reference, error) {
	return db.queryReferences(t, `SELECT data FROM references_ WHERE target_id = ?`, symbolID)
}

func (db *DB) ReferencesIn(t store.Tx, file string) ([]graphmodel.Reference, error) {
	return db.queryReferences(t, `SELECT data FROM references_ WHERE file = ?`, file)
}

func (db *DB) AllReferences(t store.Tx) ([]graphmodel.Reference, error) {
	return db.queryReferences(t, `SELECT data FROM references_`)
}

func (db *DB) queryReferences(t store.Tx, query string, args ...interface{}) ([]graphmodel.Reference, error) {
	rows, err := asSQLTx(t).Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []graphmodel.Reference
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r graphmodel.Reference
		if err := unmarshal(data, &r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (db *DB) CallsFrom(t store.Tx, callerSymbolID string) ([]graphmodel.Call, error) {
	return db.queryCalls(t, `SELECT data FROM calls WHERE caller_id = ?`, callerSymbolID)
}

func (db *DB) CallsTo(t store.Tx, calleeSymbolID string) ([]graphmodel.Call, error) {
	return db.queryCalls(t, `SELECT data FROM calls WHERE callee_id = ?`, calleeSymbolID)
}

func (db *DB) AllCalls(t store.Tx) ([]graphmodel.Call, error) {
	return db.queryCalls(t, `SELECT data FROM calls`)
}

func (db *DB) queryCalls(t store.Tx, query string, args ...interface{}) ([]graphmodel.Call, error) {
	rows, err := asSQLTx(t).Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []graphmodel.Call
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var c graphmodel.Call
		if err := unmarshal(data, &c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// --- Chunks ---

func (db *DB) PutChunks(t store.Tx, chunks []graphmodel.CodeChunk) error {
	sqlTx := asSQLTx(t)
	for _, c := range chunks {
		_, err := sqlTx.Exec(
			`INSERT INTO chunks (file, byte_start, byte_end, data) VALUES (?, ?, ?, ?)
			 ON CONFLICT(file, byte_start, byte_end) DO UPDATE SET data=excluded.data`,
			c.File, c.Span.ByteStart, c.Span.ByteEnd, marshal(c))
		if err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) ChunksInFile(t store.Tx, file string) ([]graphmodel.CodeChunk, error) {
	rows, err := asSQLTx(t).Query(`SELECT data FROM chunks WHERE file = ?`, file)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []graphmodel.CodeChunk
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var c graphmodel.CodeChunk
		if err := unmarshal(data, &c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (db *DB) ChunkBySpan(t store.Tx, file string, span graphmodel.Span) (graphmodel.CodeChunk, bool, error) {
	var data string
	row := asSQLTx(t).QueryRow(`SELECT data FROM chunks WHERE file = ? AND byte_start = ? AND byte_end = ?`,
		file, span.ByteStart, span.ByteEnd)
	if err := row.Scan(&data); err == sql.ErrNoRows {
		return graphmodel.CodeChunk{}, false, nil
	} else if err != nil {
		return graphmodel.CodeChunk{}, false, err
	}
	var c graphmodel.CodeChunk
	if err := unmarshal(data, &c); err != nil {
		return graphmodel.CodeChunk{}, false, err
	}
	return c, true, nil
}

// --- AST / CFG ---

func (db *DB) PutAstNodes(t store.Tx, nodes []graphmodel.AstNode) error {
	sqlTx := asSQLTx(t)
	for i := range nodes {
		res, err := sqlTx.Exec(`INSERT INTO ast_nodes (file, kind, data) VALUES (?, ?, ?)`,
			nodes[i].File, nodes[i].Kind, marshal(nodes[i]))
		if err != nil {
			return err
		}
		if nodes[i].ID == 0 {
			id, err := res.LastInsertId()
			if err != nil {
				return err
			}
			nodes[i].ID = uint64(id)
			if _, err := sqlTx.Exec(`UPDATE ast_nodes SET data = ? WHERE id = ?`, marshal(nodes[i]), id); err != nil {
				return err
			}
		}
	}
	return nil
}

func (db *DB) AstForFile(t store.Tx, file string) ([]graphmodel.AstNode, error) {
	return db.queryAst(t, `SELECT data FROM ast_nodes WHERE file = ?`, file)
}

func (db *DB) FindAstByKind(t store.Tx, kind string) ([]graphmodel.AstNode, error) {
	return db.queryAst(t, `SELECT data FROM ast_nodes WHERE kind = ?`, kind)
}

func (db *DB) queryAst(t store.Tx, query string, args ...interface{}) ([]graphmodel.AstNode, error) {
	rows, err := asSQLTx(t).Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []graphmodel.AstNode
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var n graphmodel.AstNode
		if err := unmarshal(data, &n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (db *DB) PutCfgBlocks(t store.Tx, blocks []graphmodel.CfgBlock) error {
	sqlTx := asSQLTx(t)
	for _, b := range blocks {
		_, err := sqlTx.Exec(
			`INSERT INTO cfg_blocks (owning_symbol_id, block_index, data) VALUES (?, ?, ?)
			 ON CONFLICT(owning_symbol_id, block_index) DO UPDATE SET data=excluded.data`,
			b.OwningSymbolID, b.BlockIndex, marshal(b))
		if err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) CfgForSymbol(t store.Tx, symbolID string) ([]graphmodel.CfgBlock, error) {
	rows, err := asSQLTx(t).Query(
		`SELECT data FROM cfg_blocks WHERE owning_symbol_id = ? ORDER BY block_index`, symbolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []graphmodel.CfgBlock
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var b graphmodel.CfgBlock
		if err := unmarshal(data, &b); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// --- Metrics and execution log ---

func (db *DB) PutFileMetrics(t store.Tx, m graphmodel.FileMetrics) error {
	_, err := asSQLTx(t).Exec(
		`INSERT INTO file_metrics (file, data) VALUES (?, ?)
		 ON CONFLICT(file) DO UPDATE SET data=excluded.data`, m.File, marshal(m))
	return err
}

func (db *DB) PutSymbolMetrics(t store.Tx, m graphmodel.SymbolMetrics) error {
	_, err := asSQLTx(t).Exec(
		`INSERT INTO symbol_metrics (symbol_id, data) VALUES (?, ?)
		 ON CONFLICT(symbol_id) DO UPDATE SET data=excluded.data`, m.SymbolID, marshal(m))
	return err
}

func (db *DB) AppendExecutionLog(t store.Tx, e graphmodel.ExecutionLogEntry) error {
	_, err := asSQLTx(t).Exec(
		`INSERT INTO execution_log (execution_id, data) VALUES (?, ?)
		 ON CONFLICT(execution_id) DO UPDATE SET data=excluded.data`, e.ExecutionID, marshal(e))
	return err
}

// --- KV index ---

func (db *DB) KVPut(t store.Tx, key, value string) error {
	_, err := asSQLTx(t).Exec(
		`INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		key, value)
	return err
}

func (db *DB) KVGet(t store.Tx, key string) (string, bool, error) {
	var value string
	row := asSQLTx(t).QueryRow(`SELECT value FROM kv WHERE key = ?`, key)
	if err := row.Scan(&value); err == sql.ErrNoRows {
		return "", false, nil
	} else if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (db *DB) KVPrefixScan(t store.Tx, prefix string) (map[string]string, error) {
	rows, err := asSQLTx(t).Query(`SELECT key, value FROM kv WHERE key GLOB ?`, prefix+"*")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (db *DB) KVDelete(t store.Tx, key string) error {
	_, err := asSQLTx(t).Exec(`DELETE FROM kv WHERE key = ?`, key)
	return err
}
