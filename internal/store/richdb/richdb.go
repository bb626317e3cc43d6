// Package richdb is the SQL-introspectable Graph Store Contract
// backend (§6), built on mattn/go-sqlite3. Every entity gets its own
// table with indexed key columns for the lookups the Query Surface
// needs, plus a json column carrying the rest of the struct verbatim —
// balancing "queryable with an ordinary SQL client" against a schema
// that doesn't have to be hand-migrated every time graphmodel grows a
// field. Grounded on the teacher pack's canopy store (one table per
// extraction entity, indexed foreign keys, WAL-mode sqlite3 open
// string, explicit transactional delete-by-file).
package richdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	magerrors "github.com/oldnordic/magellan/internal/errors"
	"github.com/oldnordic/magellan/internal/graphmodel"
	"github.com/oldnordic/magellan/internal/store"
	"github.com/oldnordic/magellan/internal/version"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS meta (
  key   TEXT PRIMARY KEY,
  value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS files (
  path             TEXT PRIMARY KEY,
  content_hash     TEXT NOT NULL,
  last_indexed_at  INTEGER NOT NULL,
  last_modified_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS symbols (
  symbol_id     TEXT PRIMARY KEY,
  file          TEXT NOT NULL,
  name          TEXT NOT NULL,
  canonical_fqn TEXT NOT NULL,
  data          TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_symbols_file ON symbols(file);
CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name);
CREATE UNIQUE INDEX IF NOT EXISTS idx_symbols_fqn ON symbols(canonical_fqn);

CREATE TABLE IF NOT EXISTS references_ (
  id        INTEGER PRIMARY KEY,
  file      TEXT NOT NULL,
  target_id TEXT,
  data      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_references_file ON references_(file);
CREATE INDEX IF NOT EXISTS idx_references_target ON references_(target_id);

CREATE TABLE IF NOT EXISTS calls (
  id         INTEGER PRIMARY KEY,
  file       TEXT NOT NULL,
  caller_id  TEXT NOT NULL,
  callee_id  TEXT,
  data       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_calls_caller ON calls(caller_id);
CREATE INDEX IF NOT EXISTS idx_calls_callee ON calls(callee_id);
CREATE INDEX IF NOT EXISTS idx_calls_file ON calls(file);

CREATE TABLE IF NOT EXISTS chunks (
  file        TEXT NOT NULL,
  byte_start  INTEGER NOT NULL,
  byte_end    INTEGER NOT NULL,
  data        TEXT NOT NULL,
  PRIMARY KEY (file, byte_start, byte_end)
);

CREATE TABLE IF NOT EXISTS ast_nodes (
  id    INTEGER PRIMARY KEY,
  file  TEXT NOT NULL,
  kind  TEXT NOT NULL,
  data  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ast_file ON ast_nodes(file);
CREATE INDEX IF NOT EXISTS idx_ast_kind ON ast_nodes(kind);

CREATE TABLE IF NOT EXISTS cfg_blocks (
  owning_symbol_id TEXT NOT NULL,
  block_index      INTEGER NOT NULL,
  data             TEXT NOT NULL,
  PRIMARY KEY (owning_symbol_id, block_index)
);

CREATE TABLE IF NOT EXISTS file_metrics (
  file TEXT PRIMARY KEY,
  data TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS symbol_metrics (
  symbol_id TEXT PRIMARY KEY,
  data      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS execution_log (
  execution_id TEXT PRIMARY KEY,
  data         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS kv (
  key   TEXT PRIMARY KEY,
  value TEXT NOT NULL
);
`

const metaSchemaKey = "schema_version"

// DB is the sqlite3-backed Store implementation ("richdb").
type DB struct {
	sql    *sql.DB
	schema string
}

// Open opens or creates a sqlite3 database at path in WAL mode,
// stamping/verifying the schema-version header the same way fastdb
// does (§6: refuse to open databases of unknown or incompatible
// schema version).
func Open(path string) (*DB, error) {
	sdb, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, magerrors.New(magerrors.CodeFileUnreadable, "richdb.Open", err).WithFile(path)
	}
	if err := sdb.Ping(); err != nil {
		sdb.Close()
		return nil, magerrors.New(magerrors.CodeFileUnreadable, "richdb.Open", err).WithFile(path)
	}
	if _, err := sdb.Exec(schemaDDL); err != nil {
		sdb.Close()
		return nil, magerrors.New(magerrors.CodeFileUnreadable, "richdb.Open", fmt.Errorf("migrate: %w", err)).WithFile(path)
	}

	db := &DB{sql: sdb}
	var existing string
	row := sdb.QueryRow("SELECT value FROM meta WHERE key = ?", metaSchemaKey)
	err = row.Scan(&existing)
	switch {
	case err == sql.ErrNoRows:
		db.schema = version.SchemaVersion
		if _, err := sdb.Exec("INSERT INTO meta (key, value) VALUES (?, ?)", metaSchemaKey, version.SchemaVersion); err != nil {
			sdb.Close()
			return nil, magerrors.New(magerrors.CodeFileUnreadable, "richdb.Open", err).WithFile(path)
		}
	case err != nil:
		sdb.Close()
		return nil, magerrors.New(magerrors.CodeFileUnreadable, "richdb.Open", err).WithFile(path)
	default:
		db.schema = existing
		if db.schema != version.SchemaVersion {
			sdb.Close()
			return nil, magerrors.New(magerrors.CodeDBVersionMismatch, "richdb.Open",
				fmt.Errorf("db has %q, binary expects %q (run migrate)", db.schema, version.SchemaVersion)).WithFile(path)
		}
	}
	return db, nil
}

func (db *DB) SchemaVersion() string { return db.schema }

func (db *DB) Close() error { return db.sql.Close() }

type tx struct {
	t *sql.Tx
}

func (db *DB) Begin(ctx context.Context) (store.Tx, error) {
	t, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &tx{t: t}, nil
}

func (t *tx) Commit() error   { return t.t.Commit() }
func (t *tx) Rollback() error { return t.t.Rollback() }

func asSQLTx(t store.Tx) *sql.Tx {
	return t.(*tx).t
}

func marshal(v interface{}) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func unmarshal(s string, v interface{}) error {
	return json.Unmarshal([]byte(s), v)
}

var _ store.Store = (*DB)(nil)
