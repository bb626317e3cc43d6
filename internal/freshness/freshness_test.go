package freshness

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/oldnordic/magellan/internal/parserpool"
	"github.com/oldnordic/magellan/internal/reconcile"
	"github.com/oldnordic/magellan/internal/store/fastdb"
	"github.com/oldnordic/magellan/internal/watch"
)

func newTestStore(t *testing.T) (*fastdb.DB, string) {
	t.Helper()
	root := t.TempDir()
	db, err := fastdb.Open(filepath.Join(t.TempDir(), "graph.db"))
	if err != nil {
		t.Fatalf("fastdb.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, root
}

func TestLogRunAppendsExecutionLogEntry(t *testing.T) {
	db, root := newTestStore(t)
	rec := NewRecorder(db, root, filepath.Join(root, "graph.db"))

	err := rec.LogRun(context.Background(), "magellan scan", 100, 105, RunResult{
		FilesTotal: 3, FilesOK: 2, FilesFailed: 1,
	})
	if err != nil {
		t.Fatalf("LogRun: %v", err)
	}
}

func TestLogRunRecordsError(t *testing.T) {
	db, root := newTestStore(t)
	rec := NewRecorder(db, root, filepath.Join(root, "graph.db"))

	err := rec.LogRun(context.Background(), "magellan watch", 10, 20, RunResult{
		FilesTotal: 1, FilesFailed: 1, Err: os.ErrNotExist,
	})
	if err != nil {
		t.Fatalf("LogRun: %v", err)
	}
}

func TestRunResultFromBatch(t *testing.T) {
	b := watch.Batch{
		Paths:   []string{"a.rs", "b.rs", "c.rs"},
		Errors:  map[string]error{"b.rs": os.ErrPermission},
		Started: time.Now(),
		Ended:   time.Now(),
	}
	res := RunResultFromBatch(b)
	if res.FilesTotal != 3 || res.FilesOK != 2 || res.FilesFailed != 1 {
		t.Fatalf("unexpected RunResult: %+v", res)
	}
}

func TestRunResultFromOutcomes(t *testing.T) {
	outcomes := map[string]reconcile.Outcome{
		"a.rs": {Kind: reconcile.KindReindexed},
		"b.rs": {Kind: reconcile.KindUnchanged},
	}
	errs := map[string]error{"c.rs": os.ErrNotExist}
	res := RunResultFromOutcomes(outcomes, errs)
	if res.FilesTotal != 3 || res.FilesOK != 2 || res.FilesFailed != 1 {
		t.Fatalf("unexpected RunResult: %+v", res)
	}
}

func TestStatusFlagsStaleAndFreshFiles(t *testing.T) {
	db, root := newTestStore(t)
	r := reconcile.New(db, parserpool.New(), root)

	writeFile(t, root, "fresh.rs", "fn helper() {}\n")
	writeFile(t, root, "stale.rs", "fn other() {}\n")

	ctx := context.Background()
	if _, err := r.Reconcile(ctx, 0, "fresh.rs"); err != nil {
		t.Fatalf("Reconcile fresh.rs: %v", err)
	}
	if _, err := r.Reconcile(ctx, 0, "stale.rs"); err != nil {
		t.Fatalf("Reconcile stale.rs: %v", err)
	}

	// Push stale.rs's on-disk mtime forward past the threshold without
	// reindexing, simulating a file edited after its last index run.
	future := time.Now().Add(2 * time.Hour)
	if err := os.Chtimes(filepath.Join(root, "stale.rs"), future, future); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer tx.Rollback()

	statuses, err := Status(tx, db, root, 60) // 60s threshold
	if err != nil {
		t.Fatalf("Status: %v", err)
	}

	byPath := make(map[string]FileStatus, len(statuses))
	for _, s := range statuses {
		byPath[s.Path] = s
	}
	if byPath["fresh.rs"].Stale {
		t.Fatalf("expected fresh.rs to not be stale: %+v", byPath["fresh.rs"])
	}
	if !byPath["stale.rs"].Stale {
		t.Fatalf("expected stale.rs to be stale: %+v", byPath["stale.rs"])
	}
}

func TestStatusFlagsMissingFileAsStale(t *testing.T) {
	db, root := newTestStore(t)
	r := reconcile.New(db, parserpool.New(), root)

	writeFile(t, root, "gone.rs", "fn helper() {}\n")
	ctx := context.Background()
	if _, err := r.Reconcile(ctx, 0, "gone.rs"); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if err := os.Remove(filepath.Join(root, "gone.rs")); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer tx.Rollback()

	statuses, err := Status(tx, db, root, 60)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(statuses) != 1 || !statuses[0].Stale {
		t.Fatalf("expected missing file flagged stale, got %+v", statuses)
	}
}

func writeFile(t *testing.T, root, relPath, content string) {
	t.Helper()
	abs := filepath.Join(root, relPath)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}
