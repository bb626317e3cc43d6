// Package freshness implements the Freshness & Execution Log
// supplement described in SPEC_FULL.md: each watch batch flush and each
// verify run of the CLI is recorded as an ExecutionLogEntry, and a
// read-only staleness check
// flags files whose last_indexed_at has fallen behind their current
// on-disk mtime by more than a configured threshold.
//
// Grounded on the teacher's habit of tracking run statistics
// (internal/indexing/watcher.go's WatchStats, accumulated under a
// mutex and read back via a GetStats-style accessor) generalized from
// an in-memory counter struct to a durable, store-backed log row per
// run, since the execution log is itself a first-class entity (§3
// Side records) rather than a process-lifetime-only statistic.
package freshness

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/oldnordic/magellan/internal/graphmodel"
	"github.com/oldnordic/magellan/internal/reconcile"
	"github.com/oldnordic/magellan/internal/store"
	"github.com/oldnordic/magellan/internal/watch"
)

// Recorder appends one ExecutionLogEntry per run. Root and DB are
// recorded verbatim on every entry.
type Recorder struct {
	Store store.Store
	Root  string
	DB    string
}

// NewRecorder builds a Recorder bound to a workspace root and db path,
// the two fields every ExecutionLogEntry carries regardless of run kind.
func NewRecorder(s store.Store, root, db string) *Recorder {
	return &Recorder{Store: s, Root: root, DB: db}
}

// RunResult is the generic shape every run kind (scan, watch flush,
// single reconcile) reduces to before being logged.
type RunResult struct {
	FilesTotal  int
	FilesOK     int
	FilesFailed int
	Err         error
}

// newExecutionID mints a random execution id. Grounded on the
// teacher's pack-wide use of google/uuid for opaque run/request
// identifiers (internal/mcp, internal/server use the same library for
// request IDs).
func newExecutionID() string {
	return uuid.NewString()
}

// LogRun appends one ExecutionLogEntry covering [startedAt, endedAt)
// for the given args string (the CLI invocation that produced result).
func (r *Recorder) LogRun(ctx context.Context, args string, startedAt, endedAt int64, result RunResult) error {
	entry := graphmodel.ExecutionLogEntry{
		ExecutionID: newExecutionID(),
		Args:        args,
		Root:        r.Root,
		DB:          r.DB,
		StartedAt:   startedAt,
		EndedAt:     endedAt,
		FilesTotal:  result.FilesTotal,
		FilesOK:     result.FilesOK,
		FilesFailed: result.FilesFailed,
	}
	if result.Err != nil {
		entry.Error = result.Err.Error()
	}

	tx, err := r.Store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("freshness: begin tx for execution log: %w", err)
	}
	if err := r.Store.AppendExecutionLog(tx, entry); err != nil {
		tx.Rollback()
		return fmt.Errorf("freshness: append execution log: %w", err)
	}
	return tx.Commit()
}

// RunResultFromBatch reduces a watch.Batch (one debounced flush cycle)
// to a RunResult, counting deleted/unchanged/reindexed/skipped outcomes
// as "ok" and any per-path error as a failure.
func RunResultFromBatch(b watch.Batch) RunResult {
	res := RunResult{FilesTotal: len(b.Paths)}
	for _, p := range b.Paths {
		if _, failed := b.Errors[p]; failed {
			res.FilesFailed++
			continue
		}
		res.FilesOK++
	}
	return res
}

// RunResultFromOutcomes reduces a single reconcile invocation's
// per-path outcomes (as produced by a full workspace scan) to a
// RunResult.
func RunResultFromOutcomes(outcomes map[string]reconcile.Outcome, errs map[string]error) RunResult {
	res := RunResult{FilesTotal: len(outcomes) + len(errs)}
	res.FilesOK = len(outcomes)
	res.FilesFailed = len(errs)
	return res
}

// FileStatus reports one file's indexed state relative to its current
// on-disk mtime.
type FileStatus struct {
	Path          string
	LastIndexedAt int64
	CurrentMtime  int64
	Stale         bool
}

// Status evaluates every file the store has a record for against its
// current on-disk mtime and thresholdSec, the configured staleness
// threshold (Config.StalenessThresholdSec). A file that no longer
// exists on disk is reported stale with CurrentMtime 0: the File
// Reconciler will delete its facts on the next pass, but until then
// it is definitionally not fresh.
func Status(tx store.Tx, s store.Store, root string, thresholdSec int64) ([]FileStatus, error) {
	files, err := s.ListFiles(tx)
	if err != nil {
		return nil, fmt.Errorf("freshness: list files: %w", err)
	}

	out := make([]FileStatus, 0, len(files))
	for _, f := range files {
		st := FileStatus{Path: f.Path, LastIndexedAt: f.LastIndexedAt}

		info, err := os.Stat(root + string(os.PathSeparator) + f.Path)
		if err != nil {
			st.Stale = true
			out = append(out, st)
			continue
		}
		st.CurrentMtime = info.ModTime().Unix()
		st.Stale = st.CurrentMtime > f.LastIndexedAt+thresholdSec
		out = append(out, st)
	}

	sortByPath(out)
	return out, nil
}

func sortByPath(st []FileStatus) {
	for i := 1; i < len(st); i++ {
		for j := i; j > 0 && st[j].Path < st[j-1].Path; j-- {
			st[j], st[j-1] = st[j-1], st[j]
		}
	}
}
