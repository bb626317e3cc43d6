package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/oldnordic/magellan/internal/freshness"
	"github.com/oldnordic/magellan/internal/parserpool"
	"github.com/oldnordic/magellan/internal/reconcile"
	"github.com/oldnordic/magellan/internal/watch"
)

var watchCommand = &cli.Command{
	Name:  "watch",
	Usage: "run the baseline scan and, unless config disables watch mode, keep watching for changes until interrupted",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "once", Usage: "run the baseline scan and exit, overriding config watch mode"},
	},
	Action: runWatch,
}

func runWatch(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	validator, err := validatorFor(cfg)
	if err != nil {
		return err
	}
	s, err := openStore(c.String("backend"), cfg.DBPath)
	if err != nil {
		return err
	}
	defer s.Close()

	pool := parserpool.New()
	reconciler := reconcile.New(s, pool, cfg.Root)
	rec := freshness.NewRecorder(s, cfg.Root, cfg.DBPath)

	w, err := watch.New(watch.Config{
		Root:       cfg.Root,
		Include:    cfg.Include,
		Exclude:    cfg.Exclude,
		DebounceMs: cfg.DebounceMs,
	}, validator, reconciler)
	if err != nil {
		return userError("creating watcher: %v", err)
	}

	executionID := newExecutionID()
	w.OnFlush(func(b watch.Batch) {
		fmt.Fprintf(os.Stderr, "magellan: flushed %d path(s) in %s\n", len(b.Paths), b.Ended.Sub(b.Started))
		result := freshness.RunResultFromBatch(b)
		if logErr := rec.LogRun(context.Background(), "watch", b.Started.Unix(), b.Ended.Unix(), result); logErr != nil {
			fmt.Fprintf(os.Stderr, "magellan: failed to log execution: %v\n", logErr)
		}
	})

	ctx, cancel := notifyContext(context.Background())
	defer cancel()

	started := time.Now()
	if err := w.Start(ctx); err != nil {
		return userError("starting watcher: %v", err)
	}

	oneShot := c.Bool("once") || !cfg.WatchMode
	if oneShot {
		<-w.ScanComplete()
		w.Stop()
	} else {
		<-ctx.Done()
		w.Stop()
	}

	return emit(executionID, map[string]any{
		"root":     cfg.Root,
		"db":       cfg.DBPath,
		"one_shot": oneShot,
		"duration": time.Since(started).String(),
	}, false)
}
