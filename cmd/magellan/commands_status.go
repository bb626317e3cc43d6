package main

import (
	"context"
	"sort"
	"time"

	"github.com/urfave/cli/v2"

	magerrors "github.com/oldnordic/magellan/internal/errors"
	"github.com/oldnordic/magellan/internal/freshness"
	"github.com/oldnordic/magellan/internal/validate"
)

var statusCommand = &cli.Command{
	Name:  "status",
	Usage: "report indexed file counts and freshness (stale vs. current) against the configured staleness threshold",
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		s, err := openStore(c.String("backend"), cfg.DBPath)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := context.Background()
		tx, err := s.Begin(ctx)
		if err != nil {
			return userError("opening transaction: %v", err)
		}
		defer tx.Rollback()

		statuses, err := freshness.Status(tx, s, cfg.Root, cfg.StalenessThresholdSec)
		if err != nil {
			return userError("computing status: %v", err)
		}

		stale := 0
		for _, st := range statuses {
			if st.Stale {
				stale++
			}
		}

		return emit(newExecutionID(), map[string]any{
			"schema_version": s.SchemaVersion(),
			"root":           cfg.Root,
			"db":             cfg.DBPath,
			"files_total":    len(statuses),
			"files_stale":    stale,
			"files":          statuses,
		}, false)
	},
}

var filesCommand = &cli.Command{
	Name:  "files",
	Usage: "list indexed files, sorted by path",
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		s, err := openStore(c.String("backend"), cfg.DBPath)
		if err != nil {
			return err
		}
		defer s.Close()

		tx, err := s.Begin(context.Background())
		if err != nil {
			return userError("opening transaction: %v", err)
		}
		defer tx.Rollback()

		files, err := s.ListFiles(tx)
		if err != nil {
			return userError("listing files: %v", err)
		}
		sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

		return emit(newExecutionID(), files, false)
	},
}

var verifyCommand = &cli.Command{
	Name:  "verify",
	Usage: "run pre-run sanity checks and post-run invariant checks, reporting every violation found",
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		executionID := newExecutionID()
		started := time.Now()

		preDiags := validate.PreRun(cfg.DBPath, cfg.Root, nil)
		if len(preDiags) > 0 {
			if emitErr := emit(executionID, preDiags, false); emitErr != nil {
				return emitErr
			}
			return cli.Exit("", 1)
		}

		s, err := openStore(c.String("backend"), cfg.DBPath)
		if err != nil {
			return err
		}
		defer s.Close()

		tx, err := s.Begin(context.Background())
		if err != nil {
			return userError("opening transaction: %v", err)
		}
		defer tx.Rollback()

		diags, err := validate.PostRun(tx, s)
		if err != nil {
			return userError("running post-run checks: %v", err)
		}

		rec := freshness.NewRecorder(s, cfg.Root, cfg.DBPath)
		result := freshness.RunResult{FilesTotal: len(diags)}
		if len(diags) > 0 {
			result.Err = magerrors.NewMultiError(diagsToErrors(diags))
		}
		if logErr := rec.LogRun(context.Background(), "verify", started.Unix(), time.Now().Unix(), result); logErr != nil {
			return userError("logging execution: %v", logErr)
		}

		if emitErr := emit(executionID, diags, false); emitErr != nil {
			return emitErr
		}
		if len(diags) > 0 {
			return cli.Exit("", 1)
		}
		return nil
	},
}

var migrateCommand = &cli.Command{
	Name:  "migrate",
	Usage: "report the database's schema version and whether it matches what this build expects",
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		s, err := openStore(c.String("backend"), cfg.DBPath)
		if err != nil {
			// A schema version mismatch surfaces here as a CodeDBVersionMismatch
			// error from the backend's Open; there is exactly one schema
			// version today, so there is no automatic migration step to run —
			// report the mismatch so the operator knows a rebuild is needed.
			return userError("cannot open database: %v", err)
		}
		defer s.Close()

		return emit(newExecutionID(), map[string]any{
			"db":             cfg.DBPath,
			"schema_version": s.SchemaVersion(),
			"current":        true,
		}, false)
	},
}

func diagsToErrors(diags []magerrors.Diagnostic) []error {
	errs := make([]error, len(diags))
	for i, d := range diags {
		errs[i] = magerrors.New(d.Reason, d.Stage, nilError(d.Details)).WithFile(d.File)
	}
	return errs
}

type detailsError string

func (e detailsError) Error() string { return string(e) }

func nilError(details string) error {
	if details == "" {
		return nil
	}
	return detailsError(details)
}
