package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/sourcevault/ragvault/internal/interfaces"
	"github.com/sourcevault/ragvault/internal/models"
)

// runIngest drives one ingest of the configured repository end to end. If
// pipeline.schedule names a cron expression, it then keeps running,
// re-ingesting on that schedule until the process is signaled, per the
// supplemented scheduled-re-sync behavior.
func (a *app) runIngest(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	force := fs.Bool("force", a.cfg.Pipeline.ForceReprocess, "reprocess every file, ignoring stored fingerprints")
	skipSync := fs.Bool("skip-sync", false, "accepted but does not skip the sync: Materialize still runs, as a no-op fast-forward on an already-current tree")
	limit := fs.Int("limit", 0, "accepted but ignored: the number of inserted files is not capped")
	if err := fs.Parse(args); err != nil {
		return err
	}
	_ = limit // the orchestrator does not cap by count; the value is not used.

	if *skipSync {
		a.logger.Debug().Msg("skip-sync requested; orchestrator will still call Materialize, which is a no-op fast-forward on an already-current tree")
	}

	if err := a.ingestOnce(ctx, *force); err != nil {
		return err
	}

	if a.cfg.Pipeline.Schedule == "" {
		return nil
	}

	return a.runScheduled(ctx, *force)
}

func (a *app) ingestOnce(ctx context.Context, force bool) error {
	spec := models.IngestSpec{
		URL:       a.cfg.Repository.SourceURL,
		Reference: a.cfg.Repository.Branch,
		Force:     force,
	}

	requestID := uuid.NewString()
	sink := interfaces.ProgressSinkFunc(func(e models.ProgressEvent) {
		a.logger.Info().
			Str("request_id", e.RequestID).
			Str("state", string(e.State)).
			Int("processed", e.Processed).
			Int("inserted", e.Inserted).
			Int("skipped", e.Skipped).
			Msg("ingest progress")
	})

	report, err := a.orch.Ingest(ctx, requestID, spec, a.builderFor, sink)
	if err != nil {
		return err
	}

	if uerr := a.registry.Upsert(models.RegistryEntry{
		Identifier:     spec.URL,
		Reference:      spec.Reference,
		ResolvedCommit: report.Commit,
		FileCount:      report.FilesInserted,
	}); uerr != nil {
		a.logger.Error().Err(uerr).Msg("failed to record registry entry after ingest")
	}

	fmt.Printf("commit=%s files_inserted=%d files_skipped=%d errors=%d\n",
		report.Commit, report.FilesInserted, report.FilesSkipped, len(report.Errors))
	if report.State == models.StateFailed {
		return fmt.Errorf("ingest finished in failed state with %d errors", len(report.Errors))
	}
	return nil
}

// runScheduled re-ingests on cfg.Pipeline.Schedule until ctx is cancelled.
// Failures are logged rather than returned, so one bad run of an
// unattended schedule doesn't take the process down.
func (a *app) runScheduled(ctx context.Context, force bool) error {
	c := cron.New()
	_, err := c.AddFunc(a.cfg.Pipeline.Schedule, func() {
		if err := a.ingestOnce(ctx, force); err != nil {
			a.logger.Error().Err(err).Msg("scheduled ingest failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid pipeline.schedule %q: %w", a.cfg.Pipeline.Schedule, err)
	}

	a.logger.Info().Str("schedule", a.cfg.Pipeline.Schedule).Msg("scheduled re-ingest enabled")
	c.Start()
	defer c.Stop()

	<-ctx.Done()
	return nil
}
