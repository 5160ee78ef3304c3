package main

import (
	"context"
	"flag"

	"github.com/sourcevault/ragvault/internal/ingest"
)

// runSync materializes the configured repository at its configured
// reference without scanning, embedding, or inserting anything.
func (a *app) runSync(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	reference := fs.String("reference", a.cfg.Repository.Branch, "branch, tag, or commit to check out")
	if err := fs.Parse(args); err != nil {
		return err
	}

	relPath := ingest.RelativeRepoPath(a.cfg.Repository.SourceURL)
	commit, err := a.syncer.Materialize(ctx, a.cfg.Repository.SourceURL, *reference, relPath)
	if err != nil {
		return err
	}

	a.logger.Info().Str("repo_url", a.cfg.Repository.SourceURL).Str("commit", commit).Msg("sync complete")
	return nil
}
