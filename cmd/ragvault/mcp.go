package main

import (
	"context"
	"flag"

	"github.com/sourcevault/ragvault/internal/mcpserver"
)

// runMCP serves the eight registry/store/embedding tools over stdio until
// the client disconnects.
func (a *app) runMCP(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	srv := mcpserver.New(a.cfg, a.registry, a.store, a.embedder, a.syncer, a.scanner, a.orch, a.logger)
	return srv.Serve(ctx)
}
