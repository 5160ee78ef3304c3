package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/sourcevault/ragvault/internal/interfaces"
)

// runReset deletes every row from the vector store and every entry from
// the registry. Requires --confirm, since this is the one irreversible
// CLI operation.
func (a *app) runReset(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	confirm := fs.Bool("confirm", false, "required: acknowledges this permanently deletes all ingested data")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !*confirm {
		return fmt.Errorf("reset requires --confirm")
	}

	deleted, err := a.store.Delete(ctx, interfaces.DeletePredicate{})
	if err != nil {
		return err
	}

	entries, err := a.registry.List()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if _, _, err := a.registry.Remove(e.Identifier); err != nil {
			return err
		}
	}

	fmt.Printf("documents_deleted=%d repositories_removed=%d\n", deleted, len(entries))
	return nil
}
