package main

import (
	"context"
	"flag"
	"fmt"
)

// runStats prints the vector table's document and repository counts.
func (a *app) runStats(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	stats, err := a.store.Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("documents=%d repositories=%d table_name=%s embedding_dim=%d\n",
		stats.Documents, stats.Repositories, stats.TableName, stats.EmbeddingDim)
	return nil
}
