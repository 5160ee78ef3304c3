package main

import (
	"context"
	"flag"
	"fmt"
)

// runVerify checks that the vector table exists and its stored embedding
// dimension matches the configured one, mirroring the verify_database
// tool's contract for CLI callers.
func (a *app) runVerify(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	stats, err := a.store.Stats(ctx)
	if err != nil {
		return err
	}

	tablePresent := stats.TableName == a.cfg.Database.TableName
	schemaOK := stats.EmbeddingDim == a.cfg.Database.EmbeddingDim
	ok := tablePresent && schemaOK

	fmt.Printf("ok=%t table_present=%t schema_ok=%t embedding_dim=%d\n", ok, tablePresent, schemaOK, stats.EmbeddingDim)
	if !ok {
		return fmt.Errorf("verification failed: table_present=%t schema_ok=%t", tablePresent, schemaOK)
	}
	return nil
}
