package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
)

// runExport writes every document row to <output>/documents.json, via a
// scoped temp-file-then-rename so a crash mid-write never leaves a
// truncated export behind.
func (a *app) runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	output := fs.String("output", "", "directory to write documents.json into")
	pretty := fs.Bool("pretty", false, "indent the exported JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *output == "" {
		return fmt.Errorf("export requires --output DIR")
	}

	docs, err := a.store.All(ctx)
	if err != nil {
		return err
	}

	var data []byte
	if *pretty {
		data, err = json.MarshalIndent(docs, "", "  ")
	} else {
		data, err = json.Marshal(docs)
	}
	if err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}

	if err := os.MkdirAll(*output, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	finalPath := filepath.Join(*output, "documents.json")
	tmp, err := os.CreateTemp(*output, ".documents-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to finalize export: %w", err)
	}

	fmt.Printf("exported %d documents to %s\n", len(docs), finalPath)
	return nil
}
