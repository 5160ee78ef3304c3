// Package models defines the data types shared across the ingestion and
// retrieval pipeline: document rows, registry entries, and the ephemeral
// work items that flow between the scanner and the document builder.
package models

import "time"

// Document is a row in the vector table. id and content_hash always carry
// the same value: the lowercase hex SHA-256 of the normalized content.
type Document struct {
	ID             string    `json:"id"`
	FilePath       string    `json:"file_path"`
	RelativePath   string    `json:"relative_path"`
	RepositoryURL  string    `json:"repository_url"`
	Content        string    `json:"content"`
	ContentHash    string    `json:"content_hash"`
	FileSize       int64     `json:"file_size"`
	LastModified   int64     `json:"last_modified"`
	ParsedAt       int64     `json:"parsed_at"`
	Normalized     bool      `json:"normalized"`
	Embedding      []float32 `json:"embedding"`
	EmbeddingModel string    `json:"embedding_model,omitempty"`
	Title          string    `json:"title,omitempty"`
	Description    string    `json:"description,omitempty"`
	Language       string    `json:"language,omitempty"`
}

// Fingerprint is the cheap skip predicate used by the orchestrator to avoid
// rereading and reembedding files that have not changed since the last
// ingest: (relative_path, size, mtime).
type Fingerprint struct {
	RelativePath string
	Size         int64
	MTime        int64
}

// WorkItem is produced by the file scanner and consumed by the document
// builder. It never outlives one ingest run.
type WorkItem struct {
	AbsolutePath string
	RelativePath string
	Size         int64
	MTime        int64
}

// Fingerprint returns the work item's skip-predicate fingerprint.
func (w WorkItem) Fingerprint() Fingerprint {
	return Fingerprint{RelativePath: w.RelativePath, Size: w.Size, MTime: w.MTime}
}

// SkipReason classifies why a candidate file or work item never became a
// document row.
type SkipReason string

const (
	SkipTooLarge  SkipReason = "too_large"
	SkipExcluded  SkipReason = "excluded"
	SkipNonText   SkipReason = "non_text"
	SkipUnreadable SkipReason = "unreadable"
)

// Skip records one file that was deliberately not ingested.
type Skip struct {
	RelativePath string     `json:"relative_path"`
	Reason       SkipReason `json:"reason"`
}

// nowEpoch returns the current wall-clock time in seconds since the Unix
// epoch.
func nowEpoch() int64 { return time.Now().Unix() }
