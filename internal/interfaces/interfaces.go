// Package interfaces defines the capability abstractions the ingestion
// orchestrator and tool server are written against, so tests can substitute
// in-memory stand-ins as called for in the design notes: the embedding
// provider and the vector store are each a small interface with two (or
// more) concrete implementations selected at construction time.
package interfaces

import (
	"context"

	"github.com/sourcevault/ragvault/internal/models"
)

// RepoSyncer materializes a remote Git source at a local working tree,
// component A.
type RepoSyncer interface {
	Materialize(ctx context.Context, url, reference, localPath string) (resolvedCommit string, err error)
}

// Scanner enumerates candidate files under a root, component B.
type Scanner interface {
	Scan(ctx context.Context, root string, subdirs []string) (<-chan models.WorkItem, <-chan models.Skip, error)
}

// DocumentBuilder turns one work item into a document row or a skip,
// component C.
type DocumentBuilder interface {
	Build(item models.WorkItem) (*models.Document, *models.Skip)
}

// EmbeddingProvider maps text to fixed-dimension vectors, component D. Two
// variants exist: a remote HTTP-backed provider and a deterministic local
// fallback; both satisfy this interface.
type EmbeddingProvider interface {
	Dimension() int
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// SearchFilter restricts a vector search to rows matching the given
// repository URL and/or language, per component E.
type SearchFilter struct {
	RepositoryURL string
	Language      string
}

// SearchResult is one row returned by a nearest-neighbor search.
type SearchResult struct {
	ID           string
	RelativePath string
	Score        float64
	Snippet      string
}

// DeletePredicate is the small predicate language component E's delete
// accepts: equality on RepositoryURL, and/or membership in IDs.
type DeletePredicate struct {
	RepositoryURL string
	IDs           []string
}

// VectorStore is the columnar vector table adapter, component E.
type VectorStore interface {
	OpenOrCreate(ctx context.Context, tableName string, dimension int) error
	Insert(ctx context.Context, rows []*models.Document) error
	Delete(ctx context.Context, pred DeletePredicate) (int, error)
	Search(ctx context.Context, queryVec []float32, k int, filter *SearchFilter) ([]SearchResult, error)
	Count(ctx context.Context, filter *SearchFilter) (int, error)
	Stats(ctx context.Context) (Stats, error)
	// Fingerprint looks up the (size, mtime) currently stored for a
	// (repositoryURL, relativePath) pair, used by the orchestrator's
	// skip-unless-force fast path. ok is false when no row exists yet for
	// that pair.
	Fingerprint(ctx context.Context, repositoryURL, relativePath string) (fp models.Fingerprint, ok bool, err error)
}

// Stats summarizes the vector table for the get_stats tool.
type Stats struct {
	Documents     int
	Repositories  int
	TableName     string
	EmbeddingDim  int
}

// Registry persists metadata about each ingested repository, component G.
type Registry interface {
	Upsert(entry models.RegistryEntry) error
	Get(identifier string) (models.RegistryEntry, bool, error)
	List() ([]models.RegistryEntry, error)
	Remove(identifier string) (models.RegistryEntry, bool, error)
}

// ProgressSink receives progress events emitted by the orchestrator,
// streamed to the tool server's client between request-receipt and final
// response.
type ProgressSink interface {
	OnProgress(models.ProgressEvent)
}

// ProgressSinkFunc adapts a plain function to ProgressSink.
type ProgressSinkFunc func(models.ProgressEvent)

func (f ProgressSinkFunc) OnProgress(e models.ProgressEvent) { f(e) }
