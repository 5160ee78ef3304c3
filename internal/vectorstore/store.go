// Package vectorstore implements the Vector Store Adapter, component E:
// a badgerhold-backed table of document rows plus their embeddings,
// supporting batched insert with upsert-by-(id,repository_url) replay
// safety, predicate delete, and cosine-similarity k-NN search.
//
// Adapted from the teacher's internal/storage/badger package (connection
// lifecycle and badgerhold query DSL), generalized from a document-CRUD
// store keyed on arbitrary source identifiers to a fixed-schema vector
// table keyed on the composite (id, repository_url) pair, with search and
// fingerprint-lookup operations the teacher's document store never
// needed.
package vectorstore

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/sourcevault/ragvault/internal/interfaces"
	"github.com/sourcevault/ragvault/internal/models"
	"github.com/sourcevault/ragvault/internal/rerr"
)

// Store is a badgerhold-backed implementation of interfaces.VectorStore.
// Reads (Search, Count, Stats, Fingerprint) pass straight through to
// badgerhold, which is safe for concurrent readers; writes (Insert, Delete)
// take writeMu so only one writer touches the table at a time, per the
// adapter's shared-resource policy.
type Store struct {
	store     *badgerhold.Store
	path      string
	tableName string
	dimension int
	writeMu   sync.Mutex
	logger    arbor.ILogger
}

// New opens (creating if necessary) a badgerhold database under path. The
// returned Store has no table bound until OpenOrCreate is called.
func New(path string, logger arbor.ILogger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, rerr.New(rerr.StoreUnavailable, "mkdir", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = path
	options.ValueDir = path
	options.Logger = nil

	logger.Debug().Str("path", path).Msg("opening vector store")

	bh, err := badgerhold.Open(options)
	if err != nil {
		return nil, rerr.New(rerr.StoreUnavailable, "open", err)
	}

	return &Store{store: bh, path: path, logger: logger}, nil
}

var _ interfaces.VectorStore = (*Store)(nil)

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}

// OpenOrCreate binds the store to tableName and checks that any existing
// rows in it share dimension; a mismatch is a SchemaMismatch error rather
// than silent corruption of the k-NN distance calculation.
func (s *Store) OpenOrCreate(ctx context.Context, tableName string, dimension int) error {
	s.tableName = tableName
	s.dimension = dimension

	var existing []models.Document
	if err := s.store.Find(&existing, badgerhold.Where("ID").Ne("").Limit(1)); err != nil {
		return rerr.New(rerr.StoreUnavailable, "open_or_create", err)
	}
	if len(existing) > 0 && len(existing[0].Embedding) != dimension {
		return rerr.New(rerr.SchemaMismatch, "open_or_create", fmt.Errorf(
			"table %q already has dimension %d, cannot reopen at dimension %d",
			tableName, len(existing[0].Embedding), dimension))
	}
	return nil
}

// compositeKey is the badgerhold storage key: spec.md §3 declares
// (id, repository_url) unique across the table, not id alone, since two
// repositories can contain byte-identical files (e.g. a shared LICENSE)
// that hash to the same content id.
func compositeKey(id, repositoryURL string) string {
	return repositoryURL + "\x00" + id
}

// Insert upserts rows by (id, repository_url). Within one call, a later
// row with the same (id, repository_url) as an earlier one wins
// (intra-batch last-wins); across calls, upserting the same pair again is
// a no-op replay, not a duplicate (cross-batch idempotent replay safety).
//
// Before each row is written, any existing row for the same
// (repository_url, relative_path) whose id differs is deleted, per
// scenario S3: a changed file produces a new content id, and the stale
// row under the old id must not survive alongside it.
func (s *Store) Insert(ctx context.Context, rows []*models.Document) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	deduped := make(map[string]*models.Document, len(rows))
	order := make([]string, 0, len(rows))
	for _, row := range rows {
		key := compositeKey(row.ID, row.RepositoryURL)
		if _, seen := deduped[key]; !seen {
			order = append(order, key)
		}
		deduped[key] = row
	}

	for _, key := range order {
		row := deduped[key]
		if len(row.Embedding) != s.dimension {
			return rerr.New(rerr.SchemaMismatch, "insert", fmt.Errorf(
				"document %q has embedding dimension %d, table dimension is %d",
				row.ID, len(row.Embedding), s.dimension))
		}

		staleQuery := badgerhold.Where("RepositoryURL").Eq(row.RepositoryURL).
			And("RelativePath").Eq(row.RelativePath).
			And("ID").Ne(row.ID)
		if err := s.store.DeleteMatching(&models.Document{}, staleQuery); err != nil {
			return rerr.New(rerr.StoreUnavailable, "insert", err)
		}

		if err := s.store.Upsert(key, row); err != nil {
			return rerr.New(rerr.StoreUnavailable, "insert", err)
		}
	}
	return nil
}

// Delete removes rows matching pred and returns the count removed.
func (s *Store) Delete(ctx context.Context, pred interfaces.DeletePredicate) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	query := s.queryFor(pred)

	var matched []models.Document
	if err := s.store.Find(&matched, query); err != nil {
		return 0, rerr.New(rerr.StoreUnavailable, "delete", err)
	}

	if err := s.store.DeleteMatching(&models.Document{}, query); err != nil {
		return 0, rerr.New(rerr.StoreUnavailable, "delete", err)
	}
	return len(matched), nil
}

func (s *Store) queryFor(pred interfaces.DeletePredicate) *badgerhold.Query {
	var query *badgerhold.Query
	if pred.RepositoryURL != "" {
		query = badgerhold.Where("RepositoryURL").Eq(pred.RepositoryURL)
	}
	if len(pred.IDs) > 0 {
		idQuery := badgerhold.Where("ID").In(toInterfaceSlice(pred.IDs)...)
		if query == nil {
			query = idQuery
		} else {
			query = query.Or(idQuery)
		}
	}
	if query == nil {
		query = badgerhold.Where("ID").Ne("")
	}
	return query
}

func toInterfaceSlice(ids []string) []interface{} {
	out := make([]interface{}, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

// Search returns the k rows whose embedding has the highest cosine
// similarity to queryVec, optionally restricted by filter. Ties in score
// are broken by ascending ID for deterministic output.
func (s *Store) Search(ctx context.Context, queryVec []float32, k int, filter *interfaces.SearchFilter) ([]interfaces.SearchResult, error) {
	query := badgerhold.Where("ID").Ne("")
	if filter != nil {
		if filter.RepositoryURL != "" {
			query = query.And("RepositoryURL").Eq(filter.RepositoryURL)
		}
		if filter.Language != "" {
			query = query.And("Language").Eq(filter.Language)
		}
	}

	var docs []models.Document
	if err := s.store.Find(&docs, query); err != nil {
		return nil, rerr.New(rerr.StoreUnavailable, "search", err)
	}

	type scored struct {
		doc   models.Document
		score float64
	}
	results := make([]scored, 0, len(docs))
	for _, d := range docs {
		if len(d.Embedding) != len(queryVec) {
			continue
		}
		results = append(results, scored{doc: d, score: cosineSimilarity(queryVec, d.Embedding)})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].doc.ID < results[j].doc.ID
	})

	if k > 0 && len(results) > k {
		results = results[:k]
	}

	out := make([]interfaces.SearchResult, len(results))
	for i, r := range results {
		out[i] = interfaces.SearchResult{
			ID:           r.doc.ID,
			RelativePath: r.doc.RelativePath,
			Score:        r.score,
			Snippet:      snippet(r.doc.Content),
		}
	}
	return out, nil
}

func snippet(content string) string {
	const max = 280
	if len(content) <= max {
		return content
	}
	b := content[:max]
	return b
}

// cosineSimilarity returns the cosine of the angle between a and b, both
// assumed equal length. Returns 0 when either vector has zero norm.
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Count returns the number of rows matching filter (nil means all rows).
func (s *Store) Count(ctx context.Context, filter *interfaces.SearchFilter) (int, error) {
	query := badgerhold.Where("ID").Ne("")
	if filter != nil {
		if filter.RepositoryURL != "" {
			query = query.And("RepositoryURL").Eq(filter.RepositoryURL)
		}
		if filter.Language != "" {
			query = query.And("Language").Eq(filter.Language)
		}
	}
	n, err := s.store.Count(&models.Document{}, query)
	if err != nil {
		return 0, rerr.New(rerr.StoreUnavailable, "count", err)
	}
	return int(n), nil
}

// Stats summarizes the table for the get_stats tool.
func (s *Store) Stats(ctx context.Context) (interfaces.Stats, error) {
	total, err := s.Count(ctx, nil)
	if err != nil {
		return interfaces.Stats{}, err
	}

	var docs []models.Document
	if err := s.store.Find(&docs, badgerhold.Where("ID").Ne("")); err != nil {
		return interfaces.Stats{}, rerr.New(rerr.StoreUnavailable, "stats", err)
	}
	repos := make(map[string]struct{})
	for _, d := range docs {
		repos[d.RepositoryURL] = struct{}{}
	}

	return interfaces.Stats{
		Documents:    total,
		Repositories: len(repos),
		TableName:    s.tableName,
		EmbeddingDim: s.dimension,
	}, nil
}

// All returns every row in the table, in no particular order. Used by the
// CLI's export command; not part of interfaces.VectorStore since no
// ingest-path component needs a full-table dump.
func (s *Store) All(ctx context.Context) ([]*models.Document, error) {
	var docs []models.Document
	if err := s.store.Find(&docs, badgerhold.Where("ID").Ne("")); err != nil {
		return nil, rerr.New(rerr.StoreUnavailable, "export", err)
	}
	out := make([]*models.Document, len(docs))
	for i := range docs {
		out[i] = &docs[i]
	}
	return out, nil
}

// Fingerprint looks up the (size, mtime) currently stored for
// (repositoryURL, relativePath), used by the orchestrator's
// skip-unless-force fast path.
func (s *Store) Fingerprint(ctx context.Context, repositoryURL, relativePath string) (models.Fingerprint, bool, error) {
	var docs []models.Document
	err := s.store.Find(&docs, badgerhold.
		Where("RepositoryURL").Eq(repositoryURL).
		And("RelativePath").Eq(relativePath).
		Limit(1))
	if err != nil {
		return models.Fingerprint{}, false, rerr.New(rerr.StoreUnavailable, "fingerprint", err)
	}
	if len(docs) == 0 {
		return models.Fingerprint{}, false, nil
	}
	return models.Fingerprint{
		RelativePath: docs[0].RelativePath,
		Size:         docs[0].FileSize,
		MTime:        docs[0].LastModified,
	}, true, nil
}
