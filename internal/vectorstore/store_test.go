package vectorstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/sourcevault/ragvault/internal/interfaces"
	"github.com/sourcevault/ragvault/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := New(filepath.Join(dir, "vectors"), arbor.NewLogger())
	require.NoError(t, err)
	require.NoError(t, s.OpenOrCreate(context.Background(), "documents", 3))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func doc(id, repo, relPath string, vec []float32) *models.Document {
	return &models.Document{
		ID:            id,
		RepositoryURL: repo,
		RelativePath:  relPath,
		Content:       "content for " + id,
		Embedding:     vec,
	}
}

func TestStore_InsertAndCount(t *testing.T) {
	t.Log("=== Testing Vector Store - Insert and Count ===")
	s := newTestStore(t)
	ctx := context.Background()

	err := s.Insert(ctx, []*models.Document{
		doc("a", "repo1", "a.md", []float32{1, 0, 0}),
		doc("b", "repo1", "b.md", []float32{0, 1, 0}),
	})
	require.NoError(t, err)

	count, err := s.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestStore_InsertIsIdempotentReplay(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d := doc("a", "repo1", "a.md", []float32{1, 0, 0})
	require.NoError(t, s.Insert(ctx, []*models.Document{d}))
	require.NoError(t, s.Insert(ctx, []*models.Document{d}))

	count, err := s.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "re-inserting the same id must not duplicate the row")
}

func TestStore_IntraBatchLastWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.Insert(ctx, []*models.Document{
		doc("a", "repo1", "a.md", []float32{1, 0, 0}),
		{ID: "a", RepositoryURL: "repo1", RelativePath: "a.md", Content: "updated", Embedding: []float32{0, 0, 1}},
	})
	require.NoError(t, err)

	count, err := s.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	fp, ok, err := s.Fingerprint(ctx, "repo1", "a.md")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a.md", fp.RelativePath)
}

func TestStore_SameIDDifferentRepositoriesBothSurvive(t *testing.T) {
	t.Log("=== Testing Vector Store - (id, repository_url) composite uniqueness ===")
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, []*models.Document{
		doc("shared-hash", "repo1", "LICENSE", []float32{1, 0, 0}),
		doc("shared-hash", "repo2", "LICENSE", []float32{1, 0, 0}),
	}))

	count, err := s.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "byte-identical content in two repositories must not collide")

	n, err := s.Delete(ctx, interfaces.DeletePredicate{RepositoryURL: "repo2"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	count, err = s.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "removing repo2 must not orphan repo1's row")

	fp, ok, err := s.Fingerprint(ctx, "repo1", "LICENSE")
	require.NoError(t, err)
	assert.True(t, ok, "repo1's row must survive repo2's removal")
	assert.Equal(t, "LICENSE", fp.RelativePath)
}

func TestStore_InsertDeletesStaleRowForChangedContent(t *testing.T) {
	t.Log("=== Testing Vector Store - stale row removed when content changes (S3) ===")
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, []*models.Document{
		doc("old-hash", "repo1", "readme.md", []float32{1, 0, 0}),
	}))

	require.NoError(t, s.Insert(ctx, []*models.Document{
		doc("new-hash", "repo1", "readme.md", []float32{0, 1, 0}),
	}))

	count, err := s.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "the old-hash row must be deleted, not left alongside the new one")

	results, err := s.Search(ctx, []float32{0, 1, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "new-hash", results[0].ID)
}

func TestStore_DeleteByRepository(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, []*models.Document{
		doc("a", "repo1", "a.md", []float32{1, 0, 0}),
		doc("b", "repo2", "b.md", []float32{0, 1, 0}),
	}))

	n, err := s.Delete(ctx, interfaces.DeletePredicate{RepositoryURL: "repo1"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	count, err := s.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStore_SearchRanksByCosineSimilarity(t *testing.T) {
	t.Log("=== Testing Vector Store - Search Ranking ===")
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, []*models.Document{
		doc("exact", "repo1", "exact.md", []float32{1, 0, 0}),
		doc("orthogonal", "repo1", "orth.md", []float32{0, 1, 0}),
		doc("opposite", "repo1", "opp.md", []float32{-1, 0, 0}),
	}))

	results, err := s.Search(ctx, []float32{1, 0, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "exact", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
}

func TestStore_SearchFiltersByRepository(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, []*models.Document{
		doc("a", "repo1", "a.md", []float32{1, 0, 0}),
		doc("b", "repo2", "b.md", []float32{1, 0, 0}),
	}))

	results, err := s.Search(ctx, []float32{1, 0, 0}, 10, &interfaces.SearchFilter{RepositoryURL: "repo2"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].ID)
}

func TestStore_FingerprintMissReturnsNotOK(t *testing.T) {
	s := newTestStore(t)
	_, ok, err := s.Fingerprint(context.Background(), "repo1", "missing.md")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_OpenOrCreateRejectsDimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	s, err := New(filepath.Join(dir, "vectors"), arbor.NewLogger())
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.OpenOrCreate(ctx, "documents", 3))
	require.NoError(t, s.Insert(ctx, []*models.Document{doc("a", "repo1", "a.md", []float32{1, 0, 0})}))

	err = s.OpenOrCreate(ctx, "documents", 5)
	require.Error(t, err)
}
