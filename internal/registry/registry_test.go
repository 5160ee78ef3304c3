package registry

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/sourcevault/ragvault/internal/models"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "registry.json")
	r, err := Open(path, arbor.NewLogger())
	require.NoError(t, err)
	return r
}

func TestRegistry_UpsertAndGet(t *testing.T) {
	t.Log("=== Testing Registry - Upsert and Get ===")
	r := newTestRegistry(t)

	err := r.Upsert(models.RegistryEntry{Identifier: "repo1", ResolvedCommit: "abc"})
	require.NoError(t, err)

	entry, ok, err := r.Get("repo1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "abc", entry.ResolvedCommit)
}

func TestRegistry_UpsertReplacesExisting(t *testing.T) {
	r := newTestRegistry(t)

	require.NoError(t, r.Upsert(models.RegistryEntry{Identifier: "repo1", ResolvedCommit: "v1"}))
	require.NoError(t, r.Upsert(models.RegistryEntry{Identifier: "repo1", ResolvedCommit: "v2"}))

	entries, err := r.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "v2", entries[0].ResolvedCommit)
}

func TestRegistry_Remove(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Upsert(models.RegistryEntry{Identifier: "repo1"}))

	removed, ok, err := r.Remove("repo1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "repo1", removed.Identifier)

	_, ok, err = r.Get("repo1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegistry_RemoveMissingReturnsNotOK(t *testing.T) {
	r := newTestRegistry(t)
	_, ok, err := r.Remove("nonexistent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegistry_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	logger := arbor.NewLogger()

	r1, err := Open(path, logger)
	require.NoError(t, err)
	require.NoError(t, r1.Upsert(models.RegistryEntry{Identifier: "repo1", ResolvedCommit: "abc"}))

	r2, err := Open(path, logger)
	require.NoError(t, err)
	entry, ok, err := r2.Get("repo1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "abc", entry.ResolvedCommit)
}

func TestRegistry_UpsertRejectsEmptyIdentifier(t *testing.T) {
	r := newTestRegistry(t)
	err := r.Upsert(models.RegistryEntry{})
	require.Error(t, err)
}
