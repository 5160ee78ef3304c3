package gitsync

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/sourcevault/ragvault/internal/rerr"
)

// newSourceRepo creates a non-bare local repository with one commit on
// "main" and returns its filesystem path, suitable as a clone source
// without requiring network access or a system git binary.
func newSourceRepo(t *testing.T) (path, firstCommit string) {
	t.Helper()
	dir := t.TempDir()

	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.md"), []byte("# hello\n"), 0o644))

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("readme.md")
	require.NoError(t, err)

	sig := &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Unix(0, 0)}
	hash, err := wt.Commit("initial commit", &git.CommitOptions{Author: sig})
	require.NoError(t, err)

	return dir, hash.String()
}

func commitMore(t *testing.T, path string) string {
	t.Helper()
	repo, err := git.PlainOpen(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(path, "more.md"), []byte("# more\n"), 0o644))

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("more.md")
	require.NoError(t, err)

	sig := &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Unix(1, 0)}
	hash, err := wt.Commit("second commit", &git.CommitOptions{Author: sig})
	require.NoError(t, err)
	return hash.String()
}

func TestMaterialize_ClonesOnFirstCall(t *testing.T) {
	t.Log("=== Testing Materialize - initial clone ===")
	sourcePath, firstCommit := newSourceRepo(t)

	dataRoot := t.TempDir()
	s := New(dataRoot, arbor.NewLogger())

	commit, err := s.Materialize(context.Background(), sourcePath, "", "work")
	require.NoError(t, err)
	assert.Equal(t, firstCommit, commit)

	_, err = os.Stat(filepath.Join(dataRoot, "work", "readme.md"))
	assert.NoError(t, err)
}

func TestMaterialize_FetchesAndFastForwardsOnSecondCall(t *testing.T) {
	t.Log("=== Testing Materialize - fetch and fast-forward ===")
	sourcePath, _ := newSourceRepo(t)

	dataRoot := t.TempDir()
	s := New(dataRoot, arbor.NewLogger())

	_, err := s.Materialize(context.Background(), sourcePath, "", "work")
	require.NoError(t, err)

	secondCommit := commitMore(t, sourcePath)

	commit, err := s.Materialize(context.Background(), sourcePath, "", "work")
	require.NoError(t, err)
	assert.Equal(t, secondCommit, commit)

	_, err = os.Stat(filepath.Join(dataRoot, "work", "more.md"))
	assert.NoError(t, err)
}

func TestMaterialize_NamedBranchFastForwardsOnSecondCall(t *testing.T) {
	t.Log("=== Testing Materialize - named-branch fast-forward after fetch ===")
	sourcePath, _ := newSourceRepo(t)

	sourceRepo, err := git.PlainOpen(sourcePath)
	require.NoError(t, err)
	head, err := sourceRepo.Head()
	require.NoError(t, err)
	branchName := head.Name().Short()

	dataRoot := t.TempDir()
	s := New(dataRoot, arbor.NewLogger())

	_, err = s.Materialize(context.Background(), sourcePath, branchName, "work")
	require.NoError(t, err)

	secondCommit := commitMore(t, sourcePath)

	commit, err := s.Materialize(context.Background(), sourcePath, branchName, "work")
	require.NoError(t, err)
	assert.Equal(t, secondCommit, commit, "a named branch must resolve to what was just fetched, not the stale local branch ref")

	_, err = os.Stat(filepath.Join(dataRoot, "work", "more.md"))
	assert.NoError(t, err)
}

func TestMaterialize_RejectsPathEscapingDataRoot(t *testing.T) {
	t.Log("=== Testing Materialize - PathEscape rejection ===")
	sourcePath, _ := newSourceRepo(t)

	dataRoot := t.TempDir()
	s := New(dataRoot, arbor.NewLogger())

	_, err := s.Materialize(context.Background(), sourcePath, "", "../outside")
	require.Error(t, err)
	assert.Equal(t, rerr.PathEscape, rerr.KindOf(err))
}

func TestMaterialize_UnresolvableReferenceIsSyncConflict(t *testing.T) {
	t.Log("=== Testing Materialize - unknown reference classified as SyncConflict ===")
	sourcePath, _ := newSourceRepo(t)

	dataRoot := t.TempDir()
	s := New(dataRoot, arbor.NewLogger())

	_, err := s.Materialize(context.Background(), sourcePath, "does-not-exist-branch", "work")
	require.Error(t, err)
	assert.Equal(t, rerr.SyncConflict, rerr.KindOf(err))
}
