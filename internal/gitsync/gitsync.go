// Package gitsync implements the Repository Syncer: cloning or
// fast-forwarding a remote Git source to a local working tree at a named
// reference. Adapted from the go-git-based clone/fetch/checkout flow in
// sevigo-code-warden's gitutil and repomanager packages, generalized to
// the bare materialize(url, reference, local_path) -> resolved_commit
// contract this pipeline needs rather than a webhook-driven sync service.
package gitsync

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/ternarybob/arbor"

	"github.com/sourcevault/ragvault/internal/rerr"
)

// Syncer materializes remote Git sources under a configured data root.
// All local_path arguments passed to Materialize are resolved relative to
// and validated against this root: paths that escape it are rejected with
// PathEscape.
type Syncer struct {
	dataRoot string
	logger   arbor.ILogger
}

// New returns a Syncer confined to dataRoot.
func New(dataRoot string, logger arbor.ILogger) *Syncer {
	return &Syncer{dataRoot: dataRoot, logger: logger}
}

// Materialize clones url to localPath if it is not yet a Git work tree;
// otherwise it fetches and fast-forwards. It then checks out reference
// (branch, tag, or commit id) and returns the resolved 40-hex commit id.
func (s *Syncer) Materialize(ctx context.Context, sourceURL, reference, localPath string) (string, error) {
	resolvedPath, err := s.resolvePath(localPath)
	if err != nil {
		return "", err
	}

	repo, err := git.PlainOpen(resolvedPath)
	switch {
	case errors.Is(err, git.ErrRepositoryNotExists):
		repo, err = s.clone(ctx, sourceURL, resolvedPath)
		if err != nil {
			return "", err
		}
	case err != nil:
		return "", rerr.New(rerr.Internal, "open", err).WithRepo(sourceURL, "")
	default:
		if err := s.fetchAndFastForward(ctx, sourceURL, repo); err != nil {
			return "", err
		}
	}

	return s.checkout(repo, sourceURL, reference)
}

// resolvePath rejects any local_path that would resolve outside dataRoot.
func (s *Syncer) resolvePath(localPath string) (string, error) {
	if s.dataRoot == "" {
		return localPath, nil
	}
	root, err := filepath.Abs(s.dataRoot)
	if err != nil {
		return "", rerr.New(rerr.Internal, "resolve_root", err)
	}
	abs, err := filepath.Abs(filepath.Join(root, localPath))
	if err != nil {
		return "", rerr.New(rerr.Internal, "resolve_path", err)
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", rerr.New(rerr.PathEscape, "resolve_path", fmt.Errorf("path %q escapes data root %q", localPath, root))
	}
	return abs, nil
}

func (s *Syncer) clone(ctx context.Context, sourceURL, path string) (*git.Repository, error) {
	s.logger.Info().Str("url", rerr.Redact(sourceURL)).Str("path", path).Msg("cloning repository")

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, rerr.New(rerr.Internal, "mkdir", err).WithRepo(sourceURL, "")
	}

	repo, err := git.PlainCloneContext(ctx, path, false, &git.CloneOptions{
		URL:  sourceURL,
		Auth: authFromURL(sourceURL),
	})
	if err != nil {
		return nil, rerr.New(rerr.SyncConflict, "clone", err).WithRepo(sourceURL, "")
	}
	return repo, nil
}

func (s *Syncer) fetchAndFastForward(ctx context.Context, sourceURL string, repo *git.Repository) error {
	s.logger.Debug().Str("url", rerr.Redact(sourceURL)).Msg("fetching latest changes")

	err := repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: "origin",
		Auth:       authFromURL(sourceURL),
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return rerr.New(rerr.SyncConflict, "fetch", err).WithRepo(sourceURL, "")
	}
	return nil
}

// checkout resolves reference to a commit (branch, tag, or abbreviated/full
// commit id) and checks it out, forcing the worktree to match — a
// fast-forward by construction since we never mutate local branches
// ourselves. A genuinely diverged remote (one we cannot resolve a valid
// reference against) surfaces as SyncConflict rather than silently
// resetting history.
func (s *Syncer) checkout(repo *git.Repository, sourceURL, reference string) (string, error) {
	hash, err := resolveReference(repo, reference)
	if err != nil {
		return "", rerr.New(rerr.SyncConflict, "resolve_reference", err).WithRepo(sourceURL, "")
	}

	wt, err := repo.Worktree()
	if err != nil {
		return "", rerr.New(rerr.Internal, "worktree", err).WithRepo(sourceURL, "")
	}

	if err := wt.Checkout(&git.CheckoutOptions{Hash: *hash, Force: true}); err != nil {
		return "", rerr.New(rerr.SyncConflict, "checkout", err).WithRepo(sourceURL, "")
	}

	return hash.String(), nil
}

func resolveReference(repo *git.Repository, reference string) (*plumbing.Hash, error) {
	if reference == "" {
		reference = "HEAD"
	}

	// The remote-tracking ref is checked before the local branch ref:
	// fetchAndFastForward only ever advances refs/remotes/origin/*, never
	// the local refs/heads/* (stock git/go-git fetch semantics), so for a
	// named branch the remote-tracking ref is the one that actually
	// reflects what was just fetched. Preferring the local branch here
	// would resolve to whatever commit it was left at by the initial
	// clone, defeating every re-sync after the first.
	candidates := []plumbing.ReferenceName{
		plumbing.NewRemoteReferenceName("origin", reference),
		plumbing.NewBranchReferenceName(reference),
		plumbing.NewTagReferenceName(reference),
	}
	for _, name := range candidates {
		if ref, err := repo.Reference(name, true); err == nil {
			h := ref.Hash()
			return &h, nil
		}
	}

	if reference == "HEAD" {
		ref, err := repo.Head()
		if err != nil {
			return nil, err
		}
		h := ref.Hash()
		return &h, nil
	}

	// Fall back to treating it as a commit id (full or abbreviated).
	h, err := repo.ResolveRevision(plumbing.Revision(reference))
	if err != nil {
		return nil, fmt.Errorf("reference %q is not a known branch, tag, or commit: %w", reference, err)
	}
	return h, nil
}

// authFromURL passes credentials embedded in the URL (https://TOKEN@host/...)
// through to go-git without ever writing them to a log line.
func authFromURL(sourceURL string) *githttp.BasicAuth {
	u, err := url.Parse(sourceURL)
	if err != nil || u.User == nil {
		return nil
	}
	password, _ := u.User.Password()
	username := u.User.Username()
	if username == "" {
		username = "x-access-token"
	}
	return &githttp.BasicAuth{Username: username, Password: password}
}
