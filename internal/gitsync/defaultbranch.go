package gitsync

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// ResolveDefaultBranch asks the GitHub API for a repository's default
// branch without cloning it, for use by callers that omit
// repository.branch. token may be empty for public repositories.
func ResolveDefaultBranch(ctx context.Context, repoURL, token string) (string, error) {
	owner, name, err := ownerAndName(repoURL)
	if err != nil {
		return "", err
	}

	client := github.NewClient(nil)
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		client = github.NewClient(oauth2.NewClient(ctx, ts))
	}

	repo, _, err := client.Repositories.Get(ctx, owner, name)
	if err != nil {
		return "", fmt.Errorf("failed to resolve default branch for %s/%s: %w", owner, name, err)
	}
	return repo.GetDefaultBranch(), nil
}

func ownerAndName(repoURL string) (owner, name string, err error) {
	u, err := url.Parse(repoURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid repository URL %q: %w", repoURL, err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 {
		return "", "", fmt.Errorf("cannot derive owner/repo from URL %q", repoURL)
	}
	owner = parts[0]
	name = strings.TrimSuffix(parts[1], ".git")
	return owner, name, nil
}
