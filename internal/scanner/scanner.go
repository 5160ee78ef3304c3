// Package scanner implements the File Scanner: enumerating candidate
// files under a root, applying include/exclude glob patterns and a size
// cap, and yielding a deterministically-ordered, bounded work list.
// Adapted from the directory-walk idiom in
// ternarybob-quaero/internal/queue/workers/local_dir_worker.go (Init),
// generalized from a fixed extension allowlist to the spec's
// glob-pattern include/exclude plus a configurable textual-suffix
// allowlist, and switched from the teacher's streaming-into-a-slice
// shape to the channel-based iterator this pipeline's orchestrator
// expects.
package scanner

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/sourcevault/ragvault/internal/models"
	"github.com/sourcevault/ragvault/internal/rerr"
)

// DefaultTextualSuffixes is the default textual allowlist: only these
// file suffixes are considered for ingestion unless overridden.
var DefaultTextualSuffixes = []string{".md", ".txt", ".markdown"}

// Scanner walks a repository tree and yields work items in deterministic,
// lexicographic-by-relative-path order.
type Scanner struct {
	IncludeGlobs     []string
	ExcludeGlobs     []string
	MaxBytes         int64
	TextualSuffixes  []string
	logger           arbor.ILogger
}

// New builds a Scanner. An empty TextualSuffixes falls back to
// DefaultTextualSuffixes.
func New(includeGlobs, excludeGlobs []string, maxBytes int64, textualSuffixes []string, logger arbor.ILogger) *Scanner {
	if len(textualSuffixes) == 0 {
		textualSuffixes = DefaultTextualSuffixes
	}
	return &Scanner{
		IncludeGlobs:    includeGlobs,
		ExcludeGlobs:    excludeGlobs,
		MaxBytes:        maxBytes,
		TextualSuffixes: textualSuffixes,
		logger:          logger,
	}
}

// candidate is an interim record before the deterministic sort; it
// carries both emitted work items and skipped files so the caller can
// report both.
type candidate struct {
	item models.WorkItem
	skip *models.Skip
}

// Scan walks root (or the union of subdirs, when provided) and returns two
// channels: one for work items, one for skips, both closed when the walk
// completes or ctx is cancelled. Symlinks are never followed.
func (s *Scanner) Scan(ctx context.Context, root string, subdirs []string) (<-chan models.WorkItem, <-chan models.Skip, error) {
	roots := []string{root}
	if len(subdirs) > 0 {
		roots = make([]string, 0, len(subdirs))
		for _, d := range subdirs {
			roots = append(roots, filepath.Join(root, d))
		}
	}

	var candidates []candidate
	for _, r := range roots {
		if err := s.walk(root, r, &candidates); err != nil {
			return nil, nil, rerr.New(rerr.FileUnreadable, "scan", err)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return relPathOf(candidates[i]) < relPathOf(candidates[j])
	})

	items := make(chan models.WorkItem)
	skips := make(chan models.Skip)
	go func() {
		defer close(items)
		defer close(skips)
		for _, c := range candidates {
			if c.skip != nil {
				select {
				case skips <- *c.skip:
				case <-ctx.Done():
					return
				}
				continue
			}
			select {
			case items <- c.item:
			case <-ctx.Done():
				return
			}
		}
	}()

	return items, skips, nil
}

func relPathOf(c candidate) string {
	if c.skip != nil {
		return c.skip.RelativePath
	}
	return c.item.RelativePath
}

func (s *Scanner) walk(root, walkRoot string, out *[]candidate) error {
	return filepath.Walk(walkRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}

		if info.Mode()&os.ModeSymlink != 0 {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		relPath, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if info.IsDir() {
			if relPath != "." && s.matchesAny(s.ExcludeGlobs, relPath) {
				return filepath.SkipDir
			}
			return nil
		}

		if s.matchesAny(s.ExcludeGlobs, relPath) {
			*out = append(*out, candidate{skip: &models.Skip{RelativePath: relPath, Reason: models.SkipExcluded}})
			return nil
		}

		// Size is checked ahead of the include-glob and textual-suffix
		// filters: an oversized file is reported too_large regardless of
		// extension, rather than excluded for failing an allowlist it
		// would have failed the size cap on anyway.
		if info.Size() > s.MaxBytes {
			*out = append(*out, candidate{skip: &models.Skip{RelativePath: relPath, Reason: models.SkipTooLarge}})
			return nil
		}

		if len(s.IncludeGlobs) > 0 && !s.matchesAny(s.IncludeGlobs, relPath) {
			*out = append(*out, candidate{skip: &models.Skip{RelativePath: relPath, Reason: models.SkipExcluded}})
			return nil
		}

		if !s.hasTextualSuffix(relPath) {
			*out = append(*out, candidate{skip: &models.Skip{RelativePath: relPath, Reason: models.SkipExcluded}})
			return nil
		}

		*out = append(*out, candidate{item: models.WorkItem{
			AbsolutePath: path,
			RelativePath: relPath,
			Size:         info.Size(),
			MTime:        info.ModTime().Unix(),
		}})
		return nil
	})
}

// matchesAny reports whether path matches any of globs, either as a direct
// filepath.Match on the full relative path or as a directory prefix from
// the repository root (so a pattern like "node_modules/*" excludes the
// whole top-level node_modules subtree no matter how deep path is within
// it). A directory of that name nested below the root is not matched by
// the prefix rule.
func (s *Scanner) matchesAny(globs []string, relPath string) bool {
	for _, g := range globs {
		if ok, _ := filepath.Match(g, relPath); ok {
			return true
		}
		trimmed := strings.TrimSuffix(g, "/*")
		trimmed = strings.TrimSuffix(trimmed, "/")
		if trimmed != "" && (relPath == trimmed || strings.HasPrefix(relPath, trimmed+"/")) {
			return true
		}
	}
	return false
}

func (s *Scanner) hasTextualSuffix(relPath string) bool {
	lower := strings.ToLower(relPath)
	for _, suf := range s.TextualSuffixes {
		if strings.HasSuffix(lower, strings.ToLower(suf)) {
			return true
		}
	}
	return false
}
