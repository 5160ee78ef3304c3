package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/sourcevault/ragvault/internal/models"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		abs := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
		require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
	}
}

func collect(t *testing.T, s *Scanner, root string) ([]models.WorkItem, []models.Skip) {
	t.Helper()
	items, skips, err := s.Scan(context.Background(), root, nil)
	require.NoError(t, err)

	var gotItems []models.WorkItem
	var gotSkips []models.Skip
	for items != nil || skips != nil {
		select {
		case it, ok := <-items:
			if !ok {
				items = nil
				continue
			}
			gotItems = append(gotItems, it)
		case sk, ok := <-skips:
			if !ok {
				skips = nil
				continue
			}
			gotSkips = append(gotSkips, sk)
		}
	}
	return gotItems, gotSkips
}

func TestScan_DefaultTextualSuffixesOnly(t *testing.T) {
	t.Log("=== Testing Scanner - default textual suffix allowlist ===")
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"readme.md":  "# hi",
		"notes.txt":  "notes",
		"main.go":    "package main",
		"image.png":  "binary",
	})

	s := New(nil, nil, 1<<20, nil, arbor.NewLogger())
	items, skips := collect(t, s, root)

	var names []string
	for _, it := range items {
		names = append(names, it.RelativePath)
	}
	assert.ElementsMatch(t, []string{"readme.md", "notes.txt"}, names)

	skipped := make(map[string]models.SkipReason)
	for _, sk := range skips {
		skipped[sk.RelativePath] = sk.Reason
	}
	assert.Equal(t, models.SkipExcluded, skipped["main.go"])
	assert.Equal(t, models.SkipExcluded, skipped["image.png"])
}

func TestScan_DeterministicLexicographicOrder(t *testing.T) {
	t.Log("=== Testing Scanner - deterministic ordering ===")
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"z.md": "z",
		"a.md": "a",
		"m.md": "m",
	})

	s := New(nil, nil, 1<<20, nil, arbor.NewLogger())
	items, _ := collect(t, s, root)

	var names []string
	for _, it := range items {
		names = append(names, it.RelativePath)
	}
	assert.Equal(t, []string{"a.md", "m.md", "z.md"}, names)
}

func TestScan_ExcludeGlobSkipsDirectorySubtree(t *testing.T) {
	t.Log("=== Testing Scanner - directory exclude pattern ===")
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"readme.md":            "keep",
		"vendor/dep/readme.md": "skip me",
	})

	s := New(nil, []string{"vendor/*"}, 1<<20, nil, arbor.NewLogger())
	items, skips := collect(t, s, root)

	var names []string
	for _, it := range items {
		names = append(names, it.RelativePath)
	}
	assert.Equal(t, []string{"readme.md"}, names)

	for _, sk := range skips {
		assert.NotContains(t, sk.RelativePath, "vendor")
	}
}

func TestScan_SizeCapSkipsTooLarge(t *testing.T) {
	t.Log("=== Testing Scanner - size cap enforcement ===")
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"small.md": "tiny",
		"big.md":   string(make([]byte, 100)),
	})

	s := New(nil, nil, 10, nil, arbor.NewLogger())
	items, skips := collect(t, s, root)

	var names []string
	for _, it := range items {
		names = append(names, it.RelativePath)
	}
	assert.Equal(t, []string{"small.md"}, names)

	found := false
	for _, sk := range skips {
		if sk.RelativePath == "big.md" {
			found = true
			assert.Equal(t, models.SkipTooLarge, sk.Reason)
		}
	}
	assert.True(t, found, "expected big.md to be reported as too large")
}

func TestScan_SizeCapTakesPriorityOverTextualSuffixFilter(t *testing.T) {
	t.Log("=== Testing Scanner - oversized non-textual file reported too_large, not excluded (S1) ===")
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"big.bin": string(make([]byte, 100)),
	})

	s := New(nil, nil, 10, nil, arbor.NewLogger())
	items, skips := collect(t, s, root)

	assert.Empty(t, items)
	require.Len(t, skips, 1)
	assert.Equal(t, "big.bin", skips[0].RelativePath)
	assert.Equal(t, models.SkipTooLarge, skips[0].Reason)
}

func TestScan_SkipsSymlinks(t *testing.T) {
	t.Log("=== Testing Scanner - symlinks are never followed ===")
	root := t.TempDir()
	writeTree(t, root, map[string]string{"real.md": "content"})

	link := filepath.Join(root, "link.md")
	if err := os.Symlink(filepath.Join(root, "real.md"), link); err != nil {
		t.Skipf("symlinks unsupported on this filesystem: %v", err)
	}

	s := New(nil, nil, 1<<20, nil, arbor.NewLogger())
	items, _ := collect(t, s, root)

	var names []string
	for _, it := range items {
		names = append(names, it.RelativePath)
	}
	assert.Equal(t, []string{"real.md"}, names)
}

func TestScan_CustomTextualSuffixes(t *testing.T) {
	t.Log("=== Testing Scanner - custom textual suffix override ===")
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"doc.rst": "restructured",
		"doc.md":  "markdown",
	})

	s := New(nil, nil, 1<<20, []string{".rst"}, arbor.NewLogger())
	items, _ := collect(t, s, root)

	var names []string
	for _, it := range items {
		names = append(names, it.RelativePath)
	}
	assert.Equal(t, []string{"doc.rst"}, names)
}
