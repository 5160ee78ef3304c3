// Package docbuilder implements the Document Builder: reading a file,
// detecting textuality, normalizing markdown, extracting title,
// description, and language hints, and computing the content-addressed
// identity every downstream component keys on.
//
// The teacher repo (ternarybob-quaero) carries goldmark in its go.mod but
// never parses markdown with it, relying instead on storing
// ContentMarkdown verbatim. This package is where that dependency finally
// gets exercised: goldmark's AST walk locates the first heading and first
// paragraph precisely (including across code fences) rather than by line
// scanning.
package docbuilder

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/sourcevault/ragvault/internal/models"
)

// languageBySuffix maps a file extension to a language hint. Unknown
// extensions yield "".
var languageBySuffix = map[string]string{
	".md":       "markdown",
	".markdown": "markdown",
	".txt":      "text",
}

const maxDescriptionBytes = 512

// Builder turns one work item into a document row or a skip reason.
type Builder struct {
	RepositoryURL string
}

// New returns a Builder that stamps every produced document with
// repositoryURL as its provenance.
func New(repositoryURL string) *Builder {
	return &Builder{RepositoryURL: repositoryURL}
}

// Build reads item's file, normalizes it if it is markdown, and produces a
// Document row, or a Skip when the file cannot be read or its content is
// not valid UTF-8.
func (b *Builder) Build(item models.WorkItem) (*models.Document, *models.Skip) {
	raw, err := os.ReadFile(item.AbsolutePath)
	if err != nil {
		return nil, &models.Skip{RelativePath: item.RelativePath, Reason: models.SkipUnreadable}
	}

	if !utf8.Valid(raw) {
		return nil, &models.Skip{RelativePath: item.RelativePath, Reason: models.SkipNonText}
	}

	ext := strings.ToLower(filepath.Ext(item.RelativePath))
	isMarkdown := ext == ".md" || ext == ".markdown"

	content := string(raw)
	normalized := false
	if isMarkdown {
		content = Normalize(content)
		normalized = true
	}

	title, description := extractTitleAndDescription(content, isMarkdown, item.RelativePath)

	sum := sha256.Sum256([]byte(content))
	hash := hex.EncodeToString(sum[:])

	doc := &models.Document{
		ID:            hash,
		FilePath:      item.AbsolutePath,
		RelativePath:  item.RelativePath,
		RepositoryURL: b.RepositoryURL,
		Content:       content,
		ContentHash:   hash,
		FileSize:      item.Size,
		LastModified:  item.MTime,
		ParsedAt:      time.Now().Unix(),
		Normalized:    normalized,
		Title:         title,
		Description:   description,
		Language:      languageBySuffix[ext],
	}
	return doc, nil
}

// Normalize applies markdown normalization: strip a leading BOM, collapse
// consecutive blank lines to at most one, trim trailing whitespace from
// each line, and ensure exactly one trailing newline. Code fences
// (```...```) are left untouched — normalization runs line-by-line
// outside this function's own bookkeeping of fence state, so no
// transformation ever rewrites a fenced line's content.
//
// Normalize is idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(content string) string {
	content = strings.TrimPrefix(content, "\xef\xbb\xbf")

	lines := strings.Split(content, "\n")
	var out []string
	blank := false
	inFence := false

	for _, line := range lines {
		trimmedFence := strings.TrimSpace(line)
		if strings.HasPrefix(trimmedFence, "```") {
			inFence = !inFence
			out = append(out, line)
			blank = false
			continue
		}

		if inFence {
			out = append(out, line)
			blank = false
			continue
		}

		trimmed := rtrim(line)
		if trimmed == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, trimmed)
	}

	result := strings.Join(out, "\n")
	result = strings.TrimRight(result, "\n")
	return result + "\n"
}

func rtrim(s string) string {
	return strings.TrimRight(s, " \t\r")
}

// extractTitleAndDescription finds the first level-1 heading (title,
// falling back to the file stem) and the first non-empty paragraph
// following it (description, truncated to 512 bytes on a rune boundary).
func extractTitleAndDescription(content string, isMarkdown bool, relPath string) (title, description string) {
	stem := strings.TrimSuffix(filepath.Base(relPath), filepath.Ext(relPath))
	title = stem

	if !isMarkdown {
		return title, ""
	}

	src := []byte(content)
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))

	var headingFound bool
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			if node.Level == 1 && !headingFound {
				title = stripInline(node, src)
				headingFound = true
			}
		case *ast.Paragraph:
			if headingFound && description == "" {
				description = truncateBytes(stripInline(node, src), maxDescriptionBytes)
			}
		}
		return ast.WalkContinue, nil
	})

	return title, description
}

func stripInline(n ast.Node, src []byte) string {
	var b bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			b.Write(t.Segment.Value(src))
		}
	}
	return strings.TrimSpace(b.String())
}

// truncateBytes truncates s to at most n bytes on a UTF-8 rune boundary.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return strings.TrimSpace(s[:n])
}
