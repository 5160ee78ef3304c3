// Package rerr defines the error-kind taxonomy shared by every pipeline
// component, so the tool server can map a failure to a stable code and the
// orchestrator can decide whether it is per-file, per-batch, or run-fatal.
package rerr

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Kind is a stable error code surfaced to tool callers and log lines.
type Kind string

const (
	ConfigInvalid        Kind = "ConfigInvalid"
	PathEscape           Kind = "PathEscape"
	SyncConflict         Kind = "SyncConflict"
	Unauthorized         Kind = "Unauthorized"
	FileUnreadable       Kind = "FileUnreadable"
	NotText              Kind = "NotText"
	TooLarge             Kind = "TooLarge"
	EmbeddingUnavailable Kind = "EmbeddingUnavailable"
	EmbeddingRejected    Kind = "EmbeddingRejected"
	SchemaMismatch       Kind = "SchemaMismatch"
	StoreUnavailable     Kind = "StoreUnavailable"
	LockTimeout          Kind = "LockTimeout"
	Cancelled            Kind = "Cancelled"
	Internal             Kind = "Internal"
)

// Error carries the context every propagated error must have: the
// operation, the repository URL and relative path when known, a stable
// kind, and the wrapped cause. Messages never contain credentials; use
// Redact on any string that might embed a URL before attaching it.
type Error struct {
	Kind    Kind
	Op      string
	RepoURL string
	RelPath string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Op != "" {
		b.WriteString(" during ")
		b.WriteString(e.Op)
	}
	if e.RepoURL != "" {
		b.WriteString(" repo=")
		b.WriteString(Redact(e.RepoURL))
	}
	if e.RelPath != "" {
		b.WriteString(" path=")
		b.WriteString(e.RelPath)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error wrapping cause with the given kind and operation.
func New(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// WithRepo attaches repository/path context and returns the receiver for
// chaining, e.g. rerr.New(...).WithRepo(url, relPath).
func (e *Error) WithRepo(repoURL, relPath string) *Error {
	e.RepoURL = Redact(repoURL)
	e.RelPath = relPath
	return e
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error; otherwise returns Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// IsRunFatal reports whether kind belongs to the run-fatal class that
// aborts an ingest and surfaces to the caller, per the propagation policy:
// SyncConflict, SchemaMismatch, StoreUnavailable, Unauthorized.
func IsRunFatal(kind Kind) bool {
	switch kind {
	case SyncConflict, SchemaMismatch, StoreUnavailable, Unauthorized:
		return true
	default:
		return false
	}
}

// Redact strips any embedded userinfo (credentials) from a URL-shaped
// string so it is safe to log or return to a tool caller. Non-URL strings
// are returned unchanged.
func Redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = nil
	s := u.String()
	if i := strings.Index(s, "//"); i >= 0 {
		return s[:i+2] + "***:***@" + s[i+2:]
	}
	return s
}

// Sentinelf is a convenience for building a plain wrapped error when no
// Kind classification is needed yet (e.g. deep inside a helper before the
// caller assigns a Kind).
func Sentinelf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}
