// Package registry implements the Repository Registry, component G:
// durable metadata about every ingested repository, persisted as a single
// JSON file guarded by an in-process read-write lock and written
// atomically via a temp-file-then-rename swap.
//
// The validate-then-persist shape of Upsert is adapted from
// ternarybob-quaero's internal/services/sources.Service.CreateSource,
// simplified by dropping its auth-domain cross-check and event-bus
// publish (this registry has no auth concept and no UI to notify). The
// atomic temp-file+rename write has no teacher analog — quaero's sources
// service persists through a Badger-backed SourceStorage rather than a
// bare JSON file — and is grounded instead on the standard os.CreateTemp
// + os.Rename idiom for crash-safe file replacement.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/sourcevault/ragvault/internal/interfaces"
	"github.com/sourcevault/ragvault/internal/models"
	"github.com/sourcevault/ragvault/internal/rerr"
)

const currentVersion = 1

// Registry is a JSON-file-backed implementation of interfaces.Registry.
type Registry struct {
	path   string
	mu     sync.RWMutex
	doc    models.RegistryDocument
	logger arbor.ILogger
}

// Open loads the registry document from path, creating an empty one if it
// does not yet exist.
func Open(path string, logger arbor.ILogger) (*Registry, error) {
	r := &Registry{path: path, logger: logger, doc: models.RegistryDocument{Version: currentVersion}}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, rerr.New(rerr.Internal, "registry_open", err)
	}

	if err := json.Unmarshal(data, &r.doc); err != nil {
		return nil, rerr.New(rerr.Internal, "registry_parse", err)
	}
	return r, nil
}

var _ interfaces.Registry = (*Registry)(nil)

// Upsert inserts or replaces entry, keyed by Identifier, and persists the
// result atomically.
func (r *Registry) Upsert(entry models.RegistryEntry) error {
	if entry.Identifier == "" {
		return rerr.New(rerr.ConfigInvalid, "registry_upsert", fmt.Errorf("identifier is required"))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	found := false
	for i, existing := range r.doc.Entries {
		if existing.Identifier == entry.Identifier {
			r.doc.Entries[i] = entry
			found = true
			break
		}
	}
	if !found {
		r.doc.Entries = append(r.doc.Entries, entry)
	}

	return r.persistLocked()
}

// Get returns the entry for identifier, if present.
func (r *Registry) Get(identifier string) (models.RegistryEntry, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.doc.Entries {
		if e.Identifier == identifier {
			return e, true, nil
		}
	}
	return models.RegistryEntry{}, false, nil
}

// List returns a snapshot of all entries as of the last completed write.
func (r *Registry) List() ([]models.RegistryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.RegistryEntry, len(r.doc.Entries))
	copy(out, r.doc.Entries)
	return out, nil
}

// Remove deletes the entry for identifier and persists the result. Cascade
// deletion of the entry's vector-store rows is the caller's responsibility
// (the tool server invokes the store directly), since the registry has no
// dependency on the vector store.
func (r *Registry) Remove(identifier string) (models.RegistryEntry, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, e := range r.doc.Entries {
		if e.Identifier == identifier {
			r.doc.Entries = append(r.doc.Entries[:i], r.doc.Entries[i+1:]...)
			if err := r.persistLocked(); err != nil {
				return models.RegistryEntry{}, false, err
			}
			return e, true, nil
		}
	}
	return models.RegistryEntry{}, false, nil
}

// persistLocked writes r.doc to r.path via a temp file in the same
// directory followed by a rename, so a crash mid-write never leaves a
// truncated or partially-written registry file behind. Callers must hold
// r.mu for writing.
func (r *Registry) persistLocked() error {
	r.doc.Version = currentVersion

	data, err := json.MarshalIndent(r.doc, "", "  ")
	if err != nil {
		return rerr.New(rerr.Internal, "registry_marshal", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return rerr.New(rerr.Internal, "registry_mkdir", err)
	}

	tmp, err := os.CreateTemp(dir, ".registry-*.tmp")
	if err != nil {
		return rerr.New(rerr.Internal, "registry_tempfile", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return rerr.New(rerr.Internal, "registry_write", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return rerr.New(rerr.Internal, "registry_close", err)
	}

	if err := os.Rename(tmpPath, r.path); err != nil {
		os.Remove(tmpPath)
		return rerr.New(rerr.Internal, "registry_rename", err)
	}
	return nil
}
