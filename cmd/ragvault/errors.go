package main

import "github.com/sourcevault/ragvault/internal/rerr"

// exitCodeFor maps an error's rerr.Kind to the exit code spec.md's
// external interfaces section assigns it. Kinds outside the three named
// categories fall back to the generic store-error code, since most
// unclassified internal failures surface from a component that sits
// behind the store in the pipeline.
func exitCodeFor(err error) int {
	switch rerr.KindOf(err) {
	case rerr.ConfigInvalid, rerr.PathEscape:
		return exitUserError
	case rerr.SyncConflict, rerr.Unauthorized:
		return exitSyncError
	case rerr.EmbeddingUnavailable, rerr.EmbeddingRejected:
		return exitEmbeddingError
	default:
		return exitStoreError
	}
}
