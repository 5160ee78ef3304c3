package ingest

import (
	"crypto/sha256"
	"encoding/hex"
)

// hashedDirName derives a filesystem-safe, collision-resistant directory
// name for a repository's local working tree from its source URL, so two
// ingests never collide on disk regardless of how the URL is spelled.
func hashedDirName(repoURL string) string {
	sum := sha256.Sum256([]byte(repoURL))
	return hex.EncodeToString(sum[:])[:16]
}
