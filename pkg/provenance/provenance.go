// Package provenance builds the audit metadata attached to every extracted
// listing. The reconciler stores this map verbatim and never interprets it.
package provenance

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Version identifies the crawler build recorded in every stamp.
const Version = "1.0"

// Keys used inside the raw-data map.
const (
	KeyScrapedAt   = "scraped_at"
	KeyAdapter     = "adapter"
	KeyCrawler     = "crawler_version"
	KeyFingerprint = "fingerprint"
)

// Stamp returns a fresh audit map for one extraction by the named adapter.
func Stamp(adapter, sourceURL string) map[string]any {
	return map[string]any{
		KeyScrapedAt:   time.Now().UTC().Format(time.RFC3339),
		KeyAdapter:     adapter,
		KeyCrawler:     Version,
		KeyFingerprint: Fingerprint(sourceURL),
	}
}

// Fingerprint computes the SHA-256 hex digest of a listing's source URL,
// a stable handle for cross-run audit trails.
func Fingerprint(sourceURL string) string {
	hash := sha256.Sum256([]byte(sourceURL))

	return hex.EncodeToString(hash[:])
}
