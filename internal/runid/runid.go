// Package runid derives short identifiers for ingestion runs.
package runid

import (
	"crypto/sha256"
	"sort"
	"strings"
	"time"

	"github.com/mr-tron/base58"
)

// New computes a deterministic run id using SHA256.
// Formula: SHA256(started_at_rfc3339nano|source,source,...) with the source
// names sorted, so the same start instant and source selection always map to
// the same id regardless of request order.
// Returns the first 10 hash bytes base58-encoded, short enough for logs.
func New(startedAt time.Time, sourceNames []string) string {
	names := make([]string, len(sourceNames))
	copy(names, sourceNames)
	sort.Strings(names)

	data := startedAt.UTC().Format(time.RFC3339Nano) + "|" + strings.Join(names, ",")
	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:10])
}
