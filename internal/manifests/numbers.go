package manifests

import (
	"fmt"
	"math/rand"
	"time"
)

// Manifest number prefixes.
const (
	prefixTransfer = "TRF"
	prefixReturn   = "RET"
)

// newManifestNo builds a human-readable manifest number from a UTC timestamp
// plus a random 3-digit suffix, e.g. TRF-20250114-093012-417. The unique index
// on manifest_no stays authoritative; creation retries with a fresh number on
// collision.
func newManifestNo(prefix string, t time.Time) string {
	return fmt.Sprintf("%s-%s-%03d", prefix, t.UTC().Format("20060102-150405"), 100+rand.Intn(900))
}
