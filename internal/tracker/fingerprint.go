package tracker

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Fingerprint computes a stable SHA-256 hash for an (errorType, sorted
// capabilities) pair. The Expander groups failures into CapabilityGaps by
// this exact key, so both packages bucket failures identically.
func Fingerprint(errorType string, capabilities []string) string {
	sorted := append([]string(nil), capabilities...)
	sort.Strings(sorted)
	h := sha256.New()
	h.Write([]byte(errorType))
	h.Write([]byte("|"))
	h.Write([]byte(strings.Join(sorted, ",")))
	return hex.EncodeToString(h.Sum(nil))
}
