// Package keyutil builds cache key material: deterministic argument
// fingerprints and colon-joined key segments.
package keyutil

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// Fingerprint returns a deterministic, collision-resistant digest of a call
// argument list: SHA-256 over the canonical JSON of args (the encoder sorts
// map keys, so map-shaped arguments fingerprint identically regardless of
// insertion order), truncated to 16 bytes and hex encoded. Arguments the
// encoder cannot represent (channels, funcs, cycles) yield an error.
func Fingerprint(args []any) (string, error) {
	b, err := json.Marshal(args)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:16]), nil
}

// Join assembles non-empty segments into a ':'-separated key.
func Join(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ":")
}
