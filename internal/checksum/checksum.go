// Package checksum provides content hashing for change detection and for
// the deterministic library-identity fallback.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// PathID returns a deterministic identifier derived from a vault-relative
// path. It stands in for a library's UUID until a generated one exists in
// that library's own sidecar.
func PathID(path string) string {
	return "path-" + Sum([]byte(path))[:32]
}
