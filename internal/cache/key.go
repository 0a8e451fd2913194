package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Key derives a deterministic cache key from a structured parameter map.
// encoding/json sorts map keys, so equivalent parameter sets hash
// identically across calls and process restarts.
func Key(prefix string, params map[string]any) string {
	canonical, err := json.Marshal(params)
	if err != nil {
		// Maps of JSON-safe values cannot fail to marshal; fall back to an
		// empty-params key rather than erroring a read path.
		canonical = []byte("{}")
	}
	sum := sha256.Sum256(canonical)
	return prefix + hex.EncodeToString(sum[:])
}
