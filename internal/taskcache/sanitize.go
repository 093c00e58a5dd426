package taskcache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const maxNameLen = 100

// SanitizeName derives a filesystem-safe name from a company or agent
// name. Lowercase ASCII letters and digits pass through, every other
// run of characters collapses to a single underscore, and the result
// is trimmed and length-capped. Names that sanitize to nothing fall
// back to a hash so distinct inputs stay distinct.
func SanitizeName(name string) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
		default:
			pending = true
		}
	}

	out := b.String()
	if len(out) > maxNameLen {
		out = strings.TrimRight(out[:maxNameLen], "_")
	}
	if out == "" {
		sum := sha256.Sum256([]byte(name))
		out = "name_" + hex.EncodeToString(sum[:])[:12]
	}
	return out
}
