package pipeline

import (
	"path/filepath"
	"strings"
)

// SanitizeFilename reduces an untrusted uploader-supplied name to a safe,
// flat filename: path components are dropped and anything outside
// [A-Za-z0-9._-] becomes an underscore.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	out := strings.Trim(b.String(), ".")
	if out == "" {
		out = "upload"
	}
	return out
}
