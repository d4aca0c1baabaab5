package attach

import (
	"regexp"
	"strings"
)

var unsafeRunRe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeFolderName reduces a user-chosen folder name to [A-Za-z0-9._-].
// Runs of disallowed characters collapse into a single underscore and
// leading/trailing underscores are trimmed. The result may be empty; the
// caller then falls back to the record id. Idempotent.
func SanitizeFolderName(raw string) string {
	s := unsafeRunRe.ReplaceAllString(raw, "_")
	return strings.Trim(s, "_")
}
