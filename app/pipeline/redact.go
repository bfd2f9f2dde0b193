package pipeline

import (
	"regexp"
)

// Any run of 20+ alphanumerics is treated as a potential credential and
// replaced before a log message is persisted or buffered.
var secretPattern = regexp.MustCompile(`[A-Za-z0-9]{20,}`)

func Redact(message string) string {
	return secretPattern.ReplaceAllString(message, "[REDACTED]")
}
