package pipeline

import (
	"strings"
	"testing"
)

func TestRedactLongTokens(t *testing.T) {
	message := "request failed: api key sk1234567890abcdefghijklmn rejected"
	redacted := Redact(message)

	if strings.Contains(redacted, "sk1234567890abcdefghijklmn") {
		t.Errorf("Expected token redacted, got: %s", redacted)
	}
	if !strings.Contains(redacted, "[REDACTED]") {
		t.Errorf("Expected redaction marker, got: %s", redacted)
	}
}

func TestRedactLeavesShortTokens(t *testing.T) {
	message := "feed example.com returned HTTP 429 after 3 attempts"
	if got := Redact(message); got != message {
		t.Errorf("Short tokens must pass through, got: %s", got)
	}
}

func TestRedactMultiple(t *testing.T) {
	message := "k1=aaaaaaaaaaaaaaaaaaaaaaaa k2=bbbbbbbbbbbbbbbbbbbbbbbb"
	redacted := Redact(message)
	if strings.Count(redacted, "[REDACTED]") != 2 {
		t.Errorf("Expected both tokens redacted, got: %s", redacted)
	}
}
