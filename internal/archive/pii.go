package archive

import (
	"crypto/sha256"
	"fmt"
	"regexp"
)

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	// UK mobile and international formats as customers type them.
	phoneRe = regexp.MustCompile(`(\+44|0044|0)\s?7\d{3}\s?\d{3}\s?\d{3}|\+?\d{10,13}`)
)

// HashPhone returns the hex-encoded SHA-256 hash of a phone number.
func HashPhone(phone string) string {
	h := sha256.Sum256([]byte(phone))
	return fmt.Sprintf("%x", h)
}

// ScrubPII replaces emails with [EMAIL] and phone numbers with [PHONE].
// Addresses stay: they are the pickup location the record exists for.
func ScrubPII(text string) string {
	text = emailRe.ReplaceAllString(text, "[EMAIL]")
	text = phoneRe.ReplaceAllString(text, "[PHONE]")
	return text
}

// ScrubMessages applies PII scrubbing to all messages in-place.
func ScrubMessages(msgs []ThreadMessage) {
	for i := range msgs {
		msgs[i].Content = ScrubPII(msgs[i].Content)
	}
}
