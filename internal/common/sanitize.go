package common

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	userIDStrip   = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
	filenameStrip = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
)

// SanitizeUserID strips special characters, caps the length, and falls back
// to a stable default when nothing is left.
func SanitizeUserID(userID string) string {
	s := userIDStrip.ReplaceAllString(userID, "")
	if len(s) > 50 {
		s = s[:50]
	}
	if s == "" {
		return "default-user"
	}
	return s
}

// ValidateRunID checks the run ID is a well-formed UUID.
func ValidateRunID(runID string) error {
	if _, err := uuid.Parse(runID); err != nil {
		return ValidationErrorf("invalid run ID format")
	}
	return nil
}

// SanitizeFilename removes path components and special characters so the name
// is safe to echo into keys and content-disposition headers.
func SanitizeFilename(name string) string {
	name = filepath.Base(name)
	s := filenameStrip.ReplaceAllString(name, "_")
	if len(s) > 255 {
		ext := filepath.Ext(s)
		s = s[:255-len(ext)] + ext
	}
	return s
}

// SanitizeText strips control characters (newline and tab excepted) and caps
// the length. All extracted text passes through here before reaching the
// analysis prompt.
func SanitizeText(text string, maxLen int) string {
	text = strings.ReplaceAll(text, "\x00", "")
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r == '\n' || r == '\t' || r >= 32 {
			b.WriteRune(r)
		}
	}
	return Truncate(b.String(), maxLen)
}

// Truncate caps s at max bytes without splitting a multi-byte rune.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8start(s[cut]) {
		cut--
	}
	return s[:cut]
}

func utf8start(b byte) bool {
	return b&0xC0 != 0x80
}
