// Package telemetry redacts user data before it reaches logs and spans.
package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sync/atomic"
	"unicode/utf8"
)

// PIILevel controls how much user data survives sanitization.
type PIILevel string

const (
	// PIILevelNone redacts user content entirely.
	PIILevelNone PIILevel = "none"
	// PIILevelHashed replaces identifiers with salted hashes.
	PIILevelHashed PIILevel = "hashed"
	// PIILevelFull keeps values as they are.
	PIILevelFull PIILevel = "full"
)

const (
	redacted = "[REDACTED]"
	// previewRunes bounds how much message text a log line may carry at PIILevelFull.
	previewRunes = 80
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\b\d{3}[-.\s]?\d{3}[-.\s]?\d{4}\b`)
	cardPattern  = regexp.MustCompile(`\b\d{4}[- ]?\d{4}[- ]?\d{4}[- ]?\d{4}\b`)
	ipv4Pattern  = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
)

// Sanitizer rewrites user ids, emails and message text according to a PIILevel.
type Sanitizer struct {
	level PIILevel
	salt  string
}

var defaultSanitizer atomic.Pointer[Sanitizer]

func init() {
	defaultSanitizer.Store(NewSanitizer(PIILevelHashed, ""))
}

// Default returns the process-wide sanitizer used by log call sites.
func Default() *Sanitizer {
	return defaultSanitizer.Load()
}

// SetDefault replaces the process-wide sanitizer. A nil sanitizer is ignored.
func SetDefault(s *Sanitizer) {
	if s != nil {
		defaultSanitizer.Store(s)
	}
}

// NewSanitizer returns a sanitizer. Unknown levels behave like PIILevelHashed.
func NewSanitizer(level PIILevel, salt string) *Sanitizer {
	switch level {
	case PIILevelNone, PIILevelHashed, PIILevelFull:
	default:
		level = PIILevelHashed
	}
	return &Sanitizer{level: level, salt: salt}
}

// Level reports the effective level.
func (s *Sanitizer) Level() PIILevel {
	return s.level
}

// UserID sanitizes an account or guest identifier. Empty ids stay empty.
func (s *Sanitizer) UserID(id string) string {
	if id == "" {
		return ""
	}
	switch s.level {
	case PIILevelNone:
		return redacted
	case PIILevelFull:
		return id
	default:
		return s.hash(id)
	}
}

// Email sanitizes an email address used at signup or login.
func (s *Sanitizer) Email(email string) string {
	if email == "" {
		return ""
	}
	switch s.level {
	case PIILevelNone:
		return redacted
	case PIILevelFull:
		return email
	default:
		return "[EMAIL:" + s.hash(email) + "]"
	}
}

// Content sanitizes message text. PIILevelFull keeps a truncated preview, PIILevelHashed
// keeps the text with embedded identifiers masked.
func (s *Sanitizer) Content(text string) string {
	switch s.level {
	case PIILevelNone:
		return redacted
	case PIILevelFull:
		return preview(text)
	default:
		return preview(s.mask(text))
	}
}

func (s *Sanitizer) mask(text string) string {
	text = emailPattern.ReplaceAllStringFunc(text, func(m string) string { return "[EMAIL:" + s.hash(m) + "]" })
	text = cardPattern.ReplaceAllString(text, "[CC:REDACTED]")
	text = phonePattern.ReplaceAllStringFunc(text, func(m string) string { return "[PHONE:" + s.hash(m) + "]" })
	return ipv4Pattern.ReplaceAllStringFunc(text, func(m string) string { return "[IP:" + s.hash(m) + "]" })
}

// hash returns the first 8 hex chars of sha256(value + salt).
func (s *Sanitizer) hash(value string) string {
	sum := sha256.Sum256([]byte(value + s.salt))
	return hex.EncodeToString(sum[:])[:8]
}

func preview(text string) string {
	if utf8.RuneCountInString(text) <= previewRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:previewRunes]) + "..."
}
