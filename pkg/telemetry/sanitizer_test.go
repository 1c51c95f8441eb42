package telemetry

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSanitizerUnknownLevelFallsBackToHashed(t *testing.T) {
	assert.Equal(t, PIILevelHashed, NewSanitizer("verbose", "svc").Level())
	assert.Equal(t, PIILevelNone, NewSanitizer(PIILevelNone, "svc").Level())
}

func TestUserID(t *testing.T) {
	tests := []struct {
		name  string
		level PIILevel
		input string
		check func(t *testing.T, out string)
	}{
		{"empty stays empty", PIILevelHashed, "", func(t *testing.T, out string) { assert.Empty(t, out) }},
		{"none redacts", PIILevelNone, "guest_abc", func(t *testing.T, out string) { assert.Equal(t, "[REDACTED]", out) }},
		{"full keeps", PIILevelFull, "guest_abc", func(t *testing.T, out string) { assert.Equal(t, "guest_abc", out) }},
		{"hashed", PIILevelHashed, "guest_abc", func(t *testing.T, out string) {
			assert.Len(t, out, 8)
			assert.NotEqual(t, "guest_abc", out)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, NewSanitizer(tt.level, "svc").UserID(tt.input))
		})
	}
}

func TestHashIsSaltedAndStable(t *testing.T) {
	a := NewSanitizer(PIILevelHashed, "one")
	b := NewSanitizer(PIILevelHashed, "two")
	assert.Equal(t, a.UserID("u1"), a.UserID("u1"))
	assert.NotEqual(t, a.UserID("u1"), b.UserID("u1"))
}

func TestEmail(t *testing.T) {
	s := NewSanitizer(PIILevelHashed, "svc")
	out := s.Email("jane@example.com")
	assert.True(t, strings.HasPrefix(out, "[EMAIL:"))
	assert.NotContains(t, out, "jane")
	assert.Equal(t, "jane@example.com", NewSanitizer(PIILevelFull, "svc").Email("jane@example.com"))
}

func TestContentMasksIdentifiers(t *testing.T) {
	s := NewSanitizer(PIILevelHashed, "svc")
	out := s.Content("mail jane@example.com or call 555-123-4567 from 10.0.0.1, card 4111 1111 1111 1111")

	assert.NotContains(t, out, "jane@example.com")
	assert.NotContains(t, out, "555-123-4567")
	assert.NotContains(t, out, "10.0.0.1")
	assert.Contains(t, out, "[CC:REDACTED]")
	assert.Contains(t, out, "mail [EMAIL:")
}

func TestContentPreviewTruncatesOnRunes(t *testing.T) {
	s := NewSanitizer(PIILevelFull, "svc")
	long := strings.Repeat("é", 100)
	out := s.Content(long)
	assert.Equal(t, strings.Repeat("é", 80)+"...", out)
	assert.Equal(t, "short", s.Content("short"))
	assert.Equal(t, "[REDACTED]", NewSanitizer(PIILevelNone, "svc").Content("short"))
}

func TestSetDefault(t *testing.T) {
	prev := Default()
	t.Cleanup(func() { SetDefault(prev) })

	SetDefault(NewSanitizer(PIILevelFull, ""))
	assert.Equal(t, "guest_abc", Default().UserID("guest_abc"))

	SetDefault(nil)
	assert.Equal(t, PIILevelFull, Default().Level())
}
