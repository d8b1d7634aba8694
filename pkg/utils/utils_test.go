package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeDisplayName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Sam Okafor", "Sam Okafor"},
		{"control chars", "Sam\x00Okafor", "Sam Okafor"},
		{"newlines and tabs", "Sam\n\tOkafor", "Sam Okafor"},
		{"padding", "  Sam   Okafor  ", "Sam Okafor"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeDisplayName(tt.input))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello", Truncate("hello", 10))
	assert.Equal(t, "hello", Truncate("hello", 5))
	assert.Equal(t, "hel...", Truncate("hello", 3))
	assert.Equal(t, "", Truncate("hello", 0))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "sam@example.com", NormalizeEmail("  Sam@Example.COM "))
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "********", MaskSecret("short", 4))
	assert.Equal(t, "********", MaskSecret("12345678", 4))
	assert.Equal(t, "tok-…3456", MaskSecret("tok-abcdef123456", 4))
	assert.Equal(t, "********", MaskSecret("anything", 0))
}

func TestRemaining(t *testing.T) {
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 90*time.Second, Remaining(now.Add(90*time.Second+300*time.Millisecond), now))
	assert.Equal(t, time.Duration(0), Remaining(now.Add(-time.Minute), now))
}
