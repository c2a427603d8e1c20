package utils

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{"short string", "hello", 10, "hello"},
		{"long string", "hello world", 5, "he..."},
		{"very short max", "hello", 2, "he"},
		{"exact length", "hello", 5, "hello"},
		{"multibyte kept whole", "café crème", 6, "caf..."},
		{"multibyte at cut", "ééééé", 4, "é..."},
		{"zero", "hello", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TruncateString(tt.input, tt.maxLen))
		})
	}
}

func TestTruncateString_ValidUTF8(t *testing.T) {
	s := strings.Repeat("日本語", 200)
	for _, n := range []int{1, 4, 5, 100, 511} {
		out := TruncateString(s, n)
		assert.True(t, utf8.ValidString(out), "cut at %d", n)
		assert.LessOrEqual(t, utf8.RuneCountInString(out), n)
	}
}

func TestMaskSensitive(t *testing.T) {
	tests := []struct {
		input        string
		visibleChars int
		expected     string
	}{
		{"password123", 3, "pas********"},
		{"token", 2, "to***"},
		{"short", 10, "*****"},
		{"clé-secrète", 3, "clé********"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, MaskSensitive(tt.input, tt.visibleChars))
		})
	}
}
