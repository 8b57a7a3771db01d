package common

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeUserID(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"user-1", "user-1"},
		{"user<script>@corp", "userscriptcorp"},
		{"", "default-user"},
		{"!!!", "default-user"},
		{strings.Repeat("a", 80), strings.Repeat("a", 50)},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, SanitizeUserID(tc.in), "input %q", tc.in)
	}
}

func TestValidateRunID(t *testing.T) {
	assert.NoError(t, ValidateRunID("3b1f8f2a-9c4e-4d2b-8a6f-1c2d3e4f5a6b"))
	assert.ErrorIs(t, ValidateRunID("not-a-uuid"), ErrValidation)
	assert.ErrorIs(t, ValidateRunID(""), ErrValidation)
	assert.ErrorIs(t, ValidateRunID("../../etc/passwd"), ErrValidation)
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"escritura.pdf", "escritura.pdf"},
		{"../../etc/passwd", "passwd"},
		{"con espacios y (parentesis).docx", "con_espacios_y__parentesis_.docx"},
		{"tilde_á.txt", "tilde__.txt"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, SanitizeFilename(tc.in), "input %q", tc.in)
	}
}

func TestSanitizeFilenameCapsLongNames(t *testing.T) {
	long := strings.Repeat("a", 300) + ".pdf"
	got := SanitizeFilename(long)
	assert.LessOrEqual(t, len(got), 255)
	assert.True(t, strings.HasSuffix(got, ".pdf"))
}

func TestSanitizeText(t *testing.T) {
	assert.Equal(t, "hola\tmundo\nadios", SanitizeText("hola\tmundo\nadios", 100))
	assert.Equal(t, "sin nulos", SanitizeText("sin \x00nulos\x01", 100))
	assert.Equal(t, "ab", SanitizeText("abcdef", 2))
}

func TestTruncateRuneSafe(t *testing.T) {
	assert.Equal(t, "hola", Truncate("hola", 10))
	assert.Equal(t, "ho", Truncate("hola", 2))
	// "í" is two bytes; cutting in the middle must back up to the rune start.
	assert.Equal(t, "garant", Truncate("garantía", 7))
	assert.Equal(t, "", Truncate("ía", 1))
}
