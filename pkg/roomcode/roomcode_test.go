package roomcode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerate(t *testing.T) {
	for i := 0; i < 100; i++ {
		code := Generate()
		assert.Len(t, code, Length)
		for _, r := range code {
			assert.Contains(t, alphabet, string(r), "generated code %q uses a character outside the alphabet", code)
		}
	}
}

func TestAlphabetExcludesAmbiguousCharacters(t *testing.T) {
	for _, c := range []string{"0", "1", "I", "O"} {
		assert.NotContains(t, alphabet, c)
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "ABC234", Normalize("  abc234 "))
	assert.Equal(t, "XYZW56", Normalize("xyzw56"))
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("ABC234"))
	assert.True(t, Valid(strings.Repeat("Z", Length)))

	assert.False(t, Valid("abc234"), "lowercase must be normalized before validation")
	assert.False(t, Valid("ABC23"))
	assert.False(t, Valid("ABC2345"))
	assert.False(t, Valid(""))
	assert.False(t, Valid("ABC-23"))

	// characters outside the alphabet never validate, even when they look
	// like plausible code characters
	assert.False(t, Valid("ABC230"))
	assert.False(t, Valid("ABC23O"))
	assert.False(t, Valid("ABC23I"))
	assert.False(t, Valid("ABC231"))
}
