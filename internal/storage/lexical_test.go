package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeMatchQuery(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple terms", "race condition", `"race" "condition"`},
		{"strips double quotes", `"exact phrase"`, `"exact" "phrase"`},
		{"strips single quotes", "it's broken", `"it" "s" "broken"`},
		{"operators become literals", "foo OR bar NOT baz", `"foo" "OR" "bar" "NOT" "baz"`},
		{"prefix glob neutralized", "auth*", `"auth*"`},
		{"collapses whitespace", "  a \t b\nc  ", `"a" "b" "c"`},
		{"empty", "", ""},
		{"only quotes", `"" ''`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeMatchQuery(tt.input))
		})
	}
}

func TestSanitizeMatchQueryCapsLength(t *testing.T) {
	long := strings.Repeat("a", 2*maxQueryChars)
	got := sanitizeMatchQuery(long)
	// one token of at most maxQueryChars, plus its surrounding quotes
	assert.LessOrEqual(t, len(got), maxQueryChars+2)
}

func TestSanitizeMatchQueryCapsTokens(t *testing.T) {
	words := make([]string, 0, maxQueryTokens+50)
	// keep total length under the char cap so only the token cap applies
	for i := 0; i < maxQueryTokens+50; i++ {
		words = append(words, "ab")
	}
	got := sanitizeMatchQuery(strings.Join(words, " "))
	assert.Equal(t, maxQueryTokens, strings.Count(got, `"ab"`))
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\% done`, escapeLike(`100% done`))
	assert.Equal(t, `snake\_case`, escapeLike(`snake_case`))
	assert.Equal(t, `a\\b`, escapeLike(`a\b`))
	assert.Equal(t, `plain`, escapeLike(`plain`))
}
