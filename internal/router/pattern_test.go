package router

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile(t *testing.T) {
	cases := map[string]string{
		"search/:query":             `^search/([^/?]+)(?:\?([\s\S]*))?$`,
		"files/*path":               `^files/([^?]*?)(?:\?([\s\S]*))?$`,
		"docs(/:section)":           `^docs(?:/([^/?]+))?(?:\?([\s\S]*))?$`,
		"x+y.z":                     `^x\+y\.z(?:\?([\s\S]*))?$`,
		"":                          `^(?:\?([\s\S]*))?$`,
		"a-b":                       `^a\-b(?:\?([\s\S]*))?$`,
		"named/optional/(y:z)":      `^named/optional/(?:y([^/?]+))?(?:\?([\s\S]*))?$`,
		":repo/compare/*from...*to": `^([^/?]+)/compare/([^?]*?)\.\.\.([^?]*?)(?:\?([\s\S]*))?$`,
	}
	for pattern, want := range cases {
		re, err := Compile(pattern)
		require.NoError(t, err, pattern)
		assert.Equal(t, want, re.String(), pattern)
	}
}

func TestCompile_Invalid(t *testing.T) {
	_, err := Compile("unbalanced(")
	assert.ErrorContains(t, err, `compile route "unbalanced("`)
	assert.Panics(t, func() { MustCompile("unbalanced(") })
}

func TestExtractParameters(t *testing.T) {
	re := MustCompile("search/:query/p:page")

	assert.Equal(t, []any{"café au lait", "2", nil}, ExtractParameters(re, "search/caf%C3%A9%20au%20lait/p2"))
	assert.Equal(t, []any{"a", "1", "x=%20y"}, ExtractParameters(re, "search/a/p1?x=%20y"))
	assert.Nil(t, ExtractParameters(re, "elsewhere"))

	// A malformed escape is passed through rather than failing the route.
	assert.Equal(t, []any{"100%", "1", nil}, ExtractParameters(re, "search/100%/p1"))

	plain := regexp.MustCompile(`^about$`)
	assert.Empty(t, ExtractParameters(plain, "about"))
}
