package router

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	optionalParam = regexp.MustCompile(`\((.*?)\)`)
	namedParam    = regexp.MustCompile(`(\(\?)?:\w+`)
	splatParam    = regexp.MustCompile(`\*\w+`)
	escapeRegExp  = regexp.MustCompile(`[-{}\[\]+?.,\\^$|#\s]`)
)

// Compile converts a route pattern into the regular expression it matches
// fragments with.
func Compile(pattern string) (*regexp.Regexp, error) {
	expr := escapeRegExp.ReplaceAllString(pattern, `\$0`)
	expr = optionalParam.ReplaceAllString(expr, `(?:${1})?`)
	expr = namedParam.ReplaceAllStringFunc(expr, func(m string) string {
		if strings.HasPrefix(m, "(?") {
			return m
		}
		return `([^/?]+)`
	})
	expr = splatParam.ReplaceAllString(expr, `([^?]*?)`)

	re, err := regexp.Compile(`^` + expr + `(?:\?([\s\S]*))?$`)
	if err != nil {
		return nil, fmt.Errorf("compile route %q: %w", pattern, err)
	}
	return re, nil
}

// MustCompile is Compile for patterns known to be valid. It panics on error.
func MustCompile(pattern string) *regexp.Regexp {
	re, err := Compile(pattern)
	if err != nil {
		panic(err)
	}
	return re
}

// ExtractParameters returns the arguments re captures from fragment. The last
// capture is the query string and is returned undecoded; the others are
// URL-decoded. Empty and unmatched captures are nil.
func ExtractParameters(re *regexp.Regexp, fragment string) []any {
	m := re.FindStringSubmatch(fragment)
	if m == nil {
		return nil
	}
	params := m[1:]
	args := make([]any, len(params))
	for i, p := range params {
		switch {
		case p == "":
			args[i] = nil
		case i == len(params)-1:
			args[i] = p
		default:
			if d, err := url.PathUnescape(p); err == nil {
				args[i] = d
			} else {
				args[i] = p
			}
		}
	}
	return args
}
