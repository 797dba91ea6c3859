package history

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

var (
	// A leading hash or slash, or trailing whitespace.
	routeStripper = regexp.MustCompile(`^[#/]|\s+$`)

	// Leading and trailing slashes of a root.
	rootStripper = regexp.MustCompile(`^/+|/+$`)

	// Everything from the hash on.
	hashStripper = regexp.MustCompile(`#.*$`)
)

// Characters whose escapes DecodeFragment keeps, so that an encoded "/" or "?"
// inside a parameter does not change how the fragment splits.
const reserved = ";/?:@&=+$,#"

// DecodeFragment decodes the percent escapes of a URL path for matching. Escapes
// of reserved characters are kept as written, and so is %25 since it may be
// part of an encoded parameter. Malformed escapes are left untouched. The result
// is NFC normalized.
func DecodeFragment(fragment string) string {
	if !strings.Contains(fragment, "%") {
		return norm.NFC.String(fragment)
	}

	var b strings.Builder
	b.Grow(len(fragment))
	for i := 0; i < len(fragment); {
		if fragment[i] != '%' {
			b.WriteByte(fragment[i])
			i++
			continue
		}

		c, ok := unhexAt(fragment, i)
		if !ok {
			b.WriteByte('%')
			i++
			continue
		}

		if c < utf8.RuneSelf {
			if c == '%' || strings.IndexByte(reserved, c) >= 0 {
				b.WriteString(fragment[i : i+3])
			} else {
				b.WriteByte(c)
			}
			i += 3
			continue
		}

		// A multi-byte character: collect its continuation escapes.
		buf := []byte{c}
		j := i + 3
		for !utf8.FullRune(buf) && len(buf) < utf8.UTFMax {
			next, ok := unhexAt(fragment, j)
			if !ok {
				break
			}
			buf = append(buf, next)
			j += 3
		}
		if r, size := utf8.DecodeRune(buf); r != utf8.RuneError && size == len(buf) {
			b.Write(buf)
		} else {
			b.WriteString(fragment[i:j])
		}
		i = j
	}
	return norm.NFC.String(b.String())
}

func unhexAt(s string, i int) (byte, bool) {
	if i+2 >= len(s) || s[i] != '%' {
		return 0, false
	}
	hi, ok1 := unhex(s[i+1])
	lo, ok2 := unhex(s[i+2])
	if !ok1 || !ok2 {
		return 0, false
	}
	return hi<<4 | lo, true
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// NormalizeFragment strips a leading hash or slash and trailing whitespace.
func NormalizeFragment(fragment string) string {
	return routeStripper.ReplaceAllString(fragment, "")
}

// normalizeRoot gives root exactly one leading and one trailing slash.
func normalizeRoot(root string) string {
	return rootStripper.ReplaceAllString("/"+root+"/", "/")
}

// splitPath splits a Location path into its pathname and search ("?..."),
// dropping the hash.
func splitPath(p string) (pathname, search string) {
	p = hashStripper.ReplaceAllString(p, "")
	if i := strings.IndexByte(p, '?'); i >= 0 {
		pathname, search = p[:i], p[i:]
		if search == "?" {
			search = ""
		}
		return pathname, search
	}
	return p, ""
}
