package xmltext

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

var predefinedEntities = []struct {
	ref string
	lit byte
}{
	{ref: "&amp;", lit: '&'},
	{ref: "&gt;", lit: '>'},
	{ref: "&lt;", lit: '<'},
	{ref: "&quot;", lit: '"'},
	{ref: "&apos;", lit: '\''},
}

// DecodeEntities converts the predefined entities and numeric character
// references (&#D; and &#xH;) into their literal characters. U+FFFD is
// replaced with a single space. Malformed references are kept verbatim.
func DecodeEntities(s string) string {
	if strings.IndexByte(s, '&') < 0 && !strings.ContainsRune(s, utf8.RuneError) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		c := s[i]
		if c == '&' {
			if lit, n, ok := matchPredefined(s[i:]); ok {
				b.WriteByte(lit)
				i += n
				continue
			}
			if r, n, ok := parseCharRef(s[i:]); ok {
				b.WriteRune(r)
				i += n
				continue
			}
			b.WriteByte(c)
			i++
			continue
		}
		if c < utf8.RuneSelf {
			b.WriteByte(c)
			i++
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 3 {
			// literal U+FFFD, not an invalid byte
			b.WriteByte(' ')
		} else {
			b.WriteString(s[i : i+size])
		}
		i += size
	}
	return b.String()
}

func matchPredefined(s string) (byte, int, bool) {
	for _, e := range predefinedEntities {
		if strings.HasPrefix(s, e.ref) {
			return e.lit, len(e.ref), true
		}
	}
	return 0, 0, false
}

// parseCharRef reads a numeric character reference at the start of s.
// It returns the decoded rune and the number of bytes consumed.
func parseCharRef(s string) (rune, int, bool) {
	if len(s) < 4 || s[0] != '&' || s[1] != '#' {
		return 0, 0, false
	}
	base := 10
	start := 2
	if s[2] == 'x' || s[2] == 'X' {
		base = 16
		start = 3
	}
	end := start
	for end < len(s) && isDigit(s[end], base) {
		end++
	}
	if end == start || end >= len(s) || s[end] != ';' {
		return 0, 0, false
	}
	value, err := strconv.ParseUint(s[start:end], base, 32)
	if err != nil {
		return 0, 0, false
	}
	r := rune(value)
	if !utf8.ValidRune(r) {
		return 0, 0, false
	}
	return r, end + 1, true
}

func isDigit(c byte, base int) bool {
	switch {
	case c >= '0' && c <= '9':
		return true
	case base == 16 && c >= 'a' && c <= 'f':
		return true
	case base == 16 && c >= 'A' && c <= 'F':
		return true
	default:
		return false
	}
}

// EncodeEntities escapes & > < " ' as entities. With encodeNonASCII set,
// every code point above 128 becomes &#x<hex>; first; the ampersand of
// such a reference is emitted verbatim and never re-escaped.
func EncodeEntities(s string, encodeNonASCII bool) string {
	var b strings.Builder
	b.Grow(len(s) + len(s)/8)
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		raw := s[i : i+size]
		i += size
		if r == utf8.RuneError && size == 1 {
			b.WriteString(raw)
			continue
		}
		if encodeNonASCII && r > 128 {
			b.WriteString("&#x")
			b.WriteString(strconv.FormatInt(int64(r), 16))
			b.WriteByte(';')
			continue
		}
		switch r {
		case '&':
			b.WriteString("&amp;")
		case '>':
			b.WriteString("&gt;")
		case '<':
			b.WriteString("&lt;")
		case '"':
			b.WriteString("&quot;")
		case '\'':
			b.WriteString("&apos;")
		default:
			b.WriteString(raw)
		}
	}
	return b.String()
}
