package xmltext

import (
	"regexp"
	"strings"
)

// attributePattern matches name="value" or name='value'. A double-quoted
// value may hold single quotes and vice versa.
var attributePattern = regexp.MustCompile(`[\p{L}\p{N}_]+(?:-[\p{L}\p{N}_]+)*\s*=\s*(?:"[^"]*"|'[^']*')`)

// TagProperties returns the attributes of the first start tag of tag at or
// after from. Values are raw; use DecodeEntities where needed. A missing
// tag yields an empty map.
func TagProperties(text, tag string, from int) map[string]string {
	props := make(map[string]string)
	name := CleanTagName(tag)
	span, ok := FindStartTag(text, name, from)
	if !ok {
		return props
	}
	regionStart := span.Start + 1 + len(name)
	if regionStart >= span.End {
		return props
	}
	for _, attr := range attributePattern.FindAllString(text[regionStart:span.End], -1) {
		key, value, found := strings.Cut(attr, "=")
		if !found {
			continue
		}
		props[strings.TrimSpace(key)] = unquote(strings.TrimSpace(value))
	}
	return props
}

// TagsProperties returns one attribute map per occurrence of tag, in
// document order.
func TagsProperties(text, tag string) []map[string]string {
	offsets := OpenTagOffsets(text, CleanTagName(tag))
	out := make([]map[string]string, 0, len(offsets))
	for _, off := range offsets {
		out = append(out, TagProperties(text, tag, off))
	}
	return out
}

func unquote(s string) string {
	if len(s) < 2 {
		return s
	}
	first, last := s[0], s[len(s)-1]
	if first == last && (first == '"' || first == '\'') {
		return s[1 : len(s)-1]
	}
	return s
}
