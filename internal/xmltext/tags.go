package xmltext

import "strings"

// TagSpan marks a located start tag. Start is the offset of its '<' and
// End the offset of its delimiter ('>' or the '/' of "/>").
type TagSpan struct {
	Start       int
	End         int
	SelfClosing bool
}

var tagNameCleaner = strings.NewReplacer("<", "", ">", "")

// CleanTagName drops any '<' or '>' a caller left around a tag name.
func CleanTagName(tag string) string {
	return tagNameCleaner.Replace(tag)
}

// FindStartTag locates the first "<name" at or after from that is
// immediately followed by '>' or whitespace, then the first '>' closing
// that start tag. A name that is only a prefix of a longer tag name never
// matches.
func FindStartTag(text, name string, from int) (TagSpan, bool) {
	start := indexOpenTag(text, name, from)
	if start < 0 {
		return TagSpan{}, false
	}
	gt := strings.IndexByte(text[start:], '>')
	if gt < 0 {
		return TagSpan{}, false
	}
	end := start + gt
	span := TagSpan{Start: start, End: end}
	if end > start && text[end-1] == '/' {
		span.End = end - 1
		span.SelfClosing = true
	}
	return span, true
}

// TagValue returns the text between the start tag of tag and its closing
// tag, searching from offset from. A self-closing tag yields "". When the
// start or closing tag is missing def is returned.
func TagValue(text, tag string, from int, def string) string {
	name := CleanTagName(tag)
	span, ok := FindStartTag(text, name, from)
	if !ok {
		return def
	}
	if span.SelfClosing {
		return ""
	}
	closing := "</" + name + ">"
	idx := strings.Index(text[span.Start:], closing)
	if idx < 0 {
		return def
	}
	idx += span.Start
	if idx <= span.End {
		return def
	}
	return text[span.End+1 : idx]
}

// DecodedTagValue is TagValue with entities decoded.
func DecodedTagValue(text, tag string, from int, def string) string {
	return DecodeEntities(TagValue(text, tag, from, def))
}

// TagsValues returns the value of every occurrence of tag in document order.
func TagsValues(text, tag string) []string {
	offsets := OpenTagOffsets(text, CleanTagName(tag))
	values := make([]string, 0, len(offsets))
	for _, off := range offsets {
		values = append(values, TagValue(text, tag, off, ""))
	}
	return values
}

// DecodedTagsValues is TagsValues with entities decoded.
func DecodedTagsValues(text, tag string) []string {
	values := TagsValues(text, tag)
	for i, v := range values {
		values[i] = DecodeEntities(v)
	}
	return values
}

// OpenTagOffsets lists the offset of every "<name" followed by '>' or
// whitespace.
func OpenTagOffsets(text, name string) []int {
	var offsets []int
	for from := 0; ; {
		idx := indexOpenTag(text, name, from)
		if idx < 0 {
			return offsets
		}
		offsets = append(offsets, idx)
		from = idx + 1
	}
}

func indexOpenTag(text, name string, from int) int {
	if from < 0 {
		from = 0
	}
	pattern := "<" + name
	for from < len(text) {
		idx := strings.Index(text[from:], pattern)
		if idx < 0 {
			return -1
		}
		idx += from
		next := idx + len(pattern)
		if next < len(text) && (text[next] == '>' || isSpace(text[next])) {
			return idx
		}
		from = idx + 1
	}
	return -1
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	default:
		return false
	}
}
