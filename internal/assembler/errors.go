package assembler

import (
	"errors"
	"fmt"
)

var ErrMissingStartTag = errors.New("assembler: start tag is required")

// ParseError reports recoverable stream corruption or a size violation.
type ParseError int

const (
	// EndTagNotMatched means an end tag arrived with no start tag before it.
	// The corrupted prefix is dropped.
	EndTagNotMatched ParseError = iota
	// MessageTooLarge means the buffer already exceeded the configured cap
	// and the incoming chunk was dropped.
	MessageTooLarge
)

func (e ParseError) String() string {
	switch e {
	case EndTagNotMatched:
		return "end_tag_not_matched"
	case MessageTooLarge:
		return "message_too_large"
	default:
		return fmt.Sprintf("parse_error(%d)", int(e))
	}
}

func (e ParseError) Error() string {
	switch e {
	case EndTagNotMatched:
		return "assembler: end tag without matching start tag"
	case MessageTooLarge:
		return "assembler: buffer size limit exceeded"
	default:
		return "assembler: " + e.String()
	}
}
