package transcript

import (
	"strings"
	"unicode"
)

// ContentKind classifies a raw caption payload.
type ContentKind int

const (
	KindPlainText ContentKind = iota
	KindXMLTimedText
	KindJSONEvents
)

// String returns the kind name used in logs and results.
func (k ContentKind) String() string {
	switch k {
	case KindXMLTimedText:
		return "xml"
	case KindJSONEvents:
		return "json"
	default:
		return "plain"
	}
}

// Sniff classifies raw by its first non-whitespace characters.
// Unknown shapes are plain text.
func Sniff(raw string) ContentKind {
	s := strings.TrimLeftFunc(raw, func(r rune) bool {
		return unicode.IsSpace(r) || r == '\ufeff'
	})
	switch {
	case strings.HasPrefix(s, "<?xml"):
		return KindXMLTimedText
	case strings.HasPrefix(s, "{"), strings.HasPrefix(s, "["):
		return KindJSONEvents
	default:
		return KindPlainText
	}
}
