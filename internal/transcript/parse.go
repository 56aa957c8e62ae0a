package transcript

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html/charset"
)

// Degradation reasons reported in Outcome.Reason.
const (
	ReasonMalformedXML  = "malformed XML"
	ReasonMalformedJSON = "malformed JSON"
	ReasonUnknownJSON   = "unrecognized JSON shape"
)

// Outcome is the result of normalizing a raw caption payload.
// Degraded is set when structured extraction failed and Text is a fallback
// (the raw input, or a re-serialized JSON value) rather than a clean transcript.
type Outcome struct {
	Text     string
	Kind     ContentKind
	Degraded bool
	Reason   string
}

// Parser converts one payload shape into transcript text. Parsers never fail.
type Parser func(raw string) Outcome

// parsers is the dispatch table from sniffed kind to parser.
var parsers = map[ContentKind]Parser{
	KindXMLTimedText: ParseXML,
	KindJSONEvents:   ParseJSON,
	KindPlainText:    ParsePlain,
}

// Normalize sniffs raw and runs the matching parser.
func Normalize(raw string) Outcome {
	kind := Sniff(raw)
	out := parsers[kind](raw)
	out.Kind = kind
	return out
}

func degraded(raw, reason string) Outcome {
	return Outcome{Text: raw, Degraded: true, Reason: reason}
}

// xmlNode is a minimal element tree built from the token stream.
type xmlNode struct {
	name     string
	parent   *xmlNode
	children int
	text     strings.Builder // character data of the node and its descendants
}

func (n *xmlNode) hasAncestor(name string) bool {
	for p := n.parent; p != nil; p = p.parent {
		if p.name == name {
			return true
		}
	}
	return false
}

// decodeXML builds the element tree for raw, returning every element in
// document order. Any decode error aborts.
func decodeXML(raw string) ([]*xmlNode, error) {
	d := xml.NewDecoder(strings.NewReader(raw))
	d.Strict = true
	d.Entity = xml.HTMLEntity
	d.CharsetReader = charset.NewReaderLabel

	var (
		all   []*xmlNode
		stack []*xmlNode
	)
	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &xmlNode{name: t.Name.Local}
			if len(stack) > 0 {
				n.parent = stack[len(stack)-1]
				n.parent.children++
			}
			all = append(all, n)
			stack = append(stack, n)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			for _, open := range stack {
				open.text.Write(t)
			}
		}
	}
	if len(all) == 0 {
		return nil, errors.New("no root element")
	}
	return all, nil
}

// ParseXML extracts caption text from a timed-text XML document.
// Selection order: <text> elements, then <p> under <body>, then any leaf
// element with text. The first selector with any match wins.
func ParseXML(raw string) Outcome {
	nodes, err := decodeXML(raw)
	if err != nil {
		return degraded(raw, ReasonMalformedXML)
	}

	selectors := []func(*xmlNode) bool{
		func(n *xmlNode) bool { return n.name == "text" },
		func(n *xmlNode) bool { return n.name == "p" && n.hasAncestor("body") },
		func(n *xmlNode) bool {
			return n.children == 0 && strings.TrimSpace(n.text.String()) != ""
		},
	}

	for _, match := range selectors {
		var picked []*xmlNode
		for _, n := range nodes {
			if match(n) {
				picked = append(picked, n)
			}
		}
		if len(picked) == 0 {
			continue
		}
		parts := make([]string, 0, len(picked))
		for _, n := range picked {
			if s := strings.TrimSpace(n.text.String()); s != "" {
				parts = append(parts, s)
			}
		}
		return Outcome{Text: strings.Join(parts, " ")}
	}
	return Outcome{}
}

// ParseJSON extracts caption text from a JSON payload.
// An "events" list is flattened (segments joined with "", events with " ").
// A "transcript" field is returned as-is. Any other shape is re-serialized.
func ParseJSON(raw string) Outcome {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return degraded(raw, ReasonMalformedJSON)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return degraded(raw, ReasonMalformedJSON)
	}

	if obj, ok := v.(map[string]any); ok {
		if events, ok := obj["events"].([]any); ok {
			return Outcome{Text: strings.TrimSpace(joinEvents(events))}
		}
		if t, ok := obj["transcript"]; ok {
			if s, ok := t.(string); ok {
				return Outcome{Text: s}
			}
			return Outcome{Text: encodeJSON(t)}
		}
	}

	return degraded(encodeJSON(v), ReasonUnknownJSON)
}

func joinEvents(events []any) string {
	texts := make([]string, 0, len(events))
	for _, e := range events {
		var sb strings.Builder
		if ev, ok := e.(map[string]any); ok {
			segs, _ := ev["segs"].([]any)
			for _, s := range segs {
				if seg, ok := s.(map[string]any); ok {
					if u, ok := seg["utf8"].(string); ok {
						sb.WriteString(u)
					}
				}
			}
		}
		texts = append(texts, sb.String())
	}
	return strings.Join(texts, " ")
}

func encodeJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return ""
	}
	return strings.TrimRight(buf.String(), "\n")
}

var (
	timestampRange = regexp.MustCompile(`(?:\d{1,2}:)?\d{2}:\d{2}[.,]\d{3}\s*-->\s*(?:\d{1,2}:)?\d{2}:\d{2}[.,]\d{3}`)
	indexLine      = regexp.MustCompile(`^\d+$`)
)

// ParsePlain strips SBV/VTT/SRT timing markup from plain subtitle text.
// Timestamp ranges and bare index lines are removed, blank lines dropped.
func ParsePlain(raw string) Outcome {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")

	lines := strings.Split(raw, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = timestampRange.ReplaceAllString(line, "")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || indexLine.MatchString(trimmed) {
			continue
		}
		kept = append(kept, trimmed)
	}
	return Outcome{Text: strings.TrimSpace(strings.Join(kept, "\n"))}
}
