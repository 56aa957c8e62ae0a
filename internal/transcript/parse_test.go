package transcript

import (
	"strings"
	"testing"
)

func TestParseXML(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "timedtext",
			raw:  `<?xml version="1.0" encoding="utf-8" ?><transcript><text start="0" dur="1.5">Hello</text><text start="1.5" dur="2"> world &amp; all </text></transcript>`,
			want: "Hello world & all",
		},
		{
			name: "body paragraphs",
			raw:  `<?xml version="1.0"?><timedtext format="3"><body><p t="0"><s>Hi</s><s> there</s></p><p t="1">Bye</p></body></timedtext>`,
			want: "Hi there Bye",
		},
		{
			name: "ttml namespace",
			raw:  `<?xml version="1.0"?><tt xmlns="http://www.w3.org/ns/ttml"><body><div><p begin="0s">First</p><p begin="1s">Second</p></div></body></tt>`,
			want: "First Second",
		},
		{
			name: "leaf elements last resort",
			raw:  `<?xml version="1.0"?><root><a>one</a><b><c>two</c></b><d></d></root>`,
			want: "one two",
		},
		{
			name: "text elements win even when some are empty",
			raw:  `<?xml version="1.0"?><transcript><text></text><text>only</text><other>ignored</other></transcript>`,
			want: "only",
		},
		{
			name: "p outside body is not a paragraph match",
			raw:  `<?xml version="1.0"?><doc><p>loose</p></doc>`,
			want: "loose",
		},
		{
			name: "html entity",
			raw:  `<?xml version="1.0"?><transcript><text>a&nbsp;b</text></transcript>`,
			want: "a\u00a0b",
		},
		{
			name: "no text anywhere",
			raw:  `<?xml version="1.0"?><transcript/>`,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseXML(tt.raw)
			if got.Degraded {
				t.Fatalf("Degraded = true (reason %q), want false", got.Reason)
			}
			if got.Text != tt.want {
				t.Errorf("Text = %q, want %q", got.Text, tt.want)
			}
		})
	}
}

func TestParseXML_MalformedReturnsRaw(t *testing.T) {
	inputs := []string{
		`<?xml version="1.0"?><transcript><text>unclosed</transcript>`,
		`<?xml version="1.0"?>`,
		`<?xml version="1.0"?><a><b></a></b>`,
		`<?xml`,
	}
	for _, raw := range inputs {
		got := ParseXML(raw)
		if !got.Degraded {
			t.Errorf("ParseXML(%q).Degraded = false, want true", raw)
		}
		if got.Text != raw {
			t.Errorf("ParseXML(%q).Text = %q, want raw input", raw, got.Text)
		}
		if got.Reason != ReasonMalformedXML {
			t.Errorf("Reason = %q, want %q", got.Reason, ReasonMalformedXML)
		}
	}
}

func TestParseXML_DeclaredCharset(t *testing.T) {
	// "Caf\xe9 cr\xe8me" is "Café crème" in ISO-8859-1.
	raw := "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?><transcript><text start=\"0\">Caf\xe9 cr\xe8me</text></transcript>"

	got := ParseXML(raw)
	if got.Degraded {
		t.Fatalf("Degraded = true (%s), want a decoded transcript", got.Reason)
	}
	if got.Text != "Café crème" {
		t.Errorf("Text = %q, want %q", got.Text, "Café crème")
	}
}

func TestParseJSON_Events(t *testing.T) {
	raw := `{"events":[{"segs":[{"utf8":"Hello "}]},{"segs":[{"utf8":"world"}]}]}`
	got := ParseJSON(raw)
	if got.Degraded {
		t.Fatalf("Degraded = true, want false")
	}
	if got.Text != "Hello  world" {
		t.Errorf("Text = %q, want %q", got.Text, "Hello  world")
	}
}

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name         string
		raw          string
		want         string
		wantDegraded bool
		wantReason   string
	}{
		{
			name: "events with missing segs",
			raw:  `{"events":[{"tStartMs":0},{"segs":[{"utf8":"a"},{"utf8":"b"}]},{"segs":[{"tOffsetMs":5}]}]}`,
			want: "ab",
		},
		{
			name: "segments joined without separator",
			raw:  `{"events":[{"segs":[{"utf8":"to"},{"utf8":"gether"}]}]}`,
			want: "together",
		},
		{
			name: "transcript field as-is",
			raw:  `{"transcript":"  kept as is "}`,
			want: "  kept as is ",
		},
		{
			name: "non-string transcript re-encoded",
			raw:  `{"transcript":["a","b"]}`,
			want: `["a","b"]`,
		},
		{
			name:         "unrecognized object",
			raw:          `{"foo": 1, "bar": "<b>"}`,
			want:         `{"bar":"<b>","foo":1}`,
			wantDegraded: true,
			wantReason:   ReasonUnknownJSON,
		},
		{
			name:         "top-level array",
			raw:          `[1, 2.50]`,
			want:         `[1,2.50]`,
			wantDegraded: true,
			wantReason:   ReasonUnknownJSON,
		},
		{
			name:         "malformed",
			raw:          `{"events": [`,
			want:         `{"events": [`,
			wantDegraded: true,
			wantReason:   ReasonMalformedJSON,
		},
		{
			name:         "trailing garbage",
			raw:          `{"transcript":"x"} trailing`,
			want:         `{"transcript":"x"} trailing`,
			wantDegraded: true,
			wantReason:   ReasonMalformedJSON,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseJSON(tt.raw)
			if got.Text != tt.want {
				t.Errorf("Text = %q, want %q", got.Text, tt.want)
			}
			if got.Degraded != tt.wantDegraded {
				t.Errorf("Degraded = %v, want %v", got.Degraded, tt.wantDegraded)
			}
			if got.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", got.Reason, tt.wantReason)
			}
		})
	}
}

func TestParsePlain(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "vtt cue",
			raw:  "00:00:01.000 --> 00:00:02.000\n1\nHello\n\n\nWorld\n",
			want: "Hello\nWorld",
		},
		{
			name: "srt with comma milliseconds",
			raw:  "1\n00:00:01,000 --> 00:00:02,500\nFirst line\n\n2\n00:00:03,000 --> 00:00:04,000\nSecond line\n",
			want: "First line\nSecond line",
		},
		{
			name: "hours and crlf",
			raw:  "01:02:03.004 --> 01:02:05.000\r\nLate line\r\n\r\n",
			want: "Late line",
		},
		{
			name: "numbers inside text are kept",
			raw:  "I have 2 cats\n3\nand 4 dogs",
			want: "I have 2 cats\nand 4 dogs",
		},
		{
			name: "vtt cue settings are trimmed",
			raw:  "WEBVTT\n\n00:00:01.000 --> 00:00:02.000 align:start\nHi\n",
			want: "WEBVTT\nalign:start\nHi",
		},
		{
			name: "indented lines",
			raw:  "  Hello  \n\tWorld",
			want: "Hello\nWorld",
		},
		{
			name: "only markup",
			raw:  "1\n00:00:01.000 --> 00:00:02.000\n\n",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParsePlain(tt.raw)
			if got.Degraded {
				t.Error("Degraded = true, plain text never degrades")
			}
			if got.Text != tt.want {
				t.Errorf("Text = %q, want %q", got.Text, tt.want)
			}
		})
	}
}

func TestNormalize_Dispatch(t *testing.T) {
	tests := []struct {
		raw      string
		wantKind ContentKind
		want     string
	}{
		{`<?xml version="1.0"?><transcript><text>x</text></transcript>`, KindXMLTimedText, "x"},
		{`{"events":[{"segs":[{"utf8":"y"}]}]}`, KindJSONEvents, "y"},
		{"00:00:01.000 --> 00:00:02.000\nz", KindPlainText, "z"},
	}
	for _, tt := range tests {
		got := Normalize(tt.raw)
		if got.Kind != tt.wantKind {
			t.Errorf("Normalize(%q).Kind = %v, want %v", tt.raw, got.Kind, tt.wantKind)
		}
		if got.Text != tt.want {
			t.Errorf("Normalize(%q).Text = %q, want %q", tt.raw, got.Text, tt.want)
		}
	}
}

func FuzzNormalize(f *testing.F) {
	seeds := []string{
		`<?xml version="1.0"?><transcript><text>a</text></transcript>`,
		`<?xml version="1.0"?><a><b>`,
		`{"events":[{"segs":[{"utf8":"x"}]}]}`,
		`{"events":"nope"}`,
		`[{"segs":null}]`,
		"1\n00:00:01.000 --> 00:00:02.000\nhi\n",
		"",
	}
	for _, s := range seeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, raw string) {
		out := Normalize(raw)
		if out.Degraded && out.Reason != ReasonUnknownJSON && out.Text != raw {
			t.Fatalf("degraded outcome must carry raw input, got %q", out.Text)
		}
		if out.Kind == KindPlainText && out.Degraded {
			t.Fatalf("plain text degraded for %q", raw)
		}
		if strings.HasPrefix(strings.TrimSpace(raw), "<?xml") && out.Kind != KindXMLTimedText {
			t.Fatalf("kind = %v for xml input", out.Kind)
		}
	})
}
