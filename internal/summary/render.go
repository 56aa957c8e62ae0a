package summary

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/yuin/goldmark"
)

// RenderOptions controls what the renderers include.
type RenderOptions struct {
	IncludeTranscript bool
}

// formatTime formats a Unix timestamp as "2006-01-02 15:04" UTC.
func formatTime(unix int64) string {
	return time.Unix(unix, 0).UTC().Format("2006-01-02 15:04")
}

// RenderMarkdown renders r as a Markdown document.
func RenderMarkdown(r *Record, opts RenderOptions) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", r.Title)
	fmt.Fprintf(&b, "- **Channel:** %s\n", r.Channel)
	if r.Duration != "" {
		fmt.Fprintf(&b, "- **Duration:** %s\n", r.Duration)
	}
	if r.URL != "" {
		fmt.Fprintf(&b, "- **URL:** <%s>\n", r.URL)
	}
	fmt.Fprintf(&b, "- **Summary type:** %s %s\n", r.SummaryType.Icon(), r.SummaryType.Label())
	fmt.Fprintf(&b, "- **Created:** %s UTC\n", formatTime(r.CreatedAt))
	if len(r.Tags) > 0 {
		fmt.Fprintf(&b, "- **Tags:** %s\n", strings.Join(r.Tags, ", "))
	}

	b.WriteString("\n## Summary\n\n")
	b.WriteString(strings.TrimSpace(r.Content))
	b.WriteString("\n")

	if opts.IncludeTranscript && r.Transcript != "" {
		b.WriteString("\n## Transcript\n\n")
		b.WriteString(strings.TrimSpace(r.Transcript))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderText renders r as plain text.
func RenderText(r *Record, opts RenderOptions) string {
	var b strings.Builder

	b.WriteString(r.Title + "\n")
	b.WriteString(strings.Repeat("=", max(3, CountChars(r.Title))) + "\n\n")
	fmt.Fprintf(&b, "Channel: %s\n", r.Channel)
	if r.Duration != "" {
		fmt.Fprintf(&b, "Duration: %s\n", r.Duration)
	}
	if r.URL != "" {
		fmt.Fprintf(&b, "URL: %s\n", r.URL)
	}
	fmt.Fprintf(&b, "Summary type: %s\n", r.SummaryType.Label())
	fmt.Fprintf(&b, "Created: %s UTC\n", formatTime(r.CreatedAt))
	if len(r.Tags) > 0 {
		fmt.Fprintf(&b, "Tags: %s\n", strings.Join(r.Tags, ", "))
	}

	b.WriteString("\nSUMMARY\n\n")
	b.WriteString(strings.TrimSpace(r.Content))
	b.WriteString("\n")

	if opts.IncludeTranscript && r.Transcript != "" {
		b.WriteString("\nTRANSCRIPT\n\n")
		b.WriteString(strings.TrimSpace(r.Transcript))
		b.WriteString("\n")
	}
	return b.String()
}

var htmlDoc = template.Must(template.New("summary").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
<article>
{{.Body}}
</article>
</body>
</html>
`))

// RenderHTML renders the Markdown form of r into a standalone HTML page.
func RenderHTML(r *Record, opts RenderOptions) (string, error) {
	var body bytes.Buffer
	if err := goldmark.Convert([]byte(RenderMarkdown(r, opts)), &body); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}

	var out bytes.Buffer
	err := htmlDoc.Execute(&out, struct {
		Title string
		Body  template.HTML
	}{
		Title: r.Title,
		Body:  template.HTML(body.String()),
	})
	if err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return out.String(), nil
}

// Render dispatches on an export format name.
func Render(r *Record, format string, opts RenderOptions) (string, error) {
	switch format {
	case FormatMarkdown, "md":
		return RenderMarkdown(r, opts), nil
	case FormatText, "txt":
		return RenderText(r, opts), nil
	case FormatHTML:
		return RenderHTML(r, opts)
	}
	return "", fmt.Errorf("unsupported export format %q", format)
}
