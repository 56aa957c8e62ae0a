package summary

import (
	"encoding/json"
	"fmt"
)

// Export formats accepted in Settings.ExportFormat.
const (
	FormatMarkdown = "markdown"
	FormatText     = "text"
	FormatHTML     = "html"
)

// Settings are the user's summary preferences.
type Settings struct {
	DefaultSummaryType Type   `json:"default_summary_type"`
	AutoSave           bool   `json:"auto_save"`
	ExportFormat       string `json:"export_format"`
	MaxSummaries       int    `json:"max_summaries"`
}

// DefaultSettings returns the settings used before the user changes anything.
func DefaultSettings() Settings {
	return Settings{
		DefaultSummaryType: BulletPoints,
		AutoSave:           true,
		ExportFormat:       FormatMarkdown,
		MaxSummaries:       50,
	}
}

// LoadSettings decodes stored settings over the defaults, so keys missing
// from data keep their default values.
func LoadSettings(data []byte) (Settings, error) {
	s := DefaultSettings()
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return DefaultSettings(), fmt.Errorf("decode settings: %w", err)
	}
	return s, nil
}

// SettingsPatch is a partial settings update. Nil fields are left unchanged.
type SettingsPatch struct {
	DefaultSummaryType *string `json:"default_summary_type,omitempty"`
	AutoSave           *bool   `json:"auto_save,omitempty"`
	ExportFormat       *string `json:"export_format,omitempty"`
	MaxSummaries       *int    `json:"max_summaries,omitempty"`
}

// Apply returns s with p's non-nil fields applied.
func (s Settings) Apply(p SettingsPatch) Settings {
	if p.DefaultSummaryType != nil {
		s.DefaultSummaryType = Type(*p.DefaultSummaryType)
	}
	if p.AutoSave != nil {
		s.AutoSave = *p.AutoSave
	}
	if p.ExportFormat != nil {
		s.ExportFormat = *p.ExportFormat
	}
	if p.MaxSummaries != nil {
		s.MaxSummaries = *p.MaxSummaries
	}
	return s
}

// Validate checks field values.
func (s Settings) Validate() error {
	if !s.DefaultSummaryType.Valid() {
		return fmt.Errorf("unknown default_summary_type %q", s.DefaultSummaryType)
	}
	switch s.ExportFormat {
	case FormatMarkdown, FormatText, FormatHTML:
	default:
		return fmt.Errorf("unknown export_format %q (valid: markdown, text, html)", s.ExportFormat)
	}
	if s.MaxSummaries < 1 {
		return fmt.Errorf("max_summaries must be at least 1, got %d", s.MaxSummaries)
	}
	return nil
}

// ExtensionFor maps an export format to its file extension.
func ExtensionFor(format string) (string, bool) {
	switch format {
	case FormatMarkdown, "md":
		return ".md", true
	case FormatText, "txt":
		return ".txt", true
	case FormatHTML:
		return ".html", true
	}
	return "", false
}
