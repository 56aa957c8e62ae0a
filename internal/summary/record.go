// Package summary defines saved summary records, summary formats and user
// settings, plus their Markdown, text and HTML renderings.
package summary

// Defaults applied to records saved without video metadata.
const (
	DefaultTitle   = "Untitled Video"
	DefaultChannel = "Unknown Channel"
)

// Record is a saved video summary.
type Record struct {
	// ID is a ULID that uniquely identifies this summary
	ID string `json:"id"`

	// Title is the video title
	Title string `json:"title"`

	// Channel is the uploading channel name
	Channel string `json:"channel"`

	// Duration is the video length as displayed by the player (e.g. "12:34")
	Duration string `json:"duration,omitempty"`

	// URL is the watch page URL the summary was made from
	URL string `json:"url"`

	// VideoID is extracted from URL when it is a recognized watch or short link
	VideoID string `json:"video_id,omitempty"`

	// SummaryType is the format the content was generated in
	SummaryType Type `json:"summary_type"`

	// Content is the generated summary text
	Content string `json:"content"`

	// Transcript is the normalized transcript, kept for offline access
	Transcript string `json:"transcript,omitempty"`

	// WordCount is the transcript's whitespace-delimited token count
	WordCount int `json:"word_count"`

	// Tags is a list of tags for categorization (stored as JSON in DB)
	Tags []string `json:"tags"`

	// IsFavorite marks the summary as a favorite
	IsFavorite bool `json:"is_favorite"`

	// CreatedAt is the Unix timestamp when the summary was saved
	CreatedAt int64 `json:"created_at"`

	// LastAccessed is the Unix timestamp of the last read
	LastAccessed int64 `json:"last_accessed"`
}

// ApplyDefaults fills missing title, channel, tags and video ID.
func (r *Record) ApplyDefaults() {
	if r.Title == "" {
		r.Title = DefaultTitle
	}
	if r.Channel == "" {
		r.Channel = DefaultChannel
	}
	if r.Tags == nil {
		r.Tags = []string{}
	}
	if r.VideoID == "" {
		r.VideoID = ExtractVideoID(r.URL)
	}
}

// ListItem is a record without content or transcript.
// Used for list and search results to reduce data transfer.
type ListItem struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Channel      string   `json:"channel"`
	Duration     string   `json:"duration,omitempty"`
	URL          string   `json:"url"`
	VideoID      string   `json:"video_id,omitempty"`
	SummaryType  Type     `json:"summary_type"`
	Icon         string   `json:"icon"`
	WordCount    int      `json:"word_count"`
	ContentChars int      `json:"content_chars"`
	Tags         []string `json:"tags,omitempty"`
	IsFavorite   bool     `json:"is_favorite"`
	CreatedAt    int64    `json:"created_at"`
	LastAccessed int64    `json:"last_accessed"`
}

// ToListItem strips the large text fields from r.
func (r *Record) ToListItem() ListItem {
	return ListItem{
		ID:           r.ID,
		Title:        r.Title,
		Channel:      r.Channel,
		Duration:     r.Duration,
		URL:          r.URL,
		VideoID:      r.VideoID,
		SummaryType:  r.SummaryType,
		Icon:         r.SummaryType.Icon(),
		WordCount:    r.WordCount,
		ContentChars: CountChars(r.Content),
		Tags:         r.Tags,
		IsFavorite:   r.IsFavorite,
		CreatedAt:    r.CreatedAt,
		LastAccessed: r.LastAccessed,
	}
}
