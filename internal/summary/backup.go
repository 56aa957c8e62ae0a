package summary

// BackupVersion is written to every backup header.
const BackupVersion = "1.0"

// BackupRecord is one line of a JSONL backup: the header (RecapBackup set)
// or a summary.
type BackupRecord struct {
	// Header detection field - true only for header line
	RecapBackup bool `json:"_recap_backup,omitempty"`

	// Header fields (only present in header line)
	Version    string    `json:"version,omitempty"`
	ExportDate string    `json:"export_date,omitempty"`
	Settings   *Settings `json:"settings,omitempty"`

	// Summary fields
	ID           string   `json:"id,omitempty"`
	Title        string   `json:"title,omitempty"`
	Channel      string   `json:"channel,omitempty"`
	Duration     string   `json:"duration,omitempty"`
	URL          string   `json:"url,omitempty"`
	SummaryType  Type     `json:"summary_type,omitempty"`
	Content      string   `json:"content,omitempty"`
	Transcript   string   `json:"transcript,omitempty"`
	WordCount    int      `json:"word_count,omitempty"` // IGNORED on restore, recomputed
	Tags         []string `json:"tags,omitempty"`
	IsFavorite   bool     `json:"is_favorite,omitempty"`
	CreatedAt    int64    `json:"created_at,omitempty"`
	LastAccessed int64    `json:"last_accessed,omitempty"`
}

// ToRecord converts a BackupRecord to a Record, recomputing derived fields.
func (b *BackupRecord) ToRecord() *Record {
	r := &Record{
		ID:           b.ID,
		Title:        b.Title,
		Channel:      b.Channel,
		Duration:     b.Duration,
		URL:          b.URL,
		SummaryType:  b.SummaryType,
		Content:      b.Content,
		Transcript:   b.Transcript,
		WordCount:    CountWords(b.Transcript),
		Tags:         CleanTags(b.Tags),
		IsFavorite:   b.IsFavorite,
		CreatedAt:    b.CreatedAt,
		LastAccessed: b.LastAccessed,
	}
	if r.LastAccessed == 0 {
		r.LastAccessed = r.CreatedAt
	}
	r.ApplyDefaults()
	return r
}

// RecordToBackup converts a Record to a BackupRecord for backup.
func RecordToBackup(r *Record) *BackupRecord {
	return &BackupRecord{
		ID:           r.ID,
		Title:        r.Title,
		Channel:      r.Channel,
		Duration:     r.Duration,
		URL:          r.URL,
		SummaryType:  r.SummaryType,
		Content:      r.Content,
		Transcript:   r.Transcript,
		WordCount:    r.WordCount,
		Tags:         r.Tags,
		IsFavorite:   r.IsFavorite,
		CreatedAt:    r.CreatedAt,
		LastAccessed: r.LastAccessed,
	}
}
