package transcript

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/hpungsan/recap/internal/errors"
)

// DOM selectors used by the panel fallback.
const (
	TranscriptButtonSelector = `#show-transcript-button, ytd-transcript-button, button[aria-label="Show transcript"]`
	TranscriptPanelSelector  = `#transcript, ytd-transcript-renderer, #primary > ytd-engagement-panel-section-list-renderer`
)

// DefaultPanelTimeout bounds the wait for the transcript panel.
const DefaultPanelTimeout = 5 * time.Second

// CaptionSource is where a transcript comes from: a fetchable caption track
// URL or text already scraped from the page. Exactly one is set.
type CaptionSource struct {
	URL  string
	Text string
}

// Locator finds a caption source on a page.
type Locator struct {
	panelTimeout time.Duration
	log          *zap.Logger
}

// NewLocator creates a Locator. A non-positive panelTimeout uses DefaultPanelTimeout.
func NewLocator(panelTimeout time.Duration, log *zap.Logger) *Locator {
	if panelTimeout <= 0 {
		panelTimeout = DefaultPanelTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Locator{panelTimeout: panelTimeout, log: log}
}

// Locate tries the embedded player response first, then the transcript panel.
// Returns NO_CAPTIONS_FOUND when both come up empty and CANCELLED if ctx ends
// during the panel wait.
func (l *Locator) Locate(ctx context.Context, page Page) (CaptionSource, error) {
	if u := l.trackURL(ctx, page); u != "" {
		return CaptionSource{URL: u}, nil
	}

	text, err := l.scrapePanel(ctx, page)
	if err != nil {
		return CaptionSource{}, errors.NewCancelled("transcript panel wait")
	}
	if text != "" {
		return CaptionSource{Text: text}, nil
	}
	return CaptionSource{}, errors.NewNoCaptionsFound("")
}

var playerResponseAssign = regexp.MustCompile(`ytInitialPlayerResponse\s*=\s*`)

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
}

type trackList struct {
	CaptionTracks []captionTrack `json:"captionTracks"`
}

type playerResponse struct {
	Captions *struct {
		Tracklist *trackList `json:"playerCaptionsTracklistRenderer"`
		Renderer  *trackList `json:"playerCaptionsRenderer"`
	} `json:"captions"`
}

// tracks returns the first non-empty caption track list of the two known locations.
func (r playerResponse) tracks() []captionTrack {
	if r.Captions == nil {
		return nil
	}
	for _, tl := range []*trackList{r.Captions.Tracklist, r.Captions.Renderer} {
		if tl != nil && len(tl.CaptionTracks) > 0 {
			return tl.CaptionTracks
		}
	}
	return nil
}

// trackURL scans embedded scripts for the initial player response and returns
// the first caption track URL. Every failure is logged and yields "".
func (l *Locator) trackURL(ctx context.Context, page Page) string {
	scripts, err := page.Scripts(ctx)
	if err != nil {
		l.log.Warn("locate: read scripts failed", zap.Error(err))
		return ""
	}

	for _, script := range scripts {
		loc := playerResponseAssign.FindStringIndex(script)
		if loc == nil {
			continue
		}
		literal := extractObjectLiteral(script[loc[1]:])
		if literal == "" {
			l.log.Warn("locate: player response is not a complete object literal")
			continue
		}

		resp, err := parsePlayerResponse(literal)
		if err != nil {
			l.log.Warn("locate: malformed player response", zap.Error(err))
			continue
		}
		if tracks := resp.tracks(); len(tracks) > 0 && tracks[0].BaseURL != "" {
			l.log.Debug("locate: caption track found",
				zap.String("language", tracks[0].LanguageCode),
				zap.String("kind", tracks[0].Kind))
			return tracks[0].BaseURL
		}
	}
	return ""
}

// extractObjectLiteral returns the balanced {...} prefix of s, or "" when s
// does not start with an object or never closes it. Quoted strings (single or
// double) are skipped so braces inside them do not count.
func extractObjectLiteral(s string) string {
	if !strings.HasPrefix(s, "{") {
		return ""
	}
	var (
		depth   int
		quote   byte
		escaped bool
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}

var trailingComma = regexp.MustCompile(`,\s*([}\]])`)

// normalizeQuoting rewrites a JS object literal toward JSON: single quotes
// become double quotes and trailing commas are dropped.
func normalizeQuoting(s string) string {
	s = strings.ReplaceAll(s, "'", `"`)
	return trailingComma.ReplaceAllString(s, "$1")
}

// parsePlayerResponse decodes literal as JSON, normalizing quoting only when
// the literal does not already parse. Apostrophes inside valid JSON strings
// stay intact.
func parsePlayerResponse(literal string) (playerResponse, error) {
	var resp playerResponse
	if err := json.Unmarshal([]byte(literal), &resp); err == nil {
		return resp, nil
	}
	resp = playerResponse{}
	if err := json.Unmarshal([]byte(normalizeQuoting(literal)), &resp); err != nil {
		return playerResponse{}, err
	}
	return resp, nil
}

// scrapePanel clicks the transcript button and waits for the panel.
// Returns "" with nil error when there is no button or the wait times out;
// returns ctx.Err() on cancellation. The observer is always disconnected
// before returning.
func (l *Locator) scrapePanel(ctx context.Context, page Page) (string, error) {
	changes, stop := page.Observe(ctx)
	defer stop()

	clicked, err := page.Click(ctx, TranscriptButtonSelector)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		l.log.Warn("locate: transcript button click failed", zap.Error(err))
		return "", nil
	}
	if !clicked {
		l.log.Debug("locate: no transcript button")
		return "", nil
	}

	timer := time.NewTimer(l.panelTimeout)
	defer timer.Stop()

	for {
		if text, ok := l.panelText(ctx, page); ok {
			return text, nil
		}
		select {
		case <-changes:
		case <-timer.C:
			l.log.Info("locate: transcript panel did not appear", zap.Duration("timeout", l.panelTimeout))
			return "", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// panelText reports whether the panel is present and, if so, its text:
// trimmed text of every leaf span, space-joined.
func (l *Locator) panelText(ctx context.Context, page Page) (string, bool) {
	doc, err := page.Document(ctx)
	if err != nil {
		return "", false
	}
	panel := doc.Find(TranscriptPanelSelector).First()
	if panel.Length() == 0 {
		return "", false
	}

	var parts []string
	panel.Find("span").Each(func(_ int, s *goquery.Selection) {
		if s.Children().Length() > 0 {
			return
		}
		if t := strings.TrimSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, " "), true
}
