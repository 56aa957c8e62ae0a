package ops

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/recap/internal/errors"
	"github.com/hpungsan/recap/internal/summary"
	"github.com/hpungsan/recap/internal/transcript"
	"github.com/hpungsan/recap/internal/usage"
)

// ResolveInput names the transcript source. Exactly one of Page, PageURL,
// CaptionURL or VideoID must be set; VideoID expands to its watch page URL.
type ResolveInput struct {
	Page       transcript.Page
	PageURL    string
	CaptionURL string
	VideoID    string
}

func (in ResolveInput) hint() (transcript.SourceHint, error) {
	h := transcript.SourceHint{
		Page:       in.Page,
		PageURL:    strings.TrimSpace(in.PageURL),
		CaptionURL: strings.TrimSpace(in.CaptionURL),
	}
	if id := strings.TrimSpace(in.VideoID); id != "" {
		if h.PageURL != "" {
			return h, errors.NewInvalidRequest("specify either video_id or page_url, not both")
		}
		h.PageURL = summary.WatchURL(id)
	}
	return h, nil
}

// sourceURL is the watch URL recorded on saved summaries.
func (in ResolveInput) sourceURL() string {
	switch {
	case strings.TrimSpace(in.VideoID) != "":
		return summary.WatchURL(strings.TrimSpace(in.VideoID))
	case strings.TrimSpace(in.PageURL) != "":
		return strings.TrimSpace(in.PageURL)
	}
	return ""
}

// Resolve resolves a transcript without touching the usage quota.
// Failures are reported inside the Result.
func Resolve(ctx context.Context, rt *Runtime, in ResolveInput) transcript.Result {
	if rt.Resolver == nil {
		return failedResult(errors.NewInternal(fmt.Errorf("transcript resolver not configured")))
	}
	hint, err := in.hint()
	if err != nil {
		rErr, _ := errors.As(err)
		return failedResult(rErr)
	}
	return rt.Resolver.Resolve(ctx, hint)
}

func failedResult(e *errors.RecapError) transcript.Result {
	return transcript.Result{Success: false, Error: transcript.FailureMessage(e), Code: e.Code}
}

// SummarizeInput contains parameters for the Summarize operation.
type SummarizeInput struct {
	Source ResolveInput
	// Type defaults to the saved settings' default summary type.
	Type string
	// Video metadata recorded on the saved summary.
	Title    string
	Channel  string
	Duration string
	URL      string
	Tags     []string
	// Save overrides the auto_save setting when non-nil.
	Save *bool
}

// TranscriptInfo describes the transcript a summary was made from.
type TranscriptInfo struct {
	WordCount int    `json:"word_count"`
	Method    string `json:"method"`
	Format    string `json:"format,omitempty"`
	Degraded  bool   `json:"degraded,omitempty"`
	Reason    string `json:"degraded_reason,omitempty"`
	Cached    bool   `json:"cached,omitempty"`
}

// SummarizeOutput contains the result of the Summarize operation.
type SummarizeOutput struct {
	Summary     string         `json:"summary"`
	SummaryType summary.Type   `json:"summary_type"`
	Transcript  TranscriptInfo `json:"transcript"`
	Usage       usage.Decision `json:"usage"`
	SavedID     string         `json:"saved_id,omitempty"`
	Pruned      int            `json:"pruned,omitempty"`
}

// Summarize runs the full pipeline: quota check, transcript resolution,
// summarization and, when enabled, saving.
//
// Quota is consumed before the transcript is resolved, so a run that fails
// later still counts. A failed resolution aborts with the resolver's error
// and persists nothing.
func Summarize(ctx context.Context, rt *Runtime, in SummarizeInput) (*SummarizeOutput, error) {
	if rt.Summarizer == nil || rt.Governor == nil {
		return nil, errors.NewInternal(fmt.Errorf("summarization is not configured"))
	}

	settings, err := rt.kv().Settings(ctx)
	if err != nil {
		return nil, err
	}

	sType := settings.DefaultSummaryType
	if strings.TrimSpace(in.Type) != "" {
		if sType, err = summary.ParseType(strings.TrimSpace(in.Type)); err != nil {
			return nil, errors.NewInvalidRequest(err.Error())
		}
	}

	hint, err := in.Source.hint()
	if err != nil {
		return nil, err
	}

	decision, err := rt.Governor.CheckAndConsume(ctx)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if !decision.Allowed {
		rt.log().Info("summarize: quota exceeded", zap.Int("limit", rt.Governor.Limit()))
		return nil, errors.NewQuotaExceeded(rt.Governor.Limit())
	}

	if rt.Resolver == nil {
		return nil, errors.NewInternal(fmt.Errorf("transcript resolver not configured"))
	}
	res := rt.Resolver.Resolve(ctx, hint)
	if !res.Success {
		if err := res.Failure(); err != nil {
			return nil, err
		}
		return nil, errors.NewNoCaptionsFound(res.Error)
	}

	content, err := rt.Summarizer.Summarize(ctx, res.Text(), sType)
	if err != nil {
		return nil, err
	}

	out := &SummarizeOutput{
		Summary:     content,
		SummaryType: sType,
		Transcript: TranscriptInfo{
			WordCount: res.WordCount,
			Method:    res.Method,
			Format:    res.Format,
			Degraded:  res.Degraded,
			Reason:    res.Reason,
			Cached:    res.Cached,
		},
		Usage: decision,
	}

	save := settings.AutoSave
	if in.Save != nil {
		save = *in.Save
	}
	if !save {
		return out, nil
	}

	url := strings.TrimSpace(in.URL)
	if url == "" {
		url = in.Source.sourceURL()
	}
	saved, err := Save(ctx, rt, SaveInput{
		Title:       in.Title,
		Channel:     in.Channel,
		Duration:    in.Duration,
		URL:         url,
		SummaryType: string(sType),
		Content:     content,
		Transcript:  res.Text(),
		Tags:        in.Tags,
	})
	if err != nil {
		return nil, err
	}
	out.SavedID = saved.ID
	out.Pruned = saved.Pruned
	return out, nil
}
