package transcript

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/recap/internal/errors"
)

// Methods reported in Result.Method.
const (
	MethodAPI   = "api"
	MethodPanel = "panel"
)

// Getter fetches a URL as text. *Fetcher implements it.
type Getter interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Cache stores raw caption payloads by caption URL.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string)
}

// SourceHint tells Resolve where to look. Exactly one field must be set.
type SourceHint struct {
	// Page is a live page context.
	Page Page
	// PageURL is a watch page URL, fetched and scanned like a static Page.
	PageURL string
	// CaptionURL is a caption track URL, fetched directly.
	CaptionURL string
}

func (h SourceHint) count() int {
	n := 0
	if h.Page != nil {
		n++
	}
	if h.PageURL != "" {
		n++
	}
	if h.CaptionURL != "" {
		n++
	}
	return n
}

// Result is the outcome of a transcript resolution.
type Result struct {
	Transcript *string          `json:"transcript"`
	Success    bool             `json:"success"`
	WordCount  int              `json:"word_count,omitempty"`
	Method     string           `json:"method,omitempty"`
	Format     string           `json:"format,omitempty"`
	Degraded   bool             `json:"degraded,omitempty"`
	Reason     string           `json:"degraded_reason,omitempty"`
	Cached     bool             `json:"cached,omitempty"`
	CaptionURL string           `json:"caption_url,omitempty"`
	Error      string           `json:"error,omitempty"`
	Code       errors.ErrorCode `json:"code,omitempty"`

	err *errors.RecapError
}

// Failure returns the typed error behind an unsuccessful result, or nil.
func (r Result) Failure() error {
	if r.err == nil {
		return nil
	}
	return r.err
}

// Text returns the transcript, or "" on failure.
func (r Result) Text() string {
	if r.Transcript == nil {
		return ""
	}
	return *r.Transcript
}

// Resolver runs the locate, fetch, sniff and parse pipeline.
type Resolver struct {
	locator *Locator
	fetcher Getter
	cache   Cache
	log     *zap.Logger
}

// NewResolver creates a Resolver. cache may be nil.
func NewResolver(locator *Locator, fetcher Getter, cache Cache, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	if locator == nil {
		locator = NewLocator(0, log)
	}
	return &Resolver{locator: locator, fetcher: fetcher, cache: cache, log: log}
}

// Resolve resolves hint to a transcript. It never returns an error or panics;
// every failure is reported in the Result.
func (r *Resolver) Resolve(ctx context.Context, hint SourceHint) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("resolve: panic", zap.Any("panic", p))
			res = r.failure(errors.NewInternal(fmt.Errorf("panic: %v", p)))
		}
	}()

	if hint.count() != 1 {
		return r.failure(errors.NewInvalidRequest("exactly one of page, page_url or caption_url is required"))
	}

	switch {
	case hint.CaptionURL != "":
		return r.fromURL(ctx, hint.CaptionURL)
	case hint.PageURL != "":
		html, err := r.fetcher.Fetch(ctx, hint.PageURL)
		if err != nil {
			return r.failure(err)
		}
		page, err := NewHTMLPage(html)
		if err != nil {
			return r.failure(errors.NewNoCaptionsFound(err.Error()))
		}
		return r.fromPage(ctx, page)
	default:
		return r.fromPage(ctx, hint.Page)
	}
}

func (r *Resolver) fromPage(ctx context.Context, page Page) Result {
	src, err := r.locator.Locate(ctx, page)
	if err != nil {
		return r.failure(err)
	}
	if src.URL != "" {
		return r.fromURL(ctx, src.URL)
	}
	return r.assemble(src.Text, MethodPanel, Outcome{Text: src.Text})
}

func (r *Resolver) fromURL(ctx context.Context, captionURL string) Result {
	raw, cached := "", false
	if r.cache != nil {
		raw, cached = r.cache.Get(ctx, captionURL)
	}
	if !cached {
		var err error
		raw, err = r.fetcher.Fetch(ctx, captionURL)
		if err != nil {
			return r.failure(err)
		}
	}

	out := Normalize(raw)
	if out.Degraded {
		r.log.Warn("resolve: degraded parse",
			zap.String("format", out.Kind.String()),
			zap.String("reason", out.Reason),
			zap.Int("bytes", len(raw)))
	}

	res := r.assemble(out.Text, MethodAPI, out)
	if res.Success {
		res.Format = out.Kind.String()
		res.CaptionURL = captionURL
		res.Cached = cached
		// Degraded payloads are refetched: the upstream may recover.
		if r.cache != nil && !cached && !out.Degraded {
			r.cache.Set(ctx, captionURL, raw)
		}
	}
	return res
}

// assemble builds a successful Result, or NO_CAPTIONS_FOUND for empty text.
func (r *Resolver) assemble(text, method string, out Outcome) Result {
	if strings.TrimSpace(text) == "" {
		return r.failure(errors.NewNoCaptionsFound("transcript is empty"))
	}
	return Result{
		Transcript: &text,
		Success:    true,
		WordCount:  len(strings.Fields(text)),
		Method:     method,
		Degraded:   out.Degraded,
		Reason:     out.Reason,
	}
}

func (r *Resolver) failure(err error) Result {
	rErr, ok := errors.As(err)
	if !ok {
		rErr = errors.NewInternal(err)
	}
	r.log.Info("resolve: failed", zap.String("code", string(rErr.Code)), zap.String("detail", rErr.Message))
	return Result{
		Success: false,
		Error:   FailureMessage(rErr),
		Code:    rErr.Code,
		err:     rErr,
	}
}

// FailureMessage maps a pipeline error to the text shown to the user.
func FailureMessage(e *errors.RecapError) string {
	switch e.Code {
	case errors.ErrNoCaptionsFound:
		return "No transcript available for this video"
	case errors.ErrFetchFailed:
		if status, _ := e.Details["status"].(int); status > 0 {
			return fmt.Sprintf("Failed to fetch transcript (HTTP %d)", status)
		}
		return "Failed to fetch transcript: the caption server could not be reached"
	case errors.ErrTimeout:
		return "Transcript request timed out: the caption server is responding slowly"
	case errors.ErrCancelled:
		return "Transcript resolution was cancelled"
	case errors.ErrInvalidRequest:
		return e.Message
	default:
		return "Transcript resolution failed"
	}
}
