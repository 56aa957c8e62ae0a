package transcript

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/recap/internal/errors"
)

// Fetch defaults.
const (
	DefaultFetchTimeout  = 10 * time.Second
	DefaultMaxFetchBytes = 5 * 1024 * 1024
	DefaultUserAgent     = "recap"
	ClientHeader         = "X-Recap-Client"
)

// FetcherConfig configures a Fetcher. Zero values take defaults.
type FetcherConfig struct {
	Timeout   time.Duration
	MaxBytes  int64
	UserAgent string
	Client    *http.Client
}

// Fetcher retrieves caption tracks and watch pages over HTTP.
// One GET per call, no retries.
type Fetcher struct {
	client    *http.Client
	timeout   time.Duration
	maxBytes  int64
	userAgent string
	log       *zap.Logger
}

// NewFetcher creates a Fetcher.
func NewFetcher(cfg FetcherConfig, log *zap.Logger) *Fetcher {
	if log == nil {
		log = zap.NewNop()
	}
	f := &Fetcher{
		client:    cfg.Client,
		timeout:   cfg.Timeout,
		maxBytes:  cfg.MaxBytes,
		userAgent: cfg.UserAgent,
		log:       log,
	}
	if f.client == nil {
		f.client = &http.Client{}
	}
	if f.timeout <= 0 {
		f.timeout = DefaultFetchTimeout
	}
	if f.maxBytes <= 0 {
		f.maxBytes = DefaultMaxFetchBytes
	}
	if f.userAgent == "" {
		f.userAgent = DefaultUserAgent
	}
	return f
}

// Fetch GETs rawURL and returns the response body as text.
// Errors: INVALID_REQUEST for a non-http(s) URL, TIMEOUT when the bound
// elapses, CANCELLED when ctx is cancelled, FETCH_FAILED otherwise.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", errors.NewInvalidRequest(fmt.Sprintf("invalid caption URL: %q", rawURL))
	}

	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", errors.NewFetchFailed(0, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set(ClientHeader, DefaultUserAgent)

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return "", f.classify(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		f.log.Debug("fetch: non-2xx",
			zap.String("host", u.Host),
			zap.Int("status", resp.StatusCode))
		return "", errors.NewFetchFailed(resp.StatusCode, nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return "", f.classify(ctx, err)
	}
	if int64(len(body)) > f.maxBytes {
		f.log.Debug("fetch: body too large", zap.String("host", u.Host), zap.Int64("max_bytes", f.maxBytes))
		return "", errors.NewFetchFailed(0, fmt.Errorf("response body exceeds %d bytes", f.maxBytes))
	}

	f.log.Debug("fetch: ok",
		zap.String("host", u.Host),
		zap.Int("bytes", len(body)),
		zap.Duration("elapsed", time.Since(start)))
	return string(body), nil
}

// classify maps a transport error to TIMEOUT, CANCELLED or FETCH_FAILED.
// parent is the caller's context, before the fetch bound was applied.
func (f *Fetcher) classify(parent context.Context, err error) error {
	if stderrors.Is(parent.Err(), context.Canceled) {
		return errors.NewCancelled("caption fetch")
	}
	var netErr net.Error
	if stderrors.Is(err, context.DeadlineExceeded) || (stderrors.As(err, &netErr) && netErr.Timeout()) {
		return errors.NewTimeout("caption fetch", f.timeout.String())
	}
	return errors.NewFetchFailed(0, err)
}
