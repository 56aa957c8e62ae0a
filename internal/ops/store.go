package ops

import (
	"context"
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/recap/internal/db"
	"github.com/hpungsan/recap/internal/errors"
	"github.com/hpungsan/recap/internal/summary"
)

// SaveInput contains parameters for the Save operation.
type SaveInput struct {
	Title       string // default: "Untitled Video"
	Channel     string // default: "Unknown Channel"
	Duration    string
	URL         string
	SummaryType string // default: bullet-points
	Content     string // required
	Transcript  string
	Tags        []string
}

// SaveOutput contains the result of the Save operation.
type SaveOutput struct {
	ID     string `json:"id"`
	Pruned int    `json:"pruned,omitempty"`
}

// Save stores a new summary and prunes the library down to the effective
// maximum, keeping the most recent.
func Save(ctx context.Context, rt *Runtime, input SaveInput) (*SaveOutput, error) {
	if strings.TrimSpace(input.Content) == "" {
		return nil, errors.NewInvalidRequest("content is required")
	}
	sType, err := summary.ParseType(strings.TrimSpace(input.SummaryType))
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}

	now := rt.now().Unix()
	r := &summary.Record{
		ID:           newID(rt.now()),
		Title:        strings.TrimSpace(input.Title),
		Channel:      strings.TrimSpace(input.Channel),
		Duration:     strings.TrimSpace(input.Duration),
		URL:          strings.TrimSpace(input.URL),
		SummaryType:  sType,
		Content:      input.Content,
		Transcript:   input.Transcript,
		WordCount:    summary.CountWords(input.Transcript),
		Tags:         summary.CleanTags(input.Tags),
		CreatedAt:    now,
		LastAccessed: now,
	}
	r.ApplyDefaults()

	if err := db.Insert(ctx, rt.DB, r); err != nil {
		return nil, err
	}

	limit, err := maxSummaries(ctx, rt)
	if err != nil {
		return nil, err
	}
	pruned := 0
	if limit > 0 {
		if pruned, err = db.Prune(ctx, rt.DB, limit); err != nil {
			return nil, err
		}
	}
	if pruned > 0 {
		rt.log().Info("save: pruned old summaries", zap.Int("pruned", pruned), zap.Int("limit", limit))
	}

	return &SaveOutput{ID: r.ID, Pruned: pruned}, nil
}

// maxSummaries is the smaller of the user setting and the configured ceiling.
func maxSummaries(ctx context.Context, rt *Runtime) (int, error) {
	settings, err := rt.kv().Settings(ctx)
	if err != nil {
		return 0, err
	}
	limit := settings.MaxSummaries
	if ceiling := rt.cfg().MaxSummaries; ceiling > 0 && (limit <= 0 || ceiling < limit) {
		limit = ceiling
	}
	return limit, nil
}

// newID generates a ULID timestamped at t.
func newID(t time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
