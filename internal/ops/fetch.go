package ops

import (
	"context"
	"strings"

	"github.com/hpungsan/recap/internal/db"
	"github.com/hpungsan/recap/internal/errors"
	"github.com/hpungsan/recap/internal/summary"
)

// GetInput contains parameters for the Get operation.
type GetInput struct {
	ID                string
	IncludeTranscript *bool // default: true (nil means default)
}

// Get retrieves a summary by ID and records the access time.
func Get(ctx context.Context, rt *Runtime, input GetInput) (*summary.Record, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}

	r, err := db.GetByID(ctx, rt.DB, id)
	if err != nil {
		return nil, err
	}

	now := rt.now().Unix()
	if err := db.Touch(ctx, rt.DB, id, now); err != nil {
		return nil, err
	}
	r.LastAccessed = now

	if input.IncludeTranscript != nil && !*input.IncludeTranscript {
		r.Transcript = ""
	}
	return r, nil
}
