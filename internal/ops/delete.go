package ops

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/recap/internal/db"
	"github.com/hpungsan/recap/internal/errors"
)

// DeleteOutput contains the result of the Delete operation.
type DeleteOutput struct {
	Deleted bool   `json:"deleted"`
	ID      string `json:"id"`
}

// Delete permanently removes a saved summary.
func Delete(ctx context.Context, rt *Runtime, id string) (*DeleteOutput, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}
	if err := db.Delete(ctx, rt.DB, id); err != nil {
		return nil, err
	}
	return &DeleteOutput{Deleted: true, ID: id}, nil
}

// ClearOutput contains the result of the ClearAll operation.
type ClearOutput struct {
	Summaries     int  `json:"summaries"`
	SettingsReset bool `json:"settings_reset"`
}

// ClearAll removes every summary and resets the settings to their defaults.
// Usage counters and Pro flags are kept: the daily count only drops at day
// rollover.
func ClearAll(ctx context.Context, rt *Runtime) (*ClearOutput, error) {
	n, err := db.DeleteAll(ctx, rt.DB)
	if err != nil {
		return nil, err
	}
	if err := rt.kv().Delete(ctx, db.SettingsKey); err != nil {
		return nil, err
	}
	rt.log().Warn("clear: summaries and settings removed", zap.Int("summaries", n))
	return &ClearOutput{Summaries: n, SettingsReset: true}, nil
}
