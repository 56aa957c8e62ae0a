package ops

import (
	"context"

	"github.com/hpungsan/recap/internal/errors"
	"github.com/hpungsan/recap/internal/summary"
)

// GetSettings returns the saved settings merged over the defaults.
func GetSettings(ctx context.Context, rt *Runtime) (summary.Settings, error) {
	return rt.kv().Settings(ctx)
}

// UpdateSettings applies a partial update and saves the result.
// Invalid results are rejected without saving.
func UpdateSettings(ctx context.Context, rt *Runtime, patch summary.SettingsPatch) (summary.Settings, error) {
	cur, err := rt.kv().Settings(ctx)
	if err != nil {
		return summary.Settings{}, err
	}
	next := cur.Apply(patch)
	if err := next.Validate(); err != nil {
		return cur, errors.NewInvalidRequest(err.Error())
	}
	if err := rt.kv().SaveSettings(ctx, next); err != nil {
		return cur, err
	}
	return next, nil
}
