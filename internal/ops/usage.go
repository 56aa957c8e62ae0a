package ops

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/recap/internal/errors"
	"github.com/hpungsan/recap/internal/usage"
)

// UsageStatus reports today's quota without consuming it.
func UsageStatus(ctx context.Context, rt *Runtime) (*usage.Status, error) {
	if rt.Governor == nil {
		return nil, errors.NewInternal(fmt.Errorf("usage governor not configured"))
	}
	st, err := rt.Governor.Status(ctx)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return &st, nil
}

// UpgradeInput contains parameters for the Upgrade operation.
type UpgradeInput struct {
	// Days of Pro access from now. 0 grants access that never expires.
	Days int
	// Downgrade clears Pro instead.
	Downgrade bool
}

// Upgrade grants or revokes Pro access and returns the resulting status.
func Upgrade(ctx context.Context, rt *Runtime, input UpgradeInput) (*usage.Status, error) {
	if rt.Governor == nil {
		return nil, errors.NewInternal(fmt.Errorf("usage governor not configured"))
	}
	if input.Days < 0 {
		return nil, errors.NewInvalidRequest("days must not be negative")
	}

	if input.Downgrade {
		if err := rt.Governor.Downgrade(ctx); err != nil {
			return nil, errors.NewInternal(err)
		}
		rt.log().Info("usage: downgraded")
	} else {
		var expiry time.Time
		if input.Days > 0 {
			expiry = rt.now().Add(time.Duration(input.Days) * 24 * time.Hour)
		}
		if err := rt.Governor.Upgrade(ctx, expiry); err != nil {
			return nil, errors.NewInternal(err)
		}
		rt.log().Info("usage: upgraded", zap.Int("days", input.Days))
	}
	return UsageStatus(ctx, rt)
}

// CleanupOutput contains the result of the CleanupUsage operation.
type CleanupOutput struct {
	Removed int `json:"removed"`
}

// CleanupUsage deletes daily counters older than the retention window.
func CleanupUsage(ctx context.Context, rt *Runtime) (*CleanupOutput, error) {
	if rt.Governor == nil {
		return nil, errors.NewInternal(fmt.Errorf("usage governor not configured"))
	}
	n, err := rt.Governor.Cleanup(ctx)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return &CleanupOutput{Removed: n}, nil
}
