package ops

import (
	"context"
	"math"

	"github.com/hpungsan/recap/internal/db"
)

// StatsOutput contains the result of the Stats operation.
type StatsOutput struct {
	TotalSummaries int            `json:"total_summaries"`
	StorageUsedKB  int64          `json:"storage_used_kb"`
	FavoriteCount  int            `json:"favorite_count"`
	TypeBreakdown  map[string]int `json:"type_breakdown"`
	MaxSummaries   int            `json:"max_summaries"`
}

// Stats summarizes the saved library.
func Stats(ctx context.Context, rt *Runtime) (*StatsOutput, error) {
	s, err := db.GetStats(ctx, rt.DB)
	if err != nil {
		return nil, err
	}
	limit, err := maxSummaries(ctx, rt)
	if err != nil {
		return nil, err
	}
	return &StatsOutput{
		TotalSummaries: s.Total,
		StorageUsedKB:  int64(math.Round(float64(s.StorageBytes) / 1024)),
		FavoriteCount:  s.Favorites,
		TypeBreakdown:  s.TypeBreakdown,
		MaxSummaries:   limit,
	}, nil
}
