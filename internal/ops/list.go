package ops

import (
	"context"

	"github.com/hpungsan/recap/internal/db"
	"github.com/hpungsan/recap/internal/summary"
)

// ListInput contains parameters for the List operation.
type ListInput struct {
	Limit  int // default: 20, max: 100
	Offset int // default: 0
}

// ListOutput contains the result of the List and Search operations.
type ListOutput struct {
	Items      []summary.ListItem `json:"items"`
	Pagination Pagination         `json:"pagination"`
	Sort       string             `json:"sort"`
}

// List retrieves saved summaries, newest first, with pagination.
func List(ctx context.Context, rt *Runtime, input ListInput) (*ListOutput, error) {
	return listFiltered(ctx, rt, db.Filters{}, input.Limit, input.Offset)
}

func listFiltered(ctx context.Context, rt *Runtime, f db.Filters, limit, offset int) (*ListOutput, error) {
	limit, offset = paginate(limit, offset)

	items, total, err := db.List(ctx, rt.DB, f, limit, offset)
	if err != nil {
		return nil, err
	}

	return &ListOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
		Sort: "created_at_desc",
	}, nil
}
