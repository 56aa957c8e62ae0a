package ops

import (
	"context"
	"strings"

	"github.com/hpungsan/recap/internal/db"
	"github.com/hpungsan/recap/internal/errors"
	"github.com/hpungsan/recap/internal/summary"
)

// UpdateInput contains parameters for the Update operation.
type UpdateInput struct {
	ID string

	// Editable fields (nil = don't change)
	Title   *string
	Channel *string
	Content *string
	Tags    *[]string
}

// UpdateOutput contains the result of the Update operation.
type UpdateOutput struct {
	ID string `json:"id"`
}

// Update modifies the editable fields of a saved summary.
func Update(ctx context.Context, rt *Runtime, input UpdateInput) (*UpdateOutput, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}
	if input.Title == nil && input.Channel == nil && input.Content == nil && input.Tags == nil {
		return nil, errors.NewInvalidRequest("at least one editable field must be provided")
	}

	r, err := db.GetByID(ctx, rt.DB, id)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		r.Title = strings.TrimSpace(*input.Title)
	}
	if input.Channel != nil {
		r.Channel = strings.TrimSpace(*input.Channel)
	}
	if input.Content != nil {
		if strings.TrimSpace(*input.Content) == "" {
			return nil, errors.NewInvalidRequest("content must not be empty")
		}
		r.Content = *input.Content
	}
	if input.Tags != nil {
		r.Tags = summary.CleanTags(*input.Tags)
	}
	r.ApplyDefaults()

	if err := db.UpdateByID(ctx, rt.DB, r); err != nil {
		return nil, err
	}
	return &UpdateOutput{ID: r.ID}, nil
}

// FavoriteOutput contains the result of the ToggleFavorite operation.
type FavoriteOutput struct {
	ID         string `json:"id"`
	IsFavorite bool   `json:"is_favorite"`
}

// ToggleFavorite flips a summary's favorite flag and returns the new value.
func ToggleFavorite(ctx context.Context, rt *Runtime, id string) (*FavoriteOutput, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}

	r, err := db.GetByID(ctx, rt.DB, id)
	if err != nil {
		return nil, err
	}
	r.IsFavorite = !r.IsFavorite
	if err := db.UpdateByID(ctx, rt.DB, r); err != nil {
		return nil, err
	}
	return &FavoriteOutput{ID: r.ID, IsFavorite: r.IsFavorite}, nil
}
