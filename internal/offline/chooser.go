package offline

import (
	"context"
	"fmt"
	"slices"

	"github.com/desertthunder/hlsx/internal/models"
	"github.com/desertthunder/hlsx/internal/shared"
)

// Chooser picks the tracks to download from the options offered for a resource.
// Returning no keys cancels the download.
type Chooser func(ctx context.Context, id models.ResourceID, options []models.TrackOption) ([]models.TrackKey, error)

// SelectAll chooses every offered track.
func SelectAll(_ context.Context, _ models.ResourceID, options []models.TrackOption) ([]models.TrackKey, error) {
	keys := make([]models.TrackKey, len(options))
	for i, o := range options {
		keys[i] = o.Key
	}
	return keys, nil
}

// SelectKeys chooses exactly keys. Keys that are not offered are rejected.
func SelectKeys(keys ...models.TrackKey) Chooser {
	return func(ctx context.Context, id models.ResourceID, options []models.TrackOption) ([]models.TrackKey, error) {
		if len(keys) == 0 {
			return SelectAll(ctx, id, options)
		}
		for _, k := range keys {
			if !slices.ContainsFunc(options, func(o models.TrackOption) bool { return o.Key == k }) {
				return nil, fmt.Errorf("%w: %s is not offered by %s", shared.ErrInvalidTrackKey, k, id)
			}
		}
		return slices.Clone(keys), nil
	}
}
