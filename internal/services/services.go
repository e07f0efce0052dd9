package services

import (
	"context"

	"github.com/desertthunder/hlsx/internal/models"
)

// TrackProvider enumerates the selectable tracks of a resource.
type TrackProvider interface {
	Tracks(ctx context.Context, id models.ResourceID) ([]models.TrackOption, error)
}

// Index records the files stored for each resource.
type Index interface {
	Create(file *models.CachedFile) error
	GetByPath(path string) (*models.CachedFile, error)
	DeleteByPath(path string) error
	ListByResource(resource models.ResourceID) ([]*models.CachedFile, error)
	DeleteByResource(resource models.ResourceID) (int, error)
}
