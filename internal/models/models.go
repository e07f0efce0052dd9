// package models defines the data model for the offline media cache
package models

import (
	"time"
)

// Model is a row persisted in the content index. Index rows are immutable once written.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was stored
	Validate() error      // Validate checks the model's data before it is written
}

// Repository defines the data access operations shared by index repositories.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new model
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	Delete(id string) error                    // Delete removes a model by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given column criteria
}

// ResourceRepository is a [Repository] whose rows belong to a cached resource.
type ResourceRepository[T Model] interface {
	Repository[T]
	ListByResource(resource ResourceID) ([]T, error)   // ListByResource returns a resource's rows in insertion order
	DeleteByResource(resource ResourceID) (int, error) // DeleteByResource removes a resource's rows and reports how many
}
