package repository

import (
	"context"

	"github.com/bibliotheca/catalog-service/internal/domain"
)

// EventRepository handles event persistence.
type EventRepository interface {
	// Create inserts a new event and fills in its ID and CreatedAt.
	// Returns domain.ErrAlreadyExists if the name is taken.
	Create(ctx context.Context, event *domain.Event) error

	// GetByID retrieves an event by ID.
	// Returns domain.ErrNotFound if no matching event exists.
	GetByID(ctx context.Context, id int64) (*domain.Event, error)

	// GetByName retrieves an event by exact, case-sensitive name.
	// Returns domain.ErrNotFound if no matching event exists.
	GetByName(ctx context.Context, name string) (*domain.Event, error)

	// Update overwrites the mutable fields of an existing event.
	// Returns domain.ErrNotFound or domain.ErrAlreadyExists (name taken).
	Update(ctx context.Context, event *domain.Event) error

	// Delete removes an event together with its editions and articles.
	// Returns domain.ErrNotFound if no matching event exists.
	Delete(ctx context.Context, id int64) error

	// List returns events matching the filter, ordered by name, and the total match count.
	List(ctx context.Context, filter EventFilter) ([]*domain.Event, int64, error)

	// Recent returns the most recently created events, newest first.
	Recent(ctx context.Context, limit int) ([]*domain.Event, error)
}

// EventFilter defines filter criteria for listing events.
type EventFilter struct {
	// Query matches case-insensitively anywhere in the name or acronym (optional).
	Query string

	// Limit specifies maximum number of results (default: 100, max: 1000).
	Limit int

	// Offset specifies the starting position for pagination.
	Offset int
}

// Validate checks if the filter has valid values and sets defaults.
func (f *EventFilter) Validate() error {
	applyPaginationDefaults(&f.Limit, &f.Offset)
	return nil
}
