package repository

import (
	"context"

	"github.com/bibliotheca/catalog-service/internal/domain"
)

// EditionRepository handles edition persistence.
type EditionRepository interface {
	// Create inserts a new edition and fills in its ID and CreatedAt.
	// Returns domain.ErrNotFound if the event does not exist,
	// domain.ErrAlreadyExists if the event already has an edition that year,
	// and domain.ErrInvalidInput if the year is not after 1950.
	Create(ctx context.Context, edition *domain.Edition) error

	// GetByID retrieves an edition by ID.
	GetByID(ctx context.Context, id int64) (*domain.Edition, error)

	// GetByEventAndYear retrieves the edition of an event held in year.
	// Returns domain.ErrNotFound if there is none.
	GetByEventAndYear(ctx context.Context, eventID int64, year int) (*domain.Edition, error)

	// GetFirstByEvent retrieves the earliest edition of an event (lowest
	// year, then lowest ID). Returns domain.ErrNotFound if the event has none.
	GetFirstByEvent(ctx context.Context, eventID int64) (*domain.Edition, error)

	// ListByEvent returns all editions of an event ordered by year.
	ListByEvent(ctx context.Context, eventID int64) ([]*domain.Edition, error)

	// Update overwrites the year and location of an existing edition.
	Update(ctx context.Context, edition *domain.Edition) error

	// Delete removes an edition together with its articles.
	Delete(ctx context.Context, id int64) error
}
