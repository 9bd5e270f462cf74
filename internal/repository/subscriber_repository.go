package repository

import (
	"context"

	"github.com/bibliotheca/catalog-service/internal/domain"
)

// SubscriberRepository handles subscriber persistence.
type SubscriberRepository interface {
	// Create inserts a new subscriber and fills in its ID and CreatedAt.
	// Returns domain.ErrAlreadyExists if the email is already registered.
	Create(ctx context.Context, subscriber *domain.Subscriber) error

	// List returns every subscriber ordered by ID.
	List(ctx context.Context) ([]domain.Subscriber, error)
}
