package repository

import (
	"context"
	"fmt"

	"github.com/bibliotheca/catalog-service/internal/domain"
)

// Compile-time interface verification.
var _ SubscriberRepository = (*PgSubscriberRepository)(nil)

// PgSubscriberRepository is a PostgreSQL implementation of SubscriberRepository.
type PgSubscriberRepository struct {
	db DBTX
}

// NewPgSubscriberRepository creates a new PostgreSQL subscriber repository.
func NewPgSubscriberRepository(db DBTX) *PgSubscriberRepository {
	return &PgSubscriberRepository{db: db}
}

// Create inserts a new subscriber.
func (r *PgSubscriberRepository) Create(ctx context.Context, subscriber *domain.Subscriber) error {
	if subscriber == nil {
		return domain.NewValidationError("subscriber", "subscriber cannot be nil")
	}
	if subscriber.Email == "" {
		return domain.NewValidationError("email", "email is required")
	}

	query := `
		INSERT INTO subscribers (name, email)
		VALUES ($1, $2)
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query, subscriber.Name, subscriber.Email).
		Scan(&subscriber.ID, &subscriber.CreatedAt)
	if err != nil {
		if pgErrorCode(err) == pgUniqueViolation {
			return domain.NewAlreadyExistsError("subscriber", subscriber.Email)
		}
		return fmt.Errorf("failed to create subscriber: %w", err)
	}
	return nil
}

// List returns every subscriber.
func (r *PgSubscriberRepository) List(ctx context.Context) ([]domain.Subscriber, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, email, created_at FROM subscribers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscribers: %w", err)
	}
	defer rows.Close()

	subscribers := make([]domain.Subscriber, 0)
	for rows.Next() {
		var s domain.Subscriber
		if err := rows.Scan(&s.ID, &s.Name, &s.Email, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan subscriber: %w", err)
		}
		subscribers = append(subscribers, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscribers: %w", err)
	}
	return subscribers, nil
}
