package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bibliotheca/catalog-service/internal/domain"
)

// Compile-time interface verification.
var _ EventRepository = (*PgEventRepository)(nil)

const eventColumns = `id, name, acronym, description, website, promoting_entity, created_at`

// PgEventRepository is a PostgreSQL implementation of EventRepository.
type PgEventRepository struct {
	db DBTX
}

// NewPgEventRepository creates a new PostgreSQL event repository.
func NewPgEventRepository(db DBTX) *PgEventRepository {
	return &PgEventRepository{db: db}
}

// Create inserts a new event.
func (r *PgEventRepository) Create(ctx context.Context, event *domain.Event) error {
	if event == nil {
		return domain.NewValidationError("event", "event cannot be nil")
	}
	if event.Name == "" {
		return domain.NewValidationError("name", "event name is required")
	}

	query := `
		INSERT INTO events (name, acronym, description, website, promoting_entity)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query,
		event.Name, event.Acronym, event.Description, event.Website, event.PromotingEntity,
	).Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		if pgErrorCode(err) == pgUniqueViolation {
			return domain.NewAlreadyExistsError("event", event.Name)
		}
		return fmt.Errorf("failed to create event: %w", err)
	}

	return nil
}

// GetByID retrieves an event by ID.
func (r *PgEventRepository) GetByID(ctx context.Context, id int64) (*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`

	event, err := scanEvent(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("event", domain.FormatID(id))
		}
		return nil, fmt.Errorf("failed to get event by ID: %w", err)
	}

	return event, nil
}

// GetByName retrieves an event by exact name.
func (r *PgEventRepository) GetByName(ctx context.Context, name string) (*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE name = $1`

	event, err := scanEvent(r.db.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("event", name)
		}
		return nil, fmt.Errorf("failed to get event by name: %w", err)
	}

	return event, nil
}

// Update overwrites the mutable fields of an event.
func (r *PgEventRepository) Update(ctx context.Context, event *domain.Event) error {
	if event == nil {
		return domain.NewValidationError("event", "event cannot be nil")
	}
	if event.Name == "" {
		return domain.NewValidationError("name", "event name is required")
	}

	query := `
		UPDATE events
		SET name = $2, acronym = $3, description = $4, website = $5, promoting_entity = $6
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query,
		event.ID, event.Name, event.Acronym, event.Description, event.Website, event.PromotingEntity,
	)
	if err != nil {
		if pgErrorCode(err) == pgUniqueViolation {
			return domain.NewAlreadyExistsError("event", event.Name)
		}
		return fmt.Errorf("failed to update event: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("event", domain.FormatID(event.ID))
	}

	return nil
}

// Delete removes an event; editions and articles cascade.
func (r *PgEventRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("event", domain.FormatID(id))
	}
	return nil
}

// List returns events matching the filter.
func (r *PgEventRepository) List(ctx context.Context, filter EventFilter) ([]*domain.Event, int64, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}

	whereClause := ""
	var args []interface{}
	if filter.Query != "" {
		whereClause = `WHERE name ILIKE $1 OR acronym ILIKE $1`
		args = append(args, containsPattern(filter.Query))
	}

	var total int64
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM events %s`, whereClause)
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count events: %w", err)
	}

	selectQuery := fmt.Sprintf(`
		SELECT %s
		FROM events
		%s
		ORDER BY name
		LIMIT $%d OFFSET $%d`,
		eventColumns, whereClause, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	events, err := r.queryEvents(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list events: %w", err)
	}
	return events, total, nil
}

// Recent returns the newest events.
func (r *PgEventRepository) Recent(ctx context.Context, limit int) ([]*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events ORDER BY id DESC LIMIT $1`

	events, err := r.queryEvents(ctx, query, recentLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list recent events: %w", err)
	}
	return events, nil
}

func (r *PgEventRepository) queryEvents(ctx context.Context, query string, args ...interface{}) ([]*domain.Event, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]*domain.Event, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return events, nil
}

// scanEvent scans a single event from a row or the current position of pgx.Rows.
func scanEvent(row pgx.Row) (*domain.Event, error) {
	var e domain.Event
	if err := row.Scan(
		&e.ID, &e.Name, &e.Acronym, &e.Description, &e.Website, &e.PromotingEntity, &e.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &e, nil
}
