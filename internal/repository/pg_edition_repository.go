package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bibliotheca/catalog-service/internal/domain"
)

// Compile-time interface verification.
var _ EditionRepository = (*PgEditionRepository)(nil)

const editionColumns = `id, event_id, year, location, created_at`

// PgEditionRepository is a PostgreSQL implementation of EditionRepository.
type PgEditionRepository struct {
	db DBTX
}

// NewPgEditionRepository creates a new PostgreSQL edition repository.
func NewPgEditionRepository(db DBTX) *PgEditionRepository {
	return &PgEditionRepository{db: db}
}

// Create inserts a new edition.
func (r *PgEditionRepository) Create(ctx context.Context, edition *domain.Edition) error {
	if err := validateEdition(edition); err != nil {
		return err
	}

	query := `
		INSERT INTO editions (event_id, year, location)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query, edition.EventID, edition.Year, edition.Location).
		Scan(&edition.ID, &edition.CreatedAt)
	if err != nil {
		return editionWriteError(err, edition, "create")
	}

	return nil
}

// GetByID retrieves an edition by ID.
func (r *PgEditionRepository) GetByID(ctx context.Context, id int64) (*domain.Edition, error) {
	query := `SELECT ` + editionColumns + ` FROM editions WHERE id = $1`

	edition, err := scanEdition(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("edition", domain.FormatID(id))
		}
		return nil, fmt.Errorf("failed to get edition by ID: %w", err)
	}
	return edition, nil
}

// GetByEventAndYear retrieves the edition of an event held in year.
func (r *PgEditionRepository) GetByEventAndYear(ctx context.Context, eventID int64, year int) (*domain.Edition, error) {
	query := `SELECT ` + editionColumns + ` FROM editions WHERE event_id = $1 AND year = $2`

	edition, err := scanEdition(r.db.QueryRow(ctx, query, eventID, year))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("edition", fmt.Sprintf("event %d, year %d", eventID, year))
		}
		return nil, fmt.Errorf("failed to get edition by event and year: %w", err)
	}
	return edition, nil
}

// GetFirstByEvent retrieves the earliest edition of an event.
func (r *PgEditionRepository) GetFirstByEvent(ctx context.Context, eventID int64) (*domain.Edition, error) {
	query := `
		SELECT ` + editionColumns + `
		FROM editions
		WHERE event_id = $1
		ORDER BY year, id
		LIMIT 1`

	edition, err := scanEdition(r.db.QueryRow(ctx, query, eventID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("edition", fmt.Sprintf("event %d", eventID))
		}
		return nil, fmt.Errorf("failed to get first edition of event: %w", err)
	}
	return edition, nil
}

// ListByEvent returns all editions of an event ordered by year.
func (r *PgEditionRepository) ListByEvent(ctx context.Context, eventID int64) ([]*domain.Edition, error) {
	query := `SELECT ` + editionColumns + ` FROM editions WHERE event_id = $1 ORDER BY year, id`

	rows, err := r.db.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list editions: %w", err)
	}
	defer rows.Close()

	editions := make([]*domain.Edition, 0)
	for rows.Next() {
		edition, err := scanEdition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan edition: %w", err)
		}
		editions = append(editions, edition)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating editions: %w", err)
	}
	return editions, nil
}

// Update overwrites the year and location of an edition.
func (r *PgEditionRepository) Update(ctx context.Context, edition *domain.Edition) error {
	if err := validateEdition(edition); err != nil {
		return err
	}

	result, err := r.db.Exec(ctx,
		`UPDATE editions SET year = $2, location = $3 WHERE id = $1`,
		edition.ID, edition.Year, edition.Location,
	)
	if err != nil {
		return editionWriteError(err, edition, "update")
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("edition", domain.FormatID(edition.ID))
	}
	return nil
}

// Delete removes an edition; its articles cascade.
func (r *PgEditionRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.Exec(ctx, `DELETE FROM editions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete edition: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("edition", domain.FormatID(id))
	}
	return nil
}

func validateEdition(edition *domain.Edition) error {
	if edition == nil {
		return domain.NewValidationError("edition", "edition cannot be nil")
	}
	if edition.Year < domain.MinEditionYear {
		return domain.NewValidationError("year", fmt.Sprintf("year must be after %d", domain.MinEditionYear-1))
	}
	return nil
}

func editionWriteError(err error, edition *domain.Edition, op string) error {
	switch pgErrorCode(err) {
	case pgUniqueViolation:
		return domain.NewAlreadyExistsError("edition", fmt.Sprintf("event %d, year %d", edition.EventID, edition.Year))
	case pgForeignKeyViolation:
		return domain.NewNotFoundError("event", domain.FormatID(edition.EventID))
	case pgCheckViolation:
		return domain.NewValidationError("year", fmt.Sprintf("year must be after %d", domain.MinEditionYear-1))
	}
	return fmt.Errorf("failed to %s edition: %w", op, err)
}

// scanEdition scans a single edition from a row or the current position of pgx.Rows.
func scanEdition(row pgx.Row) (*domain.Edition, error) {
	var e domain.Edition
	if err := row.Scan(&e.ID, &e.EventID, &e.Year, &e.Location, &e.CreatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}
