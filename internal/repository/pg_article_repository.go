package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bibliotheca/catalog-service/internal/domain"
)

// Compile-time interface verification.
var _ ArticleRepository = (*PgArticleRepository)(nil)

const articleColumns = `id, edition_id, title, authors, event_name, year, start_page, end_page,
	pdf_path, pdf_pages, booktitle, publisher, location, created_at`

// PgArticleRepository is a PostgreSQL implementation of ArticleRepository.
type PgArticleRepository struct {
	db DBTX
}

// NewPgArticleRepository creates a new PostgreSQL article repository.
func NewPgArticleRepository(db DBTX) *PgArticleRepository {
	return &PgArticleRepository{db: db}
}

// Create inserts a new article.
func (r *PgArticleRepository) Create(ctx context.Context, article *domain.Article) error {
	if article == nil {
		return domain.NewValidationError("article", "article cannot be nil")
	}
	if article.Title == "" {
		return domain.NewValidationError("title", "title is required")
	}

	query := `
		INSERT INTO articles (
			edition_id, title, authors, event_name, year, start_page, end_page,
			pdf_path, pdf_pages, booktitle, publisher, location
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query,
		article.EditionID, article.Title, article.Authors, article.EventName,
		article.Year, article.StartPage, article.EndPage,
		article.PDFPath, article.PDFPages, article.Booktitle, article.Publisher, article.Location,
	).Scan(&article.ID, &article.CreatedAt)
	if err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return domain.NewNotFoundError("edition", domain.FormatID(article.EditionID))
		}
		return fmt.Errorf("failed to create article: %w", err)
	}

	return nil
}

// GetByID retrieves an article by ID.
func (r *PgArticleRepository) GetByID(ctx context.Context, id int64) (*domain.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles WHERE id = $1`

	article, err := scanArticle(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("article", domain.FormatID(id))
		}
		return nil, fmt.Errorf("failed to get article by ID: %w", err)
	}
	return article, nil
}

// GetByTitleAndEdition retrieves the article with exactly this title in an edition.
func (r *PgArticleRepository) GetByTitleAndEdition(ctx context.Context, title string, editionID int64) (*domain.Article, error) {
	query := `
		SELECT ` + articleColumns + `
		FROM articles
		WHERE title = $1 AND edition_id = $2
		ORDER BY id
		LIMIT 1`

	article, err := scanArticle(r.db.QueryRow(ctx, query, title, editionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("article", title)
		}
		return nil, fmt.Errorf("failed to get article by title and edition: %w", err)
	}
	return article, nil
}

// ListByEdition returns the articles of an edition.
func (r *PgArticleRepository) ListByEdition(ctx context.Context, editionID int64) ([]*domain.Article, error) {
	query := `
		SELECT ` + articleColumns + `
		FROM articles
		WHERE edition_id = $1
		ORDER BY start_page NULLS LAST, title, id`

	articles, err := r.queryArticles(ctx, query, editionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles of edition: %w", err)
	}
	return articles, nil
}

// Search returns articles whose selected field contains the query.
func (r *PgArticleRepository) Search(ctx context.Context, filter ArticleFilter) ([]*domain.Article, int64, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}
	column, _ := filter.Field.column()
	pattern := containsPattern(filter.Query)

	var total int64
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM articles WHERE %s ILIKE $1`, column)
	if err := r.db.QueryRow(ctx, countQuery, pattern).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count articles: %w", err)
	}

	selectQuery := fmt.Sprintf(`
		SELECT %s
		FROM articles
		WHERE %s ILIKE $1
		ORDER BY id DESC
		LIMIT $2 OFFSET $3`, articleColumns, column)

	articles, err := r.queryArticles(ctx, selectQuery, pattern, filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search articles: %w", err)
	}
	return articles, total, nil
}

// Recent returns the newest articles.
func (r *PgArticleRepository) Recent(ctx context.Context, limit int) ([]*domain.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles ORDER BY id DESC LIMIT $1`

	articles, err := r.queryArticles(ctx, query, recentLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list recent articles: %w", err)
	}
	return articles, nil
}

// Update overwrites an article's editable columns.
func (r *PgArticleRepository) Update(ctx context.Context, article *domain.Article) error {
	if article == nil {
		return domain.NewValidationError("article", "article cannot be nil")
	}
	if article.Title == "" {
		return domain.NewValidationError("title", "title is required")
	}

	query := `
		UPDATE articles SET
			edition_id = $2, title = $3, authors = $4, event_name = $5, year = $6,
			start_page = $7, end_page = $8, booktitle = $9, publisher = $10, location = $11
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query,
		article.ID, article.EditionID, article.Title, article.Authors, article.EventName, article.Year,
		article.StartPage, article.EndPage, article.Booktitle, article.Publisher, article.Location,
	)
	if err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return domain.NewNotFoundError("edition", domain.FormatID(article.EditionID))
		}
		return fmt.Errorf("failed to update article: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("article", domain.FormatID(article.ID))
	}
	return nil
}

// Delete removes an article.
func (r *PgArticleRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.Exec(ctx, `DELETE FROM articles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete article: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("article", domain.FormatID(id))
	}
	return nil
}

func (r *PgArticleRepository) queryArticles(ctx context.Context, query string, args ...interface{}) ([]*domain.Article, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	articles := make([]*domain.Article, 0)
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		articles = append(articles, article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating articles: %w", err)
	}
	return articles, nil
}

// scanArticle scans a single article from a row or the current position of pgx.Rows.
func scanArticle(row pgx.Row) (*domain.Article, error) {
	var a domain.Article
	if err := row.Scan(
		&a.ID, &a.EditionID, &a.Title, &a.Authors, &a.EventName,
		&a.Year, &a.StartPage, &a.EndPage,
		&a.PDFPath, &a.PDFPages, &a.Booktitle, &a.Publisher, &a.Location, &a.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &a, nil
}
