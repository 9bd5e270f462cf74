package repository

import (
	"context"
	"fmt"

	"github.com/bibliotheca/catalog-service/internal/domain"
)

// ArticleRepository handles article persistence.
type ArticleRepository interface {
	// Create inserts a new article and fills in its ID and CreatedAt. Inside a
	// transaction the row stays pending until commit. The (title, edition)
	// pair is not checked here; callers check with GetByTitleAndEdition first.
	Create(ctx context.Context, article *domain.Article) error

	// GetByID retrieves an article by ID.
	GetByID(ctx context.Context, id int64) (*domain.Article, error)

	// GetByTitleAndEdition retrieves the article with exactly this title in an edition.
	// Returns domain.ErrNotFound if there is none.
	GetByTitleAndEdition(ctx context.Context, title string, editionID int64) (*domain.Article, error)

	// ListByEdition returns the articles of an edition ordered by start page, then title.
	ListByEdition(ctx context.Context, editionID int64) ([]*domain.Article, error)

	// Search returns articles matching the filter and the total match count.
	Search(ctx context.Context, filter ArticleFilter) ([]*domain.Article, int64, error)

	// Recent returns the most recently created articles, newest first.
	Recent(ctx context.Context, limit int) ([]*domain.Article, error)

	// Update overwrites the editable columns of an article. The PDF columns and
	// created_at are never changed. Returns domain.ErrNotFound if the article or
	// its edition does not exist.
	Update(ctx context.Context, article *domain.Article) error

	// Delete removes an article. Returns domain.ErrNotFound if it does not exist.
	Delete(ctx context.Context, id int64) error
}

// SearchField selects the article column a search matches against.
type SearchField string

// Supported search fields.
const (
	SearchByTitle  SearchField = "title"
	SearchByAuthor SearchField = "author"
	SearchByEvent  SearchField = "event"
)

// column returns the articles column searched for f.
func (f SearchField) column() (string, bool) {
	switch f {
	case SearchByTitle:
		return "title", true
	case SearchByAuthor:
		return "authors", true
	case SearchByEvent:
		return "event_name", true
	default:
		return "", false
	}
}

// ArticleFilter defines filter criteria for searching articles.
type ArticleFilter struct {
	// Field selects the searched column (default: title).
	Field SearchField

	// Query is matched case-insensitively as a substring. Required.
	Query string

	// Limit specifies maximum number of results (default: 100, max: 1000).
	Limit int

	// Offset specifies the starting position for pagination.
	Offset int
}

// Validate checks if the filter has valid values and sets defaults.
func (f *ArticleFilter) Validate() error {
	if f.Field == "" {
		f.Field = SearchByTitle
	}
	if _, ok := f.Field.column(); !ok {
		return domain.NewValidationError("field", fmt.Sprintf("unsupported search field %q", f.Field))
	}
	if f.Query == "" {
		return domain.NewValidationError("q", "search query is required")
	}
	applyPaginationDefaults(&f.Limit, &f.Offset)
	return nil
}
