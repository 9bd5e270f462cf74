package importer

import (
	"context"

	"github.com/bibliotheca/catalog-service/internal/database"
	"github.com/bibliotheca/catalog-service/internal/domain"
	"github.com/bibliotheca/catalog-service/internal/repository"
)

// EditionLookup finds the event and edition a record belongs to.
// Lookups that match nothing return an error wrapping domain.ErrNotFound.
type EditionLookup interface {
	FindEventByName(ctx context.Context, name string) (*domain.Event, error)
	FindEdition(ctx context.Context, eventID int64, year int) (*domain.Edition, error)
	FindFirstEdition(ctx context.Context, eventID int64) (*domain.Edition, error)
}

// ArticleLookup finds an already cataloged or staged article.
type ArticleLookup interface {
	FindArticle(ctx context.Context, title string, editionID int64) (*domain.Article, error)
}

// Batch is the unit of work of one import. Staged articles are visible to
// its lookups and become durable only on Commit.
type Batch interface {
	EditionLookup
	ArticleLookup
	StageArticle(ctx context.Context, article *domain.Article) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store opens batches and lists subscribers.
type Store interface {
	Begin(ctx context.Context) (Batch, error)
	ListSubscribers(ctx context.Context) ([]domain.Subscriber, error)
}

// CatalogStore is the PostgreSQL-backed Store. Each batch holds the import
// advisory lock, so concurrent imports run one after another.
type CatalogStore struct {
	db          repository.TxBeginner
	subscribers repository.SubscriberRepository
	lockKey     int64
}

// NewCatalogStore creates a CatalogStore.
func NewCatalogStore(db repository.TxBeginner, subscribers repository.SubscriberRepository) *CatalogStore {
	return &CatalogStore{
		db:          db,
		subscribers: subscribers,
		lockKey:     database.ImportLockKey,
	}
}

// Begin opens a transaction-backed batch.
func (s *CatalogStore) Begin(ctx context.Context) (Batch, error) {
	tx, err := repository.BeginCatalogTx(ctx, s.db, s.lockKey)
	if err != nil {
		return nil, err
	}
	return &catalogBatch{tx: tx}, nil
}

// ListSubscribers returns every subscriber.
func (s *CatalogStore) ListSubscribers(ctx context.Context) ([]domain.Subscriber, error) {
	return s.subscribers.List(ctx)
}

type catalogBatch struct {
	tx *repository.CatalogTx
}

func (b *catalogBatch) FindEventByName(ctx context.Context, name string) (*domain.Event, error) {
	return b.tx.Events.GetByName(ctx, name)
}

func (b *catalogBatch) FindEdition(ctx context.Context, eventID int64, year int) (*domain.Edition, error) {
	return b.tx.Editions.GetByEventAndYear(ctx, eventID, year)
}

func (b *catalogBatch) FindFirstEdition(ctx context.Context, eventID int64) (*domain.Edition, error) {
	return b.tx.Editions.GetFirstByEvent(ctx, eventID)
}

func (b *catalogBatch) FindArticle(ctx context.Context, title string, editionID int64) (*domain.Article, error) {
	return b.tx.Articles.GetByTitleAndEdition(ctx, title, editionID)
}

func (b *catalogBatch) StageArticle(ctx context.Context, article *domain.Article) error {
	return b.tx.Articles.Create(ctx, article)
}

func (b *catalogBatch) Commit(ctx context.Context) error {
	return b.tx.Commit(ctx)
}

func (b *catalogBatch) Rollback(ctx context.Context) error {
	return b.tx.Rollback(ctx)
}
