package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bibliotheca/catalog-service/internal/database"
)

// Catalog bundles the catalog repositories over one DBTX.
type Catalog struct {
	Events      EventRepository
	Editions    EditionRepository
	Articles    ArticleRepository
	Subscribers SubscriberRepository
}

// NewCatalog creates PostgreSQL repositories over db.
func NewCatalog(db DBTX) *Catalog {
	return &Catalog{
		Events:      NewPgEventRepository(db),
		Editions:    NewPgEditionRepository(db),
		Articles:    NewPgArticleRepository(db),
		Subscribers: NewPgSubscriberRepository(db),
	}
}

// TxBeginner starts transactions. *database.DB and pgxmock pools satisfy it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// CatalogTx is a Catalog bound to a transaction it owns. Writes stay pending
// until Commit; reads through it see the pending writes.
type CatalogTx struct {
	*Catalog
	tx pgx.Tx
}

// BeginCatalogTx starts a transaction and, when lockKey is non-zero, takes
// the transaction-scoped advisory lock lockKey before returning.
func BeginCatalogTx(ctx context.Context, db TxBeginner, lockKey int64) (*CatalogTx, error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin catalog transaction: %w", err)
	}

	if lockKey != 0 {
		if err := database.AcquireAdvisoryLockTx(ctx, tx, lockKey); err != nil {
			_ = tx.Rollback(ctx)
			return nil, err
		}
	}

	return &CatalogTx{Catalog: NewCatalog(tx), tx: tx}, nil
}

// Commit makes every pending write durable.
func (c *CatalogTx) Commit(ctx context.Context) error {
	if err := c.tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit catalog transaction: %w", err)
	}
	return nil
}

// Rollback discards every pending write. Rolling back a finished
// transaction is a no-op.
func (c *CatalogTx) Rollback(ctx context.Context) error {
	if err := c.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to roll back catalog transaction: %w", err)
	}
	return nil
}
