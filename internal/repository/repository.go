// Package repository provides data access interfaces and PostgreSQL
// implementations for the catalog: events, editions, articles and subscribers.
//
// # Error Handling
//
// Methods return errors from the domain package where the condition is part
// of the contract:
//
//   - domain.ErrNotFound: Resource does not exist
//   - domain.ErrAlreadyExists: Unique constraint violation
//   - domain.ErrInvalidInput: Invalid parameters provided
//
// Other database errors are wrapped with context using %w.
//
// # Transactions
//
// Every repository is constructed over a DBTX, so the same type serves both
// the pool and a pgx.Tx. Catalog bundles all four repositories over one DBTX;
// CatalogTx does the same over a transaction it owns:
//
//	tx, err := repository.BeginCatalogTx(ctx, db, database.ImportLockKey)
//	if err != nil { ... }
//	defer tx.Rollback(ctx)
//	err = tx.Articles.Create(ctx, article)
//	err = tx.Commit(ctx)
package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bibliotheca/catalog-service/internal/database"
)

// DBTX is the database interface supporting both pool and transaction contexts.
type DBTX = database.DBTX

// Filter pagination defaults and limits.
const (
	defaultFilterLimit = 100
	maxFilterLimit     = 1000

	// defaultRecentLimit is the page size of the "recent" listings.
	defaultRecentLimit = 10
)

// PostgreSQL error codes mapped to domain errors.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// applyPaginationDefaults normalizes limit and offset values for filter queries.
// It clamps limit to [1, maxFilterLimit] and ensures offset >= 0.
func applyPaginationDefaults(limit, offset *int) {
	if *limit <= 0 {
		*limit = defaultFilterLimit
	}
	if *limit > maxFilterLimit {
		*limit = maxFilterLimit
	}
	if *offset < 0 {
		*offset = 0
	}
}

func recentLimit(limit int) int {
	if limit <= 0 {
		return defaultRecentLimit
	}
	if limit > maxFilterLimit {
		return maxFilterLimit
	}
	return limit
}

// pgErrorCode returns the SQLSTATE of err, or "" when err is not a PostgreSQL error.
func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// containsPattern builds an ILIKE pattern matching q anywhere, with LIKE
// metacharacters in q escaped.
func containsPattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(q) + "%"
}
