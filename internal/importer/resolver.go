package importer

import (
	"context"
	"errors"
	"fmt"

	"github.com/bibliotheca/catalog-service/internal/domain"
)

// ResolveEdition finds the edition a record belongs to. A record that cannot
// be placed yields a skip code; err is reserved for lookup failures that
// must abort the batch.
//
// Without a year the event's earliest edition is used.
func ResolveEdition(ctx context.Context, lookup EditionLookup, rec *domain.ImportRecord) (*domain.Edition, domain.SkipCode, error) {
	if rec.EventName == "" {
		return nil, domain.SkipEventNotFound, nil
	}

	event, err := lookup.FindEventByName(ctx, rec.EventName)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.SkipEventNotFound, nil
		}
		return nil, "", fmt.Errorf("failed to look up event %q: %w", rec.EventName, err)
	}

	if rec.Year != nil {
		edition, err := lookup.FindEdition(ctx, event.ID, *rec.Year)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, domain.SkipEditionNotFound, nil
			}
			return nil, "", fmt.Errorf("failed to look up edition %s/%d: %w", event.Name, *rec.Year, err)
		}
		return edition, "", nil
	}

	edition, err := lookup.FindFirstEdition(ctx, event.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.SkipNoEdition, nil
		}
		return nil, "", fmt.Errorf("failed to look up first edition of %s: %w", event.Name, err)
	}
	return edition, "", nil
}

// IsDuplicate reports whether an article with exactly this title already
// exists in the edition, staged articles of the current batch included.
func IsDuplicate(ctx context.Context, lookup ArticleLookup, title string, editionID int64) (bool, error) {
	_, err := lookup.FindArticle(ctx, title, editionID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("failed to check for duplicate article: %w", err)
}
