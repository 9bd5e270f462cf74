// Package domain provides the catalog's entities, import records, and error taxonomy.
package domain

import (
	"strconv"
	"time"

	"github.com/bibliotheca/catalog-service/internal/authors"
)

// MinEditionYear is the earliest year an edition may be registered for.
const MinEditionYear = 1951

// Event is a recurring scientific event (conference, symposium, workshop).
type Event struct {
	ID              int64
	Name            string
	Acronym         string
	Description     string
	Website         string
	PromotingEntity string
	CreatedAt       time.Time
}

// Edition is one yearly occurrence of an Event.
type Edition struct {
	ID        int64
	EventID   int64
	Year      int
	Location  string
	CreatedAt time.Time
}

// Article is a cataloged publication belonging to an Edition.
type Article struct {
	ID        int64
	Title     string
	Authors   string
	EventName string
	Year      *int
	StartPage *int
	EndPage   *int
	PDFPath   string
	PDFPages  *int
	Booktitle string
	Publisher string
	Location  string
	EditionID int64
	CreatedAt time.Time
}

// AuthorList returns the article's authors as individual names.
func (a *Article) AuthorList() []string {
	return authors.Split(a.Authors)
}

// HasPDF reports whether a PDF is attached to the article.
func (a *Article) HasPDF() bool {
	return a.PDFPath != ""
}

// Subscriber receives notifications when articles by an author with the same name are cataloged.
type Subscriber struct {
	ID        int64
	Name      string
	Email     string
	CreatedAt time.Time
}

// EventChanges lists the mutable fields of an Event. Nil fields are left unchanged.
type EventChanges struct {
	Name            *string
	Acronym         *string
	Description     *string
	Website         *string
	PromotingEntity *string
}

// Apply returns a copy of e with the non-nil changes applied.
func (c EventChanges) Apply(e Event) Event {
	out := e
	if c.Name != nil {
		out.Name = *c.Name
	}
	if c.Acronym != nil {
		out.Acronym = *c.Acronym
	}
	if c.Description != nil {
		out.Description = *c.Description
	}
	if c.Website != nil {
		out.Website = *c.Website
	}
	if c.PromotingEntity != nil {
		out.PromotingEntity = *c.PromotingEntity
	}
	return out
}

// EditionChanges lists the mutable fields of an Edition. Nil fields are left unchanged.
type EditionChanges struct {
	Year     *int
	Location *string
}

// Apply returns a copy of e with the non-nil changes applied.
func (c EditionChanges) Apply(e Edition) Edition {
	out := e
	if c.Year != nil {
		out.Year = *c.Year
	}
	if c.Location != nil {
		out.Location = *c.Location
	}
	return out
}

// ArticleChanges lists the editable fields of an Article. Nil fields are left
// unchanged. Moving an article to another edition goes through MoveTo so the
// denormalized event name and year follow the edition.
type ArticleChanges struct {
	Title     *string
	Authors   *string
	StartPage *int
	EndPage   *int
	Booktitle *string
	Publisher *string
	Location  *string
}

// Apply returns a copy of a with the non-nil changes applied.
func (c ArticleChanges) Apply(a Article) Article {
	out := a
	if c.Title != nil {
		out.Title = *c.Title
	}
	if c.Authors != nil {
		out.Authors = *c.Authors
	}
	if c.StartPage != nil {
		out.StartPage = c.StartPage
	}
	if c.EndPage != nil {
		out.EndPage = c.EndPage
	}
	if c.Booktitle != nil {
		out.Booktitle = *c.Booktitle
	}
	if c.Publisher != nil {
		out.Publisher = *c.Publisher
	}
	if c.Location != nil {
		out.Location = *c.Location
	}
	return out
}

// MoveTo attaches the article to edition, taking its year and the event name.
func (a *Article) MoveTo(edition *Edition, eventName string) {
	year := edition.Year
	a.EditionID = edition.ID
	a.Year = &year
	a.EventName = eventName
}

// FormatID renders a numeric identifier for error messages.
func FormatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
