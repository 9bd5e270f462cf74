package httpserver

import (
	"time"

	"github.com/bibliotheca/catalog-service/internal/domain"
)

// Catalog response types for JSON serialization.

type eventResponse struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Acronym         string    `json:"acronym,omitempty"`
	Description     string    `json:"description,omitempty"`
	Website         string    `json:"website,omitempty"`
	PromotingEntity string    `json:"promoting_entity,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type listEventsResponse struct {
	Events        []eventResponse `json:"events"`
	NextPageToken string          `json:"next_page_token,omitempty"`
	TotalCount    int             `json:"total_count"`
}

type editionResponse struct {
	ID        int64     `json:"id"`
	EventID   int64     `json:"event_id"`
	Year      int       `json:"year"`
	Location  string    `json:"location,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type editionDetailResponse struct {
	Event    eventResponse     `json:"event"`
	Edition  editionResponse   `json:"edition"`
	Articles []articleResponse `json:"articles"`
}

type articleResponse struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Authors   []string  `json:"authors"`
	EventName string    `json:"event_name"`
	Year      *int      `json:"year,omitempty"`
	StartPage *int      `json:"start_page,omitempty"`
	EndPage   *int      `json:"end_page,omitempty"`
	PDFPages  *int      `json:"pdf_pages,omitempty"`
	PDFURL    string    `json:"pdf_url,omitempty"`
	Booktitle string    `json:"booktitle,omitempty"`
	Publisher string    `json:"publisher,omitempty"`
	Location  string    `json:"location,omitempty"`
	EditionID int64     `json:"edition_id"`
	CreatedAt time.Time `json:"created_at"`
}

type listArticlesResponse struct {
	Articles      []articleResponse `json:"articles"`
	NextPageToken string            `json:"next_page_token,omitempty"`
	TotalCount    int               `json:"total_count"`
}

type subscriberResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Converter functions

func domainEventToResponse(e *domain.Event) eventResponse {
	return eventResponse{
		ID:              e.ID,
		Name:            e.Name,
		Acronym:         e.Acronym,
		Description:     e.Description,
		Website:         e.Website,
		PromotingEntity: e.PromotingEntity,
		CreatedAt:       e.CreatedAt,
	}
}

func domainEventsToResponse(events []*domain.Event) []eventResponse {
	out := make([]eventResponse, len(events))
	for i, e := range events {
		out[i] = domainEventToResponse(e)
	}
	return out
}

func domainEditionToResponse(e *domain.Edition) editionResponse {
	return editionResponse{
		ID:        e.ID,
		EventID:   e.EventID,
		Year:      e.Year,
		Location:  e.Location,
		CreatedAt: e.CreatedAt,
	}
}

func domainArticleToResponse(a *domain.Article) articleResponse {
	resp := articleResponse{
		ID:        a.ID,
		Title:     a.Title,
		Authors:   a.AuthorList(),
		EventName: a.EventName,
		Year:      a.Year,
		StartPage: a.StartPage,
		EndPage:   a.EndPage,
		PDFPages:  a.PDFPages,
		Booktitle: a.Booktitle,
		Publisher: a.Publisher,
		Location:  a.Location,
		EditionID: a.EditionID,
		CreatedAt: a.CreatedAt,
	}
	if resp.Authors == nil {
		resp.Authors = []string{}
	}
	if a.HasPDF() {
		resp.PDFURL = "/api/v1/articles/" + domain.FormatID(a.ID) + "/pdf"
	}
	return resp
}

func domainArticlesToResponse(articles []*domain.Article) []articleResponse {
	out := make([]articleResponse, len(articles))
	for i, a := range articles {
		out[i] = domainArticleToResponse(a)
	}
	return out
}

func domainSubscriberToResponse(s *domain.Subscriber) subscriberResponse {
	return subscriberResponse{
		ID:        s.ID,
		Name:      s.Name,
		Email:     s.Email,
		CreatedAt: s.CreatedAt,
	}
}
