package httpserver

import (
	"errors"
	"io/fs"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/bibliotheca/catalog-service/internal/domain"
	"github.com/bibliotheca/catalog-service/internal/repository"
)

type createArticleRequest struct {
	Title     string `json:"title" validate:"required,min=5,max=1000"`
	Authors   string `json:"authors" validate:"max=5000"`
	EditionID int64  `json:"edition_id" validate:"required,gt=0"`
	StartPage *int   `json:"start_page" validate:"omitempty,gt=0"`
	EndPage   *int   `json:"end_page" validate:"omitempty,gt=0"`
	Booktitle string `json:"booktitle" validate:"max=1000"`
	Publisher string `json:"publisher" validate:"max=255"`
	Location  string `json:"location" validate:"max=255"`
}

type updateArticleRequest struct {
	Title     *string `json:"title" validate:"omitempty,min=5,max=1000"`
	Authors   *string `json:"authors" validate:"omitempty,max=5000"`
	EditionID *int64  `json:"edition_id" validate:"omitempty,gt=0"`
	StartPage *int    `json:"start_page" validate:"omitempty,gt=0"`
	EndPage   *int    `json:"end_page" validate:"omitempty,gt=0"`
	Booktitle *string `json:"booktitle" validate:"omitempty,max=1000"`
	Publisher *string `json:"publisher" validate:"omitempty,max=255"`
	Location  *string `json:"location" validate:"omitempty,max=255"`
}

func (r updateArticleRequest) changes() domain.ArticleChanges {
	return domain.ArticleChanges{
		Title:     r.Title,
		Authors:   r.Authors,
		StartPage: r.StartPage,
		EndPage:   r.EndPage,
		Booktitle: r.Booktitle,
		Publisher: r.Publisher,
		Location:  r.Location,
	}
}

// createArticle handles POST /articles. The title must be new within the edition.
func (s *Server) createArticle(w http.ResponseWriter, r *http.Request) {
	var req createArticleRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.StartPage != nil && req.EndPage != nil && *req.EndPage < *req.StartPage {
		writeDomainError(w, domain.NewValidationError("end_page", "must not be before start_page"))
		return
	}

	ctx := r.Context()
	edition, err := s.editions.GetByID(ctx, req.EditionID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	event, err := s.events.GetByID(ctx, edition.EventID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	_, err = s.articles.GetByTitleAndEdition(ctx, req.Title, edition.ID)
	switch {
	case err == nil:
		writeDomainError(w, domain.NewAlreadyExistsError("article", req.Title))
		return
	case !errors.Is(err, domain.ErrNotFound):
		s.fail(w, r, err)
		return
	}

	year := edition.Year
	article := &domain.Article{
		Title:     req.Title,
		Authors:   req.Authors,
		EventName: event.Name,
		Year:      &year,
		StartPage: req.StartPage,
		EndPage:   req.EndPage,
		Booktitle: req.Booktitle,
		Publisher: req.Publisher,
		Location:  req.Location,
		EditionID: edition.ID,
	}
	if err := s.articles.Create(ctx, article); err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, domainArticleToResponse(article))
}

// updateArticle handles PUT /articles/{id}. Only the fields present in the
// body change; the title must stay unique within the resulting edition.
func (s *Server) updateArticle(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"), "article id")
	if !ok {
		return
	}
	var req updateArticleRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	ctx := r.Context()
	current, err := s.articles.GetByID(ctx, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	updated := req.changes().Apply(*current)
	if updated.StartPage != nil && updated.EndPage != nil && *updated.EndPage < *updated.StartPage {
		writeDomainError(w, domain.NewValidationError("end_page", "must not be before start_page"))
		return
	}

	if req.EditionID != nil && *req.EditionID != current.EditionID {
		edition, err := s.editions.GetByID(ctx, *req.EditionID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		event, err := s.events.GetByID(ctx, edition.EventID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		updated.MoveTo(edition, event.Name)
	}

	existing, err := s.articles.GetByTitleAndEdition(ctx, updated.Title, updated.EditionID)
	switch {
	case err == nil && existing.ID != id:
		writeDomainError(w, domain.NewAlreadyExistsError("article", updated.Title))
		return
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		s.fail(w, r, err)
		return
	}

	if err := s.articles.Update(ctx, &updated); err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, domainArticleToResponse(&updated))
}

// searchArticles handles GET /articles/search?field=title|author|event&q=.
func (s *Server) searchArticles(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePaginationParams(r)

	articles, total, err := s.articles.Search(r.Context(), repository.ArticleFilter{
		Field:  repository.SearchField(r.URL.Query().Get("field")),
		Query:  r.URL.Query().Get("q"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, listArticlesResponse{
		Articles:      domainArticlesToResponse(articles),
		NextPageToken: encodeHTTPPageToken(offset, limit, int(total)),
		TotalCount:    int(total),
	})
}

// recentArticles handles GET /articles/recent.
func (s *Server) recentArticles(w http.ResponseWriter, r *http.Request) {
	articles, err := s.articles.Recent(r.Context(), parseRecentLimit(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, domainArticlesToResponse(articles))
}

// deleteArticle handles DELETE /articles/{id} and removes its stored PDF.
func (s *Server) deleteArticle(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"), "article id")
	if !ok {
		return
	}

	ctx := r.Context()
	article, err := s.articles.GetByID(ctx, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.articles.Delete(ctx, id); err != nil {
		s.fail(w, r, err)
		return
	}
	if article.HasPDF() {
		s.removePDFs([]string{article.PDFPath})
	}

	w.WriteHeader(http.StatusNoContent)
}

// downloadArticlePDF handles GET /articles/{id}/pdf.
func (s *Server) downloadArticlePDF(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"), "article id")
	if !ok {
		return
	}

	article, err := s.articles.GetByID(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !article.HasPDF() || s.pdfs == nil {
		writeError(w, http.StatusNotFound, "article has no PDF")
		return
	}

	f, err := s.pdfs.Open(article.PDFPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeError(w, http.StatusNotFound, "article has no PDF")
			return
		}
		s.fail(w, r, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		s.fail(w, r, err)
		return
	}

	name := filepath.Base(article.PDFPath)
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeContent(w, r, name, info.ModTime(), f)
}
