package httpserver

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bibliotheca/catalog-service/internal/domain"
)

type createEditionRequest struct {
	Year     int    `json:"year" validate:"required,gt=1950"`
	Location string `json:"location" validate:"max=255"`
}

type updateEditionRequest struct {
	Year     *int    `json:"year" validate:"omitempty,gt=1950"`
	Location *string `json:"location" validate:"omitempty,max=255"`
}

// createEdition handles POST /events/{id}/editions.
func (s *Server) createEdition(w http.ResponseWriter, r *http.Request) {
	eventID, ok := parseID(w, chi.URLParam(r, "id"), "event id")
	if !ok {
		return
	}
	var req createEditionRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	ctx := r.Context()
	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		s.fail(w, r, err)
		return
	}

	edition := &domain.Edition{
		EventID:  eventID,
		Year:     req.Year,
		Location: req.Location,
	}
	if err := s.editions.Create(ctx, edition); err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, domainEditionToResponse(edition))
}

// updateEdition handles PUT /editions/{id}.
func (s *Server) updateEdition(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"), "edition id")
	if !ok {
		return
	}
	var req updateEditionRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	ctx := r.Context()
	current, err := s.editions.GetByID(ctx, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	updated := domain.EditionChanges{Year: req.Year, Location: req.Location}.Apply(*current)
	if err := s.editions.Update(ctx, &updated); err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, domainEditionToResponse(&updated))
}

// deleteEdition handles DELETE /editions/{id}.
func (s *Server) deleteEdition(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"), "edition id")
	if !ok {
		return
	}

	ctx := r.Context()
	edition, err := s.editions.GetByID(ctx, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	paths, err := s.pdfPaths(r, edition)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if err := s.editions.Delete(ctx, id); err != nil {
		s.fail(w, r, err)
		return
	}
	s.removePDFs(paths)

	w.WriteHeader(http.StatusNoContent)
}

// getEditionWithArticles handles GET /editions/{eventName}/{year}.
func (s *Server) getEditionWithArticles(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "year must be an integer")
		return
	}

	ctx := r.Context()
	event, err := s.events.GetByName(ctx, pathParam(chi.URLParam(r, "eventName")))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	edition, err := s.editions.GetByEventAndYear(ctx, event.ID, year)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	articles, err := s.articles.ListByEdition(ctx, edition.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, editionDetailResponse{
		Event:    domainEventToResponse(event),
		Edition:  domainEditionToResponse(edition),
		Articles: domainArticlesToResponse(articles),
	})
}
