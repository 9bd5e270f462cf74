package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bibliotheca/catalog-service/internal/domain"
	"github.com/bibliotheca/catalog-service/internal/repository"
)

type createEventRequest struct {
	Name            string `json:"name" validate:"required,max=255"`
	Acronym         string `json:"acronym" validate:"max=50"`
	Description     string `json:"description" validate:"max=10000"`
	Website         string `json:"website" validate:"omitempty,url"`
	PromotingEntity string `json:"promoting_entity" validate:"max=255"`
}

// updateEventRequest carries only the fields to change.
type updateEventRequest struct {
	Name            *string `json:"name" validate:"omitempty,min=1,max=255"`
	Acronym         *string `json:"acronym" validate:"omitempty,max=50"`
	Description     *string `json:"description" validate:"omitempty,max=10000"`
	Website         *string `json:"website" validate:"omitempty,url"`
	PromotingEntity *string `json:"promoting_entity" validate:"omitempty,max=255"`
}

func (r updateEventRequest) changes() domain.EventChanges {
	return domain.EventChanges{
		Name:            r.Name,
		Acronym:         r.Acronym,
		Description:     r.Description,
		Website:         r.Website,
		PromotingEntity: r.PromotingEntity,
	}
}

// createEvent handles POST /events.
func (s *Server) createEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	event := &domain.Event{
		Name:            req.Name,
		Acronym:         req.Acronym,
		Description:     req.Description,
		Website:         req.Website,
		PromotingEntity: req.PromotingEntity,
	}
	if err := s.events.Create(r.Context(), event); err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, domainEventToResponse(event))
}

// listEvents handles GET /events with an optional ?q= filter on name and acronym.
func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePaginationParams(r)

	events, total, err := s.events.List(r.Context(), repository.EventFilter{
		Query:  r.URL.Query().Get("q"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, listEventsResponse{
		Events:        domainEventsToResponse(events),
		NextPageToken: encodeHTTPPageToken(offset, limit, int(total)),
		TotalCount:    int(total),
	})
}

// recentEvents handles GET /events/recent.
func (s *Server) recentEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.events.Recent(r.Context(), parseRecentLimit(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, domainEventsToResponse(events))
}

// getEvent handles GET /events/{name}.
func (s *Server) getEvent(w http.ResponseWriter, r *http.Request) {
	event, err := s.events.GetByName(r.Context(), pathParam(chi.URLParam(r, "name")))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, domainEventToResponse(event))
}

// updateEvent handles PUT /events/{id}.
func (s *Server) updateEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"), "event id")
	if !ok {
		return
	}
	var req updateEventRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	ctx := r.Context()
	current, err := s.events.GetByID(ctx, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	updated := req.changes().Apply(*current)
	if err := s.events.Update(ctx, &updated); err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, domainEventToResponse(&updated))
}

// deleteEvent handles DELETE /events/{id}. Editions and articles cascade;
// their stored PDFs are removed afterwards.
func (s *Server) deleteEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"), "event id")
	if !ok {
		return
	}

	ctx := r.Context()
	editions, err := s.editions.ListByEvent(ctx, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	paths, err := s.pdfPaths(r, editions...)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if err := s.events.Delete(ctx, id); err != nil {
		s.fail(w, r, err)
		return
	}
	s.removePDFs(paths)

	w.WriteHeader(http.StatusNoContent)
}

// pdfPaths collects the stored PDFs of every article in the given editions.
func (s *Server) pdfPaths(r *http.Request, editions ...*domain.Edition) ([]string, error) {
	var paths []string
	for _, ed := range editions {
		articles, err := s.articles.ListByEdition(r.Context(), ed.ID)
		if err != nil {
			return nil, err
		}
		for _, a := range articles {
			if a.HasPDF() {
				paths = append(paths, a.PDFPath)
			}
		}
	}
	return paths, nil
}

// removePDFs deletes stored PDFs whose rows are gone. Failures are logged only.
func (s *Server) removePDFs(paths []string) {
	if s.pdfs == nil {
		return
	}
	for _, p := range paths {
		if err := s.pdfs.Remove(p); err != nil {
			s.logger.Warn().Err(err).Str("path", p).Msg("failed to remove stored PDF")
		}
	}
}
