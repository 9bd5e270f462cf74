package httpserver

import (
	"net/http"
	"strings"

	"github.com/bibliotheca/catalog-service/internal/domain"
)

type createSubscriberRequest struct {
	Name  string `json:"name" validate:"required,max=255"`
	Email string `json:"email" validate:"required,email,max=320"`
}

// createSubscriber handles POST /subscribers. A repeated email is a conflict.
func (s *Server) createSubscriber(w http.ResponseWriter, r *http.Request) {
	var req createSubscriberRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	sub := &domain.Subscriber{
		Name:  strings.TrimSpace(req.Name),
		Email: strings.TrimSpace(req.Email),
	}
	if err := s.subscribers.Create(r.Context(), sub); err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, domainSubscriberToResponse(sub))
}

// listSubscribers handles GET /subscribers.
func (s *Server) listSubscribers(w http.ResponseWriter, r *http.Request) {
	subs, err := s.subscribers.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}

	out := make([]subscriberResponse, len(subs))
	for i := range subs {
		out[i] = domainSubscriberToResponse(&subs[i])
	}
	writeJSON(w, http.StatusOK, out)
}
