package api

import (
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"

	"edu-storefront/internal/domain"
	"edu-storefront/internal/domain/model"
)

type leadRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Organization string `json:"organization"`
	Message      string `json:"message"`
	Proposal     string `json:"proposal"`
}

func (s *Server) handleLead(w http.ResponseWriter, r *http.Request) {
	kind := model.LeadKind(chi.URLParam(r, "kind"))
	if kind.Collection() == "" {
		s.writeError(w, r, domain.ErrNotFound)
		return
	}
	var req leadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	msg := req.Message
	if kind == model.LeadCollaboration && req.Proposal != "" {
		msg = req.Proposal
	}
	lead := &model.Lead{
		Kind:         kind,
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		Organization: req.Organization,
		Message:      msg,
		SourceIP:     clientIP(r),
	}
	id, err := s.leads.Submit(r.Context(), lead)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		ID string `json:"id"`
	}{ID: id})
}

// clientIP strips the port from RemoteAddr, which RealIP has already
// replaced with the forwarded address when one was sent.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
