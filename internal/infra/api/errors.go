package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"edu-storefront/internal/domain"
	"edu-storefront/internal/domain/model"
	"edu-storefront/internal/infra/logging"
)

type errorBody struct {
	Error        string              `json:"error"`
	Message      string              `json:"message"`
	Notification *model.Notification `json:"notification,omitempty"`
	TraceID      string              `json:"trace_id,omitempty"`
}

type errorMapping struct {
	target error
	status int
	code   string
}

// order matters: a RemoteError wrapping ErrNotFound is still a remote failure
var errorMappings = []errorMapping{
	{domain.ErrPaidButUnrecorded, http.StatusInternalServerError, "paid_but_unrecorded"},
	{domain.ErrRemote, http.StatusBadGateway, "remote_failure"},
	{domain.ErrValidation, http.StatusBadRequest, "validation"},
	{domain.ErrIdentityRequired, http.StatusUnauthorized, "identity_required"},
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrCheckoutInFlight, http.StatusConflict, "checkout_in_flight"},
	{domain.ErrOrderFinalized, http.StatusConflict, "order_finalized"},
	{domain.ErrInvalidState, http.StatusUnprocessableEntity, "invalid_state"},
	{domain.ErrInvalidSignature, http.StatusUnprocessableEntity, "invalid_signature"},
	{domain.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
	{domain.ErrDependencyUnavailable, http.StatusServiceUnavailable, "dependency_unavailable"},
}

func statusFor(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

// publicMessage returns text safe to show a shopper.
func publicMessage(err error, status int) string {
	var re *domain.RemoteError
	switch {
	case errors.As(err, &re) && re.Message != "":
		return re.Message
	case status == http.StatusBadGateway:
		return "An upstream service failed. Please try again."
	case status >= 500:
		return "Something went wrong. Please try again."
	}
	return err.Error()
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	s.writeErrorWith(w, r, err, nil)
}

func (s *Server) writeErrorWith(w http.ResponseWriter, r *http.Request, err error, n *model.Notification) {
	status, code := statusFor(err)
	l := logging.With(r.Context(), s.log)
	if status >= 500 {
		l.Error().Err(err).Int("status", status).Msg("request failed")
	} else {
		l.Debug().Err(err).Int("status", status).Msg("request rejected")
	}
	body := errorBody{Error: code, Message: publicMessage(err, status), Notification: n}
	if n != nil && n.Message != "" {
		body.Message = n.Message
	}
	if status >= 500 {
		body.TraceID = logging.TraceID(r.Context())
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return domain.Validationf("invalid request body: %v", err)
	}
	return nil
}
