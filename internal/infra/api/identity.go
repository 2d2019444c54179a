package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"edu-storefront/internal/domain"
	"edu-storefront/internal/domain/model"
	"edu-storefront/internal/infra/logging"
)

type identityKey struct{}

// identityFrom returns the caller identity attached by the middlewares.
func identityFrom(ctx context.Context) model.Identity {
	id, _ := ctx.Value(identityKey{}).(model.Identity)
	return id
}

func withIdentity(ctx context.Context, id model.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// Visitor makes sure every browser carries a stable anonymous key, so a
// plan picked before sign-in can be resumed afterwards.
func (s *Server) Visitor() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ""
			if c, err := r.Cookie(s.cfg.VisitorCookie); err == nil {
				if _, perr := uuid.Parse(c.Value); perr == nil {
					key = c.Value
				}
			}
			if key == "" {
				key = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     s.cfg.VisitorCookie,
					Value:    key,
					Path:     "/",
					MaxAge:   30 * 24 * 3600,
					HttpOnly: true,
					Secure:   s.cfg.SecureCookies,
					SameSite: http.SameSiteLaxMode,
				})
			}
			id := identityFrom(r.Context())
			id.VisitorKey = key
			ctx := logging.WithVisitor(withIdentity(r.Context(), id), key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Identity resolves an optional bearer token. A malformed or rejected
// token is answered with 401; a missing one leaves the caller anonymous.
func (s *Server) Identity() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hdr := r.Header.Get("Authorization")
			if hdr == "" {
				next.ServeHTTP(w, r)
				return
			}
			scheme, token, ok := strings.Cut(hdr, " ")
			if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
				s.writeError(w, r, domain.ErrIdentityRequired)
				return
			}
			claims, err := s.account.Authenticate(r.Context(), strings.TrimSpace(token))
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			id := identityFrom(r.Context())
			id.UserID = claims.UserID
			id.Email = claims.Email
			ctx := logging.WithUserID(withIdentity(r.Context(), id), claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
