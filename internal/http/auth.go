package http

import (
	"context"
	"net/http"
	"strings"

	"expenses/internal/identity"
	"expenses/internal/log"
)

type contextKey string

const principalKey = contextKey("principal")

// PrincipalFrom returns the authenticated caller stored by the auth middleware.
func PrincipalFrom(ctx context.Context) (identity.Principal, bool) {
	p, ok := ctx.Value(principalKey).(identity.Principal)
	return p, ok
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			s.metrics.authFailures.Add(1)
			writeError(w, http.StatusUnauthorized, "missing or invalid token")
			return
		}

		p, err := s.verifier.Verify(strings.TrimSpace(token))
		if err != nil {
			s.metrics.authFailures.Add(1)
			log.FromContext(r.Context()).Warn("Token rejected", log.FieldError, err)
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), principalKey, p)
		ctx = log.NewContext(ctx, log.FromContext(ctx).With(log.FieldUserID, p.UserID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
