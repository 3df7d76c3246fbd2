package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/bytes-zone/beeps/pkg/apierr"
)

type contextKey int

const emailContextKey contextKey = iota

// unauthorizedMessage is returned verbatim for any missing, malformed, or
// expired bearer token, matching the uniform authorization-failure
// message the protocol specifies.
const unauthorizedMessage = "missing or invalid authorization"

// requireAuth extracts and verifies the bearer token, injecting the
// authenticated email into the request context for inner handlers.
func (s *Server) requireAuth(next handlerFunc) handlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		header := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			return apierr.New(http.StatusUnauthorized, unauthorizedMessage)
		}

		token := strings.TrimPrefix(header, prefix)
		claims, err := s.Issuer.Verify(token)
		if err != nil {
			return apierr.New(http.StatusUnauthorized, unauthorizedMessage)
		}

		ctx := context.WithValue(r.Context(), emailContextKey, claims.Subject)
		return next(w, r.WithContext(ctx))
	}
}

func emailFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(emailContextKey).(string)
	return email, ok
}
