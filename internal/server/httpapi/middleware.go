package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/registryauth/internal/common"
	"github.com/dmitrijs2005/registryauth/internal/server/auth"
	"github.com/dmitrijs2005/registryauth/internal/server/models"
)

type ctxKey string

const userKey ctxKey = "user"

func userFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userKey).(*models.User)
	return user, ok
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header.
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errors.New("missing authorization header")
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errors.New("invalid authorization header")
	}

	return parts[1], nil
}

// requireAuth verifies an access-kind bearer token, re-confirms the subject
// in the store, and injects the user into the request context. Every failure
// collapses into the same 401 body; the distinction between expired and
// invalid tokens is kept in the logs only.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		token, err := bearerToken(r)
		if err != nil {
			unauthorized(w, "Could not validate credentials")
			return
		}

		subject, err := auth.SubjectFromToken(token, auth.TokenKindAccess, s.jwtSecret)
		if err != nil {
			s.logger.Warn(r.Context(), "Token validation failed", "reason", err.Error())
			unauthorized(w, "Could not validate credentials")
			return
		}

		user, err := s.users.GetActiveUser(r.Context(), subject)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				s.logger.Warn(r.Context(), "Token subject no longer active", "username", subject)
				unauthorized(w, "Could not validate credentials")
				return
			}
			s.logger.Error(r.Context(), "User lookup error", "error", err.Error())
			writeDetail(w, http.StatusInternalServerError, "internal error")
			return
		}

		ctx := context.WithValue(r.Context(), userKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// corsMiddleware allows any origin. The registry frontend runs on a
// different origin during development; production deployments sit behind a
// proxy that narrows this down.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
