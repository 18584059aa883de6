package httpserver

import (
	"context"
	"log"
	"net/http"
	"strings"

	"servicehub/internal/domain"
	"servicehub/internal/security"
)

type contextKey string

const profileContextKey contextKey = "currentProfile"

// WithProfile returns a new context carrying the authenticated profile.
func WithProfile(ctx context.Context, p *domain.Profile) context.Context {
	return context.WithValue(ctx, profileContextKey, p)
}

// CurrentProfile extracts the authenticated profile from context, if any.
func CurrentProfile(r *http.Request) *domain.Profile {
	if v := r.Context().Value(profileContextKey); v != nil {
		if p, ok := v.(*domain.Profile); ok {
			return p
		}
	}
	return nil
}

// AuthMiddleware validates the Bearer token and attaches the profile to the context.
func AuthMiddleware(tokens *security.TokenService, profiles domain.ProfileRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || !strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
				writeError(w, http.StatusUnauthorized, "missing or invalid Authorization header")
				return
			}
			tokenStr := strings.TrimSpace(authHeader[len("Bearer "):])

			sub, err := tokens.Subject(tokenStr)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			p, err := profiles.GetByID(r.Context(), sub)
			if err != nil {
				log.Printf("auth: load profile %s: %v", sub, err)
				writeError(w, http.StatusUnauthorized, "profile not found")
				return
			}
			if p == nil {
				writeError(w, http.StatusUnauthorized, "profile not found")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithProfile(r.Context(), p)))
		})
	}
}
