// Package middleware provides HTTP middleware for authentication.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/jonathan/voice-coach/internal/types"
)

// ContextKey is a typed key for context values to avoid collisions.
type ContextKey string

// practiceKey is the context key for the authenticated practice context.
const practiceKey ContextKey = "practice"

// ErrNoPractice is returned when a request carries no practice context.
var ErrNoPractice = errors.New("practice context not found in request")

// TokenValidator validates a bearer token and resolves the practice it belongs to.
// Implementations must reject revoked tokens.
type TokenValidator interface {
	ValidateToken(ctx context.Context, tokenString string) (PracticeGetter, error)
}

// PracticeGetter extracts the practice context from validated claims.
type PracticeGetter interface {
	GetPractice() *types.Practice
}

// AuthMiddleware creates middleware that validates bearer tokens and stores the
// practice context on the request.
func AuthMiddleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := BearerToken(r)
			if !ok {
				unauthorized(w)
				return
			}

			claims, err := validator.ValidateToken(r.Context(), tokenString)
			if err != nil {
				unauthorized(w)
				return
			}

			practice := claims.GetPractice()
			if practice == nil {
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPractice(r.Context(), practice)))
		})
	}
}

// BearerToken returns the token of an "Authorization: Bearer <token>" header.
// The scheme is matched case-insensitively.
func BearerToken(r *http.Request) (string, bool) {
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// WithPractice returns a copy of ctx carrying practice.
func WithPractice(ctx context.Context, practice *types.Practice) context.Context {
	return context.WithValue(ctx, practiceKey, practice)
}

// GetPractice extracts the authenticated practice context from the request.
func GetPractice(r *http.Request) (*types.Practice, error) {
	practice, ok := r.Context().Value(practiceKey).(*types.Practice)
	if !ok || practice == nil {
		return nil, ErrNoPractice
	}
	return practice, nil
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"Unauthorized"}` + "\n"))
}
