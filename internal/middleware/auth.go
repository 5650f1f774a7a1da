// internal/middleware/auth.go
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dangerclosesec/orgmgr/internal/auth"
	"github.com/dangerclosesec/orgmgr/internal/domain"
	"github.com/dangerclosesec/orgmgr/internal/model"
	chimw "github.com/go-chi/chi/v5/middleware"
)

type AdminContextKey string

var (
	AdminKey  AdminContextKey = "orgmgr_admin"
	ClaimsKey AdminContextKey = "orgmgr_claims"
)

// TokenResolver turns a bearer token into the admin it was issued to.
type TokenResolver interface {
	ResolveToken(ctx context.Context, token string) (*model.Admin, *auth.Claims, error)
}

// AuthMiddleware rejects requests without a valid bearer token for a live
// admin and stores that admin in the request context.
func AuthMiddleware(resolver TokenResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Extract token from Authorization header
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w, "No authorization header")
				return
			}

			scheme, token, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				unauthorized(w, "Invalid authorization header")
				return
			}

			admin, claims, err := resolver.ResolveToken(r.Context(), strings.TrimSpace(token))
			if err != nil {
				if errors.Is(err, domain.ErrInvalidToken) {
					unauthorized(w, "Invalid authentication credentials")
					return
				}
				slog.ErrorContext(r.Context(), "token resolution failed", "error", err, "requestID", chimw.GetReqID(r.Context()))
				respondWithError(w, http.StatusInternalServerError, "Internal server error")
				return
			}

			ctx := context.WithValue(r.Context(), AdminKey, admin)
			ctx = context.WithValue(ctx, ClaimsKey, claims)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminFromContext returns the admin stored by AuthMiddleware.
func AdminFromContext(ctx context.Context) (*model.Admin, bool) {
	admin, ok := ctx.Value(AdminKey).(*model.Admin)
	return admin, ok && admin != nil
}

// ClaimsFromContext returns the token claims stored by AuthMiddleware.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*auth.Claims)
	return claims, ok && claims != nil
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	respondWithError(w, http.StatusUnauthorized, message)
}

// respondWithError sends a JSON error response
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]interface{}{"ok": false, "error": message})
}

// respondWithJSON sends a JSON response
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
