package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dangerclosesec/orgmgr/internal/domain"
	chmw "github.com/go-chi/chi/v5/middleware"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

type ErrorResponse struct { // TypeGen: ErrorResponse
	BaseResponse
	Error   string    `json:"error"`
	Details *[]string `json:"details,omitempty"`
	Code    *string   `json:"error_code,omitempty"`
	Link    *string   `json:"error_link,omitempty"`
}

type BaseResponse struct { // TypeGen: DefaultResponse
	Ok bool `json:"ok"`
}

type MessageResponse struct {
	BaseResponse
	Message string `json:"message"`
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	defer r.Body.Close()

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return false
	}
	return true
}

// respondWithServiceError maps a service error onto a status code. Failures
// are logged with the request id and reported without their cause.
func respondWithServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()

	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrOrganizationExists):
		respondWithError(w, http.StatusBadRequest, "Organization already exists")
	case errors.Is(err, domain.ErrEmailAlreadyExists):
		respondWithError(w, http.StatusBadRequest, "Email already registered")
	case errors.Is(err, domain.ErrOrganizationNotFound):
		respondWithError(w, http.StatusNotFound, "Organization not found")
	case errors.Is(err, domain.ErrInvalidCredentials):
		w.Header().Set("WWW-Authenticate", "Bearer")
		respondWithError(w, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, domain.ErrInvalidToken):
		w.Header().Set("WWW-Authenticate", "Bearer")
		respondWithError(w, http.StatusUnauthorized, "Invalid authentication credentials")
	case errors.Is(err, domain.ErrAdminInactive):
		respondWithError(w, http.StatusForbidden, "Admin account is inactive")
	case errors.Is(err, domain.ErrForbidden):
		respondWithError(w, http.StatusForbidden, "Not authorized for this organization")
	case errors.Is(err, domain.ErrCreateFailed):
		slog.ErrorContext(ctx, op+" failed", "error", err, "requestID", chmw.GetReqID(ctx))
		respondWithError(w, http.StatusInternalServerError, "Failed to create organization")
	case errors.Is(err, domain.ErrUpdateFailed):
		slog.ErrorContext(ctx, op+" failed", "error", err, "requestID", chmw.GetReqID(ctx))
		respondWithError(w, http.StatusInternalServerError, "Failed to update organization")
	case errors.Is(err, domain.ErrDeleteFailed):
		slog.ErrorContext(ctx, op+" failed", "error", err, "requestID", chmw.GetReqID(ctx))
		respondWithError(w, http.StatusInternalServerError, "Failed to delete organization")
	default:
		slog.ErrorContext(ctx, op+" failed", "error", err, "requestID", chmw.GetReqID(ctx))
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// respondWithError sends an error response with a message
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

// respondWithJSON sends a JSON response
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	// Sets content type header
	w.Header().Set("Content-Type", "application/json")

	// Sets the HTTP status code
	w.WriteHeader(code)

	// Encodes the response
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
