// internal/handler/auth.go
package handler

import (
	"context"
	"net/http"

	"github.com/dangerclosesec/orgmgr/internal/service"
)

type Authenticator interface {
	Authenticate(ctx context.Context, input service.LoginInput) (*service.LoginOutput, error)
}

type AuthHandler struct {
	authService Authenticator
}

func NewAuthHandler(authService Authenticator) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type LoginResponse struct {
	BaseResponse
	*service.LoginOutput
}

func (h *AuthHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var input service.LoginInput
	if !decodeJSON(w, r, &input) {
		return
	}

	output, err := h.authService.Authenticate(r.Context(), input)
	if err != nil {
		respondWithServiceError(w, r, "admin login", err)
		return
	}

	respondWithJSON(w, http.StatusOK, LoginResponse{
		BaseResponse: BaseResponse{Ok: true},
		LoginOutput:  output,
	})
}
